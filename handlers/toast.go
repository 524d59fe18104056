package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
)

// SetToast adds a showToast event to the HX-Trigger response header so HTMX
// shows a notification. Events already in the header are kept.
// It also sets a flash cookie so toasts survive regular (non-HTMX) redirects.
func SetToast(e *core.RequestEvent, toastType string, message string) {
	addTrigger(e, "showToast", map[string]string{
		"message": message,
		"type":    toastType,
	})

	// Also set a flash cookie for non-HTMX redirects where HX-Trigger is lost
	cookieVal, err := json.Marshal(map[string]string{"message": message, "type": toastType})
	if err == nil {
		http.SetCookie(e.Response, &http.Cookie{
			Name:     "flash_toast",
			Value:    url.QueryEscape(string(cookieVal)),
			Path:     "/",
			MaxAge:   10,
			HttpOnly: false, // JS needs to read it
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// triggerPositionChanged tells the page that a position total moved so the
// summary panel can reload itself.
func triggerPositionChanged(e *core.RequestEvent, positionID string) {
	addTrigger(e, "positionChanged", map[string]string{"position_id": positionID})
}

// addTrigger sets event in the HX-Trigger JSON object, merging with what is
// already there. A header that is not a JSON object is replaced.
func addTrigger(e *core.RequestEvent, event string, detail any) {
	payload := map[string]any{}
	if existing := e.Response.Header().Get("HX-Trigger"); existing != "" {
		if err := json.Unmarshal([]byte(existing), &payload); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("toast: existing HX-Trigger is not valid JSON, overwriting")
			payload = map[string]any{}
		}
	}
	payload[event] = detail

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("toast: failed to marshal HX-Trigger JSON")
		return
	}
	e.Response.Header().Set("HX-Trigger", string(data))
}

// ErrorToast sets an error toast and prevents HTMX from swapping the error text into the DOM.
// It sets HX-Reswap: none so the response body is ignored by HTMX, while the HX-Trigger
// header still fires the toast event.
func ErrorToast(e *core.RequestEvent, statusCode int, message string) error {
	SetToast(e, "error", message)
	e.Response.Header().Set("HX-Reswap", "none")
	return e.String(statusCode, message)
}
