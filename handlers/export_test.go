package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"spaces to hyphens", "My Tender File", "My-Tender-File"},
		{"slashes to hyphens", "path/to/file", "path-to-file"},
		{"backslashes", "path\\to\\file", "path-to-file"},
		{"colons", "file:name", "file-name"},
		{"mixed", "A / B \\ C : D", "A---B---C---D"},
		{"no special chars", "simple", "simple"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeFilename(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHandleTenderExportExcel(t *testing.T) {
	h := newHandlerEnv(t)
	work := h.createWork(t, "10", "100")
	h.createLinkedMaterial(t, work.ID)

	rec := h.serve(t, HandleTenderExportExcel(h.est), http.MethodGet, "/", nil, map[string]string{"id": h.tenderID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	disposition := rec.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="Tender_Warehouse-Block-B_`), disposition)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

func TestHandleTenderExportPDF(t *testing.T) {
	h := newHandlerEnv(t)
	h.createWork(t, "10", "100")

	rec := h.serve(t, HandleTenderExportPDF(h.est), http.MethodGet, "/", nil, map[string]string{"id": h.tenderID})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestHandleTenderExport_NotFound(t *testing.T) {
	h := newHandlerEnv(t)

	for name, handler := range map[string]func(h *handlerEnv) int{
		"excel": func(h *handlerEnv) int {
			return h.serve(t, HandleTenderExportExcel(h.est), http.MethodGet, "/", nil,
				map[string]string{"id": "missing0000000"}).Code
		},
		"pdf": func(h *handlerEnv) int {
			return h.serve(t, HandleTenderExportPDF(h.est), http.MethodGet, "/", nil,
				map[string]string{"id": "missing0000000"}).Code
		},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, handler(h))
		})
	}
}

func TestHandleTenderExport_MissingID(t *testing.T) {
	h := newHandlerEnv(t)

	rec := h.serve(t, HandleTenderExportExcel(h.est), http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing tender ID", rec.Body.String())
}
