package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"

	"tenderestimate/services"
)

// HandleItemImport receives a CSV or Excel upload and creates its rows in the
// position. Nothing is written when any row is invalid; the row errors are
// returned instead.
// Route: POST /positions/{positionId}/import
func HandleItemImport(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		positionID := e.Request.PathValue("positionId")
		if positionID == "" {
			return ErrorToast(e, http.StatusBadRequest, "Missing position ID")
		}

		// Parse multipart form (max 10MB)
		if err := e.Request.ParseMultipartForm(10 << 20); err != nil {
			return ErrorToast(e, http.StatusBadRequest, "File too large or invalid form data")
		}

		file, header, err := e.Request.FormFile("file")
		if err != nil {
			return ErrorToast(e, http.StatusBadRequest, "Please select a file to upload")
		}
		defer file.Close()

		result, err := services.ParseBOQFile(file, header.Filename)
		if err != nil {
			log.Warn().Err(err).Str("file", header.Filename).Msg("item_import: unreadable file")
			return ErrorToast(e, http.StatusBadRequest, err.Error())
		}
		if result.ErrorRows > 0 {
			SetToast(e, "error", fmt.Sprintf("%d rows have errors. Nothing was imported.", result.ErrorRows))
			return e.JSON(http.StatusBadRequest, result)
		}

		created, err := est.ImportItems(e.Request.Context(), positionID, result.Rows)
		if err != nil {
			return respondError(e, "item_import", err)
		}
		result.Created = created

		SetToast(e, "success", fmt.Sprintf("%d items imported successfully", created))
		return e.JSON(http.StatusCreated, result)
	}
}

// HandleImportErrorReport downloads the posted row errors as an Excel file.
// Route: POST /imports/errors
func HandleImportErrorReport() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var rowErrors []services.ImportRowError
		if err := json.NewDecoder(e.Request.Body).Decode(&rowErrors); err != nil {
			return ErrorToast(e, http.StatusBadRequest, "Invalid error data")
		}

		xlsxBytes, err := services.GenerateErrorReport(rowErrors)
		if err != nil {
			log.Error().Err(err).Msg("import_errors: failed to generate report")
			return ErrorToast(e, http.StatusInternalServerError, "Something went wrong. Please try again.")
		}

		filename := fmt.Sprintf("BOQ_Import_Errors_%s.xlsx", time.Now().Format("2006-01-02"))
		e.Response.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		e.Response.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s"`, filename))
		_, err = e.Response.Write(xlsxBytes)
		return err
	}
}
