package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"

	"tenderestimate/services"
)

// buildExportData loads the tender report and flattens it for the renderers.
func buildExportData(e *core.RequestEvent, est *services.Estimator, tenderID string) (services.ExportData, error) {
	report, err := est.TenderReport(e.Request.Context(), tenderID)
	if err != nil {
		return services.ExportData{}, err
	}
	return services.BuildExportData(report, est.Policy(), time.Now()), nil
}

// sanitizeFilename removes characters that are unsafe for filenames.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	return s
}

// HandleTenderExportExcel returns a handler that generates and downloads an Excel file for a tender.
// Route: GET /tenders/{id}/export/excel
func HandleTenderExportExcel(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		tenderID := e.Request.PathValue("id")
		if tenderID == "" {
			return e.String(http.StatusBadRequest, "Missing tender ID")
		}

		data, err := buildExportData(e, est, tenderID)
		if err != nil {
			return respondError(e, "export_excel", err)
		}

		xlsxBytes, err := services.GenerateExcel(data)
		if err != nil {
			log.Error().Err(err).Str("tender_id", tenderID).Msg("export_excel: failed to generate")
			return e.String(http.StatusInternalServerError, "Failed to generate Excel file")
		}

		filename := fmt.Sprintf("Tender_%s_%d.xlsx", sanitizeFilename(data.Title), time.Now().Year())

		e.Response.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		_, err = e.Response.Write(xlsxBytes)
		return err
	}
}

// HandleTenderExportPDF returns a handler that generates and downloads a PDF file for a tender.
// Route: GET /tenders/{id}/export/pdf
func HandleTenderExportPDF(est *services.Estimator) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		tenderID := e.Request.PathValue("id")
		if tenderID == "" {
			return e.String(http.StatusBadRequest, "Missing tender ID")
		}

		data, err := buildExportData(e, est, tenderID)
		if err != nil {
			return respondError(e, "export_pdf", err)
		}

		pdfBytes, err := services.GeneratePDF(data)
		if err != nil {
			log.Error().Err(err).Str("tender_id", tenderID).Msg("export_pdf: failed to generate")
			return e.String(http.StatusInternalServerError, "Failed to generate PDF file")
		}

		filename := fmt.Sprintf("Tender_%s_%d.pdf", sanitizeFilename(data.Title), time.Now().Year())

		e.Response.Header().Set("Content-Type", "application/pdf")
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		_, err = e.Response.Write(pdfBytes)
		return err
	}
}
