package services

import (
	"testing"
)

func TestGeneratePDF_TenderRows(t *testing.T) {
	result, err := GeneratePDF(sampleExportData())
	if err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
	if len(result) == 0 {
		t.Fatal("GeneratePDF() returned empty bytes")
	}
	if len(result) > 4 && string(result[:5]) != "%PDF-" {
		t.Errorf("result does not start with PDF header, got %q", string(result[:5]))
	}
}

func TestGeneratePDF_EmptyRows(t *testing.T) {
	result, err := GeneratePDF(ExportData{Title: "Empty", CreatedDate: "15 Jan 2026"})
	if err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
	if len(result) == 0 {
		t.Fatal("GeneratePDF() returned empty bytes")
	}
}

func TestGeneratePDF_UnpricedLineNote(t *testing.T) {
	data := sampleExportData()
	data.Rows[2].Note = "missing exchange rate"
	if _, err := GeneratePDF(data); err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
}
