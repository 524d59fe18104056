package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// ImportRowError is a field-level problem on one row of an uploaded BOQ file.
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportRow is one parsed BOQ line. LinkRow is the file row number of the
// work a material is linked to, or 0.
type ImportRow struct {
	Row     int
	Input   ItemInput
	LinkRow int
}

// ImportResult summarizes a parsed and optionally applied upload.
type ImportResult struct {
	TotalRows int              `json:"total_rows"`
	ValidRows int              `json:"valid_rows"`
	ErrorRows int              `json:"error_rows"`
	Created   int              `json:"created"`
	Errors    []ImportRowError `json:"errors"`
	Rows      []ImportRow      `json:"-"`
}

// importColumns maps normalized header labels to column keys.
var importColumns = map[string]string{
	"kind":                    "kind",
	"type":                    "kind",
	"description":             "description",
	"name":                    "description",
	"unit":                    "unit",
	"catalog ref":             "catalog_ref",
	"catalog reference":       "catalog_ref",
	"quantity":                "quantity",
	"qty":                     "quantity",
	"unit rate":               "unit_rate",
	"rate":                    "unit_rate",
	"currency":                "currency_type",
	"consumption":             "consumption_coefficient",
	"consumption coefficient": "consumption_coefficient",
	"conversion":              "conversion_coefficient",
	"conversion coefficient":  "conversion_coefficient",
	"delivery":                "delivery_price_type",
	"delivery type":           "delivery_price_type",
	"delivery amount":         "delivery_amount",
	"role":                    "material_role",
	"material role":           "material_role",
	"linked work row":         "link_row",
	"work row":                "link_row",
}

var importLabels = map[string]string{
	"kind":                    "Kind",
	"description":             "Description",
	"unit":                    "Unit",
	"catalog_ref":             "Catalog Ref",
	"quantity":                "Quantity",
	"unit_rate":               "Unit Rate",
	"currency_type":           "Currency",
	"consumption_coefficient": "Consumption",
	"conversion_coefficient":  "Conversion",
	"delivery_price_type":     "Delivery",
	"delivery_amount":         "Delivery Amount",
	"material_role":           "Role",
	"link_row":                "Linked Work Row",
}

// ParseBOQFile reads a .csv or .xlsx upload and validates every row. Rows
// with errors are reported and left out of result.Rows.
func ParseBOQFile(file io.Reader, fileName string) (*ImportResult, error) {
	var headers []string
	var dataRows [][]string
	var err error

	lowerName := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lowerName, ".csv"):
		headers, dataRows, err = parseCSV(file)
	case strings.HasSuffix(lowerName, ".xlsx"):
		headers, dataRows, err = parseExcel(file)
	default:
		return nil, fmt.Errorf("unsupported file format: must be .csv or .xlsx")
	}
	if err != nil {
		return nil, err
	}

	columnKeys, _ := mapHeaders(headers)
	for _, required := range []string{"kind", "description", "catalog_ref"} {
		if !containsKey(columnKeys, required) {
			return nil, fmt.Errorf("missing required column %q", importLabels[required])
		}
	}

	result := &ImportResult{TotalRows: len(dataRows)}
	kinds := make(map[int]ItemKind, len(dataRows))
	for rowIdx, raw := range dataRows {
		rowNum := rowIdx + 2 // 1-indexed, +1 for header row
		data := make(map[string]string)
		for colIdx, key := range columnKeys {
			if key == "" || colIdx >= len(raw) {
				continue
			}
			data[key] = strings.TrimSpace(raw[colIdx])
		}
		if isBlankRow(data) {
			result.TotalRows--
			continue
		}

		row, errs := parseImportRow(rowNum, data)
		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		kinds[rowNum] = row.Input.Kind
		result.Rows = append(result.Rows, row)
	}

	// Link targets must be valid work rows of the same file.
	valid := result.Rows[:0]
	for _, row := range result.Rows {
		if row.LinkRow != 0 {
			if k, ok := kinds[row.LinkRow]; !ok || !k.IsWorkLike() {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     row.Row,
					Field:   importLabels["link_row"],
					Message: fmt.Sprintf("row %d is not a valid work row", row.LinkRow),
				})
				continue
			}
		}
		valid = append(valid, row)
	}
	result.Rows = valid

	errorRows := make(map[int]bool)
	for _, e := range result.Errors {
		errorRows[e.Row] = true
	}
	result.ErrorRows = len(errorRows)
	result.ValidRows = result.TotalRows - result.ErrorRows
	return result, nil
}

func parseImportRow(rowNum int, data map[string]string) (ImportRow, []ImportRowError) {
	row := ImportRow{Row: rowNum}
	var errs []ImportRowError
	fail := func(key, msg string) {
		errs = append(errs, ImportRowError{Row: rowNum, Field: importLabels[key], Message: msg})
	}

	kind := ItemKind(strings.ToLower(strings.ReplaceAll(data["kind"], "-", "_")))
	if !kind.Valid() {
		fail("kind", fmt.Sprintf("unknown kind %q", data["kind"]))
	}
	row.Input.Kind = kind

	if data["description"] == "" {
		fail("description", "Description is required")
	}
	if data["catalog_ref"] == "" {
		fail("catalog_ref", "Catalog Ref is required")
	}
	row.Input.Description = stringPtr(data["description"])
	row.Input.CatalogRef = stringPtr(data["catalog_ref"])
	row.Input.Unit = stringPtr(data["unit"])

	decimals := []struct {
		key string
		dst **decimal.Decimal
	}{
		{"quantity", &row.Input.Quantity},
		{"unit_rate", &row.Input.UnitRate},
		{"consumption_coefficient", &row.Input.ConsumptionCoefficient},
		{"conversion_coefficient", &row.Input.ConversionCoefficient},
		{"delivery_amount", &row.Input.DeliveryAmount},
	}
	for _, d := range decimals {
		v := data[d.key]
		if v == "" {
			continue
		}
		n, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			fail(d.key, fmt.Sprintf("%q is not a number", v))
			continue
		}
		*d.dst = &n
	}

	if v := data["currency_type"]; v != "" {
		c := CurrencyType(strings.ToUpper(v))
		if !c.Valid() {
			fail("currency_type", fmt.Sprintf("unsupported currency %q", v))
		}
		row.Input.CurrencyType = &c
	}
	if v := data["delivery_price_type"]; v != "" {
		d := DeliveryPriceType(strings.ToLower(v))
		if !d.Valid() {
			fail("delivery_price_type", fmt.Sprintf("unknown delivery type %q", v))
		}
		row.Input.DeliveryPriceType = &d
	}
	if v := data["material_role"]; v != "" {
		r := MaterialRole(strings.ToLower(v))
		if !r.Valid() {
			fail("material_role", fmt.Sprintf("unknown role %q", v))
		}
		row.Input.MaterialRole = &r
	}

	if v := data["link_row"]; v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 2 {
			fail("link_row", fmt.Sprintf("%q is not a row number", v))
		} else if !kind.IsMaterialLike() {
			fail("link_row", "only materials can be linked to a work")
		} else {
			row.LinkRow = n
		}
	}
	return row, errs
}

// ImportItems creates the parsed rows in a position inside one transaction:
// works first, then materials with their links. Any failure rolls back the
// whole import.
func (e *Estimator) ImportItems(ctx context.Context, positionID string, rows []ImportRow) (int, error) {
	created := 0
	err := e.store.RunInTransaction(ctx, func(tx Store) error {
		txEst := &Estimator{store: tx, graph: NewLinkGraph(tx), policy: e.policy}
		ids := make(map[int]string, len(rows))

		ordered := make([]ImportRow, 0, len(rows))
		for _, r := range rows {
			if r.Input.Kind.IsWorkLike() {
				ordered = append(ordered, r)
			}
		}
		for _, r := range rows {
			if !r.Input.Kind.IsWorkLike() {
				ordered = append(ordered, r)
			}
		}

		for _, r := range ordered {
			in := r.Input
			if r.LinkRow != 0 {
				workID, ok := ids[r.LinkRow]
				if !ok {
					return fmt.Errorf("row %d: linked row %d was not imported as a work", r.Row, r.LinkRow)
				}
				in.Link = &LinkChange{WorkItemID: workID}
			}
			sortOrder := r.Row
			in.SortOrder = &sortOrder
			item, err := txEst.CreateItem(ctx, positionID, in)
			if err != nil {
				return fmt.Errorf("row %d: %w", r.Row, err)
			}
			ids[r.Row] = item.ID
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// parseCSV reads a CSV file and returns headers + data rows.
func parseCSV(file io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(allRows) < 2 {
		return nil, nil, fmt.Errorf("file must contain a header row and at least one data row")
	}

	return allRows[0], allRows[1:], nil
}

// parseExcel reads an xlsx file and returns headers + data rows from the first sheet.
func parseExcel(file io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("file must contain a header row and at least one data row")
	}

	return rows[0], rows[1:], nil
}

// mapHeaders maps uploaded column headers to column keys. It returns one key
// per column ("" for unknown ones) and the unrecognized headers.
func mapHeaders(headers []string) ([]string, []string) {
	mapped := make([]string, len(headers))
	var unrecognized []string

	for i, h := range headers {
		norm := strings.ToLower(strings.TrimSpace(h))
		norm = strings.TrimSpace(strings.TrimSuffix(norm, " *"))

		if key, ok := importColumns[norm]; ok {
			mapped[i] = key
		} else {
			unrecognized = append(unrecognized, h)
		}
	}
	return mapped, unrecognized
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func isBlankRow(data map[string]string) bool {
	for _, v := range data {
		if v != "" {
			return false
		}
	}
	return true
}

func stringPtr(s string) *string {
	return &s
}

// GenerateErrorReport creates a downloadable .xlsx file from import errors.
func GenerateErrorReport(errors []ImportRowError) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Errors"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DC2626"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorders(),
	})

	f.SetCellValue(sheet, "A1", "Row #")
	f.SetCellValue(sheet, "B1", "Field")
	f.SetCellValue(sheet, "C1", "Error")
	f.SetCellStyle(sheet, "A1", "C1", headerStyle)
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 22)
	f.SetColWidth(sheet, "C", "C", 55)

	for i, e := range errors {
		row := fmt.Sprintf("%d", i+2)
		f.SetCellValue(sheet, "A"+row, e.Row)
		f.SetCellValue(sheet, "B"+row, e.Field)
		f.SetCellValue(sheet, "C"+row, e.Message)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write error report: %w", err)
	}
	return buf.Bytes(), nil
}
