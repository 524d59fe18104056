// Package templates renders the HTML views of the estimator.
package templates

// SummaryLine is one priced line of a position, already formatted.
type SummaryLine struct {
	Kind        string
	Description string
	Unit        string
	Quantity    string
	UnitRate    string
	Total       string
	Linked      bool
	Note        string
}

type SummaryPosition struct {
	ID       string
	Code     string
	Name     string
	Total    string
	Lines    []SummaryLine
	Warnings []string
}

type SummaryCategory struct {
	Name       string
	Base       string
	Commercial string
}

// TenderSummaryData is everything the tender summary needs.
type TenderSummaryData struct {
	TenderID        string
	Title           string
	ClientName      string
	Rates           string
	Positions       []SummaryPosition
	Categories      []SummaryCategory
	BaseTotal       string
	CommercialTotal string
	Margin          string
	MarginPercent   string
}
