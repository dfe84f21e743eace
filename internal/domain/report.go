package domain

import (
	"fmt"
	"strings"
)

// Column is one output column: the record field it reads and an optional
// per-column transform applied to the stringified value.
type Column struct {
	Name      string
	Transform func(string) string
}

// Report is the configured shape of one collection kind: an ordered column
// schema, an optional record filter, and whether output rows are reversed
// (newest first).
type Report struct {
	Name    string
	Columns []Column
	Filter  func(Record) bool
	Reverse bool
	// ServerFilter marks reports whose work-part filter is applied by the
	// API via query parameter rather than client-side.
	ServerFilter bool
}

const (
	ReportCommuteEnd = "commute-end"
	ReportCheckout   = "checkout"
)

// ReportByName returns the built-in report definition for name.
// workPart is the work-part code the report is scoped to (e.g. "IB").
func ReportByName(name, workPart string) (Report, error) {
	switch name {
	case ReportCommuteEnd:
		return commuteEndReport(), nil
	case ReportCheckout:
		return checkoutReport(workPart), nil
	default:
		return Report{}, fmt.Errorf("unknown report %q", name)
	}
}

// commuteEndReport is the 8-column shift-window shape. The work-part filter
// is pushed to the API as a query parameter, so no client-side filter runs.
func commuteEndReport() Report {
	return Report{
		Name: ReportCommuteEnd,
		Columns: []Column{
			{Name: "name"},
			{Name: "teamName"},
			{Name: "userId"},
			{Name: "centerShiftHourType"},
			{Name: "startWorkDateTime"},
			{Name: "endWorkDateTime"},
			{Name: "overWorkMinuteTime"},
			{Name: "overWorkStartMinuteTime"},
		},
		ServerFilter: true,
	}
}

// checkoutReport is the 7-column check-in/out shape. Records are filtered
// client-side by work part, contract-type codes are mapped to display
// labels, and rows are emitted newest first.
func checkoutReport(workPart string) Report {
	return Report{
		Name: ReportCheckout,
		Columns: []Column{
			{Name: "contractType", Transform: ContractLabel},
			{Name: "userId", Transform: StripSpaces},
			{Name: "name", Transform: StripSpaces},
			{Name: "workProcess", Transform: StripSpaces},
			{Name: "workProcessDetail", Transform: StripSpaces},
			{Name: "checkInTime", Transform: StripSpaces},
			{Name: "checkOutTime"},
		},
		Filter: func(r Record) bool {
			return stringify(r["workPart"]) == workPart
		},
		Reverse: true,
	}
}

// Width is the number of output columns, which also bounds the cleared
// sink range.
func (r Report) Width() int { return len(r.Columns) }

// StripSpaces removes all spaces, matching the upstream convention of
// space-padded names and IDs.
func StripSpaces(s string) string { return strings.ReplaceAll(s, " ", "") }

// ContractLabel maps a contract-type code to its display label.
func ContractLabel(code string) string {
	if code == "CONTRACT" {
		return "상용직"
	}
	return "일용직"
}
