package domain

// Record is one raw attendance record as returned by the LMS API.
// The upstream payload is loosely typed: any field may be absent or null,
// and numeric fields arrive as JSON numbers.
type Record map[string]any

// Row is one flat output row, one string cell per report column.
type Row []string

// CollectResult is the outcome of collecting all pages for one date.
// DroppedPages lists the page indexes (1-based) that were abandoned after
// the retry budget was exhausted; their records are missing from Records.
type CollectResult struct {
	Records      []Record
	TotalPages   int
	DroppedPages []int
}
