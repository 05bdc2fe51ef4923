package costs

import "time"

// =============================================================================
// Query Types
// =============================================================================

// DateLayout is the date format accepted in query parameters and sent to
// Cost Explorer.
const DateLayout = "2006-01-02"

// Format selects how a report body is rendered.
type Format string

const (
	// FormatJSON renders {"data": [...]} with an application/json content type.
	FormatJSON Format = "json"

	// FormatTable renders an aligned plain text table.
	FormatTable Format = "table"
)

// Dimension keys used by the built-in filters.
const (
	DimensionService = "SERVICE"
	DimensionRegion  = "REGION"
)

// Query is a validated cost report request.
type Query struct {
	// Start is the first day of the reporting window.
	Start time.Time

	// End is the last day of the reporting window, passed through to
	// Cost Explorer unchanged.
	End time.Time

	// Filter restricts the report. Nil means no filter.
	Filter *Expression

	// Format selects the response body rendering.
	Format Format
}

// StartDate returns the start of the window in DateLayout.
func (q Query) StartDate() string {
	return q.Start.Format(DateLayout)
}

// EndDate returns the end of the window in DateLayout.
func (q Query) EndDate() string {
	return q.End.Format(DateLayout)
}

// Expression is a Cost Explorer filter expression.
// Exactly one of And, Dimension or Tag is set.
type Expression struct {
	And       []Expression     `json:"and,omitempty"`
	Dimension *DimensionValues `json:"dimension,omitempty"`
	Tag       *TagValues       `json:"tag,omitempty"`
}

// DimensionValues matches a cost dimension (SERVICE, REGION, ...) against values.
type DimensionValues struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// TagValues matches a cost allocation tag against values.
type TagValues struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// =============================================================================
// Result Types
// =============================================================================

// Period is one Cost Explorer result window.
type Period struct {
	Start  string  `json:"start"`
	End    string  `json:"end"`
	Groups []Group `json:"groups"`
}

// Group is one grouped cost figure inside a period.
type Group struct {
	// Keys are the group-by values; the first is the service name.
	Keys []string `json:"keys"`

	// Amount is the metric amount as returned by Cost Explorer (decimal string).
	Amount string `json:"amount"`
}

// CostRow is a single service cost line in a report.
// The JSON names are part of the response contract.
type CostRow struct {
	Service string  `json:"Service"`
	Cost    float64 `json:"Cost (USD)"`
}

// Response is a rendered invocation response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}
