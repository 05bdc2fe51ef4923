package costs

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

// Content types used in responses.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// NoDataMessage is returned when a report has no rows.
const NoDataMessage = "No data found"

// =============================================================================
// Response Rendering
// =============================================================================

// Render builds a 200 response for rows in the requested format.
func Render(rows []CostRow, format Format) Response {
	if format == FormatTable {
		body := NoDataMessage
		if len(rows) > 0 {
			body = RenderTable(rows)
		}
		return Response{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": ContentTypeText},
			Body:       body,
		}
	}

	var payload any = map[string]any{"data": rows}
	if len(rows) == 0 {
		payload = map[string]string{"message": NoDataMessage}
	}
	return Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": ContentTypeJSON},
		Body:       mustJSON(payload),
	}
}

// ErrorResponse builds a JSON error response: {"error": message}.
func ErrorResponse(statusCode int, message string) Response {
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": ContentTypeJSON},
		Body:       mustJSON(map[string]string{"error": message}),
	}
}

// RenderTable renders rows as a markdown-style table sorted by cost,
// highest first. Rows with equal cost keep their input order.
//
// Example:
//
//	| Service    | Cost (USD) |
//	|------------|------------|
//	| Amazon EC2 |      12.50 |
func RenderTable(rows []CostRow) string {
	if len(rows) == 0 {
		return "No billing data available"
	}

	const serviceHeader, costHeader = "Service", "Cost (USD)"

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b CostRow) int {
		return cmp.Compare(b.Cost, a.Cost)
	})

	serviceWidth := utf8.RuneCountInString(serviceHeader)
	costWidth := utf8.RuneCountInString(costHeader)
	for _, row := range sorted {
		serviceWidth = max(serviceWidth, utf8.RuneCountInString(row.Service))
		costWidth = max(costWidth, len(formatCost(row.Cost)))
	}

	lines := make([]string, 0, len(sorted)+2)
	lines = append(lines,
		fmt.Sprintf("| %-*s | %*s |", serviceWidth, serviceHeader, costWidth, costHeader),
		"|"+strings.Repeat("-", serviceWidth+2)+"|"+strings.Repeat("-", costWidth+2)+"|",
	)
	for _, row := range sorted {
		lines = append(lines, fmt.Sprintf("| %-*s | %*s |", serviceWidth, row.Service, costWidth, formatCost(row.Cost)))
	}

	return strings.Join(lines, "\n")
}

func formatCost(cost float64) string {
	return fmt.Sprintf("%.2f", cost)
}

// mustJSON marshals values that are always encodable (strings, floats
// produced by RoundCents, and maps of them).
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
