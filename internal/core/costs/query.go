package costs

import (
	"fmt"
	"strings"
	"time"
)

// Query string parameter names.
const (
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
	ParamServices  = "services"
	ParamRegions   = "regions"
	ParamFormat    = "format"

	// TagParamPrefix marks tag filters: tag_<Key>=v1,v2.
	TagParamPrefix = "tag_"
)

// =============================================================================
// Query Parsing
// =============================================================================

// ParseQuery validates query string parameters and builds a report query.
//
// Defaults, evaluated in UTC against now:
//   - start_date: first day of the current month
//   - end_date: yesterday
//   - format: json
//
// On the first day of a month both defaults would produce an inverted
// window, so when neither date was supplied the start moves back to the
// first day of the previous month.
//
// Returns a *DateError (matching ErrInvalidDate) when a date is malformed or
// start_date is after end_date.
func ParseQuery(params map[string]string, now time.Time) (Query, error) {
	now = now.UTC()

	startRaw, hasStart := params[ParamStartDate]
	if !hasStart {
		startRaw = FirstOfMonth(now).Format(DateLayout)
	}
	endRaw, hasEnd := params[ParamEndDate]
	if !hasEnd {
		endRaw = Yesterday(now).Format(DateLayout)
	}

	start, err := parseDate(ParamStartDate, startRaw)
	if err != nil {
		return Query{}, err
	}
	end, err := parseDate(ParamEndDate, endRaw)
	if err != nil {
		return Query{}, err
	}

	if start.After(end) {
		if hasStart || hasEnd {
			return Query{}, newDateError("start_date must be before end_date")
		}
		start = FirstOfMonth(end)
	}

	return Query{
		Start:  start,
		End:    end,
		Filter: BuildFilter(params),
		Format: ParseFormat(params[ParamFormat]),
	}, nil
}

// ParseFormat maps the format parameter to a Format. Anything other than
// "table" (case-insensitive) renders JSON.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatTable)) {
		return FormatTable
	}
	return FormatJSON
}

// FirstOfMonth returns midnight UTC on the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Yesterday returns midnight UTC on the day before t.
func Yesterday(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()-1, 0, 0, 0, 0, time.UTC)
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, newDateError(fmt.Sprintf("%s %q does not match format YYYY-MM-DD", field, raw))
	}
	return d, nil
}
