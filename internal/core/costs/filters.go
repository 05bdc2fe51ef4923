package costs

import (
	"sort"
	"strings"
)

// =============================================================================
// Filter Building
// =============================================================================

// BuildFilter combines the service, region and tag parameters into a single
// filter expression.
//
// Filters are collected in a fixed order: services, regions, then tag_*
// parameters sorted by tag key. No filters yields nil, a single filter is
// returned as is, and several are joined with And.
//
// Example:
//
//	BuildFilter(map[string]string{"services": "Amazon S3"})
//	// returns &Expression{Dimension: &DimensionValues{Key: "SERVICE", Values: []string{"Amazon S3"}}}
func BuildFilter(params map[string]string) *Expression {
	var filters []Expression

	if values := SplitValues(params[ParamServices]); len(values) > 0 {
		filters = append(filters, Expression{
			Dimension: &DimensionValues{Key: DimensionService, Values: values},
		})
	}

	if values := SplitValues(params[ParamRegions]); len(values) > 0 {
		filters = append(filters, Expression{
			Dimension: &DimensionValues{Key: DimensionRegion, Values: values},
		})
	}

	for _, key := range tagKeys(params) {
		values := SplitValues(params[TagParamPrefix+key])
		if len(values) == 0 {
			continue
		}
		filters = append(filters, Expression{
			Tag: &TagValues{Key: key, Values: values},
		})
	}

	switch len(filters) {
	case 0:
		return nil
	case 1:
		return &filters[0]
	default:
		return &Expression{And: filters}
	}
}

// SplitValues splits a comma separated parameter, trimming whitespace and
// dropping empty entries.
func SplitValues(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

// tagKeys returns the tag names referenced by tag_* parameters, sorted.
func tagKeys(params map[string]string) []string {
	var keys []string
	for param := range params {
		if !strings.HasPrefix(param, TagParamPrefix) {
			continue
		}
		if key := strings.TrimPrefix(param, TagParamPrefix); key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
