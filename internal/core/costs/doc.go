// Package costs provides pure functions for building AWS cost reports.
//
// This package contains the functional core of the cost report handler.
// All functions are pure (no I/O, no side effects); the Cost Explorer call
// and the Lambda plumbing live in the imperative shell.
//
// # Functions
//
//   - Query: Parse query string parameters into a report query (ParseQuery)
//   - Filters: Combine service, region and tag filters (BuildFilter)
//   - Rows: Flatten Cost Explorer periods into service rows (ExtractRows)
//   - Rendering: Render rows as JSON or an aligned text table (Render, RenderTable)
//   - Caching: Derive a stable cache key for a query (CacheKey)
//
// # Usage
//
// The shell (internal/shell/lambdafn) runs the pure steps around a single
// Cost Explorer request:
//
//	q, err := costs.ParseQuery(params, time.Now())
//	periods, err := source.FetchCosts(ctx, q)
//	rows, err := costs.ExtractRows(periods)
//	resp := costs.Render(rows, q.Format)
package costs
