// Package importance derives a search ranking score for stop groups.
//
// Stops sharing the first three segments of their IFOPT identifier form one
// group (typically one station with all its platforms). The aggregator runs
// as an independent full pass over the feed before reconciliation, because
// the score needs complete per-group statistics: the set of distinct
// serviced lines and the set of transport modes.
//
// The score is baseline + min(1, lines/25)*maxServiced + best mode bonus.
// The saturation at 25 distinct lines models diminishing marginal importance
// of additional service. Writes are tolerance-gated, so re-running with
// identical inputs touches nothing.
package importance
