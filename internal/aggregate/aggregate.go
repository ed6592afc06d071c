// Package aggregate groups dataset records by a key field and ranks the
// groups by count or by the sum of a numeric field.
//
// Every function here is pure and never panics: an unexpected fault is
// logged and resolved to an empty result so one broken breakdown cannot
// keep the rest of a page from rendering.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"

	"dogedash/internal/core"
)

// DefaultLimit is the number of groups returned by a top-N breakdown.
const DefaultLimit = 10

// UnknownGroup names the bucket for records without a key value.
const UnknownGroup = "Unknown"

// Stats describes the input an aggregation consumed.
type Stats struct {
	Records int // non-nil records grouped
	Skipped int // nil records
	Unknown int // records without a key value
	Groups  int // distinct keys before truncation
}

type group struct {
	name  string
	value float64
	order int
}

// CountByKey counts records per distinct keyField value and returns the top
// DefaultLimit groups by count.
func CountByKey(records []core.Record, keyField string) []core.NameValue {
	return CountByKeyLimit(records, keyField, DefaultLimit)
}

// CountByKeyLimit is CountByKey returning the top limit groups. A
// non-positive limit means DefaultLimit.
func CountByKeyLimit(records []core.Record, keyField string, limit int) []core.NameValue {
	out, _ := rank(records, keyField, func(core.Record) float64 { return 1 }, limit)
	return out
}

// SumByKey groups records by keyField and sums valueField, returning the top
// limit groups by sum. A non-positive limit means DefaultLimit.
func SumByKey(records []core.Record, keyField, valueField string, limit int) []core.NameValue {
	out, _ := SumByKeyStats(records, keyField, valueField, limit)
	return out
}

// SumByKeyStats is SumByKey that also reports what was skipped.
func SumByKeyStats(records []core.Record, keyField, valueField string, limit int) ([]core.NameValue, Stats) {
	return rank(records, keyField, func(r core.Record) float64 { return r.Num(valueField) }, limit)
}

func rank(records []core.Record, keyField string, measure func(core.Record) float64, limit int) (out []core.NameValue, st Stats) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Aggregation fault",
				"component", "aggregate",
				"key_field", keyField,
				"records", len(records),
				"error", fmt.Sprint(rec))
			out, st = []core.NameValue{}, Stats{}
		}
	}()

	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(records) == 0 {
		return []core.NameValue{}, st
	}

	index := make(map[string]*group)
	groups := make([]*group, 0)
	for _, r := range records {
		if r == nil {
			st.Skipped++
			continue
		}
		st.Records++
		name, ok := r.Str(keyField)
		if !ok {
			name = UnknownGroup
			st.Unknown++
		}
		g, exists := index[name]
		if !exists {
			g = &group{name: name, order: len(groups)}
			index[name] = g
			groups = append(groups, g)
		}
		g.value += measure(r)
	}
	st.Groups = len(groups)

	// groups is in first-seen order, so a stable sort keeps ties in that order
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].value > groups[j].value
	})
	if len(groups) > limit {
		groups = groups[:limit]
	}

	out = make([]core.NameValue, len(groups))
	for i, g := range groups {
		out[i] = core.NameValue{Name: g.name, Value: g.value}
	}
	return out, st
}

// Total sums field over every non-nil record.
func Total(records []core.Record, field string) float64 {
	var sum float64
	for _, r := range records {
		if r == nil {
			continue
		}
		sum += r.Num(field)
	}
	return sum
}

// Distinct returns the distinct non-empty values of field in first-seen
// order. Matching is exact and case-sensitive.
func Distinct(records []core.Record, field string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if r == nil {
			continue
		}
		v, ok := r.Str(field)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
