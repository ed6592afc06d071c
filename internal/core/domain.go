package core

import (
	"errors"
	"strings"
)

// Kind identifies one of the published datasets.
type Kind int

const (
	Grants Kind = iota
	Contracts
	Leases
	Payments
)

// NumKinds is the number of dataset kinds.
const NumKinds = 4

// Kinds lists every dataset kind in canonical display order.
var Kinds = []Kind{Grants, Contracts, Leases, Payments}

var ErrUnknownKind = errors.New("unknown dataset kind")

var kindSlugs = [...]string{"grants", "contracts", "leases", "payments"}

// String returns the lowercase slug used in URLs and file names.
func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindSlugs[k]
}

// Valid reports whether k is one of the four dataset kinds.
func (k Kind) Valid() bool {
	return k >= Grants && k <= Payments
}

// ParseKind maps a slug (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, slug := range kindSlugs {
		if slug == s {
			return Kind(i), nil
		}
	}
	return 0, ErrUnknownKind
}

type (
	// Record is one decoded dataset row. Records are never mutated after load.
	Record map[string]any

	// NameValue is a single ranked entry of an aggregation.
	NameValue struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	// KindStats holds the per-dataset figures shown on the overview cards.
	KindStats struct {
		Kind         Kind               `json:"-"`
		Slug         string             `json:"kind"`
		Name         string             `json:"name"`
		Count        int                `json:"count"`
		TotalValue   float64            `json:"total_value"`
		TotalSavings float64            `json:"total_savings"`
		HasSavings   bool               `json:"has_savings"`
		Extra        map[string]float64 `json:"extra,omitempty"`
	}

	// SummaryTotals is recomputed in full from whatever datasets are loaded.
	SummaryTotals struct {
		TotalSavings     float64     `json:"total_savings"`
		TotalItems       int         `json:"total_items"`
		DistinctAgencies int         `json:"distinct_agencies"`
		LoadedDatasets   []string    `json:"loaded_datasets"`
		PerKind          []KindStats `json:"per_kind"`
	}
)

// Str returns the field as a string, and false when it is absent or null.
func (r Record) Str(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return Stringify(v), true
}

// Num returns the field coerced to a number; see Number.
func (r Record) Num(field string) float64 {
	return Number(r[field])
}
