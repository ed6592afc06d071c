package core

import (
	"fmt"
	"strings"
)

// NoDatasetsMessage is shown while nothing has been loaded.
const NoDatasetsMessage = "No datasets loaded yet"

// Stats returns the per-kind stats entry for k, if k is loaded.
func (s SummaryTotals) Stats(k Kind) (KindStats, bool) {
	for _, ks := range s.PerKind {
		if ks.Kind == k {
			return ks, true
		}
	}
	return KindStats{}, false
}

// Loaded reports whether any dataset contributed to the totals.
func (s SummaryTotals) Loaded() bool {
	return len(s.LoadedDatasets) > 0
}

// LoadedInfo is the overview's "datasets loaded" line.
func (s SummaryTotals) LoadedInfo() string {
	if !s.Loaded() {
		return NoDatasetsMessage
	}
	return fmt.Sprintf("Datasets loaded: %s (%d of %d)",
		strings.Join(s.LoadedDatasets, ", "), len(s.LoadedDatasets), NumKinds)
}
