package summary

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dogedash/internal/core"
	"dogedash/internal/dataset"
)

func TestRecomputeEmpty(t *testing.T) {
	got := Recompute(dataset.New(), core.DefaultRegistry())
	if got.Loaded() || got.TotalItems != 0 || got.DistinctAgencies != 0 || got.TotalSavings != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestRecomputeScenario(t *testing.T) {
	c := dataset.New()
	_ = c.Store(core.Grants, []core.Record{
		{"agency": "A", "value": float64(100), "savings": float64(10)},
		{"agency": "B", "value": float64(50), "savings": float64(5)},
		{"agency": "A", "value": float64(25), "savings": float64(2)},
	})

	got := Recompute(c, core.DefaultRegistry())
	if got.TotalSavings != 17 || got.TotalItems != 3 || got.DistinctAgencies != 2 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if diff := cmp.Diff([]string{"Grants"}, got.LoadedDatasets); diff != "" {
		t.Fatalf("loaded datasets (-want +got):\n%s", diff)
	}
	st, ok := got.Stats(core.Grants)
	if !ok || st.TotalValue != 175 || st.Count != 3 {
		t.Fatalf("unexpected grants stats %+v", st)
	}
}

func TestRecomputeAcrossKinds(t *testing.T) {
	c := dataset.New()
	// stored out of canonical order on purpose
	_ = c.Store(core.Payments, []core.Record{
		{"agency_name": "Dept of X", "payment_amt": float64(1000)},
		{"agency_name": "a", "payment_amt": "250"},
	})
	_ = c.Store(core.Leases, []core.Record{
		{"agency": "A", "value": float64(10), "savings": float64(3), "sq_ft": float64(1200)},
		{"agency": nil, "value": float64(5), "savings": "bad", "sq_ft": float64(800)},
	})
	_ = c.Store(core.Contracts, []core.Record{
		{"agency": "A", "value": float64(7), "savings": float64(1.5)},
	})

	got := Recompute(c, core.DefaultRegistry())
	if diff := cmp.Diff([]string{"Contracts", "Leases", "Payments"}, got.LoadedDatasets); diff != "" {
		t.Fatalf("loaded datasets (-want +got):\n%s", diff)
	}
	if got.TotalItems != 5 {
		t.Fatalf("total items = %d", got.TotalItems)
	}
	// payments contribute no savings; "bad" coerces to 0
	if got.TotalSavings != 4.5 {
		t.Fatalf("total savings = %v", got.TotalSavings)
	}
	// "A", "Dept of X", "a": case-sensitive, nil agency skipped
	if got.DistinctAgencies != 3 {
		t.Fatalf("distinct agencies = %d", got.DistinctAgencies)
	}
	leases, _ := got.Stats(core.Leases)
	if leases.Extra["sq_ft"] != 2000 {
		t.Fatalf("sq_ft total = %v", leases.Extra["sq_ft"])
	}
	payments, _ := got.Stats(core.Payments)
	if payments.HasSavings || payments.TotalValue != 1250 {
		t.Fatalf("unexpected payments stats %+v", payments)
	}
}
