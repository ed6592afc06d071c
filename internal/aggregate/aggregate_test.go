package aggregate

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dogedash/internal/core"
)

func scenario() []core.Record {
	return []core.Record{
		{"agency": "A", "value": float64(100), "savings": float64(10)},
		{"agency": "B", "value": float64(50), "savings": float64(5)},
		{"agency": "A", "value": float64(25), "savings": float64(2)},
	}
}

func TestSumByKeyScenario(t *testing.T) {
	got := SumByKey(scenario(), "agency", "value", 0)
	want := []core.NameValue{{Name: "A", Value: 125}, {Name: "B", Value: 50}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SumByKey mismatch (-want +got):\n%s", diff)
	}
	if total := Total(scenario(), "savings"); total != 17 {
		t.Fatalf("total savings = %v, want 17", total)
	}
	if n := len(Distinct(scenario(), "agency")); n != 2 {
		t.Fatalf("distinct agencies = %d, want 2", n)
	}
}

func TestSumByKeyEmptyInputs(t *testing.T) {
	if got := SumByKey(nil, "k", "v", 10); got == nil || len(got) != 0 {
		t.Fatalf("nil input must give an empty, non-nil result: %#v", got)
	}
	if got := SumByKey([]core.Record{}, "k", "v", 10); len(got) != 0 {
		t.Fatalf("empty input must give empty result")
	}
}

func TestSumByKeyToleratesBadRecords(t *testing.T) {
	records := []core.Record{
		nil,
		{"vendor": "X", "value": "12.5"},
		{"value": float64(4)},
		{"vendor": nil, "value": float64(1)},
		{"vendor": "X", "value": "n/a"},
		{"vendor": "Y"},
	}
	got, st := SumByKeyStats(records, "vendor", "value", 10)
	want := []core.NameValue{{Name: "X", Value: 12.5}, {Name: "Unknown", Value: 5}, {Name: "Y", Value: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if st.Skipped != 1 || st.Unknown != 2 || st.Records != 5 || st.Groups != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSumByKeyOrderingAndLimit(t *testing.T) {
	var records []core.Record
	var trueTotal float64
	for i := 0; i < 30; i++ {
		v := float64((i * 7) % 11)
		trueTotal += v
		records = append(records, core.Record{"name": fmt.Sprintf("g%02d", i%15), "amount": v})
	}

	for _, limit := range []int{1, 5, 10, 15, 20} {
		got := SumByKey(records, "name", "amount", limit)
		max := limit
		if max > 15 {
			max = 15
		}
		if len(got) != max {
			t.Fatalf("limit %d: got %d groups", limit, len(got))
		}
		var sum float64
		for i, nv := range got {
			sum += nv.Value
			if i > 0 && got[i-1].Value < nv.Value {
				t.Fatalf("limit %d: not descending at %d: %v", limit, i, got)
			}
		}
		if sum > trueTotal {
			t.Fatalf("limit %d: returned sum %v exceeds true total %v", limit, sum, trueTotal)
		}
		if limit >= 15 && sum != trueTotal {
			t.Fatalf("limit %d: all groups returned, sum %v must equal %v", limit, sum, trueTotal)
		}
	}
}

func TestTiesKeepFirstSeenOrder(t *testing.T) {
	records := []core.Record{
		{"k": "c", "v": float64(5)},
		{"k": "a", "v": float64(5)},
		{"k": "b", "v": float64(9)},
		{"k": "d", "v": float64(5)},
	}
	got := SumByKey(records, "k", "v", 10)
	var names []string
	for _, nv := range got {
		names = append(names, nv.Name)
	}
	if diff := cmp.Diff([]string{"b", "c", "a", "d"}, names); diff != "" {
		t.Fatalf("tie order (-want +got):\n%s", diff)
	}
}

func TestCountByKey(t *testing.T) {
	var records []core.Record
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			records = append(records, core.Record{"agency": fmt.Sprintf("agency-%d", i)})
		}
	}
	got := CountByKey(records, "agency")
	if len(got) != DefaultLimit {
		t.Fatalf("expected top %d, got %d", DefaultLimit, len(got))
	}
	if got[0].Name != "agency-11" || got[0].Value != 12 {
		t.Fatalf("unexpected leader %+v", got[0])
	}
	if got[9].Name != "agency-2" || got[9].Value != 3 {
		t.Fatalf("unexpected tail %+v", got[9])
	}

	if all := CountByKeyLimit(records, "agency", 50); len(all) != 12 {
		t.Errorf("CountByKeyLimit(50) = %d groups, want 12", len(all))
	}
	if def := CountByKeyLimit(records, "agency", 0); len(def) != DefaultLimit {
		t.Errorf("CountByKeyLimit(0) = %d groups, want %d", len(def), DefaultLimit)
	}
}

func TestNumericKeysAreStringified(t *testing.T) {
	records := []core.Record{{"zip": float64(20001), "v": float64(1)}, {"zip": "20001", "v": float64(2)}}
	got := SumByKey(records, "zip", "v", 10)
	if len(got) != 1 || got[0].Name != "20001" || got[0].Value != 3 {
		t.Fatalf("unexpected %+v", got)
	}
}
