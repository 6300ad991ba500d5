package history

import (
	"testing"

	"metalindexd/internal/model"
)

func TestRing_PushAndOverflowDropsOldestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(model.PricePoint{TS: int64(i), Price: float64(i)})
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	items := r.Items()
	wantTS := []int64{2, 3, 4}
	for i, p := range items {
		if p.TS != wantTS[i] {
			t.Errorf("items[%d].TS = %d, want %d", i, p.TS, wantTS[i])
		}
	}
}

func TestRing_ItemsDoesNotAliasBackingArray(t *testing.T) {
	r := NewRing(3)
	r.Push(model.PricePoint{TS: 1, Price: 1})
	items := r.Items()
	items[0].Price = 999

	again := r.Items()
	if again[0].Price == 999 {
		t.Error("mutating returned slice affected the ring's internal state")
	}
}

func TestStore_RecordPrice_RejectsNonPositive(t *testing.T) {
	s := NewStore()
	s.RecordPrice(model.XAU, 1000, -5)
	s.RecordPrice(model.XAU, 1001, 0)
	if got := s.History(model.XAU); len(got) != 0 {
		t.Errorf("expected no history recorded for non-positive prices, got %d entries", len(got))
	}

	s.RecordPrice(model.XAU, 1002, 64.3)
	if got := s.History(model.XAU); len(got) != 1 {
		t.Errorf("expected one history entry after a valid price, got %d", len(got))
	}
}

func TestStore_HistoryIsIndependentSnapshot(t *testing.T) {
	s := NewStore()
	s.RecordPrice(model.XAU, 1000, 64.3)
	h := s.History(model.XAU)
	h[0].Price = 0

	again := s.History(model.XAU)
	if again[0].Price != 64.3 {
		t.Errorf("mutating a History() snapshot affected the store, got price %v", again[0].Price)
	}
}

func TestStore_IndexSeriesIsIndependentSnapshot(t *testing.T) {
	s := NewStore()
	s.RecordIndex(100)
	s.RecordIndex(105)
	series := s.IndexSeries()
	series[0] = -1

	again := s.IndexSeries()
	if again[0] != 100 {
		t.Errorf("mutating an IndexSeries() snapshot affected the store, got %v", again[0])
	}
	if len(again) != 2 || again[1] != 105 {
		t.Errorf("unexpected index series contents: %v", again)
	}
}

func TestStore_RingsAreBoundedPerMetal(t *testing.T) {
	s := NewStore()
	for i := 0; i < MaxHistoryPoints+10; i++ {
		s.RecordPrice(model.XAG, int64(i), float64(i)+1)
	}
	if got := len(s.History(model.XAG)); got != MaxHistoryPoints {
		t.Errorf("History length = %d, want bounded to %d", got, MaxHistoryPoints)
	}
}
