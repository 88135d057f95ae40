package plan

import (
	"testing"
	"time"
)

func TestDiscountWindowOpen(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	w := DiscountWindow{StartsAt: start, EndsAt: start.Add(24 * time.Hour)}

	if w.Open(start.Add(-time.Second)) {
		t.Fatalf("open before start")
	}
	if !w.Open(start) {
		t.Fatalf("start boundary should be open")
	}
	if !w.Open(start.Add(12 * time.Hour)) {
		t.Fatalf("midpoint should be open")
	}
	if w.Open(start.Add(24 * time.Hour)) {
		t.Fatalf("end boundary should be closed")
	}
}

func TestEffectivePrice(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	p := Plan{ID: "p1", PriceCents: 1000}
	open := func(percent int, planID string) DiscountWindow {
		return DiscountWindow{
			PlanID:   planID,
			Percent:  percent,
			StartsAt: at.Add(-time.Hour),
			EndsAt:   at.Add(time.Hour),
		}
	}
	closed := DiscountWindow{PlanID: "p1", Percent: 90, StartsAt: at.Add(-2 * time.Hour), EndsAt: at.Add(-time.Hour)}

	cases := []struct {
		name    string
		windows []DiscountWindow
		want    int64
	}{
		{"no windows", nil, 1000},
		{"closed window ignored", []DiscountWindow{closed}, 1000},
		{"single open", []DiscountWindow{open(25, "p1")}, 750},
		{"best open wins", []DiscountWindow{open(10, "p1"), open(30, "p1"), closed}, 700},
		{"other plan ignored", []DiscountWindow{open(50, "p2")}, 1000},
		{"full discount", []DiscountWindow{open(100, "p1")}, 0},
		{"over 100 clamps", []DiscountWindow{open(150, "p1")}, 0},
	}
	for _, tc := range cases {
		if got := EffectivePrice(p, tc.windows, at); got != tc.want {
			t.Fatalf("%s: price = %d, want %d", tc.name, got, tc.want)
		}
	}
}
