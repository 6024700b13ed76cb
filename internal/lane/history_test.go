package lane

import "testing"

func TestHistoryWindowEvictsByTime(t *testing.T) {
	h := NewHistoryWindow(2)
	h.Add(0, 60)
	h.Add(1, 62)
	h.Add(2, 64)
	if h.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", h.Len())
	}
	h.Add(2.5, 65)
	if h.Len() != 3 || h.Points()[0].Time != 1 {
		t.Fatalf("expected the point at 0 evicted, got %+v", h.Points())
	}
	h.Evict(10)
	if h.Len() != 0 {
		t.Fatalf("expected empty window, got %+v", h.Points())
	}
}

func TestHistoryWindowSeekBack(t *testing.T) {
	h := NewHistoryWindow(8)
	for i := 0; i < 10; i++ {
		h.Add(float64(i), 60)
	}
	h.Evict(4)
	pts := h.Points()
	if len(pts) != 4 || pts[0].Time != 1 || pts[3].Time != 4 {
		t.Fatalf("expected 1..4 kept after seeking back, got %+v", pts)
	}
}

func TestHistoryWindowSameTimeReplaces(t *testing.T) {
	h := NewHistoryWindow(8)
	h.Add(12, 60)
	for i := 0; i < 1000; i++ {
		h.Add(12, 60+float64(i%5))
	}
	if h.Len() != 1 {
		t.Fatalf("expected a single point while time stands still, got %d", h.Len())
	}
	if got := h.Points()[0].Midi; got != 64 {
		t.Fatalf("expected the newest sample kept, got %.0f", got)
	}
	h.Add(12.5, 62)
	if h.Len() != 2 {
		t.Fatalf("expected growth once time advances, got %d", h.Len())
	}
}

func TestHistoryWindowBounds(t *testing.T) {
	h := NewHistoryWindow(8)
	if _, _, ok := h.Bounds(); ok {
		t.Fatalf("expected no bounds for an empty window")
	}
	h.Add(0, 62)
	h.Add(1, 55)
	h.Add(2, 70)
	lo, hi, ok := h.Bounds()
	if !ok || lo != 55 || hi != 70 {
		t.Fatalf("expected 55..70, got %.0f..%.0f", lo, hi)
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("expected cleared window")
	}
}
