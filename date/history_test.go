package date

import "testing"

func TestAppend(t *testing.T) {
	h := new(History[string])
	d1, v1 := New(2025, 07, 01), "25 Jul 1"
	d2, v2 := New(2024, 07, 01), "24 Jul 1"

	// Test is about appending two values in reverse order and checking that everything is
	// as expected at every step of the way.

	if h.Len() != 0 {
		t.Errorf("History.Len() = %v want 0", h.Len())
	}

	h.Append(d1, v1)
	if h.Len() != 1 {
		t.Errorf("Append(d1, v1).Len() = %v want 1", h.Len())
	}

	h.Append(d2, v2)
	if h.Len() != 2 {
		t.Errorf("Append(d2, v2).Len() = %v want 2", h.Len())
	}

	if h.days[1] != d1 {
		t.Errorf("history[1].day = %v want %v", h.days[1], d1)
	}
	if h.days[0] != d2 {
		t.Errorf("history[0].day = %v want %v", h.days[0], d2)
	}
	if h.values[1] != v1 {
		t.Errorf("history[1].value = %v want %v", h.values[1], v1)
	}
	if h.values[0] != v2 {
		t.Errorf("history[0].value = %v want %v", h.values[0], v2)
	}

	// Last write wins.
	h.Append(d1, "again")
	if got, _ := h.Get(d1); got != "again" || h.Len() != 2 {
		t.Errorf("Append(d1, again) Get = %q, Len = %d want %q, 2", got, h.Len(), "again")
	}
}

func TestValueAsOf(t *testing.T) {
	var h History[float64]
	h.Append(New(2024, 1, 10), 100)
	h.Append(New(2024, 1, 12), 110)

	if _, ok := h.ValueAsOf(New(2024, 1, 9)); ok {
		t.Errorf("ValueAsOf(01-09) found a value, want none")
	}
	if v, _ := h.ValueAsOf(New(2024, 1, 11)); v != 100 {
		t.Errorf("ValueAsOf(01-11) = %v want 100", v)
	}
	if v, _ := h.ValueAsOf(New(2024, 2, 1)); v != 110 {
		t.Errorf("ValueAsOf(02-01) = %v want 110", v)
	}
}

func TestFillForward(t *testing.T) {
	d0 := New(2024, 1, 10)

	var h History[float64]
	h.Append(d0, 10)
	n := h.FillForward(NewRange(d0.Add(-1), d0.Add(2)))

	if n != 2 {
		t.Errorf("FillForward() = %d want 2", n)
	}
	want := map[Date]float64{d0: 10, d0.Add(1): 10, d0.Add(2): 10}
	got := h.Map()
	if len(got) != len(want) {
		t.Errorf("FillForward() map = %v want %v", got, want)
	}
	for day, v := range want {
		if got[day] != v {
			t.Errorf("FillForward()[%v] = %v want %v", day, got[day], v)
		}
	}
	if _, ok := h.Get(d0.Add(-1)); ok {
		t.Errorf("FillForward() wrote a value before the first data point")
	}
}

func TestFillForwardKeepsLaterPoints(t *testing.T) {
	var h History[float64]
	h.Append(New(2024, 1, 10), 100)
	h.Append(New(2024, 1, 12), 110)
	h.FillForward(NewRange(New(2024, 1, 10), New(2024, 1, 14)))

	want := []float64{100, 100, 110, 110, 110}
	i := 0
	for _, v := range h.Values() {
		if i >= len(want) || v != want[i] {
			t.Errorf("FillForward() value[%d] = %v want %v", i, v, want)
		}
		i++
	}
	if i != len(want) {
		t.Errorf("FillForward() len = %d want %d", i, len(want))
	}
}

func TestFillForwardIgnoresValuesBeforeRange(t *testing.T) {
	var h History[float64]
	h.Append(New(2024, 1, 1), 90)
	h.FillForward(NewRange(New(2024, 1, 10), New(2024, 1, 11)))
	if h.Len() != 1 {
		t.Errorf("FillForward() Len = %d want 1, values before the range are not a seed", h.Len())
	}
}
