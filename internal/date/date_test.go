package date

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddNormalizes(t *testing.T) {
	cases := []struct {
		in   Date
		days int
		want Date
	}{
		{New(2025, time.January, 31), 1, New(2025, time.February, 1)},
		{New(2025, time.December, 31), 1, New(2026, time.January, 1)},
		{New(2024, time.February, 28), 1, New(2024, time.February, 29)}, // leap year
		{New(2025, time.February, 28), 1, New(2025, time.March, 1)},
		{New(2025, time.March, 1), -1, New(2025, time.February, 28)},
	}
	for _, c := range cases {
		if got := c.in.Add(c.days); got != c.want {
			t.Errorf("%s.Add(%d) = %s, want %s", c.in, c.days, got, c.want)
		}
	}
}

func TestYearEnd(t *testing.T) {
	if got := New(2025, time.June, 10).YearEnd(); got != New(2025, time.December, 31) {
		t.Fatalf("YearEnd = %s", got)
	}
	if got := New(2025, time.December, 31).YearEnd(); got != New(2025, time.December, 31) {
		t.Fatalf("YearEnd on Dec 31 = %s", got)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("2025-06-10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d != New(2025, time.June, 10) {
		t.Fatalf("Parse = %s", d)
	}
	if _, err := Parse("10/06/2025"); err == nil {
		t.Fatal("expected error for non-ISO format")
	}
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := New(2025, time.September, 1)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-09-01"` {
		t.Fatalf("marshal = %s", b)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != d {
		t.Fatalf("round trip = %s", back)
	}
}

func TestOrdering(t *testing.T) {
	a, b := New(2025, time.June, 10), New(2025, time.June, 11)
	if !a.Before(b) || b.Before(a) {
		t.Fatal("Before is wrong")
	}
	if !b.After(a) || a.After(b) {
		t.Fatal("After is wrong")
	}
	if a.IsZero() {
		t.Fatal("a should not be zero")
	}
	var z Date
	if !z.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
}
