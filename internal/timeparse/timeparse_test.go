package timeparse

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5:00:00", 5 * time.Hour},
		{"1:00:00", time.Hour},
		{"0:30:00", 30 * time.Minute},
		{"-0:10:00", -10 * time.Minute},
		{"10:00:00.5", 10 * time.Hour},
	}

	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q) returned error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDurationInvalid(t *testing.T) {
	cases := []string{"", "abc", "5:00", "5:60:00", "5:00:60", "h:00:00"}
	for _, in := range cases {
		if _, err := ParseDuration(in); err == nil {
			t.Errorf("ParseDuration(%q) expected error, got nil", in)
		}
	}
}

func TestDurationRoundTrip(t *testing.T) {
	cases := []time.Duration{
		5*time.Hour + 30*time.Minute + 15*time.Second,
		0,
		-(2*time.Hour + 2*time.Minute + 2*time.Second),
	}
	for _, d := range cases {
		s := FormatDuration(d)
		got, err := ParseDuration(s)
		if err != nil {
			t.Fatalf("ParseDuration(FormatDuration(%v)) = %v, error %v", d, s, err)
		}
		if got != d {
			t.Errorf("round trip for %v: got %v via %q", d, got, s)
		}
	}
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2024-01-01T00:30:00Z")
	if err != nil {
		t.Fatalf("ParseTime returned error: %v", err)
	}
	if ts.Hour() != 0 || ts.Minute() != 30 {
		t.Errorf("unexpected parsed time: %v", ts)
	}

	if _, err := ParseTime("not-a-time"); err == nil {
		t.Errorf("expected error for invalid timestamp")
	}
}
