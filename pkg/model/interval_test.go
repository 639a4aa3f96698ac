package model

import (
	"errors"
	"testing"
	"time"
)

func mustInterval(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("bad start %q: %v", start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("bad end %q: %v", end, err)
	}
	interval, err := NewInterval(s, e)
	if err != nil {
		t.Fatalf("NewInterval(%s, %s): %v", start, end, err)
	}
	return interval
}

func TestNewInterval_Validation(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{
			name:  "valid one hour slot",
			start: base,
			end:   base.Add(time.Hour),
		},
		{
			name:  "valid one nanosecond slot",
			start: base,
			end:   base.Add(time.Nanosecond),
		},
		{
			name:    "zero duration rejected",
			start:   base,
			end:     base,
			wantErr: true,
		},
		{
			name:    "inverted rejected",
			start:   base.Add(time.Hour),
			end:     base,
			wantErr: true,
		},
		{
			name:    "zero times rejected",
			start:   time.Time{},
			end:     time.Time{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterval(tt.start, tt.end)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInterval) {
					t.Errorf("expected ErrInvalidInterval, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestInterval_Overlaps(t *testing.T) {
	// All cases are phrased against a fixed 10:00-11:00 slot.
	reference := mustInterval(t, "2026-03-10T10:00:00Z", "2026-03-10T11:00:00Z")

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{
			name:  "identical",
			other: mustInterval(t, "2026-03-10T10:00:00Z", "2026-03-10T11:00:00Z"),
			want:  true,
		},
		{
			name:  "partial overlap from the right",
			other: mustInterval(t, "2026-03-10T10:30:00Z", "2026-03-10T11:30:00Z"),
			want:  true,
		},
		{
			name:  "partial overlap from the left",
			other: mustInterval(t, "2026-03-10T09:30:00Z", "2026-03-10T10:30:00Z"),
			want:  true,
		},
		{
			name:  "fully contained",
			other: mustInterval(t, "2026-03-10T10:15:00Z", "2026-03-10T10:45:00Z"),
			want:  true,
		},
		{
			name:  "fully containing",
			other: mustInterval(t, "2026-03-10T09:00:00Z", "2026-03-10T12:00:00Z"),
			want:  true,
		},
		{
			name:  "touching at the end does not overlap",
			other: mustInterval(t, "2026-03-10T11:00:00Z", "2026-03-10T12:00:00Z"),
			want:  false,
		},
		{
			name:  "touching at the start does not overlap",
			other: mustInterval(t, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
			want:  false,
		},
		{
			name:  "disjoint before",
			other: mustInterval(t, "2026-03-10T07:00:00Z", "2026-03-10T08:00:00Z"),
			want:  false,
		},
		{
			name:  "disjoint after",
			other: mustInterval(t, "2026-03-10T13:00:00Z", "2026-03-10T14:00:00Z"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reference.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps(%s) = %v, want %v", tt.other, got, tt.want)
			}
			// The predicate is symmetric.
			if got := tt.other.Overlaps(reference); got != tt.want {
				t.Errorf("reversed Overlaps(%s) = %v, want %v", reference, got, tt.want)
			}
		})
	}
}

func TestInterval_Overlaps_OneNanosecondPastBoundary(t *testing.T) {
	reference := mustInterval(t, "2026-03-10T10:00:00Z", "2026-03-10T11:00:00Z")

	start := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	other, err := NewInterval(start, start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if !reference.Overlaps(other) {
		t.Error("interval starting one nanosecond before the boundary must overlap")
	}
}
