package layout

import (
	"math"
	"testing"
)

func TestRectToAbsolute(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 50, Height: 6}
	got := r.ToAbsolute(A4)
	want := Box{X: 21, Y: 29.7, Width: 105, Height: 17.82}
	if !closeTo(got.X, want.X) || !closeTo(got.Y, want.Y) || !closeTo(got.Width, want.Width) || !closeTo(got.Height, want.Height) {
		t.Fatalf("ToAbsolute() = %+v, want %+v", got, want)
	}
}

func TestRectClamped(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{name: "inside", in: Rect{X: 20, Y: 20, Width: 40, Height: 6}, want: Rect{X: 20, Y: 20, Width: 40, Height: 6}},
		{name: "negative origin", in: Rect{X: -5, Y: -0.01, Width: 10, Height: 10}, want: Rect{X: 0, Y: 0, Width: 10, Height: 10}},
		{name: "overflow right and bottom", in: Rect{X: 95, Y: 99, Width: 10, Height: 4}, want: Rect{X: 90, Y: 96, Width: 10, Height: 4}},
		{name: "oversized", in: Rect{X: 3, Y: 3, Width: 140, Height: 120}, want: Rect{X: 0, Y: 0, Width: 100, Height: 100}},
		{name: "rounding", in: Rect{X: 12.3456, Y: 7.891, Width: 33.333, Height: 6}, want: Rect{X: 12.35, Y: 7.89, Width: 33.33, Height: 6}},
		{name: "nan origin", in: Rect{X: math.NaN(), Y: 5, Width: 10, Height: 10}, want: Rect{X: 0, Y: 5, Width: 10, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamped()
			if got != tt.want {
				t.Fatalf("Clamped() = %+v, want %+v", got, tt.want)
			}
			if !got.InBounds(1e-9) {
				t.Fatalf("Clamped() result out of bounds: %+v", got)
			}
		})
	}
}

func TestClampOriginNeverExceedsBound(t *testing.T) {
	for w := 0.0; w <= 100; w += 0.37 {
		for x := -10.0; x <= 110; x += 1.113 {
			got := ClampOrigin(x, w)
			if got < 0 || got+w > 100+1e-9 {
				t.Fatalf("ClampOrigin(%v, %v) = %v out of bounds", x, w, got)
			}
		}
	}
}

func TestViewportToPercent(t *testing.T) {
	v := Viewport{Left: 100, Top: 50, Width: 400, Height: 800}
	got := v.ToPercent(300, 250)
	if got != (Point{X: 50, Y: 25}) {
		t.Fatalf("ToPercent() = %+v", got)
	}
	if (Viewport{}).ToPercent(10, 10) != (Point{}) {
		t.Fatalf("zero viewport should map to origin")
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
