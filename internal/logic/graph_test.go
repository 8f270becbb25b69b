package logic

import "testing"

func newTestMapper() *GraphMapper {
	return NewGraphMapper(DefaultPlotRect, 20, 140, 30)
}

func TestMapYBounds(t *testing.T) {
	g := newTestMapper()

	if got := g.MapY(20); got != 300 {
		t.Errorf("MapY(valueMin): got %d, want yBottom 300", got)
	}
	if got := g.MapY(140); got != 60 {
		t.Errorf("MapY(valueMax): got %d, want yTop 60", got)
	}
	if got := g.MapY(80); got != 180 {
		t.Errorf("MapY(80): got %d, want 180", got)
	}
}

func TestMapYClamps(t *testing.T) {
	g := newTestMapper()

	if g.MapY(-50) != g.MapY(20) {
		t.Errorf("MapY(-50)=%d should equal MapY(20)=%d", g.MapY(-50), g.MapY(20))
	}
	if g.MapY(999) != g.MapY(140) {
		t.Errorf("MapY(999)=%d should equal MapY(140)=%d", g.MapY(999), g.MapY(140))
	}
}

func TestMapYMonotonicInverted(t *testing.T) {
	g := newTestMapper()

	prev := g.MapY(21)
	for v := 22.0; v < 140; v += 1 {
		y := g.MapY(v)
		if y >= prev {
			t.Fatalf("MapY(%v)=%d should be above MapY(%v)=%d", v, y, v-1, prev)
		}
		prev = y
	}
}

func TestMapYTruncates(t *testing.T) {
	g := newTestMapper()
	// 300 - 1*240/120 = 298; 300 - 0.5*2 = 299
	if got := g.MapY(20.5); got != 299 {
		t.Errorf("MapY(20.5): got %d, want 299", got)
	}
}

func TestMapXBounds(t *testing.T) {
	g := newTestMapper()

	if got := g.MapX(0); got != 20 {
		t.Errorf("MapX(0): got %d, want xLeft 20", got)
	}
	if got := g.MapX(1800); got != 380 {
		t.Errorf("MapX(1800): got %d, want xRight 380", got)
	}
	// 15 minutes is halfway: 20 + 180
	if got := g.MapX(900); got != 200 {
		t.Errorf("MapX(900): got %d, want 200", got)
	}
	// 1 minute: 20 + 360/30 = 32
	if got := g.MapX(60); got != 32 {
		t.Errorf("MapX(60): got %d, want 32", got)
	}
}

func TestMapXClamps(t *testing.T) {
	g := newTestMapper()

	if g.MapX(99999) != g.MapX(1800) {
		t.Errorf("MapX(99999)=%d should equal MapX(1800)=%d", g.MapX(99999), g.MapX(1800))
	}
	if got := g.MapX(-10); got != 20 {
		t.Errorf("MapX(-10): got %d, want xLeft 20", got)
	}
}

func TestMapXMonotonic(t *testing.T) {
	g := newTestMapper()

	prev := g.MapX(0)
	for s := 10.0; s <= 1800; s += 10 {
		x := g.MapX(s)
		if x < prev {
			t.Fatalf("MapX(%v)=%d decreased from %d", s, x, prev)
		}
		prev = x
	}
}

func TestMapCombines(t *testing.T) {
	g := newTestMapper()
	p := g.Map(PlotPoint{TimeSeconds: 900, Value: 80})
	if p != (PixelPoint{X: 200, Y: 180}) {
		t.Errorf("Map: got %+v, want {200 180}", p)
	}
}

func TestMapStaysInsideRect(t *testing.T) {
	g := newTestMapper()
	r := g.Rect()
	for _, s := range []float64{-100, 0, 1, 600, 1799, 1800, 5000} {
		for _, v := range []float64{-273, 0, 20, 93, 139.9, 140, 500} {
			p := g.Map(PlotPoint{TimeSeconds: s, Value: v})
			if p.X < r.XLeft || p.X > r.XRight || p.Y < r.YTop || p.Y > r.YBottom {
				t.Errorf("Map(%v,%v)=%+v outside %+v", s, v, p, r)
			}
		}
	}
}

func TestGridLines(t *testing.T) {
	g := newTestMapper()
	lines := g.GridLines(5)
	want := []float64{40, 60, 80, 100, 120}

	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, l := range lines {
		if l.Value != want[i] {
			t.Errorf("line %d: value %v, want %v", i, l.Value, want[i])
		}
		if l.Y != g.MapY(want[i]) {
			t.Errorf("line %d: y %d, want %d", i, l.Y, g.MapY(want[i]))
		}
	}
	if g.GridLines(0) != nil {
		t.Error("expected nil for zero lines")
	}
}
