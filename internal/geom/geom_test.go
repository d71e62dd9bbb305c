// internal/geom/geom_test.go
package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

func pt(x, y float64) schemas.Point { return schemas.Point{X: x, Y: y} }

func TestExceedsHysteresis(t *testing.T) {
	origin := pt(10, 10)
	tests := []struct {
		name      string
		p         schemas.Point
		threshold float64
		want      bool
	}{
		{"below generic", pt(11, 11), 3, false},
		{"exactly on threshold", pt(13, 10), 3, true},
		{"diagonal below per-axis", pt(12.5, 12.5), 3, false},
		{"far along x", pt(50, 10), 3, true},
		{"link threshold not reached", pt(45, 10), 40, false},
		{"link threshold reached", pt(10, 50), 40, true},
		{"negative direction", pt(4, 10), 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExceedsHysteresis(origin, tt.p, tt.threshold))
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(pt(10, 10), pt(14, 6), 5))
	assert.False(t, Within(pt(10, 10), pt(16, 10), 5))
}

func TestRect(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 50}

	assert.True(t, r.Contains(pt(0, 0)))
	assert.True(t, r.Contains(pt(99.9, 49.9)))
	assert.False(t, r.Contains(pt(100, 10)), "right edge is exclusive")
	assert.False(t, r.Contains(pt(-1, 10)))

	o := Rect{X: 80, Y: 40, Width: 40, Height: 40}
	assert.Equal(t, Rect{X: 80, Y: 40, Width: 20, Height: 10}, r.Intersect(o))
	assert.Equal(t, 200.0, r.Intersect(o).Area())
	assert.False(t, r.Intersects(Rect{X: 100, Y: 0, Width: 10, Height: 10}))

	assert.Equal(t, pt(50, 25), r.Center())
	assert.Equal(t, Rect{X: 5, Y: 5, Width: 100, Height: 50}, r.Translate(pt(5, 5)))
	assert.Equal(t, Rect{X: 7, Y: 8, Width: 6, Height: 4}, RectAround(pt(10, 10), pt(3, 2)))
	assert.InDelta(t, 99.99, r.Clamp(pt(500, -3)).X, 0.01)
	assert.Equal(t, 0.0, r.Clamp(pt(500, -3)).Y)
	assert.InDelta(t, 5.0, Dist(pt(0, 0), pt(3, 4)), 1e-9)
}
