package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Pt(0, 0), Pt(3, 4)), 1e-9)
	assert.InDelta(t, 0.0, Distance(Pt(7, 7), Pt(7, 7)), 1e-9)
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, Pt(50, 25), Midpoint(Pt(0, 0), Pt(100, 50)))
}

func TestRectCenterAndContains(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 40}
	assert.Equal(t, Pt(60, 40), r.Center())
	assert.True(t, r.Contains(Pt(10, 20)))
	assert.True(t, r.Contains(Pt(110, 60)))
	assert.False(t, r.Contains(Pt(111, 60)))
	assert.False(t, r.Empty())
	assert.True(t, Rect{Width: 0, Height: 10}.Empty())
}

func TestRectAround(t *testing.T) {
	r := RectAround(Pt(100, 100), 20, 10)
	assert.Equal(t, Pt(100, 100), r.Center())
	assert.Equal(t, 90.0, r.X)
	assert.Equal(t, 95.0, r.Y)
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "(10,20)", Pt(10, 20).String())
	assert.Equal(t, "(1.50,-2)", Pt(1.5, -2).String())
}
