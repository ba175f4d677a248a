// Package hexgrid provides the coordinate math for the printed hex map:
// "CC.RR" identifiers, the odd-column-down offset layout, cube coordinates,
// and straight-line tracing between hexes.
package hexgrid

// Cube is a hex position in cube coordinates. Q + R + S is always zero.
type Cube struct {
	Q int
	R int
	S int
}

// FracCube is an interpolated, not yet rounded, cube position.
type FracCube struct {
	Q float64
	R float64
	S float64
}

// NewCube builds a cube coordinate from its two axial components.
func NewCube(q, r int) Cube {
	return Cube{Q: q, R: r, S: -q - r}
}

// Add returns c offset by d.
func (c Cube) Add(d Cube) Cube {
	return Cube{Q: c.Q + d.Q, R: c.R + d.R, S: c.S + d.S}
}

// Sub returns the delta from o to c.
func (c Cube) Sub(o Cube) Cube {
	return Cube{Q: c.Q - o.Q, R: c.R - o.R, S: c.S - o.S}
}

// Neighbor returns the adjacent hex across edge d.
func (c Cube) Neighbor(d Direction) Cube {
	return c.Add(d.Delta())
}

// Distance returns the hex distance between two cube coordinates.
func Distance(a, b Cube) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S - b.S)
	// Max of the three absolute differences in cube coordinates.
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
