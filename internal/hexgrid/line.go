package hexgrid

import "math"

// lineNudge shifts both endpoints off the hex boundaries so a line running
// exactly along an edge still picks one side consistently.
const lineNudge = 1e-6

// RoundCube snaps a fractional cube position to the nearest hex.
// The axis with the largest rounding error is rebuilt from the other two;
// ties fall through q, then r, then s.
func RoundCube(f FracCube) Cube {
	q := roundHalfUp(f.Q)
	r := roundHalfUp(f.R)
	s := roundHalfUp(f.S)

	dq := math.Abs(q - f.Q)
	dr := math.Abs(r - f.R)
	ds := math.Abs(s - f.S)

	if dq > dr && dq > ds {
		q = -r - s
	} else if dr > ds {
		r = -q - s
	} else {
		s = -q - r
	}

	return Cube{Q: int(q), R: int(r), S: int(s)}
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Line returns every hex a straight line from a to b passes through,
// a and b included.
func Line(a, b Offset, g GridSpec) []Offset {
	ca := ToCube(a, g)
	cb := ToCube(b, g)

	n := Distance(ca, cb)
	if n == 0 {
		return []Offset{a}
	}

	aq := float64(ca.Q) + lineNudge
	ar := float64(ca.R) + lineNudge
	as := float64(ca.S) - 2*lineNudge
	bq := float64(cb.Q) + lineNudge
	br := float64(cb.R) + lineNudge
	bs := float64(cb.S) - 2*lineNudge

	result := make([]Offset, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		hex := RoundCube(FracCube{
			Q: lerp(aq, bq, t),
			R: lerp(ar, br, t),
			S: lerp(as, bs, t),
		})
		result = append(result, ToOffset(hex, g))
	}
	return result
}

// TraceLine is Line over "CC.RR" identifiers. The returned ids are canonical.
func TraceLine(fromID, toID string, g GridSpec) ([]string, error) {
	a, err := ParseHexID(fromID)
	if err != nil {
		return nil, err
	}
	b, err := ParseHexID(toID)
	if err != nil {
		return nil, err
	}

	path := Line(a, b, g)
	ids := make([]string, len(path))
	for i, o := range path {
		ids[i] = o.String()
	}
	return ids, nil
}
