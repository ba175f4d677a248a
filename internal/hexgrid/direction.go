package hexgrid

import "fmt"

// Direction names one of the six edges of a flat-top hex, clockwise from north.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	SouthEast
	South
	SouthWest
	NorthWest
)

// Directions lists every edge in clockwise order.
var Directions = [6]Direction{North, NorthEast, SouthEast, South, SouthWest, NorthWest}

var directionNames = [6]string{"N", "NE", "SE", "S", "SW", "NW"}

// directionDeltas holds the cube step across each edge. Row 1 is the bottom of
// the printed map, so "north" decreases the internal r axis.
var directionDeltas = [6]Cube{
	{Q: 0, R: -1, S: 1},
	{Q: 1, R: -1, S: 0},
	{Q: 1, R: 0, S: -1},
	{Q: 0, R: 1, S: -1},
	{Q: -1, R: 1, S: 0},
	{Q: -1, R: 0, S: 1},
}

// Valid reports whether d is one of the six compass edges.
func (d Direction) Valid() bool {
	return d < 6
}

// Delta returns the cube step across edge d.
func (d Direction) Delta() Cube {
	return directionDeltas[d]
}

// Opposite returns the edge facing d.
func (d Direction) Opposite() Direction {
	return (d + 3) % 6
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// ParseDirection maps a compass key ("N", "NE", ...) to its Direction.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hex direction %q", s)
}

// MarshalText lets Direction act as a JSON object key.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid hex direction %d", uint8(d))
	}
	return []byte(directionNames[d]), nil
}

// UnmarshalText rejects anything outside the six compass keys.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DirectionBetween returns the edge of from that faces to.
// ok is false when the two hexes are not adjacent.
func DirectionBetween(from, to Cube) (Direction, bool) {
	delta := to.Sub(from)
	for i, d := range directionDeltas {
		if d == delta {
			return Direction(i), true
		}
	}
	return 0, false
}
