package hexgrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedHexID is returned for identifiers that are not "col.row".
var ErrMalformedHexID = errors.New("malformed hex id")

// Orientation of the printed hexes.
type Orientation string

const (
	OrientationFlat   Orientation = "flat"
	OrientationPointy Orientation = "pointy"
)

// Valid reports whether o is a known orientation.
func (o Orientation) Valid() bool {
	return o == OrientationFlat || o == OrientationPointy
}

// GridSpec describes how the printed hex grid is laid over the map image.
// Only Cols and Rows matter for geometry; the rest is rendering calibration.
type GridSpec struct {
	Cols        int         `json:"cols"`
	Rows        int         `json:"rows"`
	DX          float64     `json:"dx"`
	DY          float64     `json:"dy"`
	HexWidth    float64     `json:"hexWidth"`
	HexHeight   float64     `json:"hexHeight"`
	ImageScale  float64     `json:"imageScale"`
	StrokeWidth float64     `json:"strokeWidth"`
	Orientation Orientation `json:"orientation"`
	EvenColUp   bool        `json:"evenColUp"`
	Note        string      `json:"_note,omitempty"`
}

// FallbackGrid is assumed when a map document carries no grid spec.
func FallbackGrid() GridSpec {
	return GridSpec{
		Cols:        64,
		Rows:        35,
		Orientation: OrientationFlat,
		EvenColUp:   false,
	}
}

// Offset is a printed hex position: 1-indexed column and row, row 1 at the
// bottom edge of the map.
type Offset struct {
	Col int
	Row int
}

// String formats the offset as a canonical "CC.RR" identifier.
func (o Offset) String() string {
	return fmt.Sprintf("%02d.%02d", o.Col, o.Row)
}

// ParseHexID parses "19.23" (or unpadded "5.5") into an Offset.
func ParseHexID(id string) (Offset, error) {
	colStr, rowStr, ok := strings.Cut(id, ".")
	if !ok || !isDigits(colStr) || !isDigits(rowStr) {
		return Offset{}, fmt.Errorf("%w: %q", ErrMalformedHexID, id)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return Offset{}, fmt.Errorf("%w: %q: %v", ErrMalformedHexID, id, err)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return Offset{}, fmt.Errorf("%w: %q: %v", ErrMalformedHexID, id, err)
	}
	return Offset{Col: col, Row: row}, nil
}

// CanonicalHexID re-formats id with two-digit zero padding.
func CanonicalHexID(id string) (string, error) {
	o, err := ParseHexID(id)
	if err != nil {
		return "", err
	}
	return o.String(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// InBounds reports whether o lies on the grid.
func InBounds(o Offset, g GridSpec) bool {
	return o.Col >= 1 && o.Col <= g.Cols && o.Row >= 1 && o.Row <= g.Rows
}

// ToCube converts a printed offset to cube coordinates.
// Flat-top, odd columns shifted down half a hex. Rows are flipped so that
// internal row 0 is the top of the map.
func ToCube(o Offset, g GridSpec) Cube {
	col := o.Col - 1
	row := g.Rows - o.Row
	q := col
	r := row - (col-(col&1))/2
	return Cube{Q: q, R: r, S: -q - r}
}

// ToOffset converts cube coordinates back to a printed offset.
func ToOffset(c Cube, g GridSpec) Offset {
	col := c.Q
	row := c.R + (c.Q-(c.Q&1))/2
	return Offset{Col: col + 1, Row: g.Rows - row}
}
