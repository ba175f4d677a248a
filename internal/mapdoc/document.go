// Package mapdoc holds the scenario map document: hex records with terrain,
// elevation and edge features, plus the grid spec that places them.
// The document is owned by the map editor; LOS evaluation only reads it.
package mapdoc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/talgya/lob-los/internal/hexgrid"
)

// EdgeFeature sits on one side of a hex (stone wall, vertical slope, ...).
type EdgeFeature struct {
	Type             string   `json:"type"`
	MovementModifier *float64 `json:"movementModifier,omitempty"`
	LOSBlocking      bool     `json:"losBlocking,omitempty"`    // Blocks LOS when entered across this side
	LOSHeightBonus   float64  `json:"losHeightBonus,omitempty"` // Added to the hex height when entered across this side
}

// HexFeature is a point feature inside a hex (building, church, ...).
type HexFeature struct {
	Type string `json:"type"`
}

// HexRecord is one digitized hex.
type HexRecord struct {
	Hex             string                              `json:"hex"`
	Terrain         string                              `json:"terrain"`
	Elevation       *float64                            `json:"elevation,omitempty"`
	Slope           *int                                `json:"slope,omitempty"`
	WedgeElevations []float64                           `json:"wedgeElevations,omitempty"`
	Hexsides        map[string]string                   `json:"hexsides,omitempty"`
	Edges           map[hexgrid.Direction][]EdgeFeature `json:"edges,omitempty"`
	Features        []HexFeature                        `json:"features,omitempty"`
	VPHex           bool                                `json:"vpHex,omitempty"`
	EntryHex        bool                                `json:"entryHex,omitempty"`
	Side            string                              `json:"side,omitempty"`
	SetupUnits      []string                            `json:"setupUnits,omitempty"`
	Note            string                              `json:"_note,omitempty"`
}

// TerrainClass returns the record's terrain, TerrainUnknown when the label
// is missing or not recognized.
func (h *HexRecord) TerrainClass() Terrain {
	t, _ := ParseTerrain(h.Terrain)
	return t
}

// ElevationOrZero returns the recorded elevation, 0 when absent.
func (h *HexRecord) ElevationOrZero() float64 {
	if h.Elevation == nil {
		return 0
	}
	return *h.Elevation
}

// ElevationSystem documents how contour lines map to elevation values.
type ElevationSystem struct {
	ContourInterval          float64 `json:"contourInterval"`
	Unit                     string  `json:"unit"`
	VerticalSlopesImpassable bool    `json:"verticalSlopesImpassable"`
	Note                     string  `json:"_note,omitempty"`
}

// VPHex is a victory-point location.
type VPHex struct {
	Hex           string  `json:"hex"`
	UnionVP       float64 `json:"unionVP"`
	ConfederateVP float64 `json:"confederateVP"`
	Label         string  `json:"label,omitempty"`
}

// EntryHex is a reinforcement entry location.
type EntryHex struct {
	Hex   string `json:"hex"`
	Label string `json:"label,omitempty"`
}

// EntryHexes groups entry locations by side.
type EntryHexes struct {
	Union       []EntryHex `json:"union"`
	Confederate []EntryHex `json:"confederate"`
}

// Document is a whole scenario map as stored in map.json.
type Document struct {
	Status           string            `json:"_status"`
	Description      string            `json:"_description,omitempty"`
	DigitizationNote string            `json:"_digitizationNote,omitempty"`
	Scenario         string            `json:"scenario"`
	Layout           string            `json:"layout"`
	HexIDFormat      string            `json:"hexIdFormat,omitempty"`
	GridSpec         *hexgrid.GridSpec `json:"gridSpec,omitempty"`
	TerrainTypes     []string          `json:"terrainTypes,omitempty"`
	HexsideTypes     []string          `json:"hexsideTypes,omitempty"`
	HexFeatureTypes  []string          `json:"hexFeatureTypes,omitempty"`
	EdgeFeatureTypes []string          `json:"edgeFeatureTypes,omitempty"`
	ElevationSystem  *ElevationSystem  `json:"elevationSystem,omitempty"`
	VPHexes          []VPHex           `json:"vpHexes"`
	EntryHexes       *EntryHexes       `json:"entryHexes,omitempty"`
	Hexes            []HexRecord       `json:"hexes"`
	TodoHexes        json.RawMessage   `json:"_todoHexes,omitempty"`
	DigitizationPlan json.RawMessage   `json:"_digitizationPlan,omitempty"`
}

// Grid returns the document's grid spec, or the fallback grid when absent.
func (d *Document) Grid() hexgrid.GridSpec {
	if d == nil || d.GridSpec == nil {
		return hexgrid.FallbackGrid()
	}
	return *d.GridSpec
}

// Decode reads a map document from JSON. Edge keys outside the six compass
// directions are rejected here.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode map document: %w", err)
	}
	return &doc, nil
}

// LoadFile decodes the map document stored at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// String returns a summary of the document.
func (d *Document) String() string {
	g := d.Grid()
	return fmt.Sprintf("Map(scenario=%s, grid=%dx%d, hexes=%d)", d.Scenario, g.Cols, g.Rows, len(d.Hexes))
}
