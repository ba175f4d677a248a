package mapdoc

import (
	"fmt"
	"slices"
	"strings"

	"github.com/talgya/lob-los/internal/hexgrid"
)

// Issue is one problem found in a map document.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// ValidationError lists every schema violation in a document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid map document: " + e.Issues[0].String()
	}
	return fmt.Sprintf("invalid map document: %d issues, first: %s", len(e.Issues), e.Issues[0])
}

type issues []Issue

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

const requiredLayout = "pointy-top"

var sides = []string{"union", "confederate"}

// Validate checks doc against the map.json shape the editor persists.
// It returns a *ValidationError, or nil when the document is well formed.
func Validate(doc *Document) error {
	var is issues

	if doc.Status == "" {
		is.add("_status", "required")
	}
	if doc.Scenario == "" {
		is.add("scenario", "required")
	}
	if doc.Layout != requiredLayout {
		is.add("layout", "must be %q, got %q", requiredLayout, doc.Layout)
	}
	if doc.GridSpec != nil {
		validateGrid(&is, doc.GridSpec)
	}
	if doc.VPHexes == nil {
		is.add("vpHexes", "required")
	}
	for i, vp := range doc.VPHexes {
		checkHexID(&is, fmt.Sprintf("vpHexes.%d.hex", i), vp.Hex)
	}
	if doc.EntryHexes != nil {
		for i, e := range doc.EntryHexes.Union {
			checkHexID(&is, fmt.Sprintf("entryHexes.union.%d.hex", i), e.Hex)
		}
		for i, e := range doc.EntryHexes.Confederate {
			checkHexID(&is, fmt.Sprintf("entryHexes.confederate.%d.hex", i), e.Hex)
		}
	}
	if doc.Hexes == nil {
		is.add("hexes", "required")
	}
	for i := range doc.Hexes {
		validateHex(&is, fmt.Sprintf("hexes.%d", i), &doc.Hexes[i])
	}

	if len(is) > 0 {
		return &ValidationError{Issues: is}
	}
	return nil
}

func validateGrid(is *issues, g *hexgrid.GridSpec) {
	if g.Cols <= 0 {
		is.add("gridSpec.cols", "must be a positive integer")
	}
	if g.Rows <= 0 {
		is.add("gridSpec.rows", "must be a positive integer")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"hexWidth", g.HexWidth},
		{"hexHeight", g.HexHeight},
		{"imageScale", g.ImageScale},
		{"strokeWidth", g.StrokeWidth},
	} {
		if f.v <= 0 {
			is.add("gridSpec."+f.name, "must be positive")
		}
	}
	if !g.Orientation.Valid() {
		is.add("gridSpec.orientation", "must be flat or pointy, got %q", g.Orientation)
	}
}

func validateHex(is *issues, path string, h *HexRecord) {
	checkHexID(is, path+".hex", h.Hex)
	if _, ok := ParseTerrain(h.Terrain); !ok {
		is.add(path+".terrain", "unknown terrain %q", h.Terrain)
	}
	if h.Slope != nil && (*h.Slope < 0 || *h.Slope > 5) {
		is.add(path+".slope", "must be between 0 and 5, got %d", *h.Slope)
	}
	if h.WedgeElevations != nil && len(h.WedgeElevations) != 6 {
		is.add(path+".wedgeElevations", "must have 6 entries, got %d", len(h.WedgeElevations))
	}
	for dir, feats := range h.Edges {
		for j, f := range feats {
			if f.Type == "" {
				is.add(fmt.Sprintf("%s.edges.%s.%d.type", path, dir, j), "required")
			}
		}
	}
	for j, f := range h.Features {
		if f.Type == "" {
			is.add(fmt.Sprintf("%s.features.%d.type", path, j), "required")
		}
	}
	if h.Side != "" && !slices.Contains(sides, h.Side) {
		is.add(path+".side", "must be union or confederate, got %q", h.Side)
	}
}

func checkHexID(is *issues, path, id string) {
	if _, err := hexgrid.ParseHexID(id); err != nil {
		is.add(path, "Hex ID must be in col.row format (e.g. \"19.23\"), got %q", id)
	}
}

// Check looks for problems a well-formed document can still have: duplicate
// hexes, hexes off the grid, and edge feature types the document does not
// declare. These are warnings; evaluation tolerates all of them.
func Check(doc *Document) []Issue {
	var is issues
	g := doc.Grid()

	seen := make(map[string]int, len(doc.Hexes))
	for i := range doc.Hexes {
		h := &doc.Hexes[i]
		path := fmt.Sprintf("hexes.%d", i)
		o, err := hexgrid.ParseHexID(h.Hex)
		if err != nil {
			continue
		}
		id := o.String()
		if first, dup := seen[id]; dup {
			is.add(path+".hex", "duplicate of hexes.%d (%s)", first, id)
		} else {
			seen[id] = i
		}
		if !hexgrid.InBounds(o, g) {
			is.add(path+".hex", "%s is outside the %dx%d grid", id, g.Cols, g.Rows)
		}
		if len(doc.EdgeFeatureTypes) > 0 {
			for dir, feats := range h.Edges {
				for j, f := range feats {
					if f.Type != "" && !slices.Contains(doc.EdgeFeatureTypes, f.Type) {
						is.add(fmt.Sprintf("%s.edges.%s.%d.type", path, dir, j), "undeclared edge feature type %q", f.Type)
					}
				}
			}
		}
	}
	if g.EvenColUp {
		is.add("gridSpec.evenColUp", "only the odd-column-down layout is supported; geometry ignores this flag")
	}

	slices.SortStableFunc(is, func(a, b Issue) int { return strings.Compare(a.Path, b.Path) })
	return is
}
