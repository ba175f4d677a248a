// Package los evaluates line of sight between two hexes of a scenario map.
//
// The sightline runs from the observer's height to the target's height and is
// sampled once per hex the line crosses. A hex blocks when its own height
// rises above the sightline, or when the line enters it across an edge
// feature marked as blocking. Every call works on its own index of the map
// snapshot, so evaluation is safe to run concurrently.
package los

import (
	"fmt"
	"strconv"

	"github.com/talgya/lob-los/internal/hexgrid"
	"github.com/talgya/lob-los/internal/mapdoc"
)

// Options tunes evaluation for a rules edition. The zero value is a valid
// setting (trees add nothing), not a request for defaults.
type Options struct {
	// TreeLOSHeight is the obstacle height of woods, orchard and wooded
	// slopes. The South Mountain override uses 1; base rules use 3.
	TreeLOSHeight float64
}

// DefaultOptions returns the South Mountain settings.
func DefaultOptions() Options {
	return Options{TreeLOSHeight: 1}
}

// Role of a hex on the traced line.
type Role string

const (
	RoleObserver     Role = "observer"
	RoleIntermediate Role = "intermediate"
	RoleTarget       Role = "target"
)

// EdgeHit is an edge feature the line crossed to enter a hex.
type EdgeHit struct {
	mapdoc.EdgeFeature
	Dir hexgrid.Direction `json:"dir"`
}

// Step is the evaluation of one hex on the line.
type Step struct {
	HexID           string    `json:"hexId"`
	Role            Role      `json:"role"`
	Elevation       *float64  `json:"elevation"` // nil when the hex has no recorded elevation
	TerrainBonus    float64   `json:"terrainBonus"`
	EffectiveHeight float64   `json:"effectiveHeight"`
	LOSLineHeight   float64   `json:"losLineHeight"`
	EdgeFeatures    []EdgeHit `json:"edgeFeatures"`
	Blocked         bool      `json:"blocked"`
	BlockReason     string    `json:"blockReason,omitempty"`
	NoData          bool      `json:"noData"`
}

// Result is the outcome of one LOS check.
type Result struct {
	Clear     bool   `json:"clear"`
	BlockedAt string `json:"blockedAt,omitempty"` // first blocking hex
	Steps     []Step `json:"steps"`
	Summary   string `json:"summary"`
}

// Evaluate checks line of sight from the observer hex to the target hex.
// Missing hex records, elevations and terrain fall back to flat, open ground;
// the only error is a malformed hex id.
//
// opts is used as given: the zero Options means trees add no height. Pass
// DefaultOptions() for the South Mountain tree height of 1.
func Evaluate(from, to string, doc *mapdoc.Document, opts Options) (*Result, error) {
	grid := doc.Grid()

	a, err := hexgrid.ParseHexID(from)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	b, err := hexgrid.ParseHexID(to)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	index := mapdoc.NewIndex(doc)
	observerHeight := hexHeight(index.Lookup(a.String()), opts)
	targetHeight := hexHeight(index.Lookup(b.String()), opts)

	path := hexgrid.Line(a, b, grid)
	n := len(path)

	result := &Result{Steps: make([]Step, 0, n)}
	var prev hexgrid.Cube

	for i, o := range path {
		id := o.String()
		cur := hexgrid.ToCube(o, grid)
		rec := index.Lookup(id)

		step := Step{
			HexID:         id,
			Role:          roleAt(i, n),
			LOSLineHeight: sightline(observerHeight, targetHeight, i, n),
			EdgeFeatures:  []EdgeHit{},
			NoData:        rec == nil,
		}

		var elevation, edgeBonus float64
		if rec != nil {
			step.Elevation = rec.Elevation
			elevation = rec.ElevationOrZero()
			step.TerrainBonus = rec.TerrainClass().HeightBonus(opts.TreeLOSHeight)
		}

		var reason string
		if i > 0 && rec != nil {
			// The entering edge is the side of this hex facing the previous one.
			if dir, ok := hexgrid.DirectionBetween(cur, prev); ok {
				for _, f := range rec.Edges[dir] {
					step.EdgeFeatures = append(step.EdgeFeatures, EdgeHit{EdgeFeature: f, Dir: dir})
					edgeBonus += f.LOSHeightBonus
					// The last blocking feature on the side names the reason.
					if f.LOSBlocking {
						reason = fmt.Sprintf("edge '%s' on %s side blocks LOS", f.Type, dir)
					}
				}
			}
		}

		step.EffectiveHeight = elevation + step.TerrainBonus + edgeBonus

		if reason == "" && step.Role == RoleIntermediate && step.EffectiveHeight > step.LOSLineHeight {
			reason = fmt.Sprintf("height %s > LOS line %.1f", formatHeight(step.EffectiveHeight), step.LOSLineHeight)
		}

		// Only the first blocking hex decides the result.
		if reason != "" && result.BlockedAt == "" {
			step.Blocked = true
			step.BlockReason = reason
			result.BlockedAt = id
		}

		result.Steps = append(result.Steps, step)
		prev = cur
	}

	result.Clear = result.BlockedAt == ""
	if result.Clear {
		result.Summary = fmt.Sprintf("LOS clear from %s to %s", a, b)
	} else {
		result.Summary = fmt.Sprintf("LOS blocked at %s (from %s to %s)", result.BlockedAt, a, b)
	}
	return result, nil
}

// hexHeight is elevation plus terrain obstacle height for an endpoint.
func hexHeight(rec *mapdoc.HexRecord, opts Options) float64 {
	if rec == nil {
		return 0
	}
	return rec.ElevationOrZero() + rec.TerrainClass().HeightBonus(opts.TreeLOSHeight)
}

func roleAt(i, n int) Role {
	switch {
	case i == 0:
		return RoleObserver
	case i == n-1:
		return RoleTarget
	default:
		return RoleIntermediate
	}
}

// sightline interpolates the observer-to-target height at step i of n.
func sightline(observer, target float64, i, n int) float64 {
	t := 0.0
	if n > 1 {
		t = float64(i) / float64(n-1)
	}
	return observer + (target-observer)*t
}

func formatHeight(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
