// Package mapgen builds synthetic scenario maps from layered simplex noise.
// The maps feed the demo server and exercise LOS evaluation over terrain
// nobody digitized by hand.
package mapgen

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/lob-los/internal/hexgrid"
	"github.com/talgya/lob-los/internal/mapdoc"
)

// Edge feature types the generator places.
const (
	EdgeStoneWall     = "stoneWall"
	EdgeVerticalSlope = "verticalSlope"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Scenario        string
	Cols, Rows      int
	Seed            int64   // 0 = random
	ContourInterval float64 // Elevations snap to multiples of this
	MaxElevation    float64 // Highest possible elevation
	WoodsLevel      float64 // Vegetation threshold for woods (0.0–1.0)
	MarshLevel      float64 // Moisture threshold for marsh (0.0–1.0)
	WallChance      float64 // Chance a clear hex gets a stone wall on one side
}

// DefaultGenConfig returns a map the size of the South Mountain sheet.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Scenario:        "generated",
		Cols:            64,
		Rows:            35,
		Seed:            0,
		ContourInterval: 20,
		MaxElevation:    400,
		WoodsLevel:      0.62,
		MarshLevel:      0.72,
		WallChance:      0.04,
	}
}

// SmallTestConfig returns a tiny deterministic map for tests.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Scenario = "test"
	cfg.Cols = 12
	cfg.Rows = 10
	cfg.Seed = 42
	return cfg
}

// Generate creates a complete map document with terrain, elevation and edges.
func Generate(cfg GenConfig) *mapdoc.Document {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	vegNoise := opensimplex.NewNormalized(seed + 1)
	wetNoise := opensimplex.NewNormalized(seed + 2)

	grid := hexgrid.GridSpec{
		Cols:        cfg.Cols,
		Rows:        cfg.Rows,
		HexWidth:    35,
		HexHeight:   35,
		ImageScale:  1,
		StrokeWidth: 0.5,
		Orientation: hexgrid.OrientationFlat,
	}

	// First pass: elevation for every hex, so terrain can look at neighbours.
	elevation := make(map[hexgrid.Cube]float64, cfg.Cols*cfg.Rows)
	for col := 1; col <= cfg.Cols; col++ {
		for row := 1; row <= cfg.Rows; row++ {
			c := hexgrid.ToCube(hexgrid.Offset{Col: col, Row: row}, grid)
			x, y := cartesian(c)
			e := octaveNoise(elevNoise, x, y, 4, 0.06, 0.5)
			elevation[c] = snap(e*cfg.MaxElevation, cfg.ContourInterval)
		}
	}

	doc := &mapdoc.Document{
		Status:           "generated",
		Scenario:         cfg.Scenario,
		Layout:           "pointy-top",
		HexIDFormat:      "CC.RR",
		GridSpec:         &grid,
		TerrainTypes:     terrainLabels(),
		EdgeFeatureTypes: []string{EdgeStoneWall, EdgeVerticalSlope},
		ElevationSystem: &mapdoc.ElevationSystem{
			ContourInterval:          cfg.ContourInterval,
			Unit:                     "feet",
			VerticalSlopesImpassable: true,
		},
		VPHexes: []mapdoc.VPHex{},
		Hexes:   make([]mapdoc.HexRecord, 0, cfg.Cols*cfg.Rows),
	}

	for col := 1; col <= cfg.Cols; col++ {
		for row := 1; row <= cfg.Rows; row++ {
			o := hexgrid.Offset{Col: col, Row: row}
			c := hexgrid.ToCube(o, grid)
			x, y := cartesian(c)

			elev := elevation[c]
			veg := octaveNoise(vegNoise, x, y, 3, 0.09, 0.5)
			wet := octaveNoise(wetNoise, x, y, 2, 0.05, 0.5)
			relief := maxRelief(elevation, c)

			rec := mapdoc.HexRecord{
				Hex:       o.String(),
				Terrain:   mapdoc.TerrainName(deriveTerrain(elev, veg, wet, relief, cfg)),
				Elevation: &elev,
			}
			markVerticalSlopes(&rec, elevation, c, cfg)
			doc.Hexes = append(doc.Hexes, rec)
		}
	}

	placeWalls(doc, seed, cfg)
	return doc
}

// deriveTerrain determines terrain from elevation, vegetation, moisture and
// the steepest drop to a neighbour.
func deriveTerrain(elev, veg, wet, relief float64, cfg GenConfig) mapdoc.Terrain {
	steep := relief >= 2*cfg.ContourInterval
	lowland := elev < cfg.MaxElevation*0.3

	if wet > cfg.MarshLevel && lowland && !steep {
		return mapdoc.TerrainMarsh
	}
	if veg > cfg.WoodsLevel {
		if steep {
			return mapdoc.TerrainWoodedSloping
		}
		return mapdoc.TerrainWoods
	}
	if veg > cfg.WoodsLevel-0.04 && lowland {
		return mapdoc.TerrainOrchard
	}
	if steep {
		return mapdoc.TerrainSlopingGround
	}
	return mapdoc.TerrainClear
}

// markVerticalSlopes puts a blocking cliff on every side of the hex that
// drops more than two contours to the neighbour.
func markVerticalSlopes(rec *mapdoc.HexRecord, elevation map[hexgrid.Cube]float64, c hexgrid.Cube, cfg GenConfig) {
	here := elevation[c]
	for _, dir := range hexgrid.Directions {
		nElev, ok := elevation[c.Neighbor(dir)]
		if !ok || here-nElev <= 2*cfg.ContourInterval {
			continue
		}
		addEdge(rec, dir, mapdoc.EdgeFeature{Type: EdgeVerticalSlope, LOSBlocking: true})
	}
}

// placeWalls scatters stone walls over open ground.
func placeWalls(doc *mapdoc.Document, seed int64, cfg GenConfig) {
	rng := rand.New(rand.NewSource(seed + 100))
	for i := range doc.Hexes {
		rec := &doc.Hexes[i]
		if rec.TerrainClass() != mapdoc.TerrainClear {
			continue
		}
		if rng.Float64() >= cfg.WallChance {
			continue
		}
		dir := hexgrid.Directions[rng.Intn(len(hexgrid.Directions))]
		addEdge(rec, dir, mapdoc.EdgeFeature{Type: EdgeStoneWall, LOSHeightBonus: 1})
	}
}

func addEdge(rec *mapdoc.HexRecord, dir hexgrid.Direction, f mapdoc.EdgeFeature) {
	if rec.Edges == nil {
		rec.Edges = make(map[hexgrid.Direction][]mapdoc.EdgeFeature)
	}
	rec.Edges[dir] = append(rec.Edges[dir], f)
}

// maxRelief returns the largest drop from c to any neighbour on the map.
func maxRelief(elevation map[hexgrid.Cube]float64, c hexgrid.Cube) float64 {
	here := elevation[c]
	relief := 0.0
	for _, dir := range hexgrid.Directions {
		if n, ok := elevation[c.Neighbor(dir)]; ok {
			relief = math.Max(relief, math.Abs(here-n))
		}
	}
	return relief
}

// cartesian places a flat-top hex centre in continuous space for noise sampling.
func cartesian(c hexgrid.Cube) (float64, float64) {
	x := 1.5 * float64(c.Q)
	y := math.Sqrt(3.0) * (float64(c.R) + float64(c.Q)/2)
	return x, y
}

func snap(v, interval float64) float64 {
	if interval <= 0 {
		return v
	}
	return math.Floor(v/interval) * interval
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func terrainLabels() []string {
	return []string{
		mapdoc.TerrainName(mapdoc.TerrainClear),
		mapdoc.TerrainName(mapdoc.TerrainWoods),
		mapdoc.TerrainName(mapdoc.TerrainSlopingGround),
		mapdoc.TerrainName(mapdoc.TerrainWoodedSloping),
		mapdoc.TerrainName(mapdoc.TerrainOrchard),
		mapdoc.TerrainName(mapdoc.TerrainMarsh),
		mapdoc.TerrainName(mapdoc.TerrainUnknown),
	}
}

// TerrainCounts returns a summary of terrain distribution.
func TerrainCounts(doc *mapdoc.Document) map[mapdoc.Terrain]int {
	counts := make(map[mapdoc.Terrain]int)
	for i := range doc.Hexes {
		counts[doc.Hexes[i].TerrainClass()]++
	}
	return counts
}
