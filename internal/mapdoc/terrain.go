package mapdoc

// Terrain classes a hex can carry.
type Terrain uint8

const (
	TerrainUnknown       Terrain = iota // Not yet digitized, or an unrecognized label
	TerrainClear                        // Open ground
	TerrainWoods                        // Tree cover, raises the sightline obstacle
	TerrainOrchard                      // Counts as trees for LOS
	TerrainSlopingGround                // Open slope
	TerrainWoodedSloping                // Wooded slope, counts as trees for LOS
	TerrainMarsh                        // Flat and wet
)

var terrainNames = map[Terrain]string{
	TerrainUnknown:       "unknown",
	TerrainClear:         "clear",
	TerrainWoods:         "woods",
	TerrainOrchard:       "orchard",
	TerrainSlopingGround: "slopingGround",
	TerrainWoodedSloping: "woodedSloping",
	TerrainMarsh:         "marsh",
}

// TerrainName returns the map.json label for t.
func TerrainName(t Terrain) string {
	if name, ok := terrainNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t Terrain) String() string {
	return TerrainName(t)
}

// ParseTerrain maps a map.json terrain label to its class. Unrecognized
// labels come back as TerrainUnknown with ok=false.
func ParseTerrain(s string) (Terrain, bool) {
	for t, name := range terrainNames {
		if name == s {
			return t, true
		}
	}
	return TerrainUnknown, false
}

// HeightBonus is the LOS obstacle height the terrain adds on top of elevation.
// Tree terrain uses the edition's tree height; everything else adds nothing.
func (t Terrain) HeightBonus(treeLOSHeight float64) float64 {
	switch t {
	case TerrainWoods, TerrainOrchard, TerrainWoodedSloping:
		return treeLOSHeight
	default:
		return 0
	}
}
