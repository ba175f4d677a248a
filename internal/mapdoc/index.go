package mapdoc

import "github.com/talgya/lob-los/internal/hexgrid"

// Index looks hex records up by canonical "CC.RR" id. It points into the
// document it was built from and is meant to live for one evaluation.
type Index struct {
	hexes map[string]*HexRecord
}

// NewIndex indexes every record in doc. Records whose id does not parse are
// skipped; later duplicates win, as they would in map.json.
func NewIndex(doc *Document) *Index {
	idx := &Index{hexes: make(map[string]*HexRecord)}
	if doc == nil {
		return idx
	}
	for i := range doc.Hexes {
		h := &doc.Hexes[i]
		id, err := hexgrid.CanonicalHexID(h.Hex)
		if err != nil {
			continue
		}
		idx.hexes[id] = h
	}
	return idx
}

// Lookup returns the record for id, or nil if the hex has not been digitized.
func (x *Index) Lookup(id string) *HexRecord {
	canon, err := hexgrid.CanonicalHexID(id)
	if err != nil {
		return nil
	}
	return x.hexes[canon]
}

// Len returns the number of indexed hexes.
func (x *Index) Len() int {
	return len(x.hexes)
}
