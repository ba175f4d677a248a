package los

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/talgya/lob-los/internal/hexgrid"
	"github.com/talgya/lob-los/internal/mapdoc"
)

// testGrid is a 10x10 flat-top grid, odd columns shifted down.
var testGrid = hexgrid.GridSpec{Cols: 10, Rows: 10, Orientation: hexgrid.OrientationFlat}

// The line 02.05 -> 06.05 on testGrid runs
// 02.05, 03.04, 04.05, 05.04, 06.05; it enters 04.05 across its SW side,
// 05.04 across NW and 06.05 across SW.
const (
	from = "02.05"
	to   = "06.05"
	mid  = "04.05"
)

func makeMap(hexes ...mapdoc.HexRecord) *mapdoc.Document {
	g := testGrid
	return &mapdoc.Document{GridSpec: &g, Hexes: hexes}
}

func hex(id, terrain string, elevation float64) mapdoc.HexRecord {
	return mapdoc.HexRecord{Hex: id, Terrain: terrain, Elevation: &elevation}
}

func withEdge(h mapdoc.HexRecord, dir hexgrid.Direction, f mapdoc.EdgeFeature) mapdoc.HexRecord {
	if h.Edges == nil {
		h.Edges = make(map[hexgrid.Direction][]mapdoc.EdgeFeature)
	}
	h.Edges[dir] = append(h.Edges[dir], f)
	return h
}

func mustEvaluate(t *testing.T, a, b string, doc *mapdoc.Document, opts Options) *Result {
	t.Helper()
	res, err := Evaluate(a, b, doc, opts)
	if err != nil {
		t.Fatalf("Evaluate(%s, %s): %v", a, b, err)
	}
	return res
}

func blockedSteps(res *Result) []Step {
	var out []Step
	for _, s := range res.Steps {
		if s.Blocked {
			out = append(out, s)
		}
	}
	return out
}

func TestTestLineShape(t *testing.T) {
	line, err := hexgrid.TraceLine(from, to, testGrid)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"02.05", "03.04", "04.05", "05.04", "06.05"}
	if strings.Join(line, ",") != strings.Join(want, ",") {
		t.Fatalf("line = %v, want %v", line, want)
	}
}

func TestSameHexIsClear(t *testing.T) {
	res := mustEvaluate(t, "05.05", "05.05", makeMap(hex("05.05", "clear", 100)), DefaultOptions())
	if !res.Clear {
		t.Fatal("same hex should be clear")
	}
	if len(res.Steps) != 1 || res.Steps[0].Role != RoleObserver {
		t.Errorf("steps = %+v, want one observer step", res.Steps)
	}
}

func TestFlatLineClear(t *testing.T) {
	doc := makeMap(
		hex("02.05", "clear", 100),
		hex("03.05", "clear", 100),
		hex("04.05", "clear", 100),
		hex("05.05", "clear", 100),
	)
	res := mustEvaluate(t, "02.05", "05.05", doc, DefaultOptions())
	if !res.Clear {
		t.Fatalf("expected clear, got %s", res.Summary)
	}
	if !strings.Contains(strings.ToLower(res.Summary), "clear") {
		t.Errorf("summary = %q", res.Summary)
	}
	if len(res.Steps) != 4 {
		t.Errorf("got %d steps, want 4", len(res.Steps))
	}
}

func TestWoodsAboveSightlineBlocks(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		hex(mid, "woods", 100),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if res.Clear {
		t.Fatal("woods at 101 should block a sightline at 100")
	}
	if res.BlockedAt != mid {
		t.Errorf("BlockedAt = %s, want %s", res.BlockedAt, mid)
	}
	if !strings.Contains(strings.ToLower(res.Summary), "blocked") || !strings.Contains(res.Summary, mid) {
		t.Errorf("summary = %q", res.Summary)
	}
	step := res.Steps[2]
	if step.EffectiveHeight != 101 || step.TerrainBonus != 1 || step.LOSLineHeight != 100 {
		t.Errorf("mid step = %+v", step)
	}
	if step.BlockReason != "height 101 > LOS line 100.0" {
		t.Errorf("BlockReason = %q", step.BlockReason)
	}
}

func TestHeightEqualToSightlineDoesNotBlock(t *testing.T) {
	// Uphill from 0 to 200: the sightline is 100 at the midpoint.
	doc := makeMap(
		hex(from, "clear", 0),
		hex(mid, "clear", 100),
		hex(to, "clear", 200),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if !res.Clear {
		t.Fatalf("equal height should not block: %s", res.Summary)
	}
	if got := res.Steps[2].LOSLineHeight; got != 100 {
		t.Errorf("sightline at midpoint = %v, want 100", got)
	}
}

func TestBlockingEdgeOverridesHeight(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		withEdge(hex(mid, "clear", 0), hexgrid.SouthWest, mapdoc.EdgeFeature{Type: "verticalSlope", LOSBlocking: true}),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if res.Clear {
		t.Fatal("blocking edge on the entering side should block")
	}
	blocked := blockedSteps(res)
	if len(blocked) != 1 || blocked[0].HexID != mid {
		t.Fatalf("blocked steps = %+v", blocked)
	}
	if blocked[0].BlockReason != "edge 'verticalSlope' on SW side blocks LOS" {
		t.Errorf("BlockReason = %q", blocked[0].BlockReason)
	}
	if len(blocked[0].EdgeFeatures) != 1 || blocked[0].EdgeFeatures[0].Dir != hexgrid.SouthWest {
		t.Errorf("EdgeFeatures = %+v", blocked[0].EdgeFeatures)
	}
}

func TestEdgeOnOtherSideIgnored(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		withEdge(hex(mid, "clear", 100), hexgrid.North, mapdoc.EdgeFeature{Type: "verticalSlope", LOSBlocking: true}),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if !res.Clear {
		t.Fatalf("edge on the N side is not crossed: %s", res.Summary)
	}
	if n := len(res.Steps[2].EdgeFeatures); n != 0 {
		t.Errorf("mid step recorded %d edge features, want 0", n)
	}
}

func TestEdgeHeightBonusCanBlock(t *testing.T) {
	wall := mapdoc.EdgeFeature{Type: "stoneWall", LOSHeightBonus: 2}

	plain := makeMap(hex(from, "clear", 100), hex(mid, "clear", 99), hex(to, "clear", 100))
	if res := mustEvaluate(t, from, to, plain, DefaultOptions()); !res.Clear {
		t.Fatalf("99 under a 100 sightline should be clear: %s", res.Summary)
	}

	walled := makeMap(
		hex(from, "clear", 100),
		withEdge(hex(mid, "clear", 99), hexgrid.SouthWest, wall),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, walled, DefaultOptions())
	if res.Clear {
		t.Fatal("stone wall bonus should lift the hex to 101 and block")
	}
	if res.BlockedAt != mid || res.Steps[2].EffectiveHeight != 101 {
		t.Errorf("BlockedAt = %s, mid step = %+v", res.BlockedAt, res.Steps[2])
	}
}

func TestBlockingEdgeOnTargetBlocks(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		withEdge(hex(to, "clear", 100), hexgrid.SouthWest, mapdoc.EdgeFeature{Type: "verticalSlope", LOSBlocking: true}),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if res.Clear || res.BlockedAt != to {
		t.Fatalf("target edge should block at %s, got %s", to, res.Summary)
	}
}

func TestTargetHeightNeverBlocks(t *testing.T) {
	doc := makeMap(hex(from, "clear", 0), hex(to, "woods", 500))
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if !res.Clear {
		t.Fatalf("a tall target is still visible: %s", res.Summary)
	}
}

func TestOnlyFirstBlockingStepFlagged(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		hex(mid, "clear", 200),
		withEdge(hex("05.04", "clear", 200), hexgrid.NorthWest, mapdoc.EdgeFeature{Type: "stoneWall", LOSHeightBonus: 1}),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if res.BlockedAt != mid {
		t.Fatalf("BlockedAt = %s, want %s", res.BlockedAt, mid)
	}
	if n := len(blockedSteps(res)); n != 1 {
		t.Errorf("%d steps flagged blocked, want 1", n)
	}
	later := res.Steps[3]
	if later.HexID != "05.04" || later.Blocked || later.BlockReason != "" {
		t.Errorf("later step = %+v", later)
	}
	if later.EffectiveHeight != 201 || len(later.EdgeFeatures) != 1 {
		t.Errorf("later step should still be fully computed: %+v", later)
	}
	if len(res.Steps) != 5 {
		t.Errorf("got %d steps, want the full trace of 5", len(res.Steps))
	}
}

func TestMissingDataTolerated(t *testing.T) {
	doc := makeMap(hex(from, "clear", 0), hex(to, "clear", 0))
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	if !res.Clear {
		t.Fatalf("flat empty line should be clear: %s", res.Summary)
	}
	var found bool
	for _, s := range res.Steps {
		if s.Role != RoleIntermediate {
			continue
		}
		if !s.NoData || s.Elevation != nil || s.EffectiveHeight != 0 {
			t.Errorf("intermediate step = %+v, want noData with nil elevation", s)
		}
		found = true
	}
	if !found {
		t.Fatal("no intermediate steps")
	}
}

func TestEmptyMapIsClear(t *testing.T) {
	res := mustEvaluate(t, from, to, makeMap(), DefaultOptions())
	if !res.Clear {
		t.Fatalf("empty map should be clear: %s", res.Summary)
	}
	if res.Steps[0].Role != RoleObserver || res.Steps[len(res.Steps)-1].Role != RoleTarget {
		t.Errorf("roles = %s..%s", res.Steps[0].Role, res.Steps[len(res.Steps)-1].Role)
	}
	for _, s := range res.Steps[1 : len(res.Steps)-1] {
		if s.Role != RoleIntermediate {
			t.Errorf("step %s role = %s, want intermediate", s.HexID, s.Role)
		}
	}
}

func TestNilGridUsesFallback(t *testing.T) {
	res := mustEvaluate(t, "10.10", "14.12", &mapdoc.Document{}, DefaultOptions())
	if !res.Clear || res.Steps[0].HexID != "10.10" || res.Steps[len(res.Steps)-1].HexID != "14.12" {
		t.Fatalf("unexpected result on the fallback grid: %+v", res)
	}
}

func TestTreeHeightOption(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 102),
		hex(mid, "woods", 100),
		hex(to, "clear", 102),
	)
	if res := mustEvaluate(t, from, to, doc, Options{TreeLOSHeight: 1}); !res.Clear {
		t.Errorf("woods at 101 under a 102 sightline should be clear: %s", res.Summary)
	}
	if res := mustEvaluate(t, from, to, doc, Options{TreeLOSHeight: 3}); res.Clear {
		t.Error("woods at 103 over a 102 sightline should block")
	}
}

func TestTreeHeightRaisesObserver(t *testing.T) {
	doc := makeMap(
		hex(from, "woods", 100),
		hex(mid, "clear", 102),
		hex(to, "woods", 100),
	)
	res := mustEvaluate(t, from, to, doc, Options{TreeLOSHeight: 3})
	if !res.Clear {
		t.Fatalf("observer and target in woods see over 102: %s", res.Summary)
	}
	if res.Steps[0].LOSLineHeight != 103 {
		t.Errorf("observer sightline = %v, want 103", res.Steps[0].LOSLineHeight)
	}
}

func TestUnpaddedIDsAccepted(t *testing.T) {
	doc := makeMap(hex("2.5", "clear", 100), hex("4.5", "woods", 100), hex("6.5", "clear", 100))
	res := mustEvaluate(t, "2.5", "6.5", doc, DefaultOptions())
	if res.Clear || res.BlockedAt != mid {
		t.Fatalf("unpadded ids should resolve: %s", res.Summary)
	}
	if res.Steps[0].HexID != from {
		t.Errorf("step ids should be canonical, got %s", res.Steps[0].HexID)
	}
}

func TestMalformedIDIsAnError(t *testing.T) {
	_, err := Evaluate("bogus", to, makeMap(), DefaultOptions())
	if !errors.Is(err, hexgrid.ErrMalformedHexID) {
		t.Errorf("err = %v, want ErrMalformedHexID", err)
	}
	_, err = Evaluate(from, "06_05", makeMap(), DefaultOptions())
	if !errors.Is(err, hexgrid.ErrMalformedHexID) {
		t.Errorf("err = %v, want ErrMalformedHexID", err)
	}
}

func TestResultJSONShape(t *testing.T) {
	doc := makeMap(hex(from, "clear", 100), hex(to, "clear", 100))
	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{`"clear":true`, `"hexId":"02.05"`, `"role":"observer"`, `"elevation":null`, `"noData":true`, `"losLineHeight":100`, `"edgeFeatures":[]`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON missing %s:\n%s", want, out)
		}
	}
}

func TestEvaluateDoesNotMutateDocument(t *testing.T) {
	doc := makeMap(hex(from, "clear", 100), hex(mid, "woods", 100), hex(to, "clear", 100))
	before, _ := json.Marshal(doc)
	mustEvaluate(t, from, to, doc, DefaultOptions())
	after, _ := json.Marshal(doc)
	if string(before) != string(after) {
		t.Error("Evaluate modified the document")
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	doc := makeMap(hex(from, "clear", 100), hex(mid, "woods", 100), hex(to, "clear", 100))
	want := mustEvaluate(t, from, to, doc, DefaultOptions()).Summary

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Evaluate(from, to, doc, DefaultOptions())
			if err != nil {
				errs <- err.Error()
				return
			}
			if res.Summary != want {
				errs <- res.Summary
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent evaluation diverged: %s", e)
	}
}

func TestLastBlockingEdgeFeatureNamesReason(t *testing.T) {
	h := hex(mid, "clear", 0)
	h = withEdge(h, hexgrid.SouthWest, mapdoc.EdgeFeature{Type: "stoneWall", LOSBlocking: true, LOSHeightBonus: 1})
	h = withEdge(h, hexgrid.SouthWest, mapdoc.EdgeFeature{Type: "verticalSlope", LOSBlocking: true})
	doc := makeMap(hex(from, "clear", 100), h, hex(to, "clear", 100))

	res := mustEvaluate(t, from, to, doc, DefaultOptions())
	step := res.Steps[2]
	if !step.Blocked || step.BlockReason != "edge 'verticalSlope' on SW side blocks LOS" {
		t.Fatalf("step = %+v", step)
	}
	if len(step.EdgeFeatures) != 2 || step.EffectiveHeight != 1 {
		t.Errorf("both features should be listed and their bonuses summed: %+v", step)
	}
}

func TestZeroOptionsAddNoTreeHeight(t *testing.T) {
	doc := makeMap(
		hex(from, "clear", 100),
		hex(mid, "woods", 100),
		hex(to, "clear", 100),
	)
	res := mustEvaluate(t, from, to, doc, Options{})
	if !res.Clear || res.Steps[2].TerrainBonus != 0 {
		t.Errorf("zero Options should leave woods flat: %+v", res.Steps[2])
	}
	if res := mustEvaluate(t, from, to, doc, DefaultOptions()); res.Clear {
		t.Error("DefaultOptions should raise woods above the sightline")
	}
}
