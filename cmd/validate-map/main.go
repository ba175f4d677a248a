// Command validate-map checks a map.json file and optionally traces one LOS.
//
//	validate-map -map data/scenarios/south-mountain/map.json
//	validate-map -map map.json -from 19.23 -to 24.20 -tree-height 1
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/talgya/lob-los/internal/los"
	"github.com/talgya/lob-los/internal/mapdoc"
)

func main() {
	mapPath := flag.String("map", "data/scenarios/south-mountain/map.json", "map document to validate")
	from := flag.String("from", "", "observer hex (CC.RR) for an optional LOS trace")
	to := flag.String("to", "", "target hex (CC.RR) for an optional LOS trace")
	treeHeight := flag.Float64("tree-height", los.DefaultOptions().TreeLOSHeight, "height woods and orchards add to a hex")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*mapPath, *from, *to, los.Options{TreeLOSHeight: *treeHeight}); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

func run(path, from, to string, opts los.Options) error {
	doc, err := mapdoc.LoadFile(path)
	if err != nil {
		return err
	}

	if err := mapdoc.Validate(doc); err != nil {
		var verr *mapdoc.ValidationError
		if errors.As(err, &verr) {
			for _, is := range verr.Issues {
				slog.Error("schema", "path", is.Path, "issue", is.Message)
			}
		}
		return fmt.Errorf("%s: %w", path, err)
	}

	warnings := mapdoc.Check(doc)
	for _, w := range warnings {
		slog.Warn("check", "path", w.Path, "issue", w.Message)
	}

	g := doc.Grid()
	slog.Info("map valid",
		"scenario", doc.Scenario,
		"grid", fmt.Sprintf("%dx%d", g.Cols, g.Rows),
		"hexes", humanize.Comma(int64(len(doc.Hexes))),
		"coverage", fmt.Sprintf("%.1f%%", 100*float64(mapdoc.NewIndex(doc).Len())/float64(g.Cols*g.Rows)),
		"warnings", len(warnings),
	)

	if from == "" && to == "" {
		return nil
	}
	if from == "" || to == "" {
		return errors.New("-from and -to must be given together")
	}

	res, err := los.Evaluate(from, to, doc, opts)
	if err != nil {
		return err
	}
	printTrace(res)
	return nil
}

func printTrace(res *los.Result) {
	fmt.Println(res.Summary)
	for _, st := range res.Steps {
		elev := "-"
		if st.Elevation != nil {
			elev = humanize.Ftoa(*st.Elevation)
		}
		mark := " "
		if st.Blocked {
			mark = "X"
		}
		fmt.Printf("  %s %-6s %-12s elev=%-5s bonus=%-3s eff=%-6s line=%-8.2f",
			mark, st.HexID, st.Role, elev,
			humanize.Ftoa(st.TerrainBonus), humanize.Ftoa(st.EffectiveHeight), st.LOSLineHeight)
		for _, e := range st.EdgeFeatures {
			fmt.Printf(" [%s %s]", e.Dir, e.Type)
		}
		if st.NoData {
			fmt.Print(" (no data)")
		}
		if st.BlockReason != "" {
			fmt.Printf(" %s", st.BlockReason)
		}
		fmt.Println()
	}
}
