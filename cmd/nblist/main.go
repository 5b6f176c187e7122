// Command nblist builds the neighbour lists of an XYZ coordinate file and
// reports their size and build time.
//
//	nblist -in water.xyz -cell 18.6,18.6,18.6,90,90,90 -plot rdf.png
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/monitoring"
	"github.com/banshee-data/nblist/internal/neighbours"
	"github.com/banshee-data/nblist/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("nblist: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("nblist", flag.ContinueOnError)
	in := fs.String("in", "", "XYZ coordinate file (required)")
	tuningPath := fs.String("config", "", "Tuning JSON; defaults to "+config.DefaultConfigPath)
	cellFlag := fs.String("cell", "", "Cell as a,b,c,alpha,beta,gamma; empty for an open system")
	useImages := fs.Bool("images", false, "Build P1 image lists instead of minimum-image pairs")
	plotPath := fs.String("plot", "", "Write a pair-distance histogram PNG here")
	bins := fs.Int("bins", 50, "Histogram bins")
	verbose := fs.Bool("v", false, "Log per-build details")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	monitoring.SetVerbose(*verbose)

	var cfg *config.TuningConfig
	var err error
	if *tuningPath != "" {
		cfg, err = config.LoadTuningConfig(*tuningPath)
	} else {
		cfg, err = config.LoadTuningConfig(config.DefaultConfigPath)
		if err != nil {
			monitoring.Logf("no %s, using built-in defaults", config.DefaultConfigPath)
			cfg, err = config.EmptyTuningConfig(), nil
		}
	}
	if err != nil {
		return err
	}

	var sym *geometry.SymmetryParameters
	if *cellFlag != "" {
		v, err := parseFloats(*cellFlag, 6)
		if err != nil {
			return fmt.Errorf("-cell: %w", err)
		}
		if sym, err = geometry.NewSymmetryParameters(v[0], v[1], v[2], v[3], v[4], v[5]); err != nil {
			return fmt.Errorf("-cell: %w", err)
		}
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	coords, _, err := readXYZ(f)
	f.Close()
	if err != nil {
		return err
	}

	opts := neighbours.Options{Collector: monitoring.NewCollector(nil)}
	if *useImages {
		if sym == nil {
			return fmt.Errorf("-images needs -cell")
		}
		opts.Transformations = geometry.P1()
	}
	m, err := neighbours.New(cfg, opts)
	if err != nil {
		return err
	}

	if _, err := m.Update(coords, sym); err != nil {
		return err
	}

	s := m.Statistics()
	fmt.Fprintf(stdout, "particles: %d\n", len(coords))
	fmt.Fprintf(stdout, "list cut-off: %.3f\n", m.ListCutOff())
	fmt.Fprintf(stdout, "pairs: %d\n", s.Pairs)
	if lists := m.ImagePairLists(); lists != nil {
		fmt.Fprintf(stdout, "images: %d (%d pairs)\n", lists.Count(), lists.NumberOfPairs())
	}
	fmt.Fprintf(stdout, "build time: %v\n", s.LastBuild)

	if *plotPath != "" {
		var box *geometry.PeriodicBox
		if sym != nil && !*useImages {
			if box, err = geometry.NewPeriodicBox(sym.Lengths()); err != nil {
				return err
			}
		}
		d := pairDistances(m.PairList(), coords, box, cfg.GetCutOff())
		if err := savePairHistogram(*plotPath, d, *bins, cfg.GetCutOff()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "histogram: %s (%d distances)\n", *plotPath, len(d))
	}
	return nil
}
