// Command ghost-calibrate sweeps blend opacities to find the faintest
// pattern the scanner still recovers, and suggests scan thresholds.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/banshee-data/ghostframe/internal/calibrate"
	"github.com/banshee-data/ghostframe/internal/config"
	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/report"
	"github.com/banshee-data/ghostframe/internal/version"
)

var (
	opacitiesFlag = flag.String("opacities", "", "comma-separated opacities to test (default 0.05..0.50)")
	payloadBytes  = flag.Int("payload-bytes", 0, "test payload size in bytes (default max_chunk_bytes)")
	plotPath      = flag.String("plot", "", "write the sweep plot to this PNG path")
	configPath    = flag.String("config", "", "channel config (.json or .toml); defaults when empty")
	verbose       = flag.Bool("v", false, "verbose diagnostics")
	showVersion   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		color.New(color.FgCyan, color.Bold).Println(version.String("ghost-calibrate"))
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	opts := calibrate.OptionsFromChannel(cfg)
	if *opacitiesFlag != "" {
		if opts.Opacities, err = parseOpacities(*opacitiesFlag); err != nil {
			log.Fatalf("%v", err)
		}
	}
	if *payloadBytes > 0 {
		opts.PayloadBytes = *payloadBytes
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := calibrate.Sweep(ctx, opts)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}

	fmt.Printf("%-8s %-9s %-9s %s\n", "opacity", "delta", "detected", "via")
	for _, p := range res.Points {
		via := "-"
		if p.Detected {
			via = p.Strategy + "/" + p.Backend
		}
		fmt.Printf("%-8.2f %-9.1f %-9t %s\n", p.Opacity, p.MaxDelta, p.Detected, via)
	}

	if *plotPath != "" {
		p, err := report.PlotSweep(res.Points, res.Recommended)
		if err != nil {
			log.Fatalf("plot: %v", err)
		}
		if err := report.SavePNG(fsutil.OSFileSystem{}, *plotPath, p); err != nil {
			log.Fatalf("save plot: %v", err)
		}
		log.Printf("plot: %s", *plotPath)
	}

	fmt.Printf("suggested thresholds: dark_threshold=%d light_threshold=%d\n", res.Thresholds.Dark, res.Thresholds.Light)
	if !res.Found {
		color.New(color.FgRed, color.Bold).Println("no tested opacity was recovered")
		os.Exit(1)
	}
	color.New(color.FgGreen).Printf("minimum detectable opacity %.2f, recommended %.2f\n", res.MinDetectable, res.Recommended)
}

// parseOpacities parses a comma-separated list of opacities in (0, 1].
func parseOpacities(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid opacity '%s': %w", p, err)
		}
		if v <= 0 || v > 1 {
			return nil, fmt.Errorf("opacity %g outside (0, 1]", v)
		}
		out = append(out, v)
	}
	return out, nil
}
