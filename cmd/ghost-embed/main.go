// Command ghost-embed hides a payload in a directory of carrier frames as a
// sequence of faint, blended QR patterns.
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

	"github.com/banshee-data/ghostframe/internal/config"
	"github.com/banshee-data/ghostframe/internal/frames"
	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/payload"
	"github.com/banshee-data/ghostframe/internal/pipeline"
	"github.com/banshee-data/ghostframe/internal/security"
	"github.com/banshee-data/ghostframe/internal/version"
)

var (
	framesDir   = flag.String("frames", "", "directory of input frames (required)")
	payloadPath = flag.String("payload", "", "file to embed (required)")
	outDir      = flag.String("out", "carrier_frames", "directory for carrier frames")
	configPath  = flag.String("config", "", "channel config (.json or .toml); defaults when empty")
	opacity     = flag.Float64("opacity", 0, "blend opacity, overrides config")
	fixed       = flag.String("fixed", "", "fixed placement as x,y, overrides config")
	seed        = flag.Int64("seed", 0, "random placement seed, overrides config")
	visible     = flag.Bool("visible", false, "embed at full opacity in black and white for decoder testing")
	gzipPayload = flag.Bool("gzip", false, "gzip the payload before embedding")
	verbose     = flag.Bool("v", false, "verbose diagnostics")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		color.New(color.FgCyan, color.Bold).Println(version.String("ghost-embed"))
		return
	}
	if *framesDir == "" || *payloadPath == "" {
		log.Fatalf("-frames and -payload must be provided")
	}
	if err := security.ValidateOutsideInput(*outDir, *framesDir); err != nil {
		log.Fatalf("-out: %v", err)
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyOverrides(cfg, set, *opacity, *fixed, *seed); err != nil {
		log.Fatalf("%v", err)
	}

	data, err := os.ReadFile(*payloadPath)
	if err != nil {
		log.Fatalf("read payload: %v", err)
	}
	if *gzipPayload {
		raw := len(data)
		if data, err = payload.Compress(data); err != nil {
			log.Fatalf("compress payload: %v", err)
		}
		log.Printf("compressed payload %d -> %d bytes", raw, len(data))
	}

	fs := fsutil.OSFileSystem{}
	src, err := frames.OpenDir(fs, *framesDir)
	if err != nil {
		log.Fatalf("open frames: %v", err)
	}
	sink, err := frames.NewDirSink(fs, *outDir)
	if err != nil {
		log.Fatalf("open output: %v", err)
	}

	opts, err := pipeline.EncodeOptionsFromChannel(cfg, *visible)
	if err != nil {
		log.Fatalf("encode options: %v", err)
	}
	enc, err := pipeline.NewEncoder(opts)
	if err != nil {
		log.Fatalf("create encoder: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := enc.Run(ctx, data, src, sink)
	if err != nil {
		log.Fatalf("embed: %v", err)
	}

	fmt.Printf("frames:    %d -> %s\n", src.Len(), *outDir)
	fmt.Printf("fragments: %d (placed %d, skipped %d, unplaced %d)\n", res.Fragments, len(res.Placed), len(res.Skipped), res.Unplaced)
	fmt.Printf("opacity:   %.2f (max pixel delta %.1f)\n", opts.Embed.Opacity, res.MaxDelta)
	if len(res.Placed) < res.Fragments {
		color.New(color.FgYellow).Printf("warning: only %d of %d fragments embedded\n", len(res.Placed), res.Fragments)
		return
	}
	color.New(color.FgGreen).Println("embed complete")
}

// applyOverrides copies explicitly set flags onto cfg and revalidates it.
func applyOverrides(cfg *config.ChannelConfig, set map[string]bool, opacity float64, fixed string, seed int64) error {
	if set["opacity"] {
		cfg.Opacity = &opacity
	}
	if set["fixed"] {
		x, y, err := parseFixed(fixed)
		if err != nil {
			return err
		}
		placement := config.PlacementFixed
		cfg.Placement, cfg.FixedX, cfg.FixedY = &placement, &x, &y
	}
	if set["seed"] {
		cfg.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// parseFixed parses "x,y" into pixel offsets.
func parseFixed(s string) (x, y int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid -fixed %q: want x,y", s)
	}
	if x, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("invalid -fixed x %q: %w", parts[0], err)
	}
	if y, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("invalid -fixed y %q: %w", parts[1], err)
	}
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("invalid -fixed %q: offsets must be non-negative", s)
	}
	return x, y, nil
}
