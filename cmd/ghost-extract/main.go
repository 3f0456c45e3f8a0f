// Command ghost-extract scans a directory of carrier frames for embedded
// fragments and reconstructs the payload.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/banshee-data/ghostframe/internal/config"
	"github.com/banshee-data/ghostframe/internal/frames"
	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/payload"
	"github.com/banshee-data/ghostframe/internal/pipeline"
	"github.com/banshee-data/ghostframe/internal/report"
	"github.com/banshee-data/ghostframe/internal/scan"
	"github.com/banshee-data/ghostframe/internal/security"
	"github.com/banshee-data/ghostframe/internal/storage/sqlite"
	"github.com/banshee-data/ghostframe/internal/version"
)

const defaultInput = "carrier_frames"

var (
	outPath        = flag.String("o", "recovered_payload.bin", "output path for the recovered payload")
	configPath     = flag.String("config", "", "channel config (.json or .toml); defaults when empty")
	workers        = flag.Int("workers", 0, "concurrent frame scanners, overrides config")
	maxFrames      = flag.Int("max-frames", 0, "size of the sampled first pass, overrides config; 0 scans every frame")
	checkpointPath = flag.String("checkpoint", "", "sqlite database recording recovered fragments")
	resume         = flag.Bool("resume", false, "continue the latest unfinished session for this input")
	reportDir      = flag.String("report", "", "directory for completeness plot and HTML scan report")
	debugDir       = flag.String("debug-dir", "", "directory for PNG dumps of windows that produced candidates")
	debugLimit     = flag.Int("debug-limit", 50, "windows to dump at most")
	verifyGzip     = flag.Bool("verify-gzip", false, "require the payload to be a valid gzip stream")
	verbose        = flag.Bool("v", false, "verbose diagnostics")
	showVersion    = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		color.New(color.FgCyan, color.Bold).Println(version.String("ghost-extract"))
		return
	}
	monitoring.SetVerbose(*verbose)

	input := defaultInput
	if flag.NArg() > 0 {
		input = flag.Arg(0)
	}
	if err := run(input); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "extraction failed: %v\n", err)
		os.Exit(1)
	}
}

// run performs one extraction session. It fails unless the session ends DONE.
func run(input string) error {
	if *resume && *checkpointPath == "" {
		return errors.New("-resume requires -checkpoint")
	}
	for flagName, dir := range map[string]string{"-report": *reportDir, "-debug-dir": *debugDir} {
		if err := security.ValidateOutsideInput(dir, input); err != nil {
			return fmt.Errorf("%s: %w", flagName, err)
		}
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := pipeline.ExtractOptionsFromChannel(cfg)
	if *workers > 0 {
		opts.Workers = *workers
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "max-frames" {
			opts.MaxFrames = *maxFrames
		}
	})
	if opts.MaxFrames < 0 {
		return fmt.Errorf("-max-frames must be non-negative, got %d", opts.MaxFrames)
	}

	fs := fsutil.OSFileSystem{}
	src, err := frames.OpenDir(fs, input)
	if err != nil {
		return fmt.Errorf("open frames: %w", err)
	}

	var sink *scan.PNGDebugSink
	if *debugDir != "" {
		sink, err = scan.NewPNGDebugSink(fs, *debugDir, *debugLimit)
		if err != nil {
			return fmt.Errorf("debug sink: %w", err)
		}
		opts.Debug = sink
	}
	if *checkpointPath != "" {
		db, err := sqlite.Open(*checkpointPath)
		if err != nil {
			return fmt.Errorf("open checkpoint: %w", err)
		}
		defer db.Close()
		opts.Checkpoint = pipeline.NewSQLiteCheckpoint(db, *resume)
	}

	ex, err := pipeline.NewExtractor(opts)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, runErr := ex.Run(ctx, src, input)
	if sink != nil {
		log.Printf("debug: dumped %d windows to %s", sink.Written(), *debugDir)
	}
	if res == nil {
		// Interrupted or unable to start; a checkpointed session stays resumable.
		return runErr
	}

	if *reportDir != "" {
		written, err := report.WriteSessionReport(fs, *reportDir, res, opts.MaxMissingRatio)
		if err != nil {
			log.Printf("write report: %v", err)
		}
		for _, p := range written {
			log.Printf("report: %s", p)
		}
	}

	printSummary(res)
	if runErr != nil {
		return runErr
	}
	if res.State != pipeline.StateDone {
		return fmt.Errorf("session ended in state %s", res.State)
	}

	if *verifyGzip {
		if _, err := payload.Decompress(res.Payload); err != nil {
			return fmt.Errorf("payload verification: %w", err)
		}
		fmt.Println("payload verified as gzip")
	}
	if err := os.WriteFile(*outPath, res.Payload, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	color.New(color.FgGreen).Printf("recovered %d bytes -> %s\n", len(res.Payload), *outPath)
	return nil
}

func printSummary(res *pipeline.ExtractResult) {
	st := res.Stats
	if res.SessionID != "" {
		fmt.Printf("session:   %s\n", res.SessionID)
	}
	fmt.Printf("state:     %s\n", res.State)
	fmt.Printf("frames:    %d of %d scanned (%d unreadable)\n", st.FramesScanned, st.FramesTotal, st.FrameErrors)
	fmt.Printf("windows:   %d (%d flat, %d low contrast, peak stddev %.1f), %d candidates\n",
		st.Scan.Windows, st.Scan.FlatWindows, st.Scan.LowContrast, st.Scan.MaxStdDev, st.Scan.Candidates)
	fmt.Printf("decodes:   %d (%d attempts, %d parse errors)\n", st.Decoded, st.Decode.Attempts, st.ParseErrors)
	if st.Seeded > 0 {
		fmt.Printf("resumed:   %d fragments from checkpoint\n", st.Seeded)
	}
	if res.Total > 0 {
		fmt.Printf("fragments: %d total, %d missing %v\n", res.Total, len(res.Skipped), res.Skipped)
	}
	fmt.Printf("elapsed:   %s\n", st.Duration)
}
