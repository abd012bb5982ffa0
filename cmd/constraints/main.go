// Command constraints reads a transmission trace and writes the
// verification constraints it implies, one tagged line per constraint.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/sensorbelief/internal/config"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/db"
	"github.com/banshee-data/sensorbelief/internal/network"
	"github.com/banshee-data/sensorbelief/internal/report"
	"github.com/banshee-data/sensorbelief/internal/trace"
	"github.com/banshee-data/sensorbelief/internal/version"
)

var (
	configPath  = flag.String("config", "", "Network configuration file (.json, .yaml or .yml)")
	tracePath   = flag.String("trace", "-", "Trace file, - for stdin")
	outPath     = flag.String("out", "-", "Constraint output file, - for stdout")
	dbPath      = flag.String("db", "", "Optional SQLite database to record the run in")
	htmlPath    = flag.String("html", "", "Optional HTML chart of constraints per kind")
	runAnchors  = flag.Bool("run-anchors", false, "Emit run anchor constraints (overrides the configuration when set)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	ConfigPath string
	TracePath  string
	DBPath     string
	HTMLPath   string
	RunAnchors bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("constraints"))
		return
	}
	if *configPath == "" {
		log.Fatal("-config is required")
	}

	out := io.Writer(os.Stdout)
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath: *configPath,
		TracePath:  *tracePath,
		DBPath:     *dbPath,
		HTMLPath:   *htmlPath,
		RunAnchors: *runAnchors,
	}
	if err := run(ctx, opts, os.Stdin, out); err != nil {
		log.Fatalf("constraints: %v", err)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, out io.Writer) error {
	cfg, err := config.LoadNetworkConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	net, err := network.New(cfg)
	if err != nil {
		return err
	}
	if opts.RunAnchors {
		net.RunAnchors = true
	}

	in := stdin
	if opts.TracePath != "-" {
		f, err := os.Open(opts.TracePath)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer f.Close()
		in = f
	}
	records, err := trace.NewReader(in).ReadAll()
	if err != nil {
		return err
	}

	batches, err := net.Generate(ctx, records)
	if err != nil {
		return err
	}
	all := network.Flatten(batches)

	enc := constraints.NewEncoder(out)
	if err := enc.Encode(all...); err != nil {
		return err
	}
	log.Printf("%d records, %d constraints", len(records), enc.Count())

	if opts.DBPath != "" {
		if err := record(opts, batches); err != nil {
			return err
		}
	}
	if opts.HTMLPath != "" {
		f, err := os.Create(opts.HTMLPath)
		if err != nil {
			return fmt.Errorf("failed to create chart: %w", err)
		}
		defer f.Close()
		if err := report.RenderHTML(f, "Constraints", nil, report.KindCounts(all)); err != nil {
			return err
		}
	}
	return nil
}

func record(opts options, batches []network.Batch) error {
	store, err := db.NewDB(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	r, err := store.CreateRun(db.RunConstraints, opts.TracePath)
	if err != nil {
		return err
	}
	for _, b := range batches {
		if err := store.RecordConstraints(r.ID, b.Cluster, b.Constraints); err != nil {
			return err
		}
	}
	log.Printf("recorded run %s", r.ID)
	return nil
}
