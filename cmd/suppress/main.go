// Command suppress replays a readings file through every cluster's
// suppression decider and reports how many values had to be sent.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/config"
	"github.com/banshee-data/sensorbelief/internal/db"
	"github.com/banshee-data/sensorbelief/internal/network"
	"github.com/banshee-data/sensorbelief/internal/report"
	"github.com/banshee-data/sensorbelief/internal/trace"
	"github.com/banshee-data/sensorbelief/internal/version"
)

var (
	configPath   = flag.String("config", "", "Network configuration file (.json, .yaml or .yml)")
	readingsPath = flag.String("readings", "", "Readings file, one line of node values per epoch")
	dbPath       = flag.String("db", "", "Optional SQLite database to record decisions in")
	pngPath      = flag.String("png", "", "Optional plot of values sent per epoch")
	htmlPath     = flag.String("html", "", "Optional HTML chart of values sent per epoch")
	traceOut     = flag.String("trace-out", "", "Optional trace of the transmissions over a lossless channel, readable by the constraints command")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	ConfigPath   string
	ReadingsPath string
	DBPath       string
	PNGPath      string
	HTMLPath     string
	TracePath    string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("suppress"))
		return
	}
	if *configPath == "" || *readingsPath == "" {
		log.Fatal("-config and -readings are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:   *configPath,
		ReadingsPath: *readingsPath,
		DBPath:       *dbPath,
		PNGPath:      *pngPath,
		HTMLPath:     *htmlPath,
		TracePath:    *traceOut,
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("suppress: %v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.LoadNetworkConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	net, err := network.New(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.ReadingsPath)
	if err != nil {
		return fmt.Errorf("failed to open readings: %w", err)
	}
	defer f.Close()
	readings, err := trace.ReadReadings(f, net.NodeCount)
	if err != nil {
		return err
	}

	results, err := net.Suppress(ctx, readings)
	if err != nil {
		return err
	}
	for _, r := range results {
		writeStats(out, fmt.Sprintf("cluster %d", r.Cluster), r.Stats)
		fmt.Fprintf(out, " max_error=%f\n", r.MaxError)
	}
	writeStats(out, "total", network.TotalStats(results))
	fmt.Fprintln(out)

	if opts.TracePath != "" {
		if err := writeTrace(opts.TracePath, net.DecisionTrace(results, readings)); err != nil {
			return err
		}
	}
	if opts.DBPath != "" {
		if err := record(opts, results); err != nil {
			return err
		}
	}
	series := report.TransmissionSeries(results)
	if opts.PNGPath != "" {
		if err := report.SavePNG(opts.PNGPath, "Values sent per epoch", series); err != nil {
			return err
		}
	}
	if opts.HTMLPath != "" {
		hf, err := os.Create(opts.HTMLPath)
		if err != nil {
			return fmt.Errorf("failed to create chart: %w", err)
		}
		defer hf.Close()
		if err := report.RenderHTML(hf, "Values sent per epoch", series, nil); err != nil {
			return err
		}
	}
	return nil
}

func writeStats(w io.Writer, label string, st belief.Stats) {
	fmt.Fprintf(w, "%s: epochs=%d suppressed=%d transmissions=%d values=%d",
		label, st.Epochs, st.Suppressed, st.Transmissions, st.Values)
}

func record(opts options, results []network.SuppressResult) error {
	store, err := db.NewDB(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	r, err := store.CreateRun(db.RunSuppress, opts.ReadingsPath)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := store.RecordDecisions(r.ID, res.Cluster, res.Decisions); err != nil {
			return err
		}
	}
	log.Printf("recorded run %s", r.ID)
	return nil
}

func writeTrace(path string, records []trace.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close trace: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# epoch cluster head nodes")
	for _, rec := range records {
		if _, err := fmt.Fprintln(w, trace.Format(rec)); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}
	return w.Flush()
}
