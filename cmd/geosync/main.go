// geosync - GeoNames gazetteer synchronization.
// Installs the full GeoNames dump into a relational store and keeps it
// current by applying the published daily deltas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geosync/geosync/pkg/config"
	"github.com/geosync/geosync/pkg/fetch"
	"github.com/geosync/geosync/pkg/geoname"
	"github.com/geosync/geosync/pkg/store"
	"github.com/geosync/geosync/pkg/tui"
	"github.com/geosync/geosync/pkg/watch"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	dataDirFlag  string
	databaseFlag string
	baseURLFlag  string
	intervalFlag time.Duration
	quiet        bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geosync",
	Short: "geosync - Mirror the GeoNames gazetteer into a local database",
	Long: `geosync ingests the GeoNames dump files into a relational store and
keeps the mirror current from the published daily delta files.

Ingestion is staged and checkpointed: each invocation performs one unit
of work and records where it stopped, so the command is safe to run from
cron or a watcher and will resume after a crash.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one unit of pipeline work",
	Long: `Run one pipeline step: download missing source files, then execute
the stage the checkpoint points at. During install this processes at
most one chunk; repeat (or use watch) until the status reaches update.`,
	RunE: runOnce,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline continuously",
	Long: `Invoke the pipeline on a fixed interval, and additionally whenever
new delta files appear in the data directory.`,
	RunE: runWatch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint status and chunk progress",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a stale checkpoint lock",
	Long: `Clear the advisory lock on the checkpoint row. Only needed after a
run died without unlocking; never run this while another run is live.`,
	RunE: runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override the data directory")
	rootCmd.PersistentFlags().StringVar(&databaseFlag, "database", "", "Override the database path")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Override the upstream dump URL")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	watchCmd.Flags().DurationVar(&intervalFlag, "interval", 0, "Tick interval (default from config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

// loadConfig merges config files, environment and flags.
func loadConfig() (*config.Config, error) {
	mgr := config.NewManager()
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	if dataDirFlag != "" {
		cfg.Source.DataDir = dataDirFlag
	}
	if databaseFlag != "" {
		cfg.Storage.Database = databaseFlag
	}
	if baseURLFlag != "" {
		cfg.Source.BaseURL = baseURLFlag
	}
	if intervalFlag > 0 {
		cfg.Watch.Interval = intervalFlag
	}
	return cfg, cfg.Validate()
}

func newService(cfg *config.Config) (*geoname.Service, *store.DB, error) {
	db, err := store.Open(cfg.Storage.Database)
	if err != nil {
		return nil, nil, err
	}
	cli := tui.New()
	if quiet {
		cli = tui.Discard
	}
	fetcher := fetch.New(cfg.Source.HTTPTimeout)
	fetcher.Progress = !quiet
	return geoname.New(db, fetcher, cli, cfg), db, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted, finishing current step...")
		cancel()
	}()
	return ctx, cancel
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Source.DataDir, 0755); err != nil {
		return err
	}
	svc, _, err := newService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return svc.Run(ctx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Source.DataDir, 0755); err != nil {
		return err
	}
	svc, _, err := newService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	watcher, err := watch.New(2 * time.Second)
	if err != nil {
		return err
	}
	defer watcher.Close()
	// best effort: the update tree may not exist until the first run
	watcher.Add(cfg.Source.DataDir)
	for _, sub := range []string{
		"update/place/modification",
		"update/place/delete",
		"update/altName/modification",
		"update/altName/delete",
	} {
		watcher.Add(filepath.Join(cfg.Source.DataDir, sub))
	}

	kick := make(chan struct{}, 1)
	watcher.OnChange = func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
	watcher.OnError = func(err error) {
		fmt.Fprintln(os.Stderr, err)
	}
	go watcher.Start(ctx)

	ticker := time.NewTicker(cfg.Watch.Interval)
	defer ticker.Stop()

	step := func() {
		if err := svc.Run(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	step()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			step()
		case <-kick:
			step()
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, _, err := newService(cfg)
	if err != nil {
		return err
	}

	p, err := svc.Progress()
	if err != nil {
		return err
	}

	fmt.Printf("Status: %s\n", p.Status)
	fmt.Printf("Locked: %v\n", p.Locked)
	if len(p.Chunks) > 0 {
		fmt.Println("Chunks:")
		names := make([]string, 0, len(p.Chunks))
		for name := range p.Chunks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cp := p.Chunks[name]
			total := cp.Pending + cp.Locked + cp.Done
			fmt.Printf("  %-16s %d/%d done", name, cp.Done, total)
			if cp.Locked > 0 {
				fmt.Printf(" (%d in progress)", cp.Locked)
			}
			fmt.Println()
		}
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.Database)
	if err != nil {
		return err
	}

	meta, err := db.Meta()
	if err != nil {
		return err
	}
	if !meta.Locked {
		fmt.Println("Checkpoint is not locked.")
		return nil
	}
	meta.Locked = false
	db.Persist(meta)
	if err := db.Flush(); err != nil {
		return err
	}
	fmt.Println("Checkpoint lock cleared.")
	return nil
}
