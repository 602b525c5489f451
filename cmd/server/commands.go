package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"cascade/internal/api"
	"cascade/internal/bench"
	"cascade/internal/client"
	"cascade/internal/config"
	"cascade/internal/container"
	"cascade/internal/perf"
	"cascade/internal/reference"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "cascade",
		Short:         "Grid editor with cascading dependent select fields",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the grid over HTTP (default command)",
		RunE:  runServe,
	}
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Random edits over every allowed grid size, report edit-to-frame latency",
		Long: `Without --addr the grid is built in-process from the configured hierarchy
and catalog. With --addr the edits go to a running server over its HTTP API.`,
		RunE: runBench,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the Postgres catalog table and fill it from generated or yaml data",
		Long: `With --out the catalog is written to a YAML file instead of Postgres,
in the format catalog.source=yaml reads.`,
		RunE:  runSeed,
	}
)

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	benchCmd.Flags().String("addr", "", "Base URL of a running server (remote mode)")
	benchCmd.Flags().Int("edits", 500, "Edits per grid size")
	benchCmd.Flags().Int64("seed", 1, "Random seed")
	benchCmd.Flags().Bool("json", false, "Print results as JSON")

	seedCmd.Flags().String("from", "generated", "Source for the rows (generated/yaml)")
	seedCmd.Flags().String("out", "", "Write the catalog to this YAML file instead of Postgres")

	rootCmd.AddCommand(serveCmd, benchCmd, seedCmd)
}

// loadConfig читает конфигурацию и настраивает глобальный логгер
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Log.Apply(log.StandardLogger()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	render := perf.StartRenderTimer(nil)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := container.New(ctx, cfg, container.WithRenderTimer(render))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer c.Close()

	log.WithField("addr", cfg.Server.Addr()).Info("🚀 cascade starting")
	return c.Run(ctx)
}

func runBench(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	addr, _ := cmd.Flags().GetString("addr")
	edits, _ := cmd.Flags().GetInt("edits")
	seed, _ := cmd.Flags().GetInt64("seed")
	asJSON, _ := cmd.Flags().GetBool("json")

	var (
		target bench.Target
		sizes  = cfg.Grid.Sizes
	)
	if addr != "" {
		cl := client.New(addr)
		defer cl.Close()
		meta, err := cl.Meta(ctx)
		if err != nil {
			return fmt.Errorf("server %s: %w", addr, err)
		}
		target, sizes = bench.Remote{Client: cl}, meta.Sizes
	} else {
		// локальный прогон: кадр сразу после рассылки, как в serve без frame_interval
		cfg.Server.FrameInterval = 0
		c, err := container.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()
		target = bench.Local{Session: c.Session}
	}

	results, err := bench.Run(ctx, target, bench.Options{Sizes: sizes, Edits: edits, Seed: seed})
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results []bench.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROWS\tEDITS\tREJECTED\tMEAN\tP50\tP95\tMAX\tROUND TRIP P95")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%v\t%v\t%v\t%v\t%v\n",
			r.Rows, r.Edits, r.Rejected,
			r.Latency.Mean, r.Latency.P50, r.Latency.P95, r.Latency.Max, r.RoundTrip.P95)
	}
	_ = tw.Flush()
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		return exportCatalog(cfg, from, out)
	}
	n, err := container.Seed(cmd.Context(), cfg, from)
	if err != nil {
		var lint *api.LintError
		if errors.As(err, &lint) {
			for _, it := range lint.Issues {
				log.WithFields(log.Fields{"level": it.Level, "code": it.Code}).Error(it.Message)
			}
		}
		return err
	}
	log.WithFields(log.Fields{"from": from, "options": n}).Info("✅ catalog seeded")
	return nil
}

// exportCatalog пишет справочник в YAML, который потом читает catalog.source=yaml
func exportCatalog(cfg *config.Config, from, path string) error {
	h, err := container.LoadHierarchy(cfg.Hierarchy)
	if err != nil {
		return err
	}
	cat, err := container.SourceCatalog(cfg.Catalog, from, h)
	if err != nil {
		return err
	}
	data, err := reference.Marshal(cat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.WithFields(log.Fields{"from": from, "path": path, "options": cat.Size()}).Info("✅ catalog exported")
	return nil
}
