package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/export"
	"github.com/nicktill/tinyqp/pkg/ingest"
	"github.com/nicktill/tinyqp/pkg/qp/nodes"
	"github.com/nicktill/tinyqp/pkg/qp/terminal"
	"github.com/nicktill/tinyqp/pkg/query"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/storage/badger"
)

var (
	dataDir string
	format  string
)

var rootCmd = &cobra.Command{
	Use:           "qpctl",
	Short:         "Write and query a local tinyqp data directory",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var writeCmd = &cobra.Command{
	Use:   "write FILE",
	Short: "Write a JSON array of points (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var points []ingest.Point
		if err := json.NewDecoder(in).Decode(&points); err != nil {
			return fmt.Errorf("invalid points: %w", err)
		}

		return withStore(cmd.Context(), func(e *env) error {
			created, err := ingest.NewHandler(e.store, e.matcher).Write(cmd.Context(), points)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d points, %d new series\n", len(points), created)
			return nil
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query JSON",
	Short: "Run a JSON query and print one row per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(e *env) error {
			return runQuery(cmd.Context(), e, []byte(args[0]), cmd.OutOrStdout())
		})
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series [METRIC]",
	Short: "List series names",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selector := query.MetaNames
		if len(args) == 1 {
			selector += ":" + args[0]
		}
		text, err := json.Marshal(map[string]string{"select": selector})
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(e *env) error {
			return runQuery(cmd.Context(), e, text, cmd.OutOrStdout())
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export JSON",
	Short: "Export the rows of a scan query to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(e *env) error {
			result, err := export.NewExporter(e.executor).Export(cmd.Context(), cmd.OutOrStdout(), []byte(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d points\n", result.PointsExported)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import an export (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			in = file
		}

		return withStore(cmd.Context(), func(e *env) error {
			importer := export.NewImporter(ingest.NewHandler(e.store, e.matcher))
			result, err := importer.Import(cmd.Context(), in, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d points, %d new series\n", result.PointsImported, result.SeriesCreated)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "badger data directory")
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&format, "format", string(export.JSON), "json or csv")
	}
	rootCmd.AddCommand(writeCmd, queryCmd, seriesCmd, exportCmd, importCmd)
}

// env is an opened data directory
type env struct {
	store    *badger.Storage
	matcher  *series.Matcher
	executor *query.Executor
}

func withStore(ctx context.Context, fn func(e *env) error) error {
	store, err := badger.New(badger.Config{Path: dataDir, MaxMemoryMB: config.DefaultMaxMemoryMB})
	if err != nil {
		return err
	}
	defer store.Close()

	matcher := series.NewMatcher()
	if _, err := ingest.RestoreSeries(ctx, store, matcher); err != nil {
		return err
	}
	registry, err := nodes.NewRegistry()
	if err != nil {
		return err
	}

	return fn(&env{
		store:    store,
		matcher:  matcher,
		executor: query.NewExecutor(store, matcher, registry, nil),
	})
}

func runQuery(ctx context.Context, e *env, text []byte, out io.Writer) error {
	collector := terminal.NewCollector()
	run, err := e.executor.Execute(ctx, text, collector)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for _, s := range collector.Samples() {
		name, ok := run.Names.Name(s.ParamID)
		if !ok {
			name = fmt.Sprintf("%d", s.ParamID)
		}
		if run.Kind == query.KindMetadata {
			fmt.Fprintln(out, name)
			continue
		}
		if err := enc.Encode(query.Row{Series: name, Timestamp: s.Timestamp, Value: s.Payload.Value}); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
