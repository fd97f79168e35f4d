package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/physiotrack/internal/app"
	"alcyxob/physiotrack/internal/config"
	"alcyxob/physiotrack/internal/logging"
	"alcyxob/physiotrack/internal/prescription"
	"alcyxob/physiotrack/internal/repository"
	"alcyxob/physiotrack/internal/scan"
	"alcyxob/physiotrack/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "kiosk",
		Short:         "Print exercise prescriptions for scanned patient barcodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", ".", "Directory containing config.yaml")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at the configured level instead of warnings only")

	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(lookupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Read barcodes from the scanner (stdin) and print each patient's sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncWait, _ := cmd.Flags().GetDuration("sync-wait")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				sub, err := a.Coordinator.StartBackgroundSync(ctx)
				if err != nil {
					a.Log.Warn("Background sync unavailable, using point reads", zap.Error(err))
				} else {
					defer sub.Stop()
					waitReady(ctx, a.Coordinator, syncWait)
				}
				return runScanLoop(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().Duration("sync-wait", 3*time.Second, "How long to wait for the first snapshot before accepting scans")
	return cmd
}

func lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <patient-id>",
		Short: "Print the sheet of a single patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Coordinator.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), prescription.RenderSheet(rec, a.Catalog, time.Local))
				return nil
			})
		},
	}
}

// withApp loads config, builds the App and runs fn until SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	dir, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return err
	}
	if !verbose {
		cfg.Log.Level = "warn"
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func waitReady(ctx context.Context, coord *service.Coordinator, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !coord.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// runScanLoop arms a fresh gate per patient so each scan is handled exactly once.
func runScanLoop(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	pipeline := scan.NewLinePipeline(in)
	results := make(chan string, 1)

	fmt.Fprintln(out, "Ready. Scan a patient barcode.")
	for {
		gate := scan.NewGate(pipeline, func(id string) { results <- id }, a.Log)
		if err := gate.Start(ctx); err != nil {
			if errors.Is(err, scan.ErrInputClosed) {
				return pipeline.Err()
			}
			return err
		}

		select {
		case <-ctx.Done():
			_ = gate.Stop()
			return nil
		case <-pipeline.Done():
			_ = gate.Stop()
			// A final line may have fired just before EOF.
			select {
			case id := <-results:
				printPatient(ctx, a, id, out)
			default:
			}
			return pipeline.Err()
		case id := <-results:
			printPatient(ctx, a, id, out)
		}
	}
}

func printPatient(ctx context.Context, a *app.App, id string, out io.Writer) {
	rec, err := a.Coordinator.Resolve(ctx, id)
	switch {
	case err == nil:
		fmt.Fprintln(out, prescription.RenderSheet(rec, a.Catalog, time.Local))
	case errors.Is(err, repository.ErrNotFound):
		fmt.Fprintf(out, "No prescription found for %s.\n\n", id)
	case errors.Is(err, service.ErrConnectivity):
		fmt.Fprintf(out, "Connection error looking up %s. Scan again to retry.\n\n", id)
	default:
		fmt.Fprintf(out, "Lookup of %s failed: %v\n\n", id, err)
	}
}
