package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// application - то, что нужно командам от собранного приложения
type application interface {
	Logger() port.LoggerPort
	CheckBucket() usecases_port.CheckBucketPort
	CheckProduct() usecases_port.CheckProductPort
	Maintenance() usecases_port.MaintenancePort
	Run() error
	Close()
}

type appFactory func(envPath string, withListeners bool) (application, error)

func newRootCmd(factory appFactory) *cobra.Command {
	var envPath string

	root := &cobra.Command{
		Use:           "pricewatch",
		Short:         "Price monitoring engine: scheduled checks, circuit breakers and result cache",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path to .env file (optional)")

	// withApp собирает приложение для разовой команды и закрывает его после выполнения
	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, app application) error) error {
		app, err := factory(envPath, false)
		if err != nil {
			return err
		}
		defer app.Close()

		traceID := uuid.NewString()
		ctx := contextkeys.ContextWithLogger(cmd.Context(), app.Logger().WithFields(port.Fields{"trace_id": traceID, "command": cmd.Name()}))
		ctx = contextkeys.ContextWithTraceID(ctx, traceID)
		return fn(ctx, app)
	}

	root.AddCommand(
		newServeCmd(factory, &envPath),
		newCheckCmd(withApp),
		newCheckProductCmd(withApp),
		newCircuitCmd(withApp),
		newCacheCmd(withApp),
	)
	return root
}

type appRunner func(cmd *cobra.Command, fn func(ctx context.Context, app application) error) error

func newServeCmd(factory appFactory, envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the check request consumer and the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory(*envPath, true)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}

func newCheckCmd(withApp appRunner) *cobra.Command {
	var bucket int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check of a frequency bucket (6, 12 or 24 hours)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidBucket(bucket) {
				return fmt.Errorf("%w: %d", domain.ErrInvalidBucket, bucket)
			}
			return withApp(cmd, func(ctx context.Context, app application) error {
				report, err := app.CheckBucket().Execute(ctx, bucket)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().IntVar(&bucket, "bucket", 24, "frequency bucket in hours")
	return cmd
}

func newCheckProductCmd(withApp appRunner) *cobra.Command {
	var productID int64
	cmd := &cobra.Command{
		Use:   "check-product",
		Short: "Check a single product immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if productID <= 0 {
				return fmt.Errorf("--id must be a positive product id")
			}
			return withApp(cmd, func(ctx context.Context, app application) error {
				result, err := app.CheckProduct().Execute(ctx, productID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().Int64Var(&productID, "id", 0, "product id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCircuitCmd(withApp appRunner) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Inspect or reset per-site circuit breakers",
	}
	cmd.PersistentFlags().StringVar(&site, "site", "", "site name (amazon, fnac, darty, cdiscount, boulanger, leclerc)")
	_ = cmd.MarkPersistentFlagRequired("site")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "state",
			Short: "Show the breaker state of a site",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app application) error {
					tag, state, err := app.Maintenance().CircuitState(ctx, site)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"site": tag, "circuit": state})
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Force the breaker of a site back to closed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app application) error {
					tag, err := app.Maintenance().ResetCircuit(ctx, site)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"site": tag, "status": "reset"})
				})
			},
		},
	)
	return cmd
}

func newCacheCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the scrape result cache",
	}

	var url string
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the cached result of one URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app application) error {
				removed, err := app.Maintenance().InvalidateCache(ctx, url)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"url": url, "removed": removed})
			})
		},
	}
	invalidate.Flags().StringVar(&url, "url", "", "product page URL")
	_ = invalidate.MarkFlagRequired("url")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app application) error {
				removed, err := app.Maintenance().ClearCache(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"removed": removed})
			})
		},
	}

	cmd.AddCommand(invalidate, clearCmd)
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
