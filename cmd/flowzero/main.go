// Command flowzero searches the imagery catalog, submits clip and
// basemap orders, and fetches delivered artifacts into a destination
// store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/aoi"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/batch"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/bundle"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/config"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/fetch"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/ledger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/order"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/storage"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Warn("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	app := &cli.App{
		Name:    "flowzero",
		Usage:   "order and fetch satellite imagery for river monitoring AOIs",
		Version: version,
		Commands: []*cli.Command{
			searchCommand(cfg),
			submitCommand(cfg),
			batchSubmitCommand(cfg),
			checkStatusCommand(cfg),
			batchCheckStatusCommand(cfg),
			orderBasemapCommand(cfg),
			listBasemapsCommand(cfg),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func sceneFlags(cfg config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "cadence", Value: "weekly", Usage: "selection cadence: daily, weekly or monthly"},
		&cli.Float64Flag{Name: "min-coverage", Value: cfg.Search.MinCoveragePct, Usage: "minimum AOI coverage percentage"},
		&cli.Float64Flag{Name: "cloud-cover", Value: cfg.Search.CloudCoverMax, Usage: "maximum cloud cover fraction"},
		&cli.StringFlag{Name: "bundle", Usage: "explicit product bundle, overriding defaults"},
		&cli.BoolFlag{Name: "eight-band", Usage: "prefer the eight-band product where available"},
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Required: true, Usage: "start date (YYYY-MM-DD, inclusive)"},
		&cli.StringFlag{Name: "end", Required: true, Usage: "end date (YYYY-MM-DD, inclusive)"},
	}
}

func newAPIClient(cfg config.Config) (*planet.Client, error) {
	if err := cfg.ValidateForAPI(); err != nil {
		return nil, err
	}
	return planet.NewClient(planet.Config{
		BaseURL:     cfg.Planet.BaseURL,
		APIKey:      cfg.Planet.APIKey,
		PageDelay:   cfg.Planet.PageDelay,
		MaxAttempts: cfg.Planet.MaxAttempts,
	}), nil
}

func loadCatalog(cfg config.Config) (*bundle.Catalog, error) {
	if cfg.Bundle.CatalogPath != "" {
		return bundle.LoadFile(cfg.Bundle.CatalogPath)
	}
	return bundle.Default(), nil
}

func newSubmitter(cfg config.Config) (*order.Submitter, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return order.NewSubmitter(client, ledger.Open(cfg.Ledger.Path), catalog), nil
}

func sceneRequest(c *cli.Context, dryRun bool) (order.Request, error) {
	area, err := aoi.Load(c.String("aoi"))
	if err != nil {
		return order.Request{}, err
	}
	start, err := daterange.ParseDate(c.String("start"))
	if err != nil {
		return order.Request{}, err
	}
	end, err := daterange.ParseDate(c.String("end"))
	if err != nil {
		return order.Request{}, err
	}
	cadence, err := selector.ParseCadence(c.String("cadence"))
	if err != nil {
		return order.Request{}, err
	}
	return order.Request{
		AOI:            area,
		Range:          daterange.Range{Start: start, End: end},
		Cadence:        cadence,
		MinCoveragePct: c.Float64("min-coverage"),
		CloudCoverMax:  c.Float64("cloud-cover"),
		BundleOverride: c.String("bundle"),
		EightBand:      c.Bool("eight-band"),
		DryRun:         dryRun,
	}, nil
}

func printResult(res *order.Result) {
	if res.DryRun {
		fmt.Printf("dry run: would order %d of %d scenes (%.1f km2 quota)\n",
			res.ScenesSelected, res.ScenesFound, res.QuotaSqKm)
	} else {
		fmt.Printf("order %s submitted: %d scenes (%.1f km2 quota)\n",
			res.OrderID, res.ScenesSelected, res.QuotaSqKm)
	}
	for _, w := range res.Winners {
		line := fmt.Sprintf("  %s  %s  %.1f%%", w.IntervalKey, w.Scene.ID, w.CoveragePct)
		if w.Scene.Thumbnail != "" {
			line += "  " + w.Scene.Thumbnail
		}
		fmt.Println(line)
	}
}

func searchCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search the catalog and report which scenes would be ordered",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{Name: "aoi", Required: true, Usage: "path to an AOI GeoJSON file"},
		}, rangeFlags()...), sceneFlags(cfg)...),
		Action: func(c *cli.Context) error {
			sub, err := newSubmitter(cfg)
			if err != nil {
				return err
			}
			req, err := sceneRequest(c, true)
			if err != nil {
				return err
			}
			res, err := sub.Submit(c.Context, req)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
}

func submitCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "submit one clip order for an AOI and date range",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{Name: "aoi", Required: true, Usage: "path to an AOI GeoJSON file"},
			&cli.BoolFlag{Name: "dry-run", Usage: "search and select but do not submit"},
		}, rangeFlags()...), sceneFlags(cfg)...),
		Action: func(c *cli.Context) error {
			sub, err := newSubmitter(cfg)
			if err != nil {
				return err
			}
			req, err := sceneRequest(c, c.Bool("dry-run"))
			if err != nil {
				return err
			}
			res, err := sub.Submit(c.Context, req)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
}

func batchSubmitCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "batch-submit",
		Usage: "submit orders for every row of a CSV manifest",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "manifest", Required: true, Usage: "CSV with aoi_path, start_date, end_date columns"},
			&cli.IntFlag{Name: "max-months", Value: 6, Usage: "maximum months per order window"},
			&cli.BoolFlag{Name: "dry-run", Usage: "search and select but do not submit"},
		}, sceneFlags(cfg)...),
		Action: func(c *cli.Context) error {
			sub, err := newSubmitter(cfg)
			if err != nil {
				return err
			}
			cadence, err := selector.ParseCadence(c.String("cadence"))
			if err != nil {
				return err
			}

			file, err := os.Open(c.String("manifest"))
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			defer file.Close()
			rows, skipped, err := batch.ReadManifest(file)
			if err != nil {
				return err
			}

			summary, err := batch.NewRunner(sub).Run(c.Context, rows, skipped, batch.Params{
				MaxMonths:      c.Int("max-months"),
				Cadence:        cadence,
				MinCoveragePct: c.Float64("min-coverage"),
				CloudCoverMax:  c.Float64("cloud-cover"),
				BundleOverride: c.String("bundle"),
				EightBand:      c.Bool("eight-band"),
				DryRun:         c.Bool("dry-run"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("batch %s: %d submitted, %d without eligible scenes, %d failed, %d rows skipped\n",
				summary.BatchID,
				summary.Count(batch.OutcomeSubmitted),
				summary.Count(batch.OutcomeNoEligible),
				summary.Count(batch.OutcomeFailed),
				summary.RowsSkipped)
			fmt.Printf("totals: %d scenes found, %d selected, %.1f km2 quota\n",
				summary.ScenesFound, summary.ScenesSelected, summary.QuotaSqKm)
			for _, r := range summary.Results {
				line := fmt.Sprintf("  [%s] %s %s", r.Outcome, r.AOIName, r.Unit.Range.String())
				if r.OrderID != "" {
					line += " order=" + r.OrderID
				}
				if r.Err != nil {
					line += " error=" + r.Err.Error()
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newFetcher(cfg config.Config) (*fetch.Fetcher, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateForStorage(); err != nil {
		return nil, err
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return fetch.NewFetcher(client, ledger.Open(cfg.Ledger.Path), store), nil
}

func printReport(report *fetch.Report) {
	if report.Pending {
		fmt.Printf("order %s is still %s, try again later\n", report.OrderID, report.State)
		return
	}
	fmt.Printf("order %s: %s, %d transferred, %d skipped, %d failed\n",
		report.OrderID, report.State,
		len(report.Transferred), len(report.Skipped), len(report.Failed))
	for _, key := range report.Transferred {
		fmt.Printf("  + %s\n", key)
	}
	for _, key := range report.Skipped {
		fmt.Printf("  = %s\n", key)
	}
	for _, te := range report.Failed {
		fmt.Printf("  ! %s: %v\n", te.Artifact, te.Err)
	}
}

func checkStatusCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "check-status",
		Usage: "poll one order and fetch its artifacts when ready",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "order-id", Required: true, Usage: "order id from a previous submit"},
			&cli.BoolFlag{Name: "overwrite", Usage: "re-transfer artifacts that already exist"},
		},
		Action: func(c *cli.Context) error {
			f, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			report, err := f.Check(c.Context, c.String("order-id"), fetch.Options{
				Overwrite: c.Bool("overwrite"),
			})
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
}

func batchCheckStatusCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "batch-check-status",
		Usage: "poll and fetch every order in a batch",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "batch-id", Required: true, Usage: "batch id from a previous batch-submit"},
			&cli.BoolFlag{Name: "overwrite", Usage: "re-transfer artifacts that already exist"},
		},
		Action: func(c *cli.Context) error {
			f, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			outcomes, err := f.CheckBatch(c.Context, c.String("batch-id"), fetch.Options{
				Overwrite: c.Bool("overwrite"),
			})
			if err != nil {
				return err
			}
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Printf("[%s] %s: %v\n", o.Outcome, o.OrderID, o.Err)
					continue
				}
				fmt.Printf("[%s] ", o.Outcome)
				printReport(o.Report)
			}
			return nil
		},
	}
}

func orderBasemapCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "order-basemap",
		Usage: "submit a composite order clipped to an AOI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "aoi", Required: true, Usage: "path to an AOI GeoJSON file"},
			&cli.StringFlag{Name: "mosaic-name", Required: true, Usage: "mosaic series name from list-basemaps"},
			&cli.BoolFlag{Name: "dry-run", Usage: "validate inputs but do not submit"},
		},
		Action: func(c *cli.Context) error {
			sub, err := newSubmitter(cfg)
			if err != nil {
				return err
			}
			area, err := aoi.Load(c.String("aoi"))
			if err != nil {
				return err
			}
			res, err := sub.SubmitMosaic(c.Context, order.MosaicRequest{
				AOI:        area,
				MosaicName: c.String("mosaic-name"),
				DryRun:     c.Bool("dry-run"),
			})
			if err != nil {
				return err
			}
			if res.DryRun {
				fmt.Println("dry run: mosaic order not submitted")
			} else {
				fmt.Printf("mosaic order %s submitted\n", res.OrderID)
			}
			return nil
		},
	}
}

func listBasemapsCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list-basemaps",
		Usage: "list available basemap series",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "only series acquired on or after this date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "only series first acquired on or before this date (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			client, err := newAPIClient(cfg)
			if err != nil {
				return err
			}
			mosaics, err := client.ListMosaics(c.Context)
			if err != nil {
				return err
			}
			start, end := c.String("start"), c.String("end")
			for _, m := range mosaics {
				// RFC 3339 timestamps compare correctly as strings.
				if start != "" && m.LastAcquired < start {
					continue
				}
				if end != "" && m.FirstAcquired > end {
					continue
				}
				fmt.Printf("%s  %s .. %s\n", m.Name, m.FirstAcquired, m.LastAcquired)
			}
			return nil
		},
	}
}
