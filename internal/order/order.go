// Package order turns a search-and-select run into a submitted order
// and a ledger entry. The ledger is written only after the remote
// service confirms acceptance.
package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/aoi"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/bundle"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/ledger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

// API is the slice of the imagery client the submitter needs.
type API interface {
	SearchScenes(ctx context.Context, q planet.SearchQuery) ([]planet.Scene, error)
	SubmitOrder(ctx context.Context, req planet.OrderRequest) (string, error)
	SubmitMosaicOrder(ctx context.Context, req planet.MosaicOrderRequest) (string, error)
}

// Request describes one scene order for one AOI over one date range.
type Request struct {
	AOI            *aoi.AOI
	Range          daterange.Range
	Cadence        selector.Cadence
	MinCoveragePct float64
	CloudCoverMax  float64
	BundleOverride string // explicit bundle name, empty for defaults
	EightBand      bool
	BatchID        string
	DryRun         bool
}

// MosaicRequest describes one composite order for one AOI.
type MosaicRequest struct {
	AOI        *aoi.AOI
	MosaicName string
	BatchID    string
	DryRun     bool
}

// Result reports what a submission did (or would do, under dry-run).
type Result struct {
	OrderID        string
	SceneIDs       []string
	Winners        []selector.Candidate
	ScenesFound    int
	ScenesSelected int
	Bundle         bundle.Choice
	QuotaSqKm      float64
	DryRun         bool
}

// Submitter runs the search, select, submit, record pipeline.
type Submitter struct {
	api     API
	ledger  *ledger.Ledger
	catalog *bundle.Catalog
	log     *slog.Logger
}

// NewSubmitter wires a submitter.
func NewSubmitter(api API, led *ledger.Ledger, catalog *bundle.Catalog) *Submitter {
	return &Submitter{
		api:     api,
		ledger:  led,
		catalog: catalog,
		log:     logging.Component("order"),
	}
}

// Submit searches the catalog, selects winners per cadence interval
// and submits a clip order for them. Under dry-run it stops after
// selection and reports what would have been ordered. The ledger is
// appended only on a confirmed accept.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Result, error) {
	choice, err := s.catalog.Resolve(bundle.Request{
		Override:  req.BundleOverride,
		EightBand: req.EightBand,
		StartYear: req.Range.Start.Year(),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve bundle: %w", err)
	}

	log := s.log.With("aoi", req.AOI.Name)
	log.Info("searching catalog",
		"range", req.Range.String(),
		"bundle", choice.Name,
		"search_asset", choice.SearchAsset)

	scenes, err := s.api.SearchScenes(ctx, planet.SearchQuery{
		Geometry:      req.AOI.Geometry,
		Start:         req.Range.Start,
		End:           req.Range.End,
		CloudCoverMax: req.CloudCoverMax,
		AssetType:     choice.SearchAsset,
	})
	if err != nil {
		return nil, err
	}

	sel, err := selector.Select(req.AOI, scenes, selector.Params{
		Cadence:        req.Cadence,
		MinCoveragePct: req.MinCoveragePct,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		SceneIDs:       sel.SceneIDs(),
		Winners:        sel.Winners,
		ScenesFound:    sel.TotalFound,
		ScenesSelected: len(sel.Winners),
		Bundle:         choice,
		QuotaSqKm:      float64(len(sel.Winners)) * req.AOI.AreaSqKm,
		DryRun:         req.DryRun,
	}

	if req.DryRun {
		log.Info("dry run, order not submitted",
			"scenes_found", result.ScenesFound,
			"scenes_selected", result.ScenesSelected,
			"quota_sqkm", result.QuotaSqKm)
		return result, nil
	}

	orderID, err := s.api.SubmitOrder(ctx, planet.OrderRequest{
		Name:          orderName(req.AOI.Name, req.Range),
		ItemIDs:       result.SceneIDs,
		ProductBundle: choice.OrderBundle,
		Clip:          req.AOI.Geometry,
	})
	if err != nil {
		return nil, err
	}
	result.OrderID = orderID

	rec := ledger.Record{
		OrderID:      orderID,
		AOIName:      req.AOI.Name,
		OrderType:    ledger.OrderTypeScene,
		StartDate:    req.Range.Start.Format(daterange.DateLayout),
		EndDate:      req.Range.End.Format(daterange.DateLayout),
		Bands:        choice.Bands,
		SearchBundle: choice.SearchAsset,
		OrderBundle:  choice.OrderBundle,
		AreaSqKm:     req.AOI.AreaSqKm,
		BatchID:      req.BatchID,
	}
	if err := s.ledger.Append(rec); err != nil {
		return nil, fmt.Errorf("order %s accepted but ledger append failed: %w", orderID, err)
	}

	log.Info("order submitted",
		"order_id", orderID,
		"scenes", result.ScenesSelected,
		"quota_sqkm", result.QuotaSqKm)
	return result, nil
}

// SubmitMosaic submits a composite order clipped to the AOI.
func (s *Submitter) SubmitMosaic(ctx context.Context, req MosaicRequest) (*Result, error) {
	result := &Result{DryRun: req.DryRun, QuotaSqKm: req.AOI.AreaSqKm}
	if req.DryRun {
		s.log.Info("dry run, mosaic order not submitted",
			"aoi", req.AOI.Name, "mosaic", req.MosaicName)
		return result, nil
	}

	orderID, err := s.api.SubmitMosaicOrder(ctx, planet.MosaicOrderRequest{
		Name:       req.AOI.Name + "_" + req.MosaicName,
		MosaicName: req.MosaicName,
		Geometry:   req.AOI.Geometry,
	})
	if err != nil {
		return nil, err
	}
	result.OrderID = orderID

	rec := ledger.Record{
		OrderID:    orderID,
		AOIName:    req.AOI.Name,
		OrderType:  ledger.OrderTypeComposite,
		MosaicName: req.MosaicName,
		AreaSqKm:   req.AOI.AreaSqKm,
		BatchID:    req.BatchID,
	}
	if err := s.ledger.Append(rec); err != nil {
		return nil, fmt.Errorf("order %s accepted but ledger append failed: %w", orderID, err)
	}

	s.log.Info("mosaic order submitted", "order_id", orderID, "mosaic", req.MosaicName)
	return result, nil
}

func orderName(aoiName string, r daterange.Range) string {
	return fmt.Sprintf("%s_%s_%s",
		aoiName,
		r.Start.Format(daterange.DateLayout),
		r.End.Format(daterange.DateLayout))
}
