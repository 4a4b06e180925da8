package settlement

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
)

// DashboardConfig contains configuration for the dashboard service
type DashboardConfig struct {
	AllocationLimit int
	EditEnabled     bool
	Policy          settlement.AllocationPolicy
}

// DashboardService renders dashboard views and runs the allocation
// workflow against freshly loaded data.
type DashboardService struct {
	proxy  *ProxyService
	config DashboardConfig
	logger *zap.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(proxy *ProxyService, config DashboardConfig, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		proxy:  proxy,
		config: config,
		logger: logger,
	}
}

func (s *DashboardService) options() settlement.ViewOptions {
	return settlement.ViewOptions{
		AllocationLimit: s.config.AllocationLimit,
		EditEnabled:     s.config.EditEnabled,
	}
}

// LoadDataset loads open invoices, open payments and allocations in
// parallel. An allocations failure degrades to an empty list; the other two
// fail the load.
func (s *DashboardService) LoadDataset(ctx context.Context, credential string) (settlement.Dataset, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dashboard", "load_dataset")
	defer span.End()

	var data settlement.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invoices, err := s.proxy.ListOpenInvoices(gctx, credential)
		data.Invoices = invoices
		return err
	})
	g.Go(func() error {
		payments, err := s.proxy.ListOpenPayments(gctx, credential)
		data.Payments = payments
		return err
	})
	g.Go(func() error {
		allocations, err := s.proxy.ListAllocations(gctx, credential)
		if err != nil {
			logger.LOr(ctx, s.logger).Warn("Allocations unavailable, showing none", zap.Error(err))
			allocations = []settlement.Allocation{}
		}
		data.Allocations = allocations
		return nil
	})
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return settlement.Dataset{}, err
	}
	return data, nil
}

// LoadView loads the data and renders it for the given state, applying a
// sort toggle first when one is given.
func (s *DashboardService) LoadView(ctx context.Context, credential string, input ViewInput) (*settlement.View, error) {
	state, err := s.prepareState(input)
	if err != nil {
		return nil, err
	}

	data, err := s.LoadDataset(ctx, credential)
	if err != nil {
		return nil, err
	}
	view := settlement.BuildView(state, data, s.options())
	return &view, nil
}

func (s *DashboardService) prepareState(input ViewInput) (settlement.ViewState, error) {
	state := input.State.WithDefaults()
	if err := state.Validate(); err != nil {
		return state, err
	}
	if input.ToggleSort != nil {
		var err error
		state, err = state.ToggleSort(input.ToggleSort.Table, input.ToggleSort.Column)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

// Allocate pairs the selected invoice and payment of state. The pairing is
// prepared against freshly loaded records; a rejected pairing never reaches
// the webservice. On success the data is reloaded and the view returned
// with the selection cleared.
func (s *DashboardService) Allocate(ctx context.Context, credential string, state settlement.ViewState) (*AllocateResult, error) {
	if !s.config.EditEnabled {
		return nil, settlement.ErrEditDisabled
	}
	state = state.WithDefaults()
	if err := state.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "dashboard", "allocate",
		attribute.String(telemetry.SpanAttrInvoiceID, state.Selection.InvoiceID),
		attribute.String(telemetry.SpanAttrPaymentID, state.Selection.PaymentID))
	defer span.End()

	data, err := s.LoadDataset(ctx, credential)
	if err != nil {
		return nil, err
	}

	pairing := settlement.NewPairing(state.Selection, data.Invoices, data.Payments).
		Prepare(state.Amount, s.config.Policy)
	if pairing.Phase == settlement.PhaseFailed {
		span.SetAttributes(attribute.String(telemetry.SpanAttrPhase, string(pairing.Phase)))
		logger.LOr(ctx, s.logger).Info("Allocation rejected",
			zap.String("invoice_id", state.Selection.InvoiceID),
			zap.String("payment_id", state.Selection.PaymentID),
			zap.Error(pairing.Err))
		return &AllocateResult{Pairing: pairing}, nil
	}

	pairing.Submit(ctx, func(ctx context.Context, req settlement.AllocationRequest) error {
		_, err := s.proxy.Submit(ctx, credential, req)
		return err
	})
	span.SetAttributes(attribute.String(telemetry.SpanAttrPhase, string(pairing.Phase)))
	if pairing.Phase != settlement.PhaseSucceeded {
		return &AllocateResult{Pairing: pairing}, nil
	}

	reloaded, err := s.LoadDataset(ctx, credential)
	if err != nil {
		// The allocation exists upstream; only the refresh failed.
		return &AllocateResult{Pairing: pairing}, nil
	}
	view := settlement.BuildView(state.ClearSelection(), reloaded, s.options())
	return &AllocateResult{Pairing: pairing, View: &view}, nil
}
