package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/erp/settlement/internal/infrastructure/upstream"
)

// ProxyService maps dashboard operations onto webservice calls. Records are
// normalized once here; callers never see upstream field variants.
type ProxyService struct {
	upstream Upstream
	metrics  *telemetry.UpstreamMetrics
	logger   *zap.Logger
}

// NewProxyService creates a new proxy service. metrics may be nil.
func NewProxyService(up Upstream, metrics *telemetry.UpstreamMetrics, logger *zap.Logger) *ProxyService {
	return &ProxyService{
		upstream: up,
		metrics:  metrics,
		logger:   logger,
	}
}

// decodeList fetches endpoint and normalizes its elements.
func decodeList[T any](ctx context.Context, s *ProxyService, credential, endpoint string, decode func([]json.RawMessage) ([]T, int)) ([]T, error) {
	raw, err := s.upstream.GetList(ctx, endpoint, credential)
	if err != nil {
		return nil, err
	}
	records, dropped := decode(raw)
	if dropped > 0 {
		s.metrics.RecordDropped(ctx, endpoint, dropped)
		s.log(ctx).Warn("Dropped malformed upstream records",
			zap.String("endpoint", endpoint),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(records)))
	}
	return records, nil
}

func (s *ProxyService) log(ctx context.Context) *zap.Logger {
	return logger.LOr(ctx, s.logger)
}

// fail logs the upstream detail and returns the error a caller may see.
func (s *ProxyService) fail(ctx context.Context, message string, err error) error {
	var de *settlement.DomainError
	if errors.As(err, &de) {
		return err
	}

	fields := []zap.Field{zap.Error(err)}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		fields = append(fields,
			zap.String("endpoint", ue.Endpoint),
			zap.Int("status", ue.StatusCode),
			zap.String("body", ue.Body))
	}
	s.log(ctx).Error(message, fields...)

	switch {
	case upstream.IsUnauthorized(err):
		return settlement.ErrAuthenticationRequired.WithCause(err)
	case upstream.IsUnavailable(err):
		return settlement.ErrUpstreamUnavailable.WithCause(err)
	default:
		return settlement.OperationFailed(message, err)
	}
}

// ListInvoices returns every invoice.
func (s *ProxyService) ListInvoices(ctx context.Context, credential string) ([]settlement.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_invoices")
	defer span.End()

	invoices, err := decodeList(ctx, s, credential, EndpointInvoices, settlement.DecodeInvoices)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch invoices", err)
	}
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(invoices)))
	return invoices, nil
}

// ListOpenInvoices returns invoices with an outstanding balance. When the
// webservice has no open-invoices endpoint the full list is filtered here.
func (s *ProxyService) ListOpenInvoices(ctx context.Context, credential string) ([]settlement.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_open_invoices")
	defer span.End()

	invoices, err := decodeList(ctx, s, credential, EndpointOpenInvoices, settlement.DecodeInvoices)
	if err == nil {
		s.log(ctx).Debug("Loaded open invoices", zap.Int("count", len(invoices)))
		span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(invoices)))
		return invoices, nil
	}
	if !upstream.IsNotFound(err) {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch invoices", err)
	}

	s.log(ctx).Info("Open invoices endpoint not found, falling back to full list",
		zap.String("endpoint", EndpointOpenInvoices))
	s.metrics.RecordFallback(ctx, EndpointOpenInvoices, EndpointInvoices)
	span.SetAttributes(attribute.String(telemetry.SpanAttrFallback, EndpointInvoices))

	all, err := decodeList(ctx, s, credential, EndpointInvoices, settlement.DecodeInvoices)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch invoices", err)
	}
	open := settlement.OpenInvoices(all)
	s.log(ctx).Info("Filtered open invoices",
		zap.Int("open", len(open)),
		zap.Int("total", len(all)))
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(open)))
	return open, nil
}

// ListUnpaidInvoices always filters the full invoice list. Kept for older
// dashboards.
func (s *ProxyService) ListUnpaidInvoices(ctx context.Context, credential string) ([]settlement.Invoice, error) {
	all, err := s.ListInvoices(ctx, credential)
	if err != nil {
		return nil, err
	}
	return settlement.OpenInvoices(all), nil
}

// ListPayments returns every payment. Installations without a payment
// listing get payments synthesized from allocation records; their
// unallocated amounts are unknown.
func (s *ProxyService) ListPayments(ctx context.Context, credential string) ([]settlement.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_payments")
	defer span.End()

	payments, err := decodeList(ctx, s, credential, EndpointPayments, settlement.DecodePayments)
	if err == nil {
		span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(payments)))
		return payments, nil
	}
	if !upstream.IsNotFound(err) {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch payments", err)
	}

	s.log(ctx).Info("Payments endpoint not found, deriving payments from allocations",
		zap.String("endpoint", EndpointPayments))
	s.metrics.RecordFallback(ctx, EndpointPayments, EndpointAllocations)
	span.SetAttributes(attribute.String(telemetry.SpanAttrFallback, EndpointAllocations))

	allocations, err := decodeList(ctx, s, credential, EndpointAllocations, settlement.DecodeAllocations)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch payments", err)
	}
	derived := settlement.DerivePaymentsFromAllocations(allocations)
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(derived)))
	return derived, nil
}

// ListOpenPayments returns payments with an unallocated remainder, falling
// back to filtering the result of ListPayments.
func (s *ProxyService) ListOpenPayments(ctx context.Context, credential string) ([]settlement.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_open_payments")
	defer span.End()

	payments, err := decodeList(ctx, s, credential, EndpointOpenPayments, settlement.DecodePayments)
	if err == nil {
		s.log(ctx).Debug("Loaded open payments", zap.Int("count", len(payments)))
		span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(payments)))
		return payments, nil
	}
	if !upstream.IsNotFound(err) {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch payments", err)
	}

	s.log(ctx).Info("Open payments endpoint not found, falling back to full list",
		zap.String("endpoint", EndpointOpenPayments))
	s.metrics.RecordFallback(ctx, EndpointOpenPayments, EndpointPayments)
	span.SetAttributes(attribute.String(telemetry.SpanAttrFallback, EndpointPayments))

	// ListPayments handles the installations that have no payment listing
	// either.
	all, err := s.ListPayments(ctx, credential)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	open := settlement.OpenPayments(all)
	s.log(ctx).Info("Filtered open payments",
		zap.Int("open", len(open)),
		zap.Int("total", len(all)))
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(open)))
	return open, nil
}

// ListUnallocatedPayments always filters the full payment list. Kept for
// older dashboards.
func (s *ProxyService) ListUnallocatedPayments(ctx context.Context, credential string) ([]settlement.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_unallocated_payments")
	defer span.End()

	all, err := decodeList(ctx, s, credential, EndpointPayments, settlement.DecodePayments)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch payments", err)
	}
	return settlement.OpenPayments(all), nil
}

// ListAllocations returns every allocation record.
func (s *ProxyService) ListAllocations(ctx context.Context, credential string) ([]settlement.Allocation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_allocations")
	defer span.End()

	allocations, err := decodeList(ctx, s, credential, EndpointAllocations, settlement.DecodeAllocations)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to fetch allocations", err)
	}
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRecords, len(allocations)))
	return allocations, nil
}

// ListCounterparties returns the counterparty reference list as the
// webservice shapes it.
func (s *ProxyService) ListCounterparties(ctx context.Context, credential string) ([]json.RawMessage, error) {
	return s.listReference(ctx, credential, EndpointCounterparties, "Failed to fetch counterparties")
}

// ListCompanies returns the company reference list as the webservice
// shapes it.
func (s *ProxyService) ListCompanies(ctx context.Context, credential string) ([]json.RawMessage, error) {
	return s.listReference(ctx, credential, EndpointCompanies, "Failed to fetch companies")
}

func (s *ProxyService) listReference(ctx context.Context, credential, endpoint, message string) ([]json.RawMessage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "list_reference",
		attribute.String(telemetry.SpanAttrEndpoint, endpoint))
	defer span.End()

	items, err := s.upstream.GetList(ctx, endpoint, credential)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, message, err)
	}
	return items, nil
}

type createAllocationPayload struct {
	InvoiceID string      `json:"invoiceId"`
	PaymentID string      `json:"paymentId"`
	Amount    json.Number `json:"amount"`
}

type deleteAllocationPayload struct {
	AllocationID string `json:"allocationId"`
}

// ParseAmount reads a caller-supplied amount. Blank or malformed text is
// an invalid (null) amount.
func ParseAmount(s string) decimal.NullDecimal {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

// CreateAllocation validates the input and creates the allocation
// upstream. Invalid input is rejected before any upstream call.
func (s *ProxyService) CreateAllocation(ctx context.Context, credential string, input CreateAllocationInput) (json.RawMessage, error) {
	req, err := settlement.NewAllocationRequest(input.InvoiceID, input.PaymentID, ParseAmount(input.Amount))
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, credential, req)
}

// Submit sends a validated create command.
func (s *ProxyService) Submit(ctx context.Context, credential string, req settlement.AllocationRequest) (json.RawMessage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "create_allocation",
		attribute.String(telemetry.SpanAttrInvoiceID, req.InvoiceID),
		attribute.String(telemetry.SpanAttrPaymentID, req.PaymentID))
	defer span.End()

	raw, err := s.upstream.Post(ctx, EndpointCreateAllocation, credential, createAllocationPayload{
		InvoiceID: req.InvoiceID,
		PaymentID: req.PaymentID,
		Amount:    json.Number(req.Amount.String()),
	})
	if err == nil {
		err = checkWriteResult(EndpointCreateAllocation, raw)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to create allocation", err)
	}

	s.log(ctx).Info("Allocation created",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("payment_id", req.PaymentID),
		zap.String("amount", req.Amount.String()))
	return raw, nil
}

// DeleteAllocation deletes one allocation upstream.
func (s *ProxyService) DeleteAllocation(ctx context.Context, credential, allocationID string) (json.RawMessage, error) {
	allocationID = strings.TrimSpace(allocationID)
	if allocationID == "" {
		return nil, settlement.ErrMissingAllocationID
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "proxy", "delete_allocation",
		attribute.String("allocation_id", allocationID))
	defer span.End()

	raw, err := s.upstream.Post(ctx, EndpointDeleteAllocation, credential, deleteAllocationPayload{AllocationID: allocationID})
	if err == nil {
		err = checkWriteResult(EndpointDeleteAllocation, raw)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "Failed to delete allocation", err)
	}

	s.log(ctx).Info("Allocation deleted", zap.String("allocation_id", allocationID))
	return raw, nil
}

type writeResult struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// checkWriteResult treats a 2xx answer reporting success=false as a failure.
// Some webservice versions report a missing allocation that way.
func checkWriteResult(endpoint string, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var res writeResult
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil
	}
	if res.Success != nil && !*res.Success {
		detail := res.Error
		if detail == "" {
			detail = res.Message
		}
		return &upstream.Error{Endpoint: endpoint, StatusCode: 200, Body: detail, Err: errors.New("upstream reported failure")}
	}
	return nil
}
