package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when BillingMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// DrawOutcome labels a retainer draw attempt
type DrawOutcome string

const (
	DrawApplied  DrawOutcome = "applied"
	DrawClamped  DrawOutcome = "clamped"
	DrawRejected DrawOutcome = "rejected"
	DrawFailed   DrawOutcome = "failed"
)

// BillingMetrics counts invoice, retainer and collections activity.
// All amounts are recorded in cents.
type BillingMetrics struct {
	invoicesCreated   *Counter
	invoicesPaid      *Counter
	collectionActions *Counter
	writtenOffCents   *Counter
	retainerDraws     *Counter
	retainerDrawCents *Counter
}

// NewBillingMetrics registers the billing instruments on meter.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	bm := &BillingMetrics{}
	specs := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&bm.invoicesCreated, "billing_invoice_created_total", "Invoices created", "{invoices}"},
		{&bm.invoicesPaid, "billing_invoice_paid_total", "Invoices marked paid", "{invoices}"},
		{&bm.collectionActions, "billing_collections_action_total", "Collections actions recorded", "{actions}"},
		{&bm.writtenOffCents, "billing_written_off_cents_total", "Amount written off", "{cents}"},
		{&bm.retainerDraws, "billing_retainer_draw_total", "Retainer draw attempts", "{draws}"},
		{&bm.retainerDrawCents, "billing_retainer_draw_cents_total", "Amount drawn from retainers", "{cents}"},
	}
	for _, s := range specs {
		c, err := NewCounter(meter, s.name, s.description, s.unit)
		if err != nil {
			return nil, err
		}
		*s.target = c
	}
	return bm, nil
}

// RecordInvoiceCreated counts a new invoice
func (bm *BillingMetrics) RecordInvoiceCreated(ctx context.Context, tenantID uuid.UUID) {
	if bm == nil {
		return
	}
	bm.invoicesCreated.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordInvoicePaid counts a payment
func (bm *BillingMetrics) RecordInvoicePaid(ctx context.Context, tenantID uuid.UUID, method string) {
	if bm == nil {
		return
	}
	bm.invoicesPaid.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(method),
	)
}

// RecordCollectionsAction counts an action together with the tier it ran at
func (bm *BillingMetrics) RecordCollectionsAction(ctx context.Context, tenantID uuid.UUID, action, tier string) {
	if bm == nil {
		return
	}
	bm.collectionActions.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrAction.String(action),
		AttrAgingTier.String(tier),
	)
}

// RecordWriteOff adds the written-off amount
func (bm *BillingMetrics) RecordWriteOff(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.writtenOffCents.Add(ctx, toCents(amount), AttrTenantID.String(tenantID.String()))
}

// RecordRetainerDraw counts a draw attempt and, when applied, its amount
func (bm *BillingMetrics) RecordRetainerDraw(ctx context.Context, tenantID uuid.UUID, outcome DrawOutcome, amount decimal.Decimal) {
	if bm == nil {
		return
	}
	tenant := AttrTenantID.String(tenantID.String())
	bm.retainerDraws.Inc(ctx, tenant, AttrDrawOutcome.String(string(outcome)))
	if outcome == DrawApplied || outcome == DrawClamped {
		bm.retainerDrawCents.Add(ctx, toCents(amount), tenant)
	}
}

func toCents(amount decimal.Decimal) int64 {
	return valueobject.NewMoneyUSD(amount).Cents()
}
