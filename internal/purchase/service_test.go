package purchase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
)

type fakeStore struct {
	records map[uuid.UUID]Record
	items   map[uuid.UUID][]ItemRecord
	taxes   map[uuid.UUID][]TaxLineRecord
	creates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[uuid.UUID]Record{},
		items:   map[uuid.UUID][]ItemRecord{},
		taxes:   map[uuid.UUID][]TaxLineRecord{},
	}
}

func (s *fakeStore) put(rec Record, items []ItemRecord, taxes []TaxLineRecord) Record {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	s.items[rec.ID] = items
	s.taxes[rec.ID] = taxes
	return rec
}

func (s *fakeStore) Create(_ context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error) {
	rec.ID = uuid.New()
	s.creates++
	return s.put(rec, items, taxes), nil
}

func (s *fakeStore) Replace(_ context.Context, rec Record, items []ItemRecord, taxes []TaxLineRecord) (Record, error) {
	if _, ok := s.records[rec.ID]; !ok {
		return Record{}, pgx.ErrNoRows
	}
	return s.put(rec, items, taxes), nil
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (Record, []ItemRecord, []TaxLineRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return Record{}, nil, nil, pgx.ErrNoRows
	}
	return rec, s.items[id], s.taxes[id], nil
}

func (s *fakeStore) List(_ context.Context, _, _ int) ([]Record, error) {
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

type fakeCatalog map[string]ConfiguredTax

func (c fakeCatalog) FindConfigured(_ context.Context, code string) (ConfiguredTax, bool, error) {
	for k, tax := range c {
		if strings.EqualFold(k, code) {
			return tax, true, nil
		}
	}
	return ConfiguredTax{}, false, nil
}

type fakeSuppliers map[uuid.UUID]bool

func (s fakeSuppliers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return s[id], nil
}

type fakeBus struct {
	topics     []string
	aggregates []uuid.UUID
}

func (b *fakeBus) Emit(_ context.Context, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	b.topics = append(b.topics, topic)
	b.aggregates = append(b.aggregates, aggregateID)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func newTestService(store *fakeStore, catalog fakeCatalog, suppliers fakeSuppliers, bus *fakeBus) *Service {
	return &Service{
		Store:     store,
		Suppliers: suppliers,
		Catalog:   catalog,
		Bus:       bus,
		Logger:    zerolog.Nop(),
	}
}

func scenarioInput(supplierID uuid.UUID) SubmitInput {
	return SubmitInput{
		SupplierID:  supplierID,
		PaymentTerm: PaymentTermCash,
		Items: []Item{
			{
				Description: "Arroz 1kg",
				Line: Line{
					Quantity:        dec("3"),
					UnitCost:        dec("50"),
					VATRatePercent:  dec("21"),
					DiscountPercent: dec("10"),
					OtherTaxes:      dec("5"),
				},
			},
		},
		Taxes: []TaxSelectionInput{{Code: "perc-iibb"}},
	}
}

func scenarioCatalog() fakeCatalog {
	return fakeCatalog{
		"perc-iibb": {Code: "perc-iibb", Kind: TaxKindPerception, Description: "Percepcion IIBB", Rate: dec("0.03")},
		"ret-gan":   {Code: "ret-gan", Kind: TaxKindWithholding, Description: "Retencion ganancias", Rate: dec("0.02")},
		"iva-21":    {Code: "iva-21", Kind: TaxKindVAT, Rate: dec("0.21")},
	}
}

func TestCreatePersistsComputedTotals(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	supplierID := uuid.New()
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{supplierID: true}, bus)

	rec, payload, err := svc.Create(context.Background(), scenarioInput(supplierID))
	require.NoError(t, err)

	require.True(t, rec.SubtotalNet.Equal(dec("135")), "subtotal %s", rec.SubtotalNet)
	require.True(t, rec.VATTotal.Equal(dec("28.35")), "vat %s", rec.VATTotal)
	require.True(t, rec.PerceptionsTotal.Equal(dec("4.05")), "perceptions %s", rec.PerceptionsTotal)
	require.True(t, rec.GrandTotal.Equal(dec("172.4")), "grand %s", rec.GrandTotal)

	require.InDelta(t, 172.40, payload.GrandTotal, 0.001)
	require.Len(t, payload.Impuestos, 1)
	require.InDelta(t, 135, payload.Impuestos[0].Base, 0.001)
	require.InDelta(t, 4.05, payload.Impuestos[0].Amount, 0.001)

	items := store.items[rec.ID]
	require.Len(t, items, 1)
	require.True(t, items[0].LineTotal.Equal(dec("168.35")), "line total %s", items[0].LineTotal)

	require.Equal(t, []string{events.TopicPurchaseCreated}, bus.topics)
	require.Equal(t, rec.ID, bus.aggregates[0])
}

func TestCreateRequiresKnownSupplier(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{}, &fakeBus{})

	_, _, err := svc.Create(context.Background(), scenarioInput(uuid.New()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Zero(t, store.creates)
}

func TestCreateRejectsUnknownTaxCode(t *testing.T) {
	supplierID := uuid.New()
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	input := scenarioInput(supplierID)
	input.Taxes = []TaxSelectionInput{{Code: "no-such-tax"}}
	_, _, err := svc.Create(context.Background(), input)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateRejectsVATAndDuplicateAttachments(t *testing.T) {
	supplierID := uuid.New()
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	input := scenarioInput(supplierID)
	input.Taxes = []TaxSelectionInput{{Code: "iva-21"}}
	_, _, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	require.True(t, common.IsAppError(err))

	input.Taxes = []TaxSelectionInput{{Code: "perc-iibb"}, {Code: "PERC-IIBB"}}
	_, _, err = svc.Create(context.Background(), input)
	require.Error(t, err)
	require.True(t, common.IsAppError(err))
}

func TestCreateRequiresDueDateForDeferredTerms(t *testing.T) {
	supplierID := uuid.New()
	store := newFakeStore()
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	input := scenarioInput(supplierID)
	input.PaymentTerm = PaymentTermCredit
	_, _, err := svc.Create(context.Background(), input)
	require.Error(t, err)

	due := time.Now().AddDate(0, 1, 0)
	input.DueDate = &due
	_, _, err = svc.Create(context.Background(), input)
	require.NoError(t, err)
}

func TestCreateBaseOverrideRecomputesAmount(t *testing.T) {
	supplierID := uuid.New()
	store := newFakeStore()
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	input := scenarioInput(supplierID)
	base := dec("1000")
	input.Taxes[0].Base = &base
	rec, _, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	taxes := store.taxes[rec.ID]
	require.Len(t, taxes, 1)
	require.True(t, taxes[0].Base.Equal(dec("1000")))
	require.True(t, taxes[0].Amount.Equal(dec("30")), "amount %s", taxes[0].Amount)
}

func TestManualAmountsApplyOnlyWithoutAttachedTaxes(t *testing.T) {
	supplierID := uuid.New()
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	input := scenarioInput(supplierID)
	input.Taxes = nil
	input.ManualPerceptions = dec("10")
	input.ManualWithholdings = dec("4")
	rec, _, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.True(t, rec.PerceptionsTotal.Equal(dec("10")))
	require.True(t, rec.WithholdingsTotal.Equal(dec("4")))
	require.True(t, rec.GrandTotal.Equal(dec("174.35")), "grand %s", rec.GrandTotal)

	input.Taxes = []TaxSelectionInput{{Code: "perc-iibb"}}
	rec, _, err = svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.True(t, rec.PerceptionsTotal.Equal(dec("4.05")))
	require.True(t, rec.WithholdingsTotal.IsZero())
}

func TestUpdateUnknownPurchaseIsNotFound(t *testing.T) {
	supplierID := uuid.New()
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{supplierID: true}, &fakeBus{})

	_, _, err := svc.Update(context.Background(), uuid.New(), scenarioInput(supplierID))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestUpdateReplacesRowsAndEmits(t *testing.T) {
	supplierID := uuid.New()
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{supplierID: true}, bus)

	rec, _, err := svc.Create(context.Background(), scenarioInput(supplierID))
	require.NoError(t, err)

	input := scenarioInput(supplierID)
	input.Items[0].Quantity = dec("6")
	updated, _, err := svc.Update(context.Background(), rec.ID, input)
	require.NoError(t, err)
	require.Equal(t, rec.ID, updated.ID)
	require.True(t, updated.SubtotalNet.Equal(dec("270")), "subtotal %s", updated.SubtotalNet)
	require.Equal(t, []string{events.TopicPurchaseCreated, events.TopicPurchaseUpdated}, bus.topics)
}

func TestPreviewDoesNotPersistOrEmit(t *testing.T) {
	supplierID := uuid.New()
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, scenarioCatalog(), fakeSuppliers{supplierID: true}, bus)

	payload, err := svc.Preview(context.Background(), scenarioInput(supplierID))
	require.NoError(t, err)
	require.InDelta(t, 172.40, payload.GrandTotal, 0.001)
	require.Zero(t, store.creates)
	require.Empty(t, bus.topics)
}

func TestPreviewRejectsEmptyAndNonPositiveLines(t *testing.T) {
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{}, &fakeBus{})

	_, err := svc.Preview(context.Background(), SubmitInput{})
	require.True(t, common.IsAppError(err))

	input := scenarioInput(uuid.New())
	input.Items[0].Quantity = decimal.Zero
	_, err = svc.Preview(context.Background(), input)
	require.True(t, common.IsAppError(err))
}

func TestGetMapsMissingRows(t *testing.T) {
	svc := newTestService(newFakeStore(), scenarioCatalog(), fakeSuppliers{}, &fakeBus{})

	_, _, _, err := svc.Get(context.Background(), uuid.New())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
	require.False(t, errors.Is(err, pgx.ErrNoRows))
}
