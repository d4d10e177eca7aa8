package purchase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineTaxExclusive(t *testing.T) {
	lt := ComputeLine(Line{
		Quantity:       dec("2"),
		UnitCost:       dec("100"),
		VATRatePercent: dec("21"),
	})
	require.Equal(t, "200.00", lt.Net.StringFixed(2))
	require.Equal(t, "42.00", lt.VAT.StringFixed(2))
	require.Equal(t, "242.00", lt.Total.StringFixed(2))
}

func TestComputeLineTaxInclusive(t *testing.T) {
	lt := ComputeLine(Line{
		Quantity:         dec("2"),
		UnitCost:         dec("100"),
		VATRatePercent:   dec("21"),
		PriceIncludesVAT: true,
	})
	require.Equal(t, "165.29", lt.Net.Round(2).StringFixed(2))
	require.Equal(t, "34.71", lt.VAT.Round(2).StringFixed(2))
	require.Equal(t, "200.00", lt.Total.StringFixed(2))
	// net and VAT rebuild the post-discount base
	require.Equal(t, "200.00", lt.Net.Add(lt.VAT).Round(2).StringFixed(2))
}

func TestComputeLineDiscountClamp(t *testing.T) {
	over := ComputeLine(Line{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21"), DiscountPercent: dec("150")})
	full := ComputeLine(Line{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21"), DiscountPercent: dec("100")})
	require.True(t, over.Net.Equal(full.Net))
	require.True(t, over.VAT.Equal(full.VAT))
	require.True(t, over.Total.IsZero())
}

func TestComputeLineNegativeInputsClampToZero(t *testing.T) {
	lt := ComputeLine(Line{Quantity: dec("-3"), UnitCost: dec("-10"), VATRatePercent: dec("-21"), OtherTaxes: dec("-5")})
	require.True(t, lt.Net.IsZero())
	require.True(t, lt.VAT.IsZero())
	require.True(t, lt.Total.IsZero())
}

func TestComputeLineOtherTaxesAddedAfterVAT(t *testing.T) {
	lt := ComputeLine(Line{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21"), OtherTaxes: dec("7.5")})
	require.Equal(t, "128.50", lt.Total.StringFixed(2))
}

func TestAggregateAdditivity(t *testing.T) {
	lines := []Line{
		{Quantity: dec("2"), UnitCost: dec("100"), VATRatePercent: dec("21")},
		{Quantity: dec("1"), UnitCost: dec("50"), VATRatePercent: dec("10.5")},
		{Quantity: dec("4"), UnitCost: dec("12.25"), VATRatePercent: dec("21"), DiscountPercent: dec("10")},
	}
	var wantNet, wantVAT decimal.Decimal
	for _, l := range lines {
		lt := ComputeLine(l)
		wantNet = wantNet.Add(lt.Net)
		wantVAT = wantVAT.Add(lt.VAT)
	}
	totals := Aggregate(lines, nil, decimal.Zero, decimal.Zero)
	require.True(t, totals.SubtotalNet.Equal(wantNet))
	require.True(t, totals.VATTotal.Equal(wantVAT))
}

func TestAggregateLegacyManualSourcing(t *testing.T) {
	lines := []Line{{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21")}}
	totals := Aggregate(lines, nil, dec("10"), dec("4"))
	require.Equal(t, "10.00", totals.Perceptions.StringFixed(2))
	require.Equal(t, "4.00", totals.Withholdings.StringFixed(2))
	require.Equal(t, "127.00", totals.GrandTotal.StringFixed(2))
}

func TestAggregateModeSwitch(t *testing.T) {
	lines := []Line{{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21")}}

	var sel Selection
	base := Aggregate(lines, sel.Records(), dec("10"), dec("4"))
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "PERC-IIBB", Kind: TaxKindPerception, Rate: dec("0.03")}, base.SubtotalNet, base.VATTotal))

	// attached records now drive the totals; manual amounts are inert
	configured := Aggregate(lines, sel.Records(), dec("10"), dec("4"))
	require.Equal(t, "3.00", configured.Perceptions.StringFixed(2))
	require.True(t, configured.Withholdings.IsZero())
	require.Equal(t, "124.00", configured.GrandTotal.StringFixed(2))

	// detaching the last record reverts to manual sourcing
	sel.Detach(0)
	reverted := Aggregate(lines, sel.Records(), dec("10"), dec("4"))
	require.Equal(t, "10.00", reverted.Perceptions.StringFixed(2))
	require.Equal(t, "127.00", reverted.GrandTotal.StringFixed(2))
}

func TestAggregateConfiguredOtherTaxes(t *testing.T) {
	lines := []Line{{Quantity: dec("1"), UnitCost: dec("100"), VATRatePercent: dec("21")}}
	recs := []TaxRecord{
		{Code: "OT-1", Kind: TaxKindOther, Amount: dec("2.50")},
		{Code: "RET-G", Kind: TaxKindWithholding, Amount: dec("1.00")},
	}
	totals := Aggregate(lines, recs, decimal.Zero, decimal.Zero)
	require.Equal(t, "2.50", totals.OtherTaxes.StringFixed(2))
	require.Equal(t, "1.00", totals.Withholdings.StringFixed(2))
	require.Equal(t, "122.50", totals.GrandTotal.StringFixed(2))
}

func TestEndToEndScenario(t *testing.T) {
	// one line with discount and flat extra, one attached perception at 3%
	items := []Item{{
		Description: "rollo etiquetas",
		Line: Line{
			Quantity:        dec("3"),
			UnitCost:        dec("50"),
			VATRatePercent:  dec("21"),
			DiscountPercent: dec("10"),
			OtherTaxes:      dec("5"),
		},
	}}
	lines := []Line{items[0].Line}

	lt := ComputeLine(items[0].Line)
	require.Equal(t, "135.00", lt.Net.StringFixed(2))
	require.Equal(t, "28.35", lt.VAT.StringFixed(2))
	require.Equal(t, "168.35", lt.Total.StringFixed(2))

	pre := Aggregate(lines, nil, decimal.Zero, decimal.Zero)
	var sel Selection
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "PERC-IIBB", Kind: TaxKindPerception, Rate: dec("0.03")}, pre.SubtotalNet, pre.VATTotal))
	require.Equal(t, "135.00", sel.Records()[0].Base.StringFixed(2))
	require.Equal(t, "4.05", sel.Records()[0].Amount.StringFixed(2))

	payload := BuildPayload(items, sel.Records(), decimal.Zero, decimal.Zero)
	require.InDelta(t, 135.00, payload.SubtotalNet, 1e-9)
	require.InDelta(t, 28.35, payload.VATTotal, 1e-9)
	require.InDelta(t, 4.05, payload.PerceptionsTotal, 1e-9)
	require.InDelta(t, 172.40, payload.GrandTotal, 1e-9)
	require.Len(t, payload.Impuestos, 1)
	require.Equal(t, "Percepcion", payload.Impuestos[0].Type)
	require.Len(t, payload.Detalles, 1)
	require.InDelta(t, 168.35, payload.Detalles[0].LineTotal, 1e-9)
}
