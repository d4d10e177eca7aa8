package purchase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseTaxKind(t *testing.T) {
	for raw, want := range map[string]TaxKind{
		"Percepcion": TaxKindPerception,
		"percepción": TaxKindPerception,
		"RETENCION":  TaxKindWithholding,
		"otro":       TaxKindOther,
		"iva":        TaxKindVAT,
		"IVA":        TaxKindVAT,
	} {
		got, err := ParseTaxKind(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := ParseTaxKind("ganancias-x")
	require.ErrorIs(t, err, ErrUnknownTaxKind)
}

func TestAttachRejectsVAT(t *testing.T) {
	var sel Selection
	err := sel.Attach(ConfiguredTax{Code: "IVA21", Kind: TaxKindVAT, Rate: dec("0.21")}, dec("100"), dec("21"))
	require.ErrorIs(t, err, ErrVATManaged)
	require.Zero(t, sel.Len())
}

func TestAttachRejectsDuplicateCode(t *testing.T) {
	var sel Selection
	cfg := ConfiguredTax{Code: "PERC-IIBB", Kind: TaxKindPerception, Rate: dec("0.03")}
	require.NoError(t, sel.Attach(cfg, dec("100"), dec("21")))
	err := sel.Attach(cfg, dec("100"), dec("21"))
	require.ErrorIs(t, err, ErrDuplicateTax)
	require.Equal(t, 1, sel.Len())

	// case-insensitive duplicate detection
	cfg.Code = "perc-iibb"
	require.ErrorIs(t, sel.Attach(cfg, dec("100"), dec("21")), ErrDuplicateTax)
}

func TestAttachSuggestedBase(t *testing.T) {
	var sel Selection
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "PERC", Kind: TaxKindPerception, Rate: dec("0.03")}, dec("100"), dec("21")))
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "RET", Kind: TaxKindWithholding, Rate: dec("0.02")}, dec("100"), dec("21")))
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "MUNI", Kind: TaxKindOther, Rate: dec("0.01")}, dec("100"), dec("21")))

	recs := sel.Records()
	// perceptions and withholdings suggest the net subtotal alone
	require.Equal(t, "100.00", recs[0].Base.StringFixed(2))
	require.Equal(t, "3.00", recs[0].Amount.StringFixed(2))
	require.Equal(t, "100.00", recs[1].Base.StringFixed(2))
	// other kinds suggest net plus VAT
	require.Equal(t, "121.00", recs[2].Base.StringFixed(2))
	require.Equal(t, "1.21", recs[2].Amount.StringFixed(2))
}

func TestSetBaseRecomputesAmountOnly(t *testing.T) {
	var sel Selection
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "PERC", Kind: TaxKindPerception, Rate: dec("0.03")}, dec("100"), dec("21")))
	sel.SetBase(0, dec("200"))
	rec := sel.Records()[0]
	require.Equal(t, "200.00", rec.Base.StringFixed(2))
	require.Equal(t, "6.00", rec.Amount.StringFixed(2))
	require.Equal(t, "0.03", rec.Rate.String())

	// out-of-range indexes are no-ops
	sel.SetBase(5, dec("1"))
	sel.Detach(-1)
	require.Equal(t, 1, sel.Len())
}

func TestBuildTaxLinesFiltersVAT(t *testing.T) {
	recs := []TaxRecord{
		{Code: "IVA21", Kind: TaxKindVAT, Base: dec("100"), BaseSet: true, Rate: dec("0.21"), Amount: dec("21")},
		{Code: "PERC", Kind: TaxKindPerception, Base: dec("100"), BaseSet: true, Rate: dec("0.03"), Amount: dec("3")},
	}
	out := BuildTaxLines(recs, dec("100"), dec("21"), decimal.Zero, decimal.Zero)
	require.Len(t, out, 1)
	require.Equal(t, TaxKindPerception, out[0].Kind)
	require.Equal(t, "100.00", out[0].Base.StringFixed(2))
}

func TestBuildTaxLinesDefaultBaseOnlyWhenUnset(t *testing.T) {
	// no explicit base: the default (net plus VAT) applies
	recs := []TaxRecord{{Code: "OT", Kind: TaxKindOther, Rate: dec("0.02")}}
	out := BuildTaxLines(recs, dec("100"), dec("21"), decimal.Zero, decimal.Zero)
	require.Len(t, out, 1)
	require.Equal(t, "121.00", out[0].Base.StringFixed(2))
	require.Equal(t, "2.42", out[0].Amount.StringFixed(2))

	// an explicit zero base is a choice, not an omission
	var sel Selection
	require.NoError(t, sel.Attach(ConfiguredTax{Code: "PERC", Kind: TaxKindPerception, Rate: dec("0.03")}, dec("100"), dec("21")))
	sel.SetBase(0, decimal.Zero)
	out = BuildTaxLines(sel.Records(), dec("100"), dec("21"), decimal.Zero, decimal.Zero)
	require.Len(t, out, 1)
	require.True(t, out[0].Base.IsZero())
	require.True(t, out[0].Amount.IsZero())
}

func TestBuildTaxLinesLegacyFallback(t *testing.T) {
	out := BuildTaxLines(nil, dec("100"), dec("21"), dec("12.345"), dec("0"))
	require.Len(t, out, 1)
	require.Equal(t, TaxKindPerception, out[0].Kind)
	require.Empty(t, out[0].Code)
	require.Equal(t, "121.00", out[0].Base.StringFixed(2))
	require.True(t, out[0].Rate.IsZero())
	require.Equal(t, "12.35", out[0].Amount.StringFixed(2))

	both := BuildTaxLines(nil, dec("100"), dec("21"), dec("5"), dec("2"))
	require.Len(t, both, 2)
	require.Equal(t, TaxKindWithholding, both[1].Kind)

	none := BuildTaxLines(nil, dec("100"), dec("21"), decimal.Zero, decimal.Zero)
	require.Empty(t, none)
}
