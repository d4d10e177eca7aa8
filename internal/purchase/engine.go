package purchase

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Line carries the raw inputs for a single purchase row. Quantities and
// amounts arrive already parsed; negative values are clamped, never
// rejected, so the calculator stays total.
type Line struct {
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal
	VATRatePercent   decimal.Decimal
	PriceIncludesVAT bool
	DiscountPercent  decimal.Decimal
	OtherTaxes       decimal.Decimal
}

// LineTotals holds the derived amounts for one line. Net and VAT always
// add up to the post-discount base, so totals stay consistent whether the
// unit cost carried VAT or not.
type LineTotals struct {
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Total decimal.Decimal
}

// Totals aggregates every line plus the attached or manual tax amounts.
type Totals struct {
	SubtotalNet  decimal.Decimal
	VATTotal     decimal.Decimal
	LinesTotal   decimal.Decimal
	Perceptions  decimal.Decimal
	Withholdings decimal.Decimal
	OtherTaxes   decimal.Decimal
	GrandTotal   decimal.Decimal
}

// ComputeLine derives net, VAT and total for a single line. The function
// is pure and deterministic: identical inputs produce identical outputs.
func ComputeLine(l Line) LineTotals {
	qty := clampNonNegative(l.Quantity)
	unit := clampNonNegative(l.UnitCost)
	rate := clampNonNegative(l.VATRatePercent)
	discount := clampPercent(l.DiscountPercent)
	other := clampNonNegative(l.OtherTaxes)

	gross := unit.Mul(qty)
	base := gross.Mul(one.Sub(discount.Div(hundred)))

	var net, vat decimal.Decimal
	if l.PriceIncludesVAT {
		factor := one.Add(rate.Div(hundred))
		if factor.IsPositive() {
			net = base.Div(factor)
		} else {
			// unreachable after clamping, kept as a divide-by-zero guard
			net = base
		}
		vat = base.Sub(net)
	} else {
		net = base
		vat = net.Mul(rate.Div(hundred))
	}
	return LineTotals{
		Net:   net,
		VAT:   vat,
		Total: net.Add(vat).Add(other),
	}
}

// Aggregate sums all lines and resolves the perception/withholding source.
// With no attached tax records the manual header amounts apply ("legacy"
// sourcing); the moment at least one record is attached the manual fields
// become inert and the attached records drive the totals. The sourcing is
// re-derived on every call from the record list alone.
func Aggregate(lines []Line, selected []TaxRecord, manualPerceptions, manualWithholdings decimal.Decimal) Totals {
	var t Totals
	for _, line := range lines {
		lt := ComputeLine(line)
		t.SubtotalNet = t.SubtotalNet.Add(lt.Net)
		t.VATTotal = t.VATTotal.Add(lt.VAT)
		t.LinesTotal = t.LinesTotal.Add(lt.Total)
	}

	if len(selected) > 0 {
		for _, rec := range selected {
			switch rec.Kind {
			case TaxKindPerception:
				t.Perceptions = t.Perceptions.Add(rec.Amount)
			case TaxKindWithholding:
				t.Withholdings = t.Withholdings.Add(rec.Amount)
			case TaxKindOther:
				t.OtherTaxes = t.OtherTaxes.Add(rec.Amount)
			}
		}
	} else {
		t.Perceptions = clampNonNegative(manualPerceptions)
		t.Withholdings = clampNonNegative(manualWithholdings)
	}

	t.GrandTotal = t.LinesTotal.Add(t.OtherTaxes).Add(t.Perceptions).Sub(t.Withholdings)
	return t
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func clampPercent(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
