package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/SoftFusion-Technologies/backend-compras/internal/numeric"
)

// Item is one purchase row: the calculable Line plus its identifying
// fields, which pass through the engine untouched.
type Item struct {
	ProductID   *int64
	Description string
	Line
}

// PayloadDetail mirrors one persisted purchase row. Money fields carry two
// decimals, quantity up to three.
type PayloadDetail struct {
	ProductID        *int64  `json:"productId"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitCostNet      float64 `json:"unitCostNet"`
	VATRatePercent   float64 `json:"vatRatePercent"`
	PriceIncludesVAT bool    `json:"priceIncludesVat"`
	DiscountPercent  float64 `json:"discountPercent"`
	OtherTaxesAmount float64 `json:"otherTaxesAmount"`
	LineTotal        float64 `json:"lineTotal"`
}

// PayloadTax mirrors one persisted tax line.
type PayloadTax struct {
	Type         string  `json:"type"`
	Code         *string `json:"code"`
	Base         float64 `json:"base"`
	RateFraction float64 `json:"rateFraction"`
	Amount       float64 `json:"amount"`
}

// Payload is the submit fragment handed to persistence and to webhook
// consumers. All rounding happens here, at the serialization boundary.
type Payload struct {
	Detalles          []PayloadDetail `json:"detalles"`
	SubtotalNet       float64         `json:"subtotalNet"`
	VATTotal          float64         `json:"vatTotal"`
	PerceptionsTotal  float64         `json:"perceptionsTotal"`
	WithholdingsTotal float64         `json:"withholdingsTotal"`
	GrandTotal        float64         `json:"grandTotal"`
	Impuestos         []PayloadTax    `json:"impuestos"`
}

// BuildPayload runs the engine over the items and tax selection and
// serializes the result. Intermediate math stays in full decimal
// precision; only the emitted payload is rounded.
func BuildPayload(items []Item, selected []TaxRecord, manualPerceptions, manualWithholdings decimal.Decimal) Payload {
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = it.Line
	}
	totals := Aggregate(lines, selected, manualPerceptions, manualWithholdings)
	taxLines := BuildTaxLines(selected, totals.SubtotalNet, totals.VATTotal, manualPerceptions, manualWithholdings)

	details := make([]PayloadDetail, len(items))
	for i, it := range items {
		lt := ComputeLine(it.Line)
		details[i] = PayloadDetail{
			ProductID:        it.ProductID,
			Description:      it.Description,
			Quantity:         money3(it.Quantity),
			UnitCostNet:      money2(it.UnitCost),
			VATRatePercent:   money2(it.VATRatePercent),
			PriceIncludesVAT: it.PriceIncludesVAT,
			DiscountPercent:  money2(it.DiscountPercent),
			OtherTaxesAmount: money2(it.OtherTaxes),
			LineTotal:        money2(lt.Total),
		}
	}

	impuestos := make([]PayloadTax, len(taxLines))
	for i, rec := range taxLines {
		var code *string
		if rec.Code != "" {
			c := rec.Code
			code = &c
		}
		impuestos[i] = PayloadTax{
			Type:         string(rec.Kind),
			Code:         code,
			Base:         money2(rec.Base),
			RateFraction: rec.Rate.InexactFloat64(),
			Amount:       money2(rec.Amount),
		}
	}

	return Payload{
		Detalles:          details,
		SubtotalNet:       money2(totals.SubtotalNet),
		VATTotal:          money2(totals.VATTotal),
		PerceptionsTotal:  money2(totals.Perceptions),
		WithholdingsTotal: money2(totals.Withholdings),
		GrandTotal:        money2(totals.GrandTotal),
		Impuestos:         impuestos,
	}
}

func money2(d decimal.Decimal) float64 {
	return numeric.Round2(d).InexactFloat64()
}

func money3(d decimal.Decimal) float64 {
	return d.Round(3).InexactFloat64()
}
