package purchase

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SoftFusion-Technologies/backend-compras/internal/numeric"
)

// TaxKind classifies an attached tax record.
type TaxKind string

const (
	TaxKindPerception  TaxKind = "Percepcion"
	TaxKindWithholding TaxKind = "Retencion"
	TaxKindOther       TaxKind = "Otro"
	TaxKindVAT         TaxKind = "IVA"
)

var (
	// ErrVATManaged is returned when attaching a VAT-kind record; VAT is
	// always derived from the line items and never attached from the catalog.
	ErrVATManaged = errors.New("purchase: VAT is computed from line items")
	// ErrDuplicateTax is returned when the code is already attached.
	ErrDuplicateTax = errors.New("purchase: tax code already attached")
	// ErrUnknownTaxKind is returned for kinds outside the known set.
	ErrUnknownTaxKind = errors.New("purchase: unknown tax kind")
)

// ParseTaxKind maps free-form kind text onto a TaxKind, case-insensitively.
func ParseTaxKind(raw string) (TaxKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percepcion", "percepción":
		return TaxKindPerception, nil
	case "retencion", "retención":
		return TaxKindWithholding, nil
	case "otro":
		return TaxKindOther, nil
	case "iva":
		return TaxKindVAT, nil
	default:
		return "", ErrUnknownTaxKind
	}
}

// TaxRecord is one perception/withholding/other tax applied to a purchase.
// Amount is always Base times Rate rounded to two decimals, except for
// legacy synthetic records where the rate is zero and the amount manual.
// BaseSet distinguishes a record whose base was provided (possibly zero)
// from one still waiting for the default base.
type TaxRecord struct {
	Code        string
	Kind        TaxKind
	Description string
	Rate        decimal.Decimal
	Base        decimal.Decimal
	Amount      decimal.Decimal
	BaseSet     bool
}

// ConfiguredTax is a catalog entry eligible for attachment.
type ConfiguredTax struct {
	Code        string
	Kind        TaxKind
	Description string
	Rate        decimal.Decimal
}

// Selection holds the set of tax records attached to an in-progress
// purchase. The zero value is ready to use.
type Selection struct {
	records []TaxRecord
}

// Records returns the attached tax records in attachment order.
func (s *Selection) Records() []TaxRecord {
	return s.records
}

// Len reports how many records are attached.
func (s *Selection) Len() int {
	return len(s.records)
}

// Attach adds a catalog tax to the selection with a suggested base:
// perceptions and withholdings are based on the net subtotal alone, any
// other kind on net plus VAT. VAT-kind entries and duplicate codes are
// rejected without mutating the selection.
func (s *Selection) Attach(tax ConfiguredTax, subtotalNet, vatTotal decimal.Decimal) error {
	if tax.Kind == TaxKindVAT {
		return ErrVATManaged
	}
	for _, rec := range s.records {
		if strings.EqualFold(rec.Code, tax.Code) {
			return ErrDuplicateTax
		}
	}
	base := subtotalNet
	if tax.Kind != TaxKindPerception && tax.Kind != TaxKindWithholding {
		base = subtotalNet.Add(vatTotal)
	}
	s.records = append(s.records, TaxRecord{
		Code:        tax.Code,
		Kind:        tax.Kind,
		Description: tax.Description,
		Rate:        tax.Rate,
		Base:        base,
		Amount:      numeric.Round2(base.Mul(tax.Rate)),
		BaseSet:     true,
	})
	return nil
}

// Detach removes the record at the given index. Out-of-range indexes are
// ignored.
func (s *Selection) Detach(i int) {
	if i < 0 || i >= len(s.records) {
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
}

// SetBase overwrites the base of the record at i and recomputes the amount
// from the unchanged rate.
func (s *Selection) SetBase(i int, base decimal.Decimal) {
	if i < 0 || i >= len(s.records) {
		return
	}
	s.records[i].Base = base
	s.records[i].BaseSet = true
	s.records[i].Amount = numeric.Round2(base.Mul(s.records[i].Rate))
}

// BuildTaxLines produces the normalized tax records to persist. Attached
// records win; records of kind IVA are filtered out even if one slipped
// past the attach guard, and a record without an explicit base receives
// the default base (net plus VAT). With no attached records the two manual
// header amounts are emitted as synthetic perception/withholding lines
// when positive.
func BuildTaxLines(selected []TaxRecord, subtotalNet, vatTotal, manualPerceptions, manualWithholdings decimal.Decimal) []TaxRecord {
	defaultBase := numeric.Round2(subtotalNet.Add(vatTotal))
	if len(selected) > 0 {
		out := make([]TaxRecord, 0, len(selected))
		for _, rec := range selected {
			if rec.Kind == TaxKindVAT {
				continue
			}
			line := rec
			if !line.BaseSet {
				line.Base = defaultBase
				line.BaseSet = true
				line.Amount = numeric.Round2(line.Base.Mul(line.Rate))
			}
			out = append(out, line)
		}
		return out
	}

	var out []TaxRecord
	if manualPerceptions.IsPositive() {
		out = append(out, TaxRecord{
			Kind:    TaxKindPerception,
			Base:    defaultBase,
			BaseSet: true,
			Rate:    decimal.Zero,
			Amount:  numeric.Round2(manualPerceptions),
		})
	}
	if manualWithholdings.IsPositive() {
		out = append(out, TaxRecord{
			Kind:    TaxKindWithholding,
			Base:    defaultBase,
			BaseSet: true,
			Rate:    decimal.Zero,
			Amount:  numeric.Round2(manualWithholdings),
		})
	}
	return out
}
