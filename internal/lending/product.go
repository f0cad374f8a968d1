package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LenderProduct is one financing product offered by a lender. Products come
// from an external catalog, so decoding is permissive: unknown or malformed
// fields fall back to defaults instead of failing the whole list.
type LenderProduct struct {
	ID                string
	Name              string
	LenderName        string
	Category          string
	Country           string
	MinAmount         decimal.Decimal
	MaxAmount         decimal.NullDecimal // invalid means unbounded
	RequiredDocuments []string
}

// ApplicantProfile is the business profile collected by the application
// steps. A nil AccountsReceivableBalance is treated as zero.
type ApplicantProfile struct {
	Country                   string           `json:"country"`
	RequestedAmount           decimal.Decimal  `json:"requestedAmount"`
	Category                  string           `json:"category"`
	AccountsReceivableBalance *decimal.Decimal `json:"accountsReceivableBalance,omitempty"`
	FundsPurpose              string           `json:"fundsPurpose,omitempty"`
}

// HasReceivables reports whether the profile declares a positive
// accounts-receivable balance.
func (p ApplicantProfile) HasReceivables() bool {
	return p.AccountsReceivableBalance != nil && p.AccountsReceivableBalance.IsPositive()
}

// Validate checks what every matching step relies on: a supported country
// and non-negative amounts. Category is optional here because category
// recommendation runs before the applicant picks one.
func (p ApplicantProfile) Validate() error {
	if ParseCountry(p.Country).Empty() {
		return fmt.Errorf("unsupported country %q", p.Country)
	}
	if p.RequestedAmount.IsNegative() {
		return errors.New("requested amount must not be negative")
	}
	if p.AccountsReceivableBalance != nil && p.AccountsReceivableBalance.IsNegative() {
		return errors.New("accounts receivable balance must not be negative")
	}
	return nil
}

// ValidateForMatching is Validate plus a required category, for steps that
// filter products by it.
func (p ApplicantProfile) ValidateForMatching() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Category) == "" {
		return errors.New("category is required")
	}
	return nil
}

var (
	minAmountFields = []string{"minAmount", "amountMin", "amount_min", "min_amount"}
	maxAmountFields = []string{"maxAmount", "amountMax", "amount_max", "max_amount"}
	documentFields  = []string{"requiredDocuments", "documentRequirements", "doc_requirements", "required_documents"}
	lenderFields    = []string{"lenderName", "lender_name"}
	nameFields      = []string{"name", "productName", "product_name"}
	categoryFields  = []string{"category", "productCategory", "product_type"}
	countryFields   = []string{"country", "geography"}
)

// UnmarshalJSON accepts the field-name variants the staff backend has used
// over time. It only fails when the value is not a JSON object.
func (p *LenderProduct) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = LenderProduct{
		ID:                firstString(raw, "id"),
		Name:              firstString(raw, nameFields...),
		LenderName:        firstString(raw, lenderFields...),
		Category:          firstString(raw, categoryFields...),
		Country:           firstString(raw, countryFields...),
		RequiredDocuments: firstStringList(raw, documentFields...),
	}

	if lo, ok := firstAmount(raw, minAmountFields...); ok && !lo.IsNegative() {
		p.MinAmount = lo
	}
	if hi, ok := firstAmount(raw, maxAmountFields...); ok && hi.IsPositive() {
		p.MaxAmount = decimal.NewNullDecimal(hi)
	}
	return nil
}

type productWire struct {
	ID                string       `json:"id"`
	Name              string       `json:"name,omitempty"`
	LenderName        string       `json:"lenderName,omitempty"`
	Category          string       `json:"category"`
	Country           string       `json:"country"`
	MinAmount         json.Number  `json:"minAmount"`
	MaxAmount         *json.Number `json:"maxAmount"`
	RequiredDocuments []string     `json:"requiredDocuments"`
}

// MarshalJSON writes the canonical field names with numeric amounts.
func (p LenderProduct) MarshalJSON() ([]byte, error) {
	w := productWire{
		ID:                p.ID,
		Name:              p.Name,
		LenderName:        p.LenderName,
		Category:          p.Category,
		Country:           p.Country,
		MinAmount:         json.Number(p.MinAmount.String()),
		RequiredDocuments: p.RequiredDocuments,
	}
	if w.RequiredDocuments == nil {
		w.RequiredDocuments = []string{}
	}
	if hi, ok := p.upperBound(); ok {
		n := json.Number(hi.String())
		w.MaxAmount = &n
	}
	return json.Marshal(w)
}

// CategoryRef returns the parsed product category.
func (p LenderProduct) CategoryRef() CategoryRef {
	return ParseCategory(p.Category)
}

// Countries returns the markets the product serves.
func (p LenderProduct) Countries() CountrySet {
	return ParseCountry(p.Country)
}

// AcceptsAmount reports whether amount lies within the product's range.
// A negative minimum counts as zero and a missing or non-positive maximum as
// unbounded.
func (p LenderProduct) AcceptsAmount(amount decimal.Decimal) bool {
	lo := p.MinAmount
	if lo.IsNegative() {
		lo = decimal.Zero
	}
	if amount.LessThan(lo) {
		return false
	}
	if hi, ok := p.upperBound(); ok && amount.GreaterThan(hi) {
		return false
	}
	return true
}

func (p LenderProduct) upperBound() (decimal.Decimal, bool) {
	if !p.MaxAmount.Valid || !p.MaxAmount.Decimal.IsPositive() {
		return decimal.Decimal{}, false
	}
	return p.MaxAmount.Decimal, true
}

func firstString(raw map[string]json.RawMessage, fields ...string) string {
	for _, f := range fields {
		v, ok := raw[f]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		// Geography arrives as a list on some payloads.
		var list []string
		if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "/")
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func firstStringList(raw map[string]json.RawMessage, fields ...string) []string {
	for _, f := range fields {
		v, ok := raw[f]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func firstAmount(raw map[string]json.RawMessage, fields ...string) (decimal.Decimal, bool) {
	for _, f := range fields {
		v, ok := raw[f]
		if !ok {
			continue
		}
		if d, ok := parseAmount(v); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// parseAmount reads a JSON number or a numeric string such as "$10,000".
func parseAmount(v json.RawMessage) (decimal.Decimal, bool) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return decimal.Decimal{}, false
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}
