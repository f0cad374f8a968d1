// Package lending holds the lender-matching rules: category and country
// normalization, the eligibility filter, document-requirement intersection
// and category recommendations. Everything here is pure and safe for
// concurrent use.
package lending

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the canonical financing category of a product or request.
type Category string

const (
	CategoryUnknown                Category = ""
	CategoryLineOfCredit           Category = "line_of_credit"
	CategoryTermLoan               Category = "term_loan"
	CategoryEquipmentFinancing     Category = "equipment_financing"
	CategoryInvoiceFactoring       Category = "invoice_factoring"
	CategoryWorkingCapital         Category = "working_capital"
	CategoryPurchaseOrderFinancing Category = "purchase_order_financing"
	CategoryAssetBasedLending      Category = "asset_based_lending"
	CategorySBALoan                Category = "sba_loan"
	CategoryCommercialRealEstate   Category = "commercial_real_estate"
	CategoryMerchantCashAdvance    Category = "merchant_cash_advance"
)

// categorySynonyms is keyed by the output of categoryKey, so entries are
// already lower-cased, underscored and stripped of one trailing "s".
var categorySynonyms = map[string]Category{
	"line_of_credit":           CategoryLineOfCredit,
	"lines_of_credit":          CategoryLineOfCredit,
	"business_line_of_credit":  CategoryLineOfCredit,
	"business_lines_of_credit": CategoryLineOfCredit,
	"credit_line":              CategoryLineOfCredit,
	"revolving_credit":         CategoryLineOfCredit,
	"loc":                      CategoryLineOfCredit,

	"term_loan":            CategoryTermLoan,
	"business_term_loan":   CategoryTermLoan,
	"commercial_term_loan": CategoryTermLoan,
	"sba_term_loan":        CategoryTermLoan,

	"equipment_financing": CategoryEquipmentFinancing,
	"equipment_finance":   CategoryEquipmentFinancing,
	"equipment_loan":      CategoryEquipmentFinancing,
	"equipment_purchase":  CategoryEquipmentFinancing,
	"equipment_leasing":   CategoryEquipmentFinancing,

	"invoice_factoring":             CategoryInvoiceFactoring,
	"factoring":                     CategoryInvoiceFactoring,
	"invoice_financing":             CategoryInvoiceFactoring,
	"ar_financing":                  CategoryInvoiceFactoring,
	"accounts_receivable_financing": CategoryInvoiceFactoring,

	"working_capital":           CategoryWorkingCapital,
	"business_working_capital":  CategoryWorkingCapital,
	"working_capital_loan":      CategoryWorkingCapital,
	"working_capital_financing": CategoryWorkingCapital,

	"purchase_order_financing": CategoryPurchaseOrderFinancing,
	"purchase_order_finance":   CategoryPurchaseOrderFinancing,
	"po_financing":             CategoryPurchaseOrderFinancing,

	"asset_based_lending": CategoryAssetBasedLending,
	"asset_based_loan":    CategoryAssetBasedLending,
	"abl":                 CategoryAssetBasedLending,

	"sba_loan": CategorySBALoan,
	"sba":      CategorySBALoan,

	"commercial_real_estate": CategoryCommercialRealEstate,
	"commercial_mortgage":    CategoryCommercialRealEstate,
	"cre":                    CategoryCommercialRealEstate,

	"merchant_cash_advance": CategoryMerchantCashAdvance,
	"mca":                   CategoryMerchantCashAdvance,
}

// synonymsByCategory inverts categorySynonyms. Two- and three-letter
// abbreviations are left out; inside a longer phrase they are too ambiguous.
var synonymsByCategory = func() map[Category][]string {
	out := make(map[Category][]string)
	for syn, c := range categorySynonyms {
		if len(syn) <= 3 {
			continue
		}
		out[c] = append(out[c], syn)
	}
	return out
}()

var categoryNames = map[Category]string{
	CategoryLineOfCredit:           "Business Line of Credit",
	CategoryTermLoan:               "Term Loan",
	CategoryEquipmentFinancing:     "Equipment Financing",
	CategoryInvoiceFactoring:       "Invoice Factoring",
	CategoryWorkingCapital:         "Working Capital",
	CategoryPurchaseOrderFinancing: "Purchase Order Financing",
	CategoryAssetBasedLending:      "Asset Based Lending",
	CategorySBALoan:                "SBA Loan",
	CategoryCommercialRealEstate:   "Commercial Real Estate",
	CategoryMerchantCashAdvance:    "Merchant Cash Advance",
}

// CategoryRef is a parsed category: the raw text, its normalized key and the
// canonical category it resolves to (CategoryUnknown when no synonym applies).
type CategoryRef struct {
	Raw      string
	Key      string
	Category Category
}

// ParseCategory normalizes a free-text category.
func ParseCategory(raw string) CategoryRef {
	key := categoryKey(raw)
	return CategoryRef{
		Raw:      raw,
		Key:      key,
		Category: categorySynonyms[key],
	}
}

// Known reports whether the category resolved to a canonical value.
func (r CategoryRef) Known() bool {
	return r.Category != CategoryUnknown
}

// Matches reports whether two parsed categories denote the same category.
// Two known categories compare by canonical value. A known category also
// matches an unknown one whose key contains one of its synonyms as whole
// words, so "Secured Line of Credit" matches "Line of Credit". Two unknown
// categories match only on equal keys.
func (r CategoryRef) Matches(other CategoryRef) bool {
	if r.Key == "" || other.Key == "" {
		return false
	}
	switch {
	case r.Known() && other.Known():
		return r.Category == other.Category
	case r.Known():
		return other.embeds(r.Category)
	case other.Known():
		return r.embeds(other.Category)
	}
	return r.Key == other.Key
}

// Is reports whether the category is c, either canonically or, for an
// unknown category, by containing one of c's synonyms.
func (r CategoryRef) Is(c Category) bool {
	if r.Known() {
		return r.Category == c
	}
	return r.Key != "" && r.embeds(c)
}

// embeds reports whether the key contains a synonym of c on word boundaries.
func (r CategoryRef) embeds(c Category) bool {
	padded := "_" + r.Key + "_"
	for _, syn := range synonymsByCategory[c] {
		if strings.Contains(padded, "_"+syn+"_") {
			return true
		}
	}
	return false
}

// GroupKey identifies the category for grouping: the canonical value when
// known, the normalized key otherwise.
func (r CategoryRef) GroupKey() string {
	if r.Known() {
		return string(r.Category)
	}
	return r.Key
}

// DisplayName returns a human-readable category name.
func (r CategoryRef) DisplayName() string {
	if name, ok := categoryNames[r.Category]; ok {
		return name
	}
	return titleFromKey(r.Key)
}

// DisplayName returns the display name for a canonical category.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return titleFromKey(string(c))
}

// categoryKey lower-cases, collapses whitespace, hyphens and slashes into
// single underscores and strips one trailing "s".
func categoryKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_' || r == '/':
			pendingSep = b.Len() > 0
		default:
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}

	return strings.TrimSuffix(b.String(), "s")
}

var titleCaser = cases.Title(language.English)

func titleFromKey(key string) string {
	if key == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// purposeCategories lists the categories suited to each funds purpose.
// Purposes absent from the table, and "other", carry no restriction.
var purposeCategories = map[string][]Category{
	"equipment": {CategoryEquipmentFinancing},
	"business_expansion": {
		CategoryLineOfCredit, CategoryInvoiceFactoring, CategoryWorkingCapital, CategoryTermLoan,
	},
	"working_capital": {
		CategoryLineOfCredit, CategoryWorkingCapital, CategoryTermLoan,
	},
	"inventory": {
		CategoryLineOfCredit, CategoryInvoiceFactoring, CategoryPurchaseOrderFinancing,
		CategoryTermLoan, CategoryWorkingCapital,
	},
	"marketing": {
		CategoryLineOfCredit, CategoryTermLoan, CategoryWorkingCapital,
	},
	"debt_consolidation": {
		CategoryLineOfCredit, CategoryInvoiceFactoring, CategoryTermLoan, CategoryWorkingCapital,
	},
	"other": nil,
}

// AllowedCategoriesForPurpose returns the categories that fit a funds
// purpose, or nil when the purpose does not restrict anything.
func AllowedCategoriesForPurpose(purpose string) []Category {
	return purposeCategories[categoryKey(purpose)]
}
