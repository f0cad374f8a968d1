package lending

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func product(id, category, country string, lo, hi int64, docs ...string) LenderProduct {
	p := LenderProduct{
		ID:                id,
		Category:          category,
		Country:           country,
		MinAmount:         decimal.NewFromInt(lo),
		RequiredDocuments: docs,
	}
	if hi > 0 {
		p.MaxAmount = decimal.NewNullDecimal(decimal.NewFromInt(hi))
	}
	return p
}

func profile(category, country string, amount int64) ApplicantProfile {
	return ApplicantProfile{
		Category:        category,
		Country:         country,
		RequestedAmount: decimal.NewFromInt(amount),
	}
}

func ids(products []LenderProduct) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func workingCapitalScenario() []LenderProduct {
	return []LenderProduct{
		product("wc-1", "Working Capital", "CA", 10000, 100000, "Bank Statements", "Tax Returns"),
		product("wc-2", "Working Capital", "CA", 5000, 50000, "Bank Statements"),
	}
}

// ==========================
// Scenario Tests
// ==========================

func TestFilterEligibleProducts_WorkingCapitalScenario(t *testing.T) {
	eligible := FilterEligibleProducts(workingCapitalScenario(), profile("Working Capital", "CA", 40000))

	assert.Equal(t, []string{"wc-1", "wc-2"}, ids(eligible))
}

func TestFilterEligibleProducts_FactoringRequiresReceivables(t *testing.T) {
	products := []LenderProduct{
		product("fac-1", "Invoice Factoring", "US", 0, 500000),
		product("fac-2", "factoring", "US/CA", 1000, 0),
		product("fac-3", "Invoice Factoring Program", "US", 0, 0),
	}

	zero := decimal.Zero
	positive := decimal.NewFromInt(25000)

	tests := []struct {
		name     string
		ar       *decimal.Decimal
		expected []string
	}{
		{name: "zero balance excludes all factoring", ar: &zero, expected: []string{}},
		{name: "missing balance counts as zero", ar: nil, expected: []string{}},
		{name: "positive balance keeps factoring", ar: &positive, expected: []string{"fac-1", "fac-2", "fac-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile("Invoice Factoring", "US", 20000)
			p.AccountsReceivableBalance = tt.ar

			assert.Equal(t, tt.expected, ids(FilterEligibleProducts(products, p)))
		})
	}
}

func TestFilterEligibleProducts_EmptyIsNotNil(t *testing.T) {
	eligible := FilterEligibleProducts(nil, profile("Term Loan", "US", 1000))

	require.NotNil(t, eligible)
	assert.Empty(t, eligible)
}

// ==========================
// Rule Tests
// ==========================

func TestFilterEligibleProducts_CategoryNormalization(t *testing.T) {
	tests := []struct {
		name            string
		productCategory string
		profileCategory string
		match           bool
	}{
		{name: "case and spacing", productCategory: "working  capital", profileCategory: "Working Capital", match: true},
		{name: "plural", productCategory: "Term Loans", profileCategory: "term loan", match: true},
		{name: "hyphen", productCategory: "line-of-credit", profileCategory: "Line of Credit", match: true},
		{name: "synonym", productCategory: "Business Line of Credit", profileCategory: "Line of Credit", match: true},
		{name: "abbreviation", productCategory: "LOC", profileCategory: "Line of Credit", match: true},
		{name: "factoring synonym", productCategory: "AR Financing", profileCategory: "Invoice Factoring", match: true},
		{name: "different categories", productCategory: "Term Loan", profileCategory: "Working Capital", match: false},
		{name: "unknown equal keys", productCategory: "Revenue Based Financing", profileCategory: "revenue-based financing", match: true},
		{name: "unknown vs known", productCategory: "Revenue Based Financing", profileCategory: "Term Loan", match: false},
		{name: "empty profile category", productCategory: "Term Loan", profileCategory: "", match: false},
		{name: "qualified product category", productCategory: "Secured Line of Credit", profileCategory: "Line of Credit", match: true},
		{name: "qualified profile category", productCategory: "Equipment Financing", profileCategory: "Equipment Financing Loans", match: true},
		{name: "qualified synonym", productCategory: "Invoice Factoring Program", profileCategory: "Invoice Factoring", match: true},
		{name: "qualified other category", productCategory: "Secured Line of Credit", profileCategory: "Term Loan", match: false},
		{name: "abbreviation inside phrase", productCategory: "Block Financing", profileCategory: "Line of Credit", match: false},
		{name: "two qualified unknowns", productCategory: "Secured Line of Credit", profileCategory: "Unsecured Line of Credit", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := []LenderProduct{product("p", tt.productCategory, "US", 0, 0)}
			p := ApplicantProfile{Category: tt.profileCategory, Country: "US", RequestedAmount: decimal.NewFromInt(50000)}
			if tt.profileCategory != "Invoice Factoring" {
				assert.Equal(t, tt.match, len(FilterEligibleProducts(products, p)) == 1)
				return
			}
			ar := decimal.NewFromInt(1)
			p.AccountsReceivableBalance = &ar
			assert.Equal(t, tt.match, len(FilterEligibleProducts(products, p)) == 1)
		})
	}
}

func TestFilterEligibleProducts_CountryMatching(t *testing.T) {
	tests := []struct {
		productCountry string
		profileCountry string
		match          bool
	}{
		{"US", "US", true},
		{"united states", "USA", true},
		{"CA", "Canada", true},
		{"US/CA", "CA", true},
		{"US/CA", "US", true},
		{"Both", "CA", true},
		{"North America", "US", true},
		{"USA, Canada", "CA", true},
		{"CA", "US", false},
		{"Mexico", "US", false},
		{"", "US", false},
		{"US", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.productCountry+"->"+tt.profileCountry, func(t *testing.T) {
			products := []LenderProduct{product("p", "Term Loan", tt.productCountry, 0, 0)}
			eligible := FilterEligibleProducts(products, profile("Term Loan", tt.profileCountry, 1000))
			assert.Equal(t, tt.match, len(eligible) == 1)
		})
	}
}

func TestFilterEligibleProducts_AmountRange(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
		amount int64
		match  bool
	}{
		{name: "inside", lo: 10000, hi: 100000, amount: 50000, match: true},
		{name: "lower bound inclusive", lo: 10000, hi: 100000, amount: 10000, match: true},
		{name: "upper bound inclusive", lo: 10000, hi: 100000, amount: 100000, match: true},
		{name: "below minimum", lo: 10000, hi: 100000, amount: 9999, match: false},
		{name: "above maximum", lo: 10000, hi: 100000, amount: 100001, match: false},
		{name: "unbounded maximum", lo: 10000, hi: 0, amount: 50000000, match: true},
		{name: "negative minimum counts as zero", lo: -500, hi: 1000, amount: 0, match: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := []LenderProduct{product("p", "Term Loan", "US", tt.lo, tt.hi)}
			eligible := FilterEligibleProducts(products, profile("Term Loan", "US", tt.amount))
			assert.Equal(t, tt.match, len(eligible) == 1)
		})
	}
}

// ==========================
// Property Tests
// ==========================

func TestFilterEligibleProducts_Properties(t *testing.T) {
	products := []LenderProduct{
		product("a", "Term Loan", "US", 1000, 50000),
		product("b", "Term Loan", "CA", 1000, 50000),
		product("c", "Term Loans", "US/CA", 60000, 0),
		product("d", "term-loan", "united states", 0, 20000),
		product("e", "Working Capital", "US", 0, 0),
		product("f", "Term Loan", "", 0, 0),
	}
	amounts := []int64{0, 999, 1000, 20000, 20001, 50000, 75000}
	countries := []string{"US", "CA", "usa", "Canada"}

	for _, country := range countries {
		for _, amount := range amounts {
			p := profile("Term Loan", country, amount)
			first := FilterEligibleProducts(products, p)
			second := FilterEligibleProducts(products, p)
			assert.Equal(t, first, second, "filter must be idempotent")

			want := ParseCountry(country)
			requested := decimal.NewFromInt(amount)
			for _, e := range first {
				assert.True(t, e.Countries().Overlaps(want), "%s does not serve %s", e.ID, country)
				assert.False(t, requested.LessThan(e.MinAmount), "%s below minimum", e.ID)
				if e.MaxAmount.Valid {
					assert.False(t, requested.GreaterThan(e.MaxAmount.Decimal), "%s above maximum", e.ID)
				}
			}
		}
	}
}

func TestFilterEligibleProducts_PreservesInputOrder(t *testing.T) {
	products := []LenderProduct{
		product("z", "Term Loan", "US", 0, 0),
		product("skip", "Working Capital", "US", 0, 0),
		product("a", "Term Loan", "US", 0, 0),
		product("m", "Term Loan", "US/CA", 0, 0),
	}

	assert.Equal(t, []string{"z", "a", "m"}, ids(FilterEligibleProducts(products, profile("Term Loan", "US", 100))))
}

func TestFilterEligibleProducts_PurposeDoesNotAffectEligibility(t *testing.T) {
	products := []LenderProduct{product("p", "Term Loan", "US", 0, 0)}
	p := profile("Term Loan", "US", 1000)
	p.FundsPurpose = "equipment"

	assert.Len(t, FilterEligibleProducts(products, p), 1)
}

// ==========================
// Rejection Tests
// ==========================

func TestExplainRejections(t *testing.T) {
	products := []LenderProduct{
		product("ok", "Term Loan", "US", 0, 0),
		product("country", "Term Loan", "CA", 0, 0),
		product("both", "Working Capital", "US", 50000, 0),
	}

	rejections := ExplainRejections(products, profile("Term Loan", "US", 1000))

	require.Len(t, rejections, 2)
	assert.Equal(t, "country", rejections[0].ProductID)
	assert.Equal(t, []string{"country mismatch: CA"}, rejections[0].Reasons)
	assert.Equal(t, "both", rejections[1].ProductID)
	assert.Equal(t, []string{"category mismatch: Working Capital", "amount outside range"}, rejections[1].Reasons)
}
