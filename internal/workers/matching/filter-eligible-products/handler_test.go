// internal/workers/matching/filter-eligible-products/handler_test.go
package filtereligibleproducts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-intake/internal/catalog"
	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/lending"
)

// ==========================
// Test Helper Functions
// ==========================

type stubCatalog struct {
	result *catalog.Result
	err    error
}

func (s *stubCatalog) Products(ctx context.Context) (*catalog.Result, error) {
	return s.result, s.err
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func decodeProducts(t *testing.T, raw string) []lending.LenderProduct {
	t.Helper()
	var out []lending.LenderProduct
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func testCatalog(t *testing.T) []lending.LenderProduct {
	return decodeProducts(t, `[
		{"id": "wc-ca", "category": "Working Capital", "country": "CA", "minAmount": 10000, "maxAmount": 500000, "requiredDocuments": ["Bank Statements", "Tax Returns"]},
		{"id": "wc-na", "category": "working-capital", "country": "North America", "amount_min": "25,000", "requiredDocuments": ["bank statements (6 months)"]},
		{"id": "loc-us", "category": "Business Line of Credit", "country": "US", "minAmount": 5000, "maxAmount": 100000},
		{"id": "factor-ca", "category": "Factoring", "country": "CA", "minAmount": 0, "maxAmount": 0}
	]`)
}

func createInput(category, country string, amount int64) *Input {
	return &Input{ApplicantProfile: lending.ApplicantProfile{
		Category:        category,
		Country:         country,
		RequestedAmount: decimal.NewFromInt(amount),
	}}
}

func ids(products []lending.LenderProduct) []string {
	out := []string{}
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name        string
		input       *Input
		expectedIDs []string
	}{
		{
			name:        "working capital in Canada",
			input:       createInput("Working Capital", "Canada", 50000),
			expectedIDs: []string{"wc-ca", "wc-na"},
		},
		{
			name:        "below the multi-country minimum",
			input:       createInput("working capital", "CA", 15000),
			expectedIDs: []string{"wc-ca"},
		},
		{
			name:        "line of credit synonym in the US",
			input:       createInput("line of credit", "united states", 20000),
			expectedIDs: []string{"loc-us"},
		},
		{
			name:        "no matching lender",
			input:       createInput("Equipment Financing", "US", 20000),
			expectedIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &stubCatalog{result: &catalog.Result{Products: testCatalog(t), Source: catalog.SourceCache}}
			handler := NewHandler(createTestConfig(), cat, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedIDs, ids(output.EligibleProducts))
			assert.Equal(t, len(tt.expectedIDs), output.EligibleCount)
			assert.Equal(t, len(tt.expectedIDs) > 0, output.HasMatches)
			assert.Equal(t, "cache", output.CatalogSource)
			assert.False(t, output.Degraded)
			assert.Nil(t, output.Rejections)
		})
	}
}

func TestHandler_Execute_FactoringNeedsReceivables(t *testing.T) {
	cat := &stubCatalog{result: &catalog.Result{Products: testCatalog(t), Source: catalog.SourceStaffAPI}}
	handler := NewHandler(createTestConfig(), cat, logger.NewTestLogger(t))

	input := createInput("invoice factoring", "CA", 40000)
	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, output.EligibleProducts)

	balance := decimal.NewFromInt(75000)
	input.AccountsReceivableBalance = &balance
	output, err = handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"factor-ca"}, ids(output.EligibleProducts))
}

func TestHandler_Execute_Explain(t *testing.T) {
	cat := &stubCatalog{result: &catalog.Result{Products: testCatalog(t), Source: catalog.SourceCache}}
	handler := NewHandler(createTestConfig(), cat, logger.NewTestLogger(t))

	input := createInput("Working Capital", "CA", 15000)
	input.Explain = true

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, output.Rejections, 3)
	assert.Equal(t, "wc-na", output.Rejections[0].ProductID)
	assert.Equal(t, []string{"amount outside range"}, output.Rejections[0].Reasons)
}

func TestHandler_Execute_DegradedCatalog(t *testing.T) {
	cat := &stubCatalog{result: &catalog.Result{Products: []lending.LenderProduct{}, Source: catalog.SourceEmpty, Degraded: true}}
	handler := NewHandler(createTestConfig(), cat, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createInput("Term Loan", "US", 1000))

	require.NoError(t, err)
	assert.True(t, output.Degraded)
	assert.False(t, output.HasMatches)
	assert.NotNil(t, output.EligibleProducts)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InvalidProfile(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{name: "unknown country", input: createInput("Term Loan", "Mexico", 1000)},
		{name: "missing country", input: createInput("Term Loan", "", 1000)},
		{name: "negative amount", input: createInput("Term Loan", "US", -5)},
		{name: "missing category", input: createInput("", "US", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), &stubCatalog{}, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
			assert.Equal(t, commonerrors.ErrCodeInvalidApplicantProfile, handler.mapError(err).Code)
		})
	}
}

func TestHandler_Execute_CatalogError(t *testing.T) {
	cat := &stubCatalog{err: context.DeadlineExceeded}
	handler := NewHandler(createTestConfig(), cat, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), createInput("Term Loan", "US", 1000))

	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
	stdErr := handler.mapError(err)
	assert.Equal(t, commonerrors.ErrCodeCatalogUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestInput_DecodesJobVariables(t *testing.T) {
	var input Input
	err := json.Unmarshal([]byte(`{
		"country": "US/CA",
		"requestedAmount": "125000.50",
		"category": "Term Loan",
		"accountsReceivableBalance": 0,
		"fundsPurpose": "expansion",
		"explain": true
	}`), &input)

	require.NoError(t, err)
	assert.Equal(t, "125000.5", input.RequestedAmount.String())
	assert.False(t, input.HasReceivables())
	assert.Equal(t, "expansion", input.FundsPurpose)
	assert.True(t, input.Explain)
}
