package lending

import (
	"strings"
	"unicode"
)

// DocumentKey is the canonical identifier of a document requirement.
type DocumentKey string

const (
	DocBankStatements             DocumentKey = "bank_statements"
	DocTaxReturns                 DocumentKey = "tax_returns"
	DocFinancialStatements        DocumentKey = "financial_statements"
	DocBusinessLicense            DocumentKey = "business_license"
	DocArticlesOfIncorporation    DocumentKey = "articles_of_incorporation"
	DocVoidPAD                    DocumentKey = "void_pad"
	DocEquipmentQuote             DocumentKey = "equipment_quote"
	DocPersonalFinancialStatement DocumentKey = "personal_financial_statement"
	DocPersonalGuarantee          DocumentKey = "personal_guarantee"
	DocAccountsReceivable         DocumentKey = "accounts_receivable"
	DocAccountsPayable            DocumentKey = "accounts_payable"
	DocInvoiceSamples             DocumentKey = "invoice_samples"
	DocCashFlowStatement          DocumentKey = "cash_flow_statement"
	DocBusinessPlan               DocumentKey = "business_plan"
	DocCollateral                 DocumentKey = "collateral_docs"
	DocProfitLossStatement        DocumentKey = "profit_loss_statement"
	DocBalanceSheet               DocumentKey = "balance_sheet"
	DocSupplierAgreement          DocumentKey = "supplier_agreement"
	DocDriversLicense             DocumentKey = "drivers_license_front_back"
	DocProofOfIdentity            DocumentKey = "proof_of_identity"
	DocSignedApplication          DocumentKey = "signed_application"
	DocOther                      DocumentKey = "other"
)

var documentLabels = map[DocumentKey]string{
	DocBankStatements:             "Bank Statements",
	DocTaxReturns:                 "Tax Returns",
	DocFinancialStatements:        "Accountant Prepared Financial Statements",
	DocBusinessLicense:            "Business License",
	DocArticlesOfIncorporation:    "Articles of Incorporation",
	DocVoidPAD:                    "Voided Check / PAD",
	DocEquipmentQuote:             "Equipment Quote",
	DocPersonalFinancialStatement: "Personal Financial Statement",
	DocPersonalGuarantee:          "Personal Guarantee",
	DocAccountsReceivable:         "Accounts Receivable Aging",
	DocAccountsPayable:            "Accounts Payable Aging",
	DocInvoiceSamples:             "Invoice Samples",
	DocCashFlowStatement:          "Cash Flow Statement",
	DocBusinessPlan:               "Business Plan",
	DocCollateral:                 "Collateral Documents",
	DocProfitLossStatement:        "Profit and Loss Statement",
	DocBalanceSheet:               "Balance Sheet",
	DocSupplierAgreement:          "Supplier Agreement",
	DocDriversLicense:             "Driver's License (Front and Back)",
	DocProofOfIdentity:            "Proof of Identity",
	DocSignedApplication:          "Signed Application",
	DocOther:                      "Other Documents",
}

var documentQuantities = map[DocumentKey]int{
	DocBankStatements:      6,
	DocFinancialStatements: 3,
	DocTaxReturns:          3,
}

// documentSynonyms maps lower-cased labels to canonical keys.
// "Financial Statements" and the accountant-prepared variants are one
// requirement.
var documentSynonyms = map[string]DocumentKey{
	"bank statements":            DocBankStatements,
	"bank statements (6 months)": DocBankStatements,
	"banking statements":         DocBankStatements,
	"bank account statements":    DocBankStatements,

	"tax returns":                      DocTaxReturns,
	"business tax returns":             DocTaxReturns,
	"tax returns (2-3 years)":          DocTaxReturns,
	"business tax returns (2-3 years)": DocTaxReturns,
	"corporate tax returns":            DocTaxReturns,

	"financial statements":                                             DocFinancialStatements,
	"financial statements (p&l and balance sheet)":                     DocFinancialStatements,
	"accountant prepared financial statements":                         DocFinancialStatements,
	"accountant prepared financial statements (p&l and balance sheet)": DocFinancialStatements,
	"accountant prepared statements":                                   DocFinancialStatements,
	"audited financial statements":                                     DocFinancialStatements,

	"business license":           DocBusinessLicense,
	"business operating license": DocBusinessLicense,
	"professional license":       DocBusinessLicense,

	"articles of incorporation":     DocArticlesOfIncorporation,
	"incorporation documents":       DocArticlesOfIncorporation,
	"corporate formation documents": DocArticlesOfIncorporation,

	"voided check":      DocVoidPAD,
	"void check":        DocVoidPAD,
	"cancelled check":   DocVoidPAD,
	"bank verification": DocVoidPAD,
	"void cheque / pad": DocVoidPAD,

	"equipment quote":            DocEquipmentQuote,
	"equipment quote or invoice": DocEquipmentQuote,
	"equipment invoice":          DocEquipmentQuote,
	"equipment specifications":   DocEquipmentQuote,

	"personal financial statement":  DocPersonalFinancialStatement,
	"personal financial statements": DocPersonalFinancialStatement,
	"personal balance sheet":        DocPersonalFinancialStatement,

	"personal guarantee": DocPersonalGuarantee,
	"personal guaranty":  DocPersonalGuarantee,
	"guarantee form":     DocPersonalGuarantee,

	"accounts receivable":              DocAccountsReceivable,
	"accounts receivable aging report": DocAccountsReceivable,
	"customer receivables":             DocAccountsReceivable,
	"ar aging":                         DocAccountsReceivable,

	"invoice samples":           DocInvoiceSamples,
	"invoice samples (90 days)": DocInvoiceSamples,
	"sample invoices":           DocInvoiceSamples,
	"customer invoices":         DocInvoiceSamples,

	"cash flow statement":   DocCashFlowStatement,
	"cash flow projections": DocCashFlowStatement,
	"cash flow analysis":    DocCashFlowStatement,

	"business plan":                   DocBusinessPlan,
	"business plan with use of funds": DocBusinessPlan,
	"business plan and projections":   DocBusinessPlan,

	"collateral documentation": DocCollateral,
	"collateral documents":     DocCollateral,
	"asset documentation":      DocCollateral,
	"security documents":       DocCollateral,

	"profit and loss statement": DocProfitLossStatement,
	"p&l statement":             DocProfitLossStatement,
	"income statement":          DocProfitLossStatement,
	"profit loss statement":     DocProfitLossStatement,

	"balance sheet":                   DocBalanceSheet,
	"statement of financial position": DocBalanceSheet,
	"balance sheet statement":         DocBalanceSheet,

	"accounts payable":       DocAccountsPayable,
	"accounts payable aging": DocAccountsPayable,
	"payables report":        DocAccountsPayable,

	"supplier agreement": DocSupplierAgreement,
	"supplier contracts": DocSupplierAgreement,
	"vendor agreements":  DocSupplierAgreement,

	"driver's license":              DocDriversLicense,
	"drivers license":               DocDriversLicense,
	"driver license front and back": DocDriversLicense,

	"proof of identity":        DocProofOfIdentity,
	"identification documents": DocProofOfIdentity,
	"government id":            DocProofOfIdentity,

	"other documents":         DocOther,
	"additional documents":    DocOther,
	"miscellaneous documents": DocOther,

	"signed application":    DocSignedApplication,
	"completed application": DocSignedApplication,
	"loan application":      DocSignedApplication,
}

// documentKeywordRules run in order after the exact table misses; more
// specific rules come first.
var documentKeywordRules = []struct {
	all []string
	any []string
	key DocumentKey
}{
	{all: []string{"personal", "financial"}, key: DocPersonalFinancialStatement},
	{all: []string{"personal", "guarant"}, key: DocPersonalGuarantee},
	{all: []string{"bank", "statement"}, key: DocBankStatements},
	{all: []string{"tax", "return"}, key: DocTaxReturns},
	{all: []string{"financial", "statement"}, key: DocFinancialStatements},
	{all: []string{"business", "license"}, key: DocBusinessLicense},
	{all: []string{"article", "incorporation"}, key: DocArticlesOfIncorporation},
	{all: []string{"void"}, any: []string{"check", "cheque", "pad"}, key: DocVoidPAD},
	{all: []string{"equipment"}, any: []string{"quote", "invoice"}, key: DocEquipmentQuote},
	{all: []string{"accounts", "receivable"}, key: DocAccountsReceivable},
	{all: []string{"accounts", "payable"}, key: DocAccountsPayable},
	{all: []string{"invoice", "sample"}, key: DocInvoiceSamples},
	{all: []string{"cash", "flow"}, key: DocCashFlowStatement},
	{all: []string{"business", "plan"}, key: DocBusinessPlan},
	{all: []string{"collateral"}, key: DocCollateral},
	{all: []string{"profit", "loss"}, key: DocProfitLossStatement},
	{all: []string{"balance", "sheet"}, key: DocBalanceSheet},
	{all: []string{"supplier", "agreement"}, key: DocSupplierAgreement},
	{all: []string{"driver", "licen"}, key: DocDriversLicense},
	{all: []string{"proof", "identity"}, key: DocProofOfIdentity},
	{all: []string{"signed", "application"}, key: DocSignedApplication},
}

// NormalizeDocument maps a free-text requirement label to its canonical key.
// Labels no rule recognizes pass through as their own lower-cased,
// underscored key. Blank labels yield "".
func NormalizeDocument(label string) DocumentKey {
	norm := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	if norm == "" {
		return ""
	}
	if key, ok := documentSynonyms[norm]; ok {
		return key
	}

	key := DocumentKey(underscoreKey(norm))
	if _, ok := documentLabels[key]; ok {
		return key
	}

	for _, rule := range documentKeywordRules {
		if containsAll(norm, rule.all) && (len(rule.any) == 0 || containsAny(norm, rule.any)) {
			return rule.key
		}
	}
	return key
}

// Label returns the display label for a known key, or "" for pass-through
// keys.
func (k DocumentKey) Label() string {
	return documentLabels[k]
}

// Known reports whether the key is one of the canonical document types.
func (k DocumentKey) Known() bool {
	_, ok := documentLabels[k]
	return ok
}

// Quantity is how many copies of the document an applicant uploads.
func (k DocumentKey) Quantity() int {
	if q, ok := documentQuantities[k]; ok {
		return q
	}
	return 1
}

// categoryDocuments is the default checklist per category, used when no
// catalog data is available.
var categoryDocuments = map[Category][]DocumentKey{
	CategoryLineOfCredit: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocAccountsReceivable, DocCashFlowStatement, DocPersonalGuarantee,
	},
	CategoryTermLoan: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocBusinessPlan, DocPersonalFinancialStatement, DocCollateral,
	},
	CategoryEquipmentFinancing: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocEquipmentQuote, DocCollateral,
	},
	CategoryInvoiceFactoring: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocInvoiceSamples, DocAccountsReceivable,
	},
	CategoryWorkingCapital: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocAccountsReceivable, DocCashFlowStatement,
	},
	CategoryPurchaseOrderFinancing: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocSupplierAgreement,
	},
	CategoryAssetBasedLending: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocCollateral, DocAccountsReceivable,
	},
	CategorySBALoan: {
		DocBankStatements, DocTaxReturns, DocFinancialStatements, DocBusinessLicense,
		DocArticlesOfIncorporation, DocBusinessPlan, DocPersonalFinancialStatement, DocPersonalGuarantee,
	},
}

// DocumentsForCategory returns the default checklist for a category.
func DocumentsForCategory(c Category) []CanonicalDocument {
	keys := categoryDocuments[c]
	out := make([]CanonicalDocument, 0, len(keys))
	for _, k := range keys {
		out = append(out, newCanonicalDocument(k, ""))
	}
	return out
}

func underscoreKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
			continue
		}
		if r == '\'' {
			continue
		}
		pendingSep = b.Len() > 0
	}
	return b.String()
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
