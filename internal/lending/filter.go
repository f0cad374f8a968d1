package lending

// FilterEligibleProducts returns the products whose category, country and
// amount range all match the profile, in input order. An empty result is a
// valid outcome meaning no lender fits.
//
// When the profile asks for invoice factoring without a positive
// accounts-receivable balance every factoring product is dropped.
func FilterEligibleProducts(products []LenderProduct, profile ApplicantProfile) []LenderProduct {
	want := ParseCategory(profile.Category)
	countries := ParseCountry(profile.Country)
	suppressFactoring := want.Is(CategoryInvoiceFactoring) && !profile.HasReceivables()

	eligible := make([]LenderProduct, 0, len(products))
	for _, p := range products {
		category := p.CategoryRef()
		if !category.Matches(want) {
			continue
		}
		if suppressFactoring && category.Is(CategoryInvoiceFactoring) {
			continue
		}
		if !p.Countries().Overlaps(countries) {
			continue
		}
		if !p.AcceptsAmount(profile.RequestedAmount) {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// Rejection explains why a product was not eligible. It backs the operator
// CLI's --explain output.
type Rejection struct {
	ProductID string   `json:"productId" yaml:"productId"`
	Reasons   []string `json:"reasons" yaml:"reasons"`
}

// ExplainRejections lists, for each ineligible product, the rules it failed.
func ExplainRejections(products []LenderProduct, profile ApplicantProfile) []Rejection {
	want := ParseCategory(profile.Category)
	countries := ParseCountry(profile.Country)
	suppressFactoring := want.Is(CategoryInvoiceFactoring) && !profile.HasReceivables()

	var out []Rejection
	for _, p := range products {
		var reasons []string
		category := p.CategoryRef()
		if !category.Matches(want) {
			reasons = append(reasons, "category mismatch: "+p.Category)
		}
		if suppressFactoring && category.Is(CategoryInvoiceFactoring) {
			reasons = append(reasons, "factoring requires accounts receivable")
		}
		if !p.Countries().Overlaps(countries) {
			reasons = append(reasons, "country mismatch: "+p.Country)
		}
		if !p.AcceptsAmount(profile.RequestedAmount) {
			reasons = append(reasons, "amount outside range")
		}
		if len(reasons) > 0 {
			out = append(out, Rejection{ProductID: p.ID, Reasons: reasons})
		}
	}
	return out
}
