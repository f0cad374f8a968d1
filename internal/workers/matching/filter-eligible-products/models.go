// internal/workers/matching/filter-eligible-products/models.go
package filtereligibleproducts

import "loan-intake/internal/lending"

type Input struct {
	lending.ApplicantProfile
	Explain bool `json:"explain,omitempty"`
}

type Output struct {
	EligibleProducts []lending.LenderProduct `json:"eligibleProducts"`
	EligibleCount    int                     `json:"eligibleCount"`
	HasMatches       bool                    `json:"hasMatches"`
	Degraded         bool                    `json:"degraded"`
	CatalogSource    string                  `json:"catalogSource"`
	Rejections       []lending.Rejection     `json:"rejections,omitempty"`
}
