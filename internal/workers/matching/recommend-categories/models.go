// internal/workers/matching/recommend-categories/models.go
package recommendcategories

import "loan-intake/internal/lending"

type Input struct {
	lending.ApplicantProfile
}

type Output struct {
	Categories        []lending.CategoryRecommendation `json:"categories"`
	TopCategory       string                           `json:"topCategory,omitempty"`
	HasRecommendation bool                             `json:"hasRecommendation"`
	Degraded          bool                             `json:"degraded"`
	CatalogSource     string                           `json:"catalogSource"`
}
