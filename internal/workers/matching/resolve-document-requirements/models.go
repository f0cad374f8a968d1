// internal/workers/matching/resolve-document-requirements/models.go
package resolvedocumentrequirements

import "loan-intake/internal/lending"

type Input struct {
	lending.ApplicantProfile
}

type Output struct {
	RequiredDocuments []lending.CanonicalDocument `json:"requiredDocuments"`
	DocumentKeys      []lending.DocumentKey       `json:"documentKeys"`
	EligibleCount     int                         `json:"eligibleCount"`
	HasMatches        bool                        `json:"hasMatches"`
	Degraded          bool                        `json:"degraded"`
	Source            string                      `json:"source"`
}

// Sources of the document list
const (
	SourceIntersection     = "intersection"
	SourceCategoryDefaults = "category_defaults"
	SourceNone             = "none"
)
