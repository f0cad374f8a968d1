package lending

import (
	"math"
	"sort"
)

const (
	baseMatchScore    = 60
	amountMatchWeight = 30
	purposeWeight     = 10
	maxMatchScore     = 100
)

// CategoryRecommendation summarizes the catalog products of one category
// available to an applicant.
type CategoryRecommendation struct {
	Category   string `json:"category" yaml:"category"`
	Name       string `json:"name" yaml:"name"`
	Count      int    `json:"count" yaml:"count"`
	Percentage int    `json:"percentage" yaml:"percentage"`
	MatchScore int    `json:"matchScore" yaml:"matchScore"`
}

// RecommendCategories groups the products serving the applicant's country by
// category and scores each group. The profile category is ignored, since the
// point is to suggest one.
//
// A group scores 60, plus up to 30 for the share of its products whose range
// covers the requested amount, plus up to 10 for the share whose category
// suits the funds purpose. Results are ordered by score, then name.
func RecommendCategories(products []LenderProduct, profile ApplicantProfile) []CategoryRecommendation {
	countries := ParseCountry(profile.Country)
	noReceivables := !profile.HasReceivables()

	type group struct {
		ref      CategoryRef
		products []LenderProduct
	}
	var (
		order  []string
		groups = make(map[string]*group)
		total  int
	)
	for _, p := range products {
		if !p.Countries().Overlaps(countries) {
			continue
		}
		ref := p.CategoryRef()
		if ref.Key == "" {
			continue
		}
		if noReceivables && ref.Is(CategoryInvoiceFactoring) {
			continue
		}
		key := ref.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &group{ref: ref}
			groups[key] = g
			order = append(order, key)
		}
		g.products = append(g.products, p)
		total++
	}

	allowed := AllowedCategoriesForPurpose(profile.FundsPurpose)
	out := make([]CategoryRecommendation, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, CategoryRecommendation{
			Category:   key,
			Name:       g.ref.DisplayName(),
			Count:      len(g.products),
			Percentage: int(math.Round(float64(len(g.products)) / float64(total) * 100)),
			MatchScore: matchScore(g.products, profile, allowed),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func matchScore(products []LenderProduct, profile ApplicantProfile, allowed []Category) int {
	n := float64(len(products))
	score := float64(baseMatchScore)

	if profile.RequestedAmount.IsPositive() {
		var fits int
		for _, p := range products {
			if p.AcceptsAmount(profile.RequestedAmount) {
				fits++
			}
		}
		score += float64(fits) / n * amountMatchWeight
	}

	if len(allowed) > 0 {
		var suited int
		for _, p := range products {
			if containsCategory(allowed, p.CategoryRef().Category) {
				suited++
			}
		}
		score += float64(suited) / n * purposeWeight
	}

	return int(math.Min(math.Round(score), maxMatchScore))
}

func containsCategory(list []Category, c Category) bool {
	if c == CategoryUnknown {
		return false
	}
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
