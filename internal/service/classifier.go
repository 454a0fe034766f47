package service

import "github.com/boddenberg/ynab-shared-report/internal/domain"

// BuildCategoryShareMap marks every category under a shared group as shared
// and every other category as not shared. A category listed under several
// groups takes the flag of the last one.
func BuildCategoryShareMap(groups []domain.CategoryGroup, sharedGroups []string) domain.CategoryShareMap {
	shared := make(map[string]bool, len(sharedGroups))
	for _, name := range sharedGroups {
		shared[name] = true
	}

	m := make(domain.CategoryShareMap)
	for _, g := range groups {
		isShared := shared[g.Name]
		for _, c := range g.Categories {
			m[c.ID] = isShared
		}
	}
	return m
}
