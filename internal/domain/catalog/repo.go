package catalog

import "context"

// DrugRepository reads the reference drug catalog.
type DrugRepository interface {
	// GetByTradeName returns the drug whose trade name matches exactly,
	// ignoring case. Returns ErrDrugNotFound when absent.
	GetByTradeName(ctx context.Context, tradeName string) (*ReferenceDrug, error)

	// SearchByTradeName returns drugs whose trade name contains the query,
	// ignoring case, up to limit rows.
	SearchByTradeName(ctx context.Context, query string, limit int) ([]*ReferenceDrug, error)
}

// InteractionRepository reads the drug interaction table. Lookups are
// one-directional: callers that need both orderings of a pair issue two
// lookups.
type InteractionRepository interface {
	// FindExact returns the interaction types for rows whose first
	// component equals componentA and second equals componentB, ignoring
	// case.
	FindExact(ctx context.Context, componentA, componentB string) ([]string, error)

	// FindContaining returns the interaction types for rows whose first
	// component contains componentA and second contains componentB as
	// substrings, ignoring case.
	FindContaining(ctx context.Context, componentA, componentB string) ([]string, error)
}
