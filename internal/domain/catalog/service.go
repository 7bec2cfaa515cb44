package catalog

import (
	"context"
	"errors"
)

var (
	// ErrDrugNotFound indicates the trade name has no catalog entry.
	ErrDrugNotFound = errors.New("drug not found")

	// ErrQueryTooShort indicates a search query below the minimum length.
	ErrQueryTooShort = errors.New("query too short")
)

const searchMinLength = 2

// ResolvedDrug is the catalog data denormalized into prescriptions at
// create/update time.
type ResolvedDrug struct {
	ID             int64
	TradeName      string
	ScientificName string
	Components     []string
}

// Service exposes catalog reads: trade-name resolution for the prescription
// workflow and fuzzy search for autocomplete.
type Service struct {
	drugs DrugRepository
}

func NewService(drugs DrugRepository) *Service {
	return &Service{drugs: drugs}
}

// Resolve maps a trade name to its scientific name and components, case
// preserved. Returns ErrDrugNotFound for unknown names.
func (s *Service) Resolve(ctx context.Context, tradeName string) (*ResolvedDrug, error) {
	d, err := s.drugs.GetByTradeName(ctx, tradeName)
	if err != nil {
		return nil, err
	}
	return &ResolvedDrug{
		ID:             d.ID,
		TradeName:      d.TradeName,
		ScientificName: d.ScientificName,
		Components:     d.Components(),
	}, nil
}

// SearchResult is the outcome of a catalog search: either a single exact
// match or a list of fuzzy matches.
type SearchResult struct {
	Exact   *ReferenceDrug
	Matches []*ReferenceDrug
}

// Search looks the query up by exact trade name first; when that misses it
// falls back to substring matching limited to limit rows.
func (s *Service) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if len(query) < searchMinLength {
		return nil, ErrQueryTooShort
	}

	exact, err := s.drugs.GetByTradeName(ctx, query)
	if err == nil {
		return &SearchResult{Exact: exact}, nil
	}
	if !errors.Is(err, ErrDrugNotFound) {
		return nil, err
	}

	matches, err := s.drugs.SearchByTradeName(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Matches: matches}, nil
}
