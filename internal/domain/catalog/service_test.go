package catalog

import (
	"context"
	"strings"
	"testing"
)

type fakeDrugRepo struct {
	drugs []*ReferenceDrug
}

func (f *fakeDrugRepo) GetByTradeName(_ context.Context, tradeName string) (*ReferenceDrug, error) {
	for _, d := range f.drugs {
		if strings.EqualFold(d.TradeName, tradeName) {
			return d, nil
		}
	}
	return nil, ErrDrugNotFound
}

func (f *fakeDrugRepo) SearchByTradeName(_ context.Context, query string, limit int) ([]*ReferenceDrug, error) {
	var out []*ReferenceDrug
	for _, d := range f.drugs {
		if strings.Contains(strings.ToLower(d.TradeName), strings.ToLower(query)) {
			out = append(out, d)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func testRepo() *fakeDrugRepo {
	return &fakeDrugRepo{drugs: []*ReferenceDrug{
		{ID: 1, TradeName: "Aspocid", ScientificName: "Aspirin", DosageAmount: 75, Unit: "mg"},
		{ID: 2, TradeName: "Marevan", ScientificName: "Warfarin", DosageAmount: 5, Unit: "mg"},
		{ID: 3, TradeName: "Augmentin", ScientificName: "Amoxicillin+Clavulanic Acid", DosageAmount: 625, Unit: "mg"},
	}}
}

func TestSplitComponents(t *testing.T) {
	got := SplitComponents("Amoxicillin+Clavulanic Acid")
	if len(got) != 2 {
		t.Fatalf("expected 2 components, got %d", len(got))
	}
	// Original case survives the split; only comparisons lowercase.
	if got[0] != "Amoxicillin" {
		t.Errorf("expected Amoxicillin, got %q", got[0])
	}
	if got[1] != "Clavulanic Acid" {
		t.Errorf("expected Clavulanic Acid, got %q", got[1])
	}
}

func TestSplitComponents_SingleComponent(t *testing.T) {
	got := SplitComponents("Warfarin")
	if len(got) != 1 || got[0] != "Warfarin" {
		t.Errorf("unexpected components: %v", got)
	}
}

func TestResolve(t *testing.T) {
	svc := NewService(testRepo())

	r, err := svc.Resolve(context.Background(), "augmentin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ScientificName != "Amoxicillin+Clavulanic Acid" {
		t.Errorf("unexpected scientific name: %s", r.ScientificName)
	}
	if len(r.Components) != 2 || r.Components[0] != "Amoxicillin" {
		t.Errorf("unexpected components: %v", r.Components)
	}
}

func TestResolve_NotFound(t *testing.T) {
	svc := NewService(testRepo())

	_, err := svc.Resolve(context.Background(), "Unknownol")
	if err != ErrDrugNotFound {
		t.Errorf("expected ErrDrugNotFound, got %v", err)
	}
}

func TestSearch_QueryTooShort(t *testing.T) {
	svc := NewService(testRepo())

	_, err := svc.Search(context.Background(), "a", 10)
	if err != ErrQueryTooShort {
		t.Errorf("expected ErrQueryTooShort, got %v", err)
	}
}

func TestSearch_ExactMatchWins(t *testing.T) {
	svc := NewService(testRepo())

	// "Aspocid" also substring-matches itself; the exact hit short-circuits.
	result, err := svc.Search(context.Background(), "aspocid", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exact == nil {
		t.Fatal("expected exact match")
	}
	if result.Exact.TradeName != "Aspocid" {
		t.Errorf("unexpected trade name: %s", result.Exact.TradeName)
	}
	if result.Matches != nil {
		t.Error("expected no fuzzy matches alongside exact hit")
	}
}

func TestSearch_FuzzyFallback(t *testing.T) {
	svc := NewService(testRepo())

	result, err := svc.Search(context.Background(), "ma", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exact != nil {
		t.Error("expected no exact match")
	}
	if len(result.Matches) != 1 || result.Matches[0].TradeName != "Marevan" {
		t.Errorf("unexpected matches: %v", result.Matches)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	svc := NewService(testRepo())

	result, err := svc.Search(context.Background(), "zz", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exact != nil || len(result.Matches) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
