package catalog

import "strings"

// ReferenceDrug is a row of the read-only drug reference catalog. The
// scientific name may hold several components joined with "+".
type ReferenceDrug struct {
	ID             int64  `db:"id" json:"id"`
	TradeName      string `db:"trade_name" json:"trade_name"`
	ScientificName string `db:"scientific_name" json:"scientific_name"`
	DosageAmount   int    `db:"dosage_amount" json:"dosage_amount"`
	Unit           string `db:"unit" json:"unit"`
	Classification string `db:"classification" json:"classification"`
}

// Components returns the scientific-name components as written in the
// catalog entry.
func (d *ReferenceDrug) Components() []string {
	return SplitComponents(d.ScientificName)
}

// SplitComponents splits a scientific name on "+". Original case is kept
// for display and storage; interaction lookups lowercase on their side.
func SplitComponents(scientificName string) []string {
	return strings.Split(scientificName, "+")
}

// Interaction is a known drug-drug interaction between two scientific-name
// components. A component pair may carry several rows, one per type.
type Interaction struct {
	ID              int64  `db:"id" json:"id"`
	ComponentA      string `db:"component_a" json:"component_a"`
	ComponentB      string `db:"component_b" json:"component_b"`
	InteractionType string `db:"interaction_type" json:"interaction_type"`
}
