package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Drug Repository ===========

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository {
	return &drugRepoPG{pool: pool}
}

func (r *drugRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const drugCols = `id, trade_name, scientific_name, dosage_amount, unit, classification`

func scanDrug(row pgx.Row) (*ReferenceDrug, error) {
	var d ReferenceDrug
	err := row.Scan(&d.ID, &d.TradeName, &d.ScientificName, &d.DosageAmount, &d.Unit, &d.Classification)
	return &d, err
}

func (r *drugRepoPG) GetByTradeName(ctx context.Context, tradeName string) (*ReferenceDrug, error) {
	d, err := scanDrug(r.conn(ctx).QueryRow(ctx,
		`SELECT `+drugCols+` FROM reference_drugs WHERE LOWER(trade_name) = LOWER($1)`, tradeName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDrugNotFound
		}
		return nil, fmt.Errorf("get drug by trade name: %w", err)
	}
	return d, nil
}

func (r *drugRepoPG) SearchByTradeName(ctx context.Context, query string, limit int) ([]*ReferenceDrug, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+drugCols+` FROM reference_drugs
		WHERE trade_name ILIKE '%' || $1 || '%'
		ORDER BY trade_name
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search drugs: %w", err)
	}
	defer rows.Close()

	var out []*ReferenceDrug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drug: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// =========== Interaction Repository ===========

type interactionRepoPG struct{ pool *pgxpool.Pool }

func NewInteractionRepoPG(pool *pgxpool.Pool) InteractionRepository {
	return &interactionRepoPG{pool: pool}
}

func (r *interactionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *interactionRepoPG) FindExact(ctx context.Context, componentA, componentB string) ([]string, error) {
	return r.findTypes(ctx,
		`SELECT interaction_type FROM drug_interactions
		WHERE LOWER(component_a) = LOWER($1) AND LOWER(component_b) = LOWER($2)`,
		componentA, componentB)
}

func (r *interactionRepoPG) FindContaining(ctx context.Context, componentA, componentB string) ([]string, error) {
	return r.findTypes(ctx,
		`SELECT interaction_type FROM drug_interactions
		WHERE component_a ILIKE '%' || $1 || '%' AND component_b ILIKE '%' || $2 || '%'`,
		componentA, componentB)
}

func (r *interactionRepoPG) findTypes(ctx context.Context, query, componentA, componentB string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, query, componentA, componentB)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan interaction type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
