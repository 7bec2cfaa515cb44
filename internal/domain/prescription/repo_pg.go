package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const prescriptionCols = `id, session_id, doctor_id, patient_id, created_at, drugs`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.SessionID, &p.DoctorID, &p.PatientID, &p.CreatedAt, &p.Drugs)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, session_id, doctor_id, patient_id, drugs)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		p.ID, p.SessionID, p.DoctorID, p.PatientID, p.Drugs,
	).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	return p, nil
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET drugs = $2 WHERE id = $1`, p.ID, p.Drugs)
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) ExistsForSession(ctx context.Context, doctorID, patientID, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM prescriptions
			WHERE doctor_id = $1 AND patient_id = $2 AND session_id = $3)`,
		doctorID, patientID, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check prescription exists: %w", err)
	}
	return exists, nil
}

func (r *prescriptionRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	out := []*Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *prescriptionRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE doctor_id = $1 ORDER BY created_at DESC`,
		doctorID)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
}

func (r *prescriptionRepoPG) ListByDoctorAndPatient(ctx context.Context, doctorID, patientID uuid.UUID) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions
		WHERE doctor_id = $1 AND patient_id = $2 ORDER BY created_at DESC`,
		doctorID, patientID)
}

func (r *prescriptionRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE session_id = $1 ORDER BY created_at DESC`,
		sessionID)
}
