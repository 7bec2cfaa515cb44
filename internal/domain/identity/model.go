package identity

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a prescribing account.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FirstName      string    `db:"first_name" json:"fname"`
	LastName       string    `db:"last_name" json:"lname"`
	Gender         string    `db:"gender" json:"gender"`
	BirthDate      string    `db:"birth_date" json:"birthdate"`
	Phone          string    `db:"phone" json:"phone"`
	LicenseNumber  string    `db:"license_number" json:"license_number"`
	Specialization string    `db:"specialization" json:"specialization"`
	Image          *string   `db:"image" json:"image"`
	Verified       bool      `db:"verified" json:"is_verified"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Patient is a care-receiving account.
type Patient struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	Username        string    `db:"username" json:"username"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	FirstName       string    `db:"first_name" json:"fname"`
	LastName        string    `db:"last_name" json:"lname"`
	Gender          string    `db:"gender" json:"gender"`
	BirthDate       string    `db:"birth_date" json:"birthdate"`
	Phone           string    `db:"phone" json:"phone"`
	ChronicDiseases []string  `db:"chronic_diseases" json:"chronic_disease"`
	Image           *string   `db:"image" json:"image"`
	Verified        bool      `db:"verified" json:"is_verified"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// DoctorInfo is the public projection of a doctor shown to patients.
type DoctorInfo struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"fname"`
	LastName  string    `json:"lname"`
	Image     *string   `json:"image"`
}

// Info returns the doctor's public projection.
func (d *Doctor) Info() DoctorInfo {
	return DoctorInfo{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Image: d.Image}
}
