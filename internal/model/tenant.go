package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents the tenants table. Allocation records reference tenants
// but never own them; tenant CRUD lives with the registration workflows.
type Tenant struct {
	ID             uuid.UUID  `json:"id"`
	FullName       string     `json:"full_name"`
	ContactEmail   string     `json:"contact_email,omitempty"` // plaintext, never persisted
	EncryptedEmail []byte     `json:"-"`                       // AES-GCM ciphertext at rest
	EmailIV        []byte     `json:"-"`
	Phone          string     `json:"phone"`
	NationalID     string     `json:"national_id"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}
