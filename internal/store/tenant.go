package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/allocation-engine/internal/crypto"
	"github.com/rentfold/allocation-engine/internal/model"
)

// CreateTenant inserts a new tenant. Contact email is encrypted at rest.
func (s *Store) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.Status == "" {
		tenant.Status = "active"
	}

	if tenant.ContactEmail != "" {
		encryptedEmail, iv, err := crypto.Encrypt(tenant.ContactEmail)
		if err != nil {
			return err
		}
		tenant.EncryptedEmail = encryptedEmail
		tenant.EmailIV = iv
	}

	query := `
		INSERT INTO tenants (id, full_name, encrypted_email, email_iv, phone, national_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		tenant.ID, tenant.FullName, tenant.EncryptedEmail, tenant.EmailIV,
		tenant.Phone, tenant.NationalID, tenant.Status,
		tenant.CreatedAt, tenant.UpdatedAt,
	)
	return mapWriteError("create tenant", err)
}

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, full_name, encrypted_email, email_iv, phone, national_id, status, created_at, updated_at, deleted_at
		FROM tenants
		WHERE id = $1 AND deleted_at IS NULL
	`
	tenant := &model.Tenant{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.FullName, &tenant.EncryptedEmail, &tenant.EmailIV,
		&tenant.Phone, &tenant.NationalID, &tenant.Status,
		&tenant.CreatedAt, &tenant.UpdatedAt, &tenant.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError("get tenant", err)
	}

	if len(tenant.EncryptedEmail) > 0 && len(tenant.EmailIV) > 0 {
		contactEmail, err := crypto.Decrypt(tenant.EncryptedEmail, tenant.EmailIV)
		if err != nil {
			return nil, err
		}
		tenant.ContactEmail = contactEmail
	}
	return tenant, nil
}
