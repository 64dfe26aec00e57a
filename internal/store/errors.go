package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoActiveLease is returned by Reallocate when the current lease is
	// not active or does not belong to the given tenant.
	ErrNoActiveLease = errors.New("no active lease for tenant")

	// ErrUnitUnavailable is returned when the target unit has a blocking
	// active lease or is not in a rentable lifecycle state.
	ErrUnitUnavailable = errors.New("unit unavailable")

	// ErrTimeout marks a store operation that exceeded its bounded timeout.
	// Callers may retry; the write itself was not applied.
	ErrTimeout = errors.New("store operation timed out")
)

// Constraint rule names, matching the migration DDL.
const (
	RuleOneActiveLeasePerUnit = "one_active_lease_per_unit"
	RuleLeaseDateOrder        = "lease_date_order"
	RulePositiveRent          = "positive_rent"
	RuleNonNegativeDeposit    = "non_negative_deposit"
)

// ConstraintViolation reports which declarative invariant a write broke.
// It is the store's last line of defense; the conflict engine exists to
// catch these earlier with a friendlier answer.
type ConstraintViolation struct {
	Rule   string
	Detail string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s): %s", e.Rule, e.Detail)
}

// pg error codes for constraint failures.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

var constraintRules = map[string]string{
	"leases_one_active_per_unit":    RuleOneActiveLeasePerUnit,
	"leases_date_order_check":       RuleLeaseDateOrder,
	"leases_monthly_rent_check":     RulePositiveRent,
	"leases_security_deposit_check": RuleNonNegativeDeposit,
}

// mapWriteError translates driver errors into the store taxonomy. Unknown
// errors pass through wrapped.
func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation:
			rule := constraintRules[pgErr.ConstraintName]
			if rule == "" {
				rule = pgErr.ConstraintName
			}
			return &ConstraintViolation{Rule: rule, Detail: pgErr.Message}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether an error is safe to retry after re-running
// the full conflict check.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}
