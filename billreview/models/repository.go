package models

import (
	"context"
)

// FailedBillRepository contains the methods needed to interact with the
// failed-bill index.
type FailedBillRepository interface {
	// GetFailedBills returns every bill currently awaiting resolution,
	// ordered by filename for stable views.
	GetFailedBills(ctx context.Context) ([]*FailedBill, error)

	GetFailedBill(ctx context.Context, filename string) (*FailedBill, error)

	UpsertFailedBill(ctx context.Context, bill *FailedBill) error

	// DeleteFailedBill removes a bill from the failed set. It reports an
	// error when no row matched, which is how at-most-one assignment per
	// filename is enforced.
	DeleteFailedBill(ctx context.Context, filename string) error
}

// CategoryRepository supplies the externally maintained category map.
type CategoryRepository interface {
	GetCategoryMap(ctx context.Context) (CategoryMap, error)
}

// AssignmentRepository persists assignment results for audit.
type AssignmentRepository interface {
	CreateAssignmentResult(ctx context.Context, result *AssignmentResult) error
}

// Repository is the full set of persistence methods the service needs.
type Repository interface {
	FailedBillRepository
	CategoryRepository
	AssignmentRepository
}
