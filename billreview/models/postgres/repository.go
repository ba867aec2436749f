package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/chrscato/cdx-billreview/billreview/models"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sqlFlavor = sqlbuilder.PostgreSQL
)

// Ensure Repository satisfies the interface
var _ models.Repository = &Repository{}

type Repository struct {
	queryable
	executable
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db, db}
}

func NewRepositoryTx(tx *sql.Tx) *Repository {
	return &Repository{tx, tx}
}

func (r *Repository) GetFailedBills(ctx context.Context) ([]*models.FailedBill, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("filename", "provider", "service_lines", "failure_reasons")
	sb.From("failed_bills")
	sb.OrderBy("filename")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []*models.FailedBill
	for rows.Next() {
		bill, err := scanFailedBill(rows.Scan)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return bills, nil
}

func (r *Repository) GetFailedBill(ctx context.Context, filename string) (*models.FailedBill, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("filename", "provider", "service_lines", "failure_reasons")
	sb.From("failed_bills")
	sb.Where(sb.Equal("filename", filename))

	query, args := sb.Build()
	row := r.QueryRowContext(ctx, query, args...)

	bill, err := scanFailedBill(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return bill, nil
}

func (r *Repository) UpsertFailedBill(ctx context.Context, bill *models.FailedBill) error {
	serviceLines, err := json.Marshal(bill.ServiceLines)
	if err != nil {
		return err
	}

	reasons := make([]string, 0, len(bill.FailureReasons))
	for _, reason := range bill.FailureReasons {
		reasons = append(reasons, reason.String())
	}

	query, args := sqlbuilder.Buildf(`INSERT INTO failed_bills
		(filename, provider, service_lines, failure_reasons) VALUES
		(%s, %s, %s, %s)
		ON CONFLICT (filename) DO UPDATE SET
			provider = EXCLUDED.provider,
			service_lines = EXCLUDED.service_lines,
			failure_reasons = EXCLUDED.failure_reasons`,
		bill.Filename, bill.Provider, serviceLines, pq.Array(reasons)).
		BuildWithFlavor(sqlFlavor)

	_, err = r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) DeleteFailedBill(ctx context.Context, filename string) error {
	db := sqlFlavor.NewDeleteBuilder()
	db.DeleteFrom("failed_bills")
	db.Where(db.Equal("filename", filename))

	query, args := db.Build()
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	// Zero rows means another caller already resolved this bill; surfacing
	// the error keeps assignments at most once per filename.
	if affected == 0 {
		return fmt.Errorf("failed bill %s not deleted, no row found", filename)
	}

	return nil
}

func (r *Repository) GetCategoryMap(ctx context.Context) (models.CategoryMap, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("category", "procedure_code")
	sb.From("category_codes")
	sb.OrderBy("category", "id")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make(models.CategoryMap)
	for rows.Next() {
		var category, code string
		if err = rows.Scan(&category, &code); err != nil {
			return nil, err
		}
		categories[category] = append(categories[category], code)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *Repository) CreateAssignmentResult(ctx context.Context, result *models.AssignmentResult) error {
	updatedRates, err := json.Marshal(result.UpdatedRates)
	if err != nil {
		return err
	}

	var categorySummary interface{}
	if result.CategorySummary != nil {
		if categorySummary, err = json.Marshal(result.CategorySummary); err != nil {
			return err
		}
	}

	query, args := sqlbuilder.Buildf(`INSERT INTO assignment_results
		(id, filename, rate_type, updated_rates, category_summary, applied_at) VALUES
		(%s, %s, %s, %s, %s, %s)`,
		result.ID, result.Filename, result.RateType, updatedRates, categorySummary, result.AppliedAt).
		BuildWithFlavor(sqlFlavor)

	_, err = r.ExecContext(ctx, query, args...)
	return err
}

// scanFailedBill hydrates one failed_bills row. Reason strings are stored
// raw and re-parsed on the way out so unknown kinds survive round trips.
func scanFailedBill(scan func(dest ...interface{}) error) (*models.FailedBill, error) {
	var (
		bill         models.FailedBill
		serviceLines []byte
		reasons      pq.StringArray
	)

	if err := scan(&bill.Filename, &bill.Provider, &serviceLines, &reasons); err != nil {
		return nil, err
	}

	if len(serviceLines) > 0 {
		if err := json.Unmarshal(serviceLines, &bill.ServiceLines); err != nil {
			return nil, err
		}
	}
	for _, raw := range reasons {
		bill.FailureReasons = append(bill.FailureReasons, models.ParseFailureReason(raw))
	}

	return &bill, nil
}
