package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
	"github.com/chrscato/cdx-billreview/billreview/models"
	"github.com/chrscato/cdx-billreview/log"
)

// Ensure service satisfies the interface
var _ Service = &service{}

// Service contains all of the methods needed to triage failed bills and
// resolve them through rate assignment.
type Service interface {
	GetFailedBills(ctx context.Context, filter BillFilter) ([]*models.FailedBill, error)

	GetFailedBill(ctx context.Context, filename string) (*models.FailedBill, error)

	GroupFailedBills(ctx context.Context, dimension GroupDimension) (map[string][]*models.FailedBill, error)

	GetAggregateStats(ctx context.Context) (Stats, error)

	GetFilterOptions(ctx context.Context) (FilterOptions, error)

	// AssignRates validates and applies a rate assignment against the
	// named bill, persists the result, rewrites the stored payload, and
	// removes the bill from the failed set.
	AssignRates(ctx context.Context, filename string, req models.RateAssignmentRequest) (*models.AssignmentResult, error)
}

// FilterOptions populates the dashboard's filter dropdowns. Option sets are
// sorted for deterministic, stable ordering.
type FilterOptions struct {
	FailureKinds []string `json:"failure_kinds"`
	Providers    []string `json:"providers"`
	AgeBuckets   []string `json:"age_buckets"`
}

// PayloadResolver rewrites a resolved bill's stored payload with the
// applied rate assignment and moves it out of the fails location.
type PayloadResolver interface {
	ResolvePayload(ctx context.Context, filename string, result *models.AssignmentResult) error
}

func NewService(r models.Repository, resolver PayloadResolver) Service {
	return &service{
		repository: r,
		resolver:   resolver,
		logger:     log.API,
		now:        time.Now,
	}
}

type service struct {
	repository models.Repository
	resolver   PayloadResolver

	logger logrus.FieldLogger

	// now is swapped in tests to pin age bucketing.
	now func() time.Time
}

func (s *service) GetFailedBills(ctx context.Context, filter BillFilter) ([]*models.FailedBill, error) {
	bills, err := s.repository.GetFailedBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve failed bills: %w", err)
	}
	if filter.IsEmpty() {
		return bills, nil
	}
	return FilterBills(bills, filter, s.now()), nil
}

func (s *service) GetFailedBill(ctx context.Context, filename string) (*models.FailedBill, error) {
	bill, err := s.repository.GetFailedBill(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bill %s: %w", filename, err)
	}
	if bill == nil {
		return nil, &apperrors.EntityNotFoundError{Err: fmt.Errorf("bill not in failed set"), Filename: filename}
	}
	return bill, nil
}

func (s *service) GroupFailedBills(ctx context.Context, dimension GroupDimension) (map[string][]*models.FailedBill, error) {
	bills, err := s.repository.GetFailedBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve failed bills: %w", err)
	}
	return GroupBills(bills, dimension, s.now())
}

func (s *service) GetAggregateStats(ctx context.Context) (Stats, error) {
	bills, err := s.repository.GetFailedBills(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to retrieve failed bills: %w", err)
	}
	return AggregateStats(bills, s.now()), nil
}

func (s *service) GetFilterOptions(ctx context.Context) (FilterOptions, error) {
	bills, err := s.repository.GetFailedBills(ctx)
	if err != nil {
		return FilterOptions{}, fmt.Errorf("failed to retrieve failed bills: %w", err)
	}
	return FilterOptions{
		FailureKinds: DistinctFailureKinds(bills),
		Providers:    DistinctProviders(bills),
		AgeBuckets:   models.AgeBuckets(),
	}, nil
}

func (s *service) AssignRates(ctx context.Context, filename string, req models.RateAssignmentRequest) (*models.AssignmentResult, error) {
	bill, err := s.GetFailedBill(ctx, filename)
	if err != nil {
		return nil, err
	}

	// The category map is loaded fresh per operation and treated as
	// immutable input from there on.
	var categories models.CategoryMap
	if req.RateType == constants.RateTypeCategory {
		if categories, err = s.repository.GetCategoryMap(ctx); err != nil {
			return nil, fmt.Errorf("failed to load category map: %w", err)
		}
	}

	validated, err := ValidateAssignment(req, bill, categories)
	if err != nil {
		return nil, err
	}

	result, err := ApplyAssignment(validated, bill, categories, s.now().UTC())
	if err != nil {
		return nil, err
	}
	result.ID = uuid.NewRandom().String()

	if err := s.repository.CreateAssignmentResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist assignment result for %s: %w", filename, err)
	}

	if s.resolver != nil {
		if err := s.resolver.ResolvePayload(ctx, filename, result); err != nil {
			return nil, fmt.Errorf("failed to resolve payload for %s: %w", filename, err)
		}
	}

	// The conditional delete is what enforces at-most-one assignment per
	// filename: a concurrent caller lost the race if no row matched.
	if err := s.repository.DeleteFailedBill(ctx, filename); err != nil {
		return nil, fmt.Errorf("failed to remove %s from failed set: %w", filename, err)
	}

	s.logger.WithFields(logrus.Fields{
		"filename":  filename,
		"rate_type": result.RateType,
		"updated":   len(result.UpdatedRates),
	}).Info("rate assignment applied")

	return result, nil
}
