package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
	"github.com/chrscato/cdx-billreview/billreview/models"
	"github.com/chrscato/cdx-billreview/log"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetFailedBills(ctx context.Context) ([]*models.FailedBill, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FailedBill), args.Error(1)
}

func (m *mockRepository) GetFailedBill(ctx context.Context, filename string) (*models.FailedBill, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FailedBill), args.Error(1)
}

func (m *mockRepository) UpsertFailedBill(ctx context.Context, bill *models.FailedBill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

func (m *mockRepository) DeleteFailedBill(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *mockRepository) GetCategoryMap(ctx context.Context) (models.CategoryMap, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.CategoryMap), args.Error(1)
}

func (m *mockRepository) CreateAssignmentResult(ctx context.Context, result *models.AssignmentResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolvePayload(ctx context.Context, filename string, result *models.AssignmentResult) error {
	args := m.Called(ctx, filename, result)
	return args.Error(0)
}

type ServiceTestSuite struct {
	suite.Suite
	repository *mockRepository
	resolver   *mockResolver
	service    *service
}

func (s *ServiceTestSuite) SetupTest() {
	s.repository = &mockRepository{}
	s.resolver = &mockResolver{}
	s.service = &service{
		repository: s.repository,
		resolver:   s.resolver,
		logger:     log.API,
		now:        func() time.Time { return queryNow },
	}
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) TestGetFailedBillsUnfiltered() {
	bills := queryFixture()
	s.repository.On("GetFailedBills", mock.Anything).Return(bills, nil)

	result, err := s.service.GetFailedBills(context.Background(), BillFilter{})
	s.NoError(err)
	s.Equal(bills, result)
	s.repository.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestGetFailedBillsFiltered() {
	s.repository.On("GetFailedBills", mock.Anything).Return(queryFixture(), nil)

	result, err := s.service.GetFailedBills(context.Background(), BillFilter{Provider: "Radiology Partners"})
	s.NoError(err)
	s.Len(result, 2)
}

func (s *ServiceTestSuite) TestGetFailedBillsRepositoryError() {
	s.repository.On("GetFailedBills", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := s.service.GetFailedBills(context.Background(), BillFilter{})
	s.ErrorContains(err, "failed to retrieve failed bills")
}

func (s *ServiceTestSuite) TestGetFailedBillNotFound() {
	s.repository.On("GetFailedBill", mock.Anything, "missing.json").Return(nil, nil)

	_, err := s.service.GetFailedBill(context.Background(), "missing.json")
	var notFound *apperrors.EntityNotFoundError
	s.ErrorAs(err, &notFound)
	s.Equal("missing.json", notFound.Filename)
}

func (s *ServiceTestSuite) TestGroupFailedBills() {
	s.repository.On("GetFailedBills", mock.Anything).Return(queryFixture(), nil)

	groups, err := s.service.GroupFailedBills(context.Background(), GroupByProvider)
	s.NoError(err)
	s.Len(groups["Radiology Partners"], 2)
	s.Len(groups["Valley Ortho"], 2)
}

func (s *ServiceTestSuite) TestGetAggregateStats() {
	s.repository.On("GetFailedBills", mock.Anything).Return(queryFixture(), nil)

	stats, err := s.service.GetAggregateStats(context.Background())
	s.NoError(err)
	s.Equal(4, stats.TotalBills)
}

func (s *ServiceTestSuite) TestGetFilterOptions() {
	s.repository.On("GetFailedBills", mock.Anything).Return(queryFixture(), nil)

	options, err := s.service.GetFilterOptions(context.Background())
	s.NoError(err)
	s.Contains(options.FailureKinds, "RATE_MISSING")
	s.Contains(options.Providers, "Valley Ortho")
	s.Equal(models.AgeBuckets(), options.AgeBuckets)
}

func (s *ServiceTestSuite) TestAssignRatesIndividual() {
	bill := assignmentBill()
	s.repository.On("GetFailedBill", mock.Anything, bill.Filename).Return(bill, nil)
	s.repository.On("CreateAssignmentResult", mock.Anything, mock.Anything).Return(nil)
	s.resolver.On("ResolvePayload", mock.Anything, bill.Filename, mock.Anything).Return(nil)
	s.repository.On("DeleteFailedBill", mock.Anything, bill.Filename).Return(nil)

	req := models.RateAssignmentRequest{
		RateType: "individual",
		Rates:    []models.RateEntry{{ProcedureCode: "70551", Rate: 150}},
	}
	result, err := s.service.AssignRates(context.Background(), bill.Filename, req)
	s.NoError(err)
	s.NotEmpty(result.ID)
	s.Equal([]models.RateEntry{{ProcedureCode: "70551", Rate: 150}}, result.UpdatedRates)
	s.Equal(queryNow.UTC(), result.AppliedAt)
	s.repository.AssertExpectations(s.T())
	s.resolver.AssertExpectations(s.T())
	// Individual mode never touches the category map.
	s.repository.AssertNotCalled(s.T(), "GetCategoryMap", mock.Anything)
}

func (s *ServiceTestSuite) TestAssignRatesCategory() {
	bill := assignmentBill()
	s.repository.On("GetFailedBill", mock.Anything, bill.Filename).Return(bill, nil)
	s.repository.On("GetCategoryMap", mock.Anything).Return(assignmentCategories(), nil)
	s.repository.On("CreateAssignmentResult", mock.Anything, mock.Anything).Return(nil)
	s.resolver.On("ResolvePayload", mock.Anything, bill.Filename, mock.Anything).Return(nil)
	s.repository.On("DeleteFailedBill", mock.Anything, bill.Filename).Return(nil)

	req := models.RateAssignmentRequest{
		RateType:      "category",
		CategoryRates: map[string]float64{"mri_wo": 150},
	}
	result, err := s.service.AssignRates(context.Background(), bill.Filename, req)
	s.NoError(err)
	s.Equal([]models.RateEntry{{ProcedureCode: "70551", Rate: 150}}, result.UpdatedRates)
	s.Equal(map[string]int{"mri_wo": 1}, result.CategorySummary)
}

func (s *ServiceTestSuite) TestAssignRatesUnknownBill() {
	s.repository.On("GetFailedBill", mock.Anything, "gone.json").Return(nil, nil)

	req := models.RateAssignmentRequest{
		RateType: "individual",
		Rates:    []models.RateEntry{{ProcedureCode: "70551", Rate: 150}},
	}
	_, err := s.service.AssignRates(context.Background(), "gone.json", req)
	var notFound *apperrors.EntityNotFoundError
	s.ErrorAs(err, &notFound)
	s.repository.AssertNotCalled(s.T(), "CreateAssignmentResult", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestAssignRatesValidationFailureAppliesNothing() {
	bill := assignmentBill()
	s.repository.On("GetFailedBill", mock.Anything, bill.Filename).Return(bill, nil)
	s.repository.On("GetCategoryMap", mock.Anything).Return(assignmentCategories(), nil)

	req := models.RateAssignmentRequest{RateType: "category", CategoryRates: map[string]float64{}}
	_, err := s.service.AssignRates(context.Background(), bill.Filename, req)
	var empty *apperrors.EmptySubmissionError
	s.ErrorAs(err, &empty)
	s.repository.AssertNotCalled(s.T(), "CreateAssignmentResult", mock.Anything, mock.Anything)
	s.repository.AssertNotCalled(s.T(), "DeleteFailedBill", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestAssignRatesResolverFailureKeepsBill() {
	bill := assignmentBill()
	s.repository.On("GetFailedBill", mock.Anything, bill.Filename).Return(bill, nil)
	s.repository.On("CreateAssignmentResult", mock.Anything, mock.Anything).Return(nil)
	s.resolver.On("ResolvePayload", mock.Anything, bill.Filename, mock.Anything).Return(errors.New("s3 unavailable"))

	req := models.RateAssignmentRequest{
		RateType: "individual",
		Rates:    []models.RateEntry{{ProcedureCode: "70551", Rate: 150}},
	}
	_, err := s.service.AssignRates(context.Background(), bill.Filename, req)
	s.ErrorContains(err, "failed to resolve payload")
	s.repository.AssertNotCalled(s.T(), "DeleteFailedBill", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestAssignRatesDeleteFailureSurfaces() {
	bill := assignmentBill()
	s.repository.On("GetFailedBill", mock.Anything, bill.Filename).Return(bill, nil)
	s.repository.On("CreateAssignmentResult", mock.Anything, mock.Anything).Return(nil)
	s.resolver.On("ResolvePayload", mock.Anything, bill.Filename, mock.Anything).Return(nil)
	s.repository.On("DeleteFailedBill", mock.Anything, bill.Filename).Return(errors.New("no rows deleted"))

	req := models.RateAssignmentRequest{
		RateType: "individual",
		Rates:    []models.RateEntry{{ProcedureCode: "70551", Rate: 150}},
	}
	_, err := s.service.AssignRates(context.Background(), bill.Filename, req)
	s.ErrorContains(err, "failed to remove")
}

func TestNewService(t *testing.T) {
	svc := NewService(&mockRepository{}, &mockResolver{})
	assert.NotNil(t, svc)
}
