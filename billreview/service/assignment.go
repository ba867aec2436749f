package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
	"github.com/chrscato/cdx-billreview/billreview/models"
)

// ValidatedAssignment is a normalized, mode-tagged request ready for
// ApplyAssignment. Produced only by ValidateAssignment.
type ValidatedAssignment struct {
	RateType      string
	Rates         []models.RateEntry
	CategoryRates map[string]float64
}

// ValidateAssignment gates a rate assignment request. Rules run in order
// and the first failure short-circuits; on failure nothing is applied.
//
// A category that resolves to zero matching codes is not an error: the
// request is accepted and the category simply contributes a zero-count
// line to the summary.
func ValidateAssignment(req models.RateAssignmentRequest, bill *models.FailedBill, categories models.CategoryMap) (*ValidatedAssignment, error) {
	switch req.RateType {
	case constants.RateTypeIndividual:
		if len(req.CategoryRates) > 0 {
			return nil, &apperrors.MalformedRequestError{Msg: "individual request also carries category rates"}
		}
		if len(req.Rates) == 0 {
			return nil, &apperrors.MalformedRequestError{Msg: "individual request carries no rates"}
		}
		return validateIndividual(req)
	case constants.RateTypeCategory:
		if len(req.Rates) > 0 {
			return nil, &apperrors.MalformedRequestError{Msg: "category request also carries individual rates"}
		}
		return validateCategory(req)
	default:
		return nil, &apperrors.MalformedRequestError{Msg: fmt.Sprintf("unknown rate type %q", req.RateType)}
	}
}

func validateIndividual(req models.RateAssignmentRequest) (*ValidatedAssignment, error) {
	normalized := make([]models.RateEntry, 0, len(req.Rates))
	for _, entry := range req.Rates {
		code := strings.TrimSpace(entry.ProcedureCode)
		if code == "" || entry.Rate <= 0 {
			return nil, &apperrors.InvalidRateError{Field: code}
		}
		normalized = append(normalized, models.RateEntry{
			ProcedureCode: code,
			Rate:          entry.Rate,
			Modifier:      strings.TrimSpace(entry.Modifier),
		})
	}

	return &ValidatedAssignment{RateType: constants.RateTypeIndividual, Rates: normalized}, nil
}

func validateCategory(req models.RateAssignmentRequest) (*ValidatedAssignment, error) {
	if len(req.CategoryRates) == 0 {
		return nil, &apperrors.EmptySubmissionError{}
	}

	// Deterministic rule order so the same bad submission always names the
	// same offending category.
	categories := make([]string, 0, len(req.CategoryRates))
	for category := range req.CategoryRates {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	normalized := make(map[string]float64, len(req.CategoryRates))
	for _, category := range categories {
		rate := req.CategoryRates[category]
		if rate <= 0 {
			return nil, &apperrors.InvalidRateError{Field: category}
		}
		normalized[category] = rate
	}

	return &ValidatedAssignment{RateType: constants.RateTypeCategory, CategoryRates: normalized}, nil
}

// updateKey identifies one ratable unit. The (procedure code, modifier)
// pair is the key, not the code alone: 70551 billed with modifier 26 and
// again with TC carries two independent rates.
type updateKey struct {
	code     string
	modifier string
}

// ApplyAssignment applies a validated request against the bill's failing
// procedure codes. All-or-nothing: any inconsistency the validator could
// not see aborts with ApplyFailedError and nothing recorded.
func ApplyAssignment(va *ValidatedAssignment, bill *models.FailedBill, categories models.CategoryMap, appliedAt time.Time) (*models.AssignmentResult, error) {
	result := &models.AssignmentResult{
		Filename:     bill.Filename,
		RateType:     va.RateType,
		UpdatedRates: []models.RateEntry{},
		AppliedAt:    appliedAt,
	}

	switch va.RateType {
	case constants.RateTypeIndividual:
		result.UpdatedRates = applyIndividual(va.Rates)
	case constants.RateTypeCategory:
		updates, summary, err := applyCategory(va.CategoryRates, bill, categories)
		if err != nil {
			return nil, err
		}
		result.UpdatedRates = updates
		result.CategorySummary = summary
	default:
		return nil, &apperrors.ApplyFailedError{Msg: fmt.Sprintf("unknown rate type %q", va.RateType)}
	}

	return result, nil
}

// applyIndividual records one update per (code, modifier) pair. Duplicate
// pairs resolve last-write-wins; output keeps first-appearance order.
func applyIndividual(entries []models.RateEntry) []models.RateEntry {
	var order []updateKey
	updates := make(map[updateKey]models.RateEntry, len(entries))

	for _, entry := range entries {
		key := updateKey{code: entry.ProcedureCode, modifier: entry.Modifier}
		if _, ok := updates[key]; !ok {
			order = append(order, key)
		}
		updates[key] = entry
	}

	applied := make([]models.RateEntry, 0, len(order))
	for _, key := range order {
		applied = append(applied, updates[key])
	}
	return applied
}

// applyCategory intersects each enabled category's codes with the bill's
// failing codes and rates every code in the intersection. Intersection
// counts, zeros included, are recorded verbatim in the summary.
func applyCategory(categoryRates map[string]float64, bill *models.FailedBill, categories models.CategoryMap) ([]models.RateEntry, map[string]int, error) {
	failing := make(map[string]struct{})
	for _, code := range bill.FailingCodes() {
		failing[code] = struct{}{}
	}

	enabled := make([]string, 0, len(categoryRates))
	for category := range categoryRates {
		enabled = append(enabled, category)
	}
	sort.Strings(enabled)

	updates := []models.RateEntry{}
	summary := make(map[string]int, len(enabled))
	rated := make(map[string]struct{})

	for _, category := range enabled {
		codes, ok := categories[category]
		if !ok {
			// The category map changed between validate and apply; abort
			// without partially recording updates.
			return nil, nil, &apperrors.ApplyFailedError{Msg: fmt.Sprintf("category %s missing from category map", category)}
		}

		count := 0
		for _, code := range codes {
			if _, failingCode := failing[code]; !failingCode {
				continue
			}
			count++
			if _, alreadyRated := rated[code]; alreadyRated {
				continue
			}
			rated[code] = struct{}{}
			updates = append(updates, models.RateEntry{ProcedureCode: code, Rate: categoryRates[category]})
		}
		summary[category] = count
	}

	return updates, summary, nil
}
