package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	"github.com/chrscato/cdx-billreview/billreview/models"
)

// BillFilter holds the operator's view criteria. Zero-valued fields are not
// applied; supplied criteria compose conjunctively.
type BillFilter struct {
	Kind      models.FailureKind
	Provider  string
	AgeBucket string
	Search    string
}

// IsEmpty reports whether no criterion is supplied.
func (f BillFilter) IsEmpty() bool {
	return f.Kind == "" && f.Provider == "" && f.AgeBucket == "" && f.Search == ""
}

func (f BillFilter) matches(bill *models.FailedBill, now time.Time) bool {
	if f.Kind != "" && !bill.HasKind(f.Kind) {
		return false
	}
	if f.Provider != "" && bill.Provider != f.Provider {
		return false
	}
	if f.AgeBucket != "" {
		// Bills with undefined age fail every bucket criterion; they are
		// only visible in unfiltered views and the Unknown group.
		days, ok := bill.AgeDays(now)
		if !ok || models.BucketForAge(days) != f.AgeBucket {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(bill.Filename), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// FilterBills returns the ordered subsequence of bills satisfying every
// supplied criterion. Input order is preserved; an empty filter is the
// identity.
func FilterBills(bills []*models.FailedBill, filter BillFilter, now time.Time) []*models.FailedBill {
	matched := make([]*models.FailedBill, 0, len(bills))
	for _, bill := range bills {
		if filter.matches(bill, now) {
			matched = append(matched, bill)
		}
	}
	return matched
}

// DistinctFailureKinds returns the sorted set of kind tokens present across
// all failure reasons; used to populate filter choices.
func DistinctFailureKinds(bills []*models.FailedBill) []string {
	seen := make(map[string]struct{})
	for _, bill := range bills {
		for _, reason := range bill.FailureReasons {
			seen[string(reason.Kind)] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// DistinctProviders returns the sorted set of provider names.
func DistinctProviders(bills []*models.FailedBill) []string {
	seen := make(map[string]struct{})
	for _, bill := range bills {
		seen[bill.Provider] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GroupDimension selects the group key for GroupBills.
type GroupDimension string

const (
	GroupByKind      GroupDimension = "kind"
	GroupByProvider  GroupDimension = "provider"
	GroupByAgeBucket GroupDimension = "age"
)

// GroupBills partitions bills by the chosen dimension, preserving input
// order within each group. Grouping by kind follows the GroupByFirstReason
// policy: a bill with several distinct failing kinds groups only under its
// first-listed one. Bills missing the dimension value group under Unknown
// rather than dropping out of the view.
func GroupBills(bills []*models.FailedBill, dimension GroupDimension, now time.Time) (map[string][]*models.FailedBill, error) {
	keyFor, err := groupKeyFunc(dimension, now)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*models.FailedBill)
	for _, bill := range bills {
		key := keyFor(bill)
		groups[key] = append(groups[key], bill)
	}
	return groups, nil
}

func groupKeyFunc(dimension GroupDimension, now time.Time) (func(*models.FailedBill) string, error) {
	switch dimension {
	case GroupByKind:
		return func(bill *models.FailedBill) string {
			if kind, ok := bill.FirstKind(); ok {
				return string(kind)
			}
			return constants.UnknownBucket
		}, nil
	case GroupByProvider:
		return func(bill *models.FailedBill) string {
			if bill.Provider == "" {
				return constants.UnknownProvider
			}
			return bill.Provider
		}, nil
	case GroupByAgeBucket:
		return func(bill *models.FailedBill) string {
			return bill.AgeBucket(now)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported group dimension %s", dimension)
	}
}

// Stats summarizes a failed-bill collection for the dashboard. Each bill
// increments exactly one count per grouping: byKind uses the first-reason
// rule, byAgeBucket the bill's single bucket (Unknown when undefined).
type Stats struct {
	TotalBills  int            `json:"total_bills"`
	ByKind      map[string]int `json:"by_kind"`
	ByProvider  map[string]int `json:"by_provider"`
	ByAgeBucket map[string]int `json:"by_age_bucket"`
}

// AggregateStats computes dashboard counts over the collection. It never
// fails; bills with missing fields land in Unknown buckets.
func AggregateStats(bills []*models.FailedBill, now time.Time) Stats {
	stats := Stats{
		TotalBills:  len(bills),
		ByKind:      make(map[string]int),
		ByProvider:  make(map[string]int),
		ByAgeBucket: make(map[string]int),
	}

	for _, bill := range bills {
		kind := constants.UnknownBucket
		if first, ok := bill.FirstKind(); ok {
			kind = string(first)
		}
		stats.ByKind[kind]++

		provider := bill.Provider
		if provider == "" {
			provider = constants.UnknownProvider
		}
		stats.ByProvider[provider]++

		stats.ByAgeBucket[bill.AgeBucket(now)]++
	}

	return stats
}
