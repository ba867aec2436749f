package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/chrscato/cdx-billreview/billreview/constants"
)

// FailureReason is one parsed entry from a bill's failure_reasons list.
// Upstream emits free-text strings of the form "KIND: detail"; they are
// parsed once at ingestion and carried typed from then on.
type FailureReason struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// ParseFailureReason splits a raw reason string on the first colon. The left
// side is the kind token (matched case-sensitively; unmatched tokens pass
// through verbatim as an ad-hoc kind), the right side the optional
// procedure-code detail.
func ParseFailureReason(raw string) FailureReason {
	kind, detail, found := strings.Cut(raw, ":")
	if !found {
		return FailureReason{Kind: FailureKind(strings.TrimSpace(raw))}
	}
	return FailureReason{
		Kind:   FailureKind(strings.TrimSpace(kind)),
		Detail: strings.TrimSpace(detail),
	}
}

func (fr FailureReason) String() string {
	if fr.Detail == "" {
		return string(fr.Kind)
	}
	return string(fr.Kind) + ": " + fr.Detail
}

// ServiceLine is one line item on a bill.
type ServiceLine struct {
	ProcedureCode string   `json:"procedure_code"`
	DateOfService string   `json:"date_of_service,omitempty"`
	Units         int      `json:"units,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
}

// RatingModifier returns the modifier that makes this line independently
// ratable (professional/technical component), or "" when none applies.
func (sl ServiceLine) RatingModifier() string {
	for _, mod := range sl.Modifiers {
		if mod == "26" || mod == "TC" {
			return mod
		}
	}
	return ""
}

// FailedBill is the normalized view of one bill awaiting manual rate
// resolution. It is keyed by Filename and read-only once parsed; a bill
// leaves the failed set only as a side effect of a successful rate
// assignment.
type FailedBill struct {
	Filename       string          `json:"filename"`
	Provider       string          `json:"provider"`
	ServiceLines   []ServiceLine   `json:"service_lines"`
	FailureReasons []FailureReason `json:"failure_reasons"`
}

// Service line dates arrive in several shapes; ranges keep only their
// first date. Mirrors the upstream validator's accepted formats.
var serviceDateFormats = []string{"01/02/06", "01/02/2006", "2006-01-02"}

func parseServiceDate(raw string) (time.Time, bool) {
	cleaned := strings.TrimSpace(strings.SplitN(raw, " - ", 2)[0])
	if cleaned == "" {
		return time.Time{}, false
	}
	for _, format := range serviceDateFormats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EarliestServiceDate returns the minimum parseable date among the bill's
// service lines. Unparsable or missing dates are excluded from the minimum,
// not treated as now; ok is false when no line yields a date.
func (b *FailedBill) EarliestServiceDate() (time.Time, bool) {
	var earliest time.Time
	var found bool
	for _, line := range b.ServiceLines {
		t, ok := parseServiceDate(line.DateOfService)
		if !ok {
			continue
		}
		if !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	return earliest, found
}

// AgeDays computes how long the bill has been unresolved, measured from its
// earliest service date to now. ok is false when the age is undefined (no
// parseable dates); an undefined age excludes the bill from every age
// bucket but never from unfiltered views.
func (b *FailedBill) AgeDays(now time.Time) (int, bool) {
	earliest, found := b.EarliestServiceDate()
	if !found {
		return 0, false
	}
	days := int(now.Sub(earliest).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

// AgeBucket classifies the bill into one of the fixed day ranges, or
// Unknown when the age is undefined.
func (b *FailedBill) AgeBucket(now time.Time) string {
	days, ok := b.AgeDays(now)
	if !ok {
		return constants.UnknownBucket
	}
	return BucketForAge(days)
}

// BucketForAge maps an age in days onto the fixed ranges. Lower bounds are
// inclusive: day 31 lands in 31-60, not 0-30.
func BucketForAge(days int) string {
	switch {
	case days <= 30:
		return AgeBucket0To30
	case days <= 60:
		return AgeBucket31To60
	default:
		return AgeBucket61Plus
	}
}

const (
	AgeBucket0To30  = "0-30"
	AgeBucket31To60 = "31-60"
	AgeBucket61Plus = "61+"
)

// AgeBuckets lists the defined buckets in display order, Unknown last.
func AgeBuckets() []string {
	return []string{AgeBucket0To30, AgeBucket31To60, AgeBucket61Plus, constants.UnknownBucket}
}

// FirstKind returns the kind of the bill's first-listed failure reason.
// A bill with several distinct failing kinds is classified by this one only
// (the GroupByFirstReason policy); ok is false for a bill with no reasons.
func (b *FailedBill) FirstKind() (FailureKind, bool) {
	if len(b.FailureReasons) == 0 {
		return "", false
	}
	return b.FailureReasons[0].Kind, true
}

// HasKind reports whether any of the bill's failure reasons carries the
// given kind.
func (b *FailedBill) HasKind(kind FailureKind) bool {
	for _, reason := range b.FailureReasons {
		if reason.Kind == kind {
			return true
		}
	}
	return false
}

// FailingCodes returns the distinct procedure codes named by the bill's
// failure reasons, in first-seen order. Reasons without a code segment
// contribute nothing.
func (b *FailedBill) FailingCodes() []string {
	var codes []string
	seen := make(map[string]struct{})
	for _, reason := range b.FailureReasons {
		code := reason.Detail
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// rawFailedBill is the JSON shape produced by upstream processing.
type rawFailedBill struct {
	Filename       string        `json:"filename"`
	Provider       string        `json:"provider"`
	ServiceLines   []ServiceLine `json:"service_lines"`
	FailureReasons []string      `json:"failure_reasons"`
}

// ParseFailedBill builds a FailedBill from a raw failed-bill payload.
// Missing provider degrades to "Unknown Provider"; reason strings that do
// not match the failure taxonomy pass through as ad-hoc kinds rather than
// failing the parse.
func ParseFailedBill(data []byte) (*FailedBill, error) {
	var raw rawFailedBill
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "could not parse failed bill payload")
	}
	if raw.Filename == "" {
		return nil, errors.New("failed bill payload missing filename")
	}

	bill := &FailedBill{
		Filename:     raw.Filename,
		Provider:     raw.Provider,
		ServiceLines: raw.ServiceLines,
	}
	if bill.Provider == "" {
		bill.Provider = constants.UnknownProvider
	}
	for _, reason := range raw.FailureReasons {
		bill.FailureReasons = append(bill.FailureReasons, ParseFailureReason(reason))
	}

	return bill, nil
}

// CategoryMap maps a category key (e.g. mri_wo) to the procedure codes it
// covers. Externally supplied static data; never mutated here.
type CategoryMap map[string][]string

// Categories returns the category keys in lexicographic order.
func (m CategoryMap) Categories() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RateEntry is one applied (or requested) rate, keyed by the
// (procedure code, modifier) pair. The pair is the update key: the same
// code under modifier 26 vs TC is billed and rated independently.
type RateEntry struct {
	ProcedureCode string  `json:"procedure_code"`
	Rate          float64 `json:"rate"`
	Modifier      string  `json:"modifier,omitempty"`
}

// RateAssignmentRequest is the operator's submission. Exactly one of the
// two modes is populated; the modes are never merged in one request.
type RateAssignmentRequest struct {
	RateType      string             `json:"rate_type"`
	Rates         []RateEntry        `json:"rates,omitempty"`
	CategoryRates map[string]float64 `json:"category_rates,omitempty"`
}

// AssignmentResult is the auditable unit produced by applying a validated
// rate assignment. The persistence layer stores it and removes the bill
// from the failed set; it is also returned to the caller for display.
type AssignmentResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	RateType string `json:"rate_type"`

	UpdatedRates []RateEntry `json:"updated_rates"`

	// CategorySummary counts the procedure codes actually updated per
	// enabled category. Zero counts are retained for audit completeness;
	// the presentation layer may omit them.
	CategorySummary map[string]int `json:"category_summary,omitempty"`

	AppliedAt time.Time `json:"applied_at"`
}
