package models

// FailureKind identifies why automated adjudication rejected a bill.
// The set is closed on our side but upstream processors may introduce new
// tokens at any time, so unknown kinds are carried through verbatim and
// rendered with fallback display metadata.
type FailureKind string

const (
	FailureKindRateMissing  FailureKind = "RATE_MISSING"
	FailureKindUnmatchedCPT FailureKind = "UNMATCHED_CPT"
	FailureKindTooManyUnits FailureKind = "TOO_MANY_UNITS"
	FailureKindReadError    FailureKind = "READ_ERROR"
)

// KindDisplay carries presentation metadata for a failure kind. It has no
// behavior; the dashboard templates consume it as-is.
type KindDisplay struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var kindDisplays = map[FailureKind]KindDisplay{
	FailureKindRateMissing:  {Label: "Rate Missing", Color: "warning", Icon: "currency-dollar"},
	FailureKindUnmatchedCPT: {Label: "Unmatched CPT", Color: "danger", Icon: "question-circle"},
	FailureKindTooManyUnits: {Label: "Too Many Units", Color: "warning", Icon: "stack"},
	FailureKindReadError:    {Label: "Read Error", Color: "secondary", Icon: "file-earmark-x"},
}

var fallbackDisplay = KindDisplay{Color: "secondary", Icon: "exclamation-circle"}

// Known reports whether the kind belongs to the closed enumeration.
func (k FailureKind) Known() bool {
	_, ok := kindDisplays[k]
	return ok
}

// Display returns the presentation metadata for the kind. Unknown kinds get
// the fallback color/icon with the raw token as the label.
func (k FailureKind) Display() KindDisplay {
	if d, ok := kindDisplays[k]; ok {
		return d
	}
	d := fallbackDisplay
	d.Label = string(k)
	return d
}
