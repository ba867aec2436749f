// Package storage moves failed-bill payloads through their lifecycle: they
// wait under the fails prefix, and a successful rate assignment rewrites
// them, stamped with the applied rates, under the resolved prefix.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/chrscato/cdx-billreview/billreview/models"
)

// PayloadHandler manages raw bill payloads in a backing store. The S3
// handler serves deployed environments; the local handler serves dev and
// testing.
type PayloadHandler interface {
	// ListPayloads returns the payload filenames currently waiting under
	// the fails prefix.
	ListPayloads(ctx context.Context) ([]string, error)

	FetchPayload(ctx context.Context, filename string) ([]byte, error)

	PutPayload(ctx context.Context, filename string, data []byte) error

	// ResolvePayload stamps the stored payload with the applied rate
	// assignment and moves it from the fails prefix to the resolved
	// prefix. The original payload is removed only after the resolved
	// copy is written.
	ResolvePayload(ctx context.Context, filename string, result *models.AssignmentResult) error
}

// rateAssignmentStamp is the block embedded in a resolved payload so the
// downstream pipeline can see how the bill was repaired.
type rateAssignmentStamp struct {
	RateType        string              `json:"rate_type"`
	UpdatedRates    []models.RateEntry  `json:"updated_rates"`
	CategorySummary map[string]int      `json:"category_summary,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// stampPayload embeds the assignment under the payload's rate_assignment
// key, preserving every other field the upstream pipeline wrote.
func stampPayload(data []byte, result *models.AssignmentResult) ([]byte, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrapf(err, "could not parse payload for %s", result.Filename)
	}

	payload["rate_assignment"] = rateAssignmentStamp{
		RateType:        result.RateType,
		UpdatedRates:    result.UpdatedRates,
		CategorySummary: result.CategorySummary,
		Timestamp:       result.AppliedAt,
	}

	stamped, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "could not serialize resolved payload for %s", result.Filename)
	}
	return stamped, nil
}
