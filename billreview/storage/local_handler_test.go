package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrscato/cdx-billreview/billreview/models"
	"github.com/chrscato/cdx-billreview/log"
)

func testHandler(t *testing.T) *LocalPayloadHandler {
	return &LocalPayloadHandler{
		Logger:  log.Ingest,
		RootDir: t.TempDir(),
	}
}

func TestLocalListPayloads(t *testing.T) {
	handler := testHandler(t)
	ctx := context.Background()

	// Missing fails dir reads as empty, not as an error.
	filenames, err := handler.ListPayloads(ctx)
	require.NoError(t, err)
	assert.Empty(t, filenames)

	require.NoError(t, handler.PutPayload(ctx, "bill_001.json", []byte(`{"filename":"bill_001.json"}`)))
	require.NoError(t, handler.PutPayload(ctx, "bill_002.json", []byte(`{"filename":"bill_002.json"}`)))

	filenames, err = handler.ListPayloads(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bill_001.json", "bill_002.json"}, filenames)
}

func TestLocalFetchPayload(t *testing.T) {
	handler := testHandler(t)
	ctx := context.Background()

	payload := []byte(`{"filename":"bill_001.json","provider":"Radiology Partners"}`)
	require.NoError(t, handler.PutPayload(ctx, "bill_001.json", payload))

	data, err := handler.FetchPayload(ctx, "bill_001.json")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = handler.FetchPayload(ctx, "missing.json")
	assert.Error(t, err)
}

func TestLocalResolvePayload(t *testing.T) {
	handler := testHandler(t)
	ctx := context.Background()

	payload := []byte(`{"filename":"bill_001.json","provider":"Radiology Partners","service_lines":[{"procedure_code":"70551"}]}`)
	require.NoError(t, handler.PutPayload(ctx, "bill_001.json", payload))

	appliedAt := time.Date(2024, time.March, 1, 15, 30, 0, 0, time.UTC)
	result := &models.AssignmentResult{
		ID:              "2c1a8a56-14c8-4239-add5-9c75c141958d",
		Filename:        "bill_001.json",
		RateType:        "category",
		UpdatedRates:    []models.RateEntry{{ProcedureCode: "70551", Rate: 150}},
		CategorySummary: map[string]int{"mri_wo": 1},
		AppliedAt:       appliedAt,
	}

	require.NoError(t, handler.ResolvePayload(ctx, "bill_001.json", result))

	// Original payload is gone from the fails dir.
	_, err := os.Stat(filepath.Join(handler.failsDir(), "bill_001.json"))
	assert.True(t, os.IsNotExist(err))

	resolved, err := os.ReadFile(filepath.Join(handler.resolvedDir(), "bill_001.json"))
	require.NoError(t, err)

	var stamped map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resolved, &stamped))

	// Original fields survive untouched.
	assert.JSONEq(t, `"Radiology Partners"`, string(stamped["provider"]))

	var stamp rateAssignmentStamp
	require.NoError(t, json.Unmarshal(stamped["rate_assignment"], &stamp))
	assert.Equal(t, "category", stamp.RateType)
	assert.Equal(t, []models.RateEntry{{ProcedureCode: "70551", Rate: 150}}, stamp.UpdatedRates)
	assert.Equal(t, map[string]int{"mri_wo": 1}, stamp.CategorySummary)
	assert.True(t, appliedAt.Equal(stamp.Timestamp))
}

func TestLocalResolvePayloadBadJSON(t *testing.T) {
	handler := testHandler(t)
	ctx := context.Background()

	require.NoError(t, handler.PutPayload(ctx, "bill_001.json", []byte(`{not json`)))

	result := &models.AssignmentResult{Filename: "bill_001.json", RateType: "individual"}
	err := handler.ResolvePayload(ctx, "bill_001.json", result)
	assert.Error(t, err)

	// Unparseable payload stays put for operator inspection.
	_, statErr := os.Stat(filepath.Join(handler.failsDir(), "bill_001.json"))
	assert.NoError(t, statErr)
}
