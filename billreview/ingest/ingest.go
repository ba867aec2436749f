// Package ingest loads failed-bill payloads from the backing store into the
// failed-bill index so they become visible to the triage views.
package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chrscato/cdx-billreview/billreview/models"
	"github.com/chrscato/cdx-billreview/billreview/storage"
	"github.com/chrscato/cdx-billreview/log"
)

// ImportFailedBills walks every payload waiting under the fails prefix and
// upserts it into the index. Import is idempotent: re-running over the same
// payloads rewrites the same rows.
//
// Payloads that do not parse are skipped, not fatal; an unknown file in the
// fails location isn't a blocker. Store or index errors count as failures.
func ImportFailedBills(ctx context.Context, handler storage.PayloadHandler, r models.FailedBillRepository) (success, failure, skipped int, err error) {
	logger := log.Ingest

	filenames, err := handler.ListPayloads(ctx)
	if err != nil {
		logger.Errorf("Failed to list failed-bill payloads: %s", err)
		return 0, 0, 0, err
	}

	for _, filename := range filenames {
		data, fetchErr := handler.FetchPayload(ctx, filename)
		if fetchErr != nil {
			logger.Errorf("Failed to fetch payload %s: %s", filename, fetchErr)
			failure++
			continue
		}

		bill, parseErr := models.ParseFailedBill(data)
		if parseErr != nil {
			logger.Warningf("Unknown payload found: %s. Skipping. (%s)", filename, parseErr)
			skipped++
			continue
		}

		// The object name is authoritative; a payload claiming another
		// filename would collide with its neighbor's row.
		if bill.Filename != filename {
			logger.Warningf("Payload %s names itself %s, keying by object name", filename, bill.Filename)
			bill.Filename = filename
		}

		if upsertErr := r.UpsertFailedBill(ctx, bill); upsertErr != nil {
			logger.Errorf("Failed to index payload %s: %s", filename, upsertErr)
			failure++
			continue
		}

		success++
	}

	logger.WithFields(logrus.Fields{
		"success": success,
		"failure": failure,
		"skipped": skipped,
	}).Info("failed-bill import complete")

	if failure > 0 {
		err = fmt.Errorf("%d payload(s) failed to import", failure)
	}
	return success, failure, skipped, err
}
