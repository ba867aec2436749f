package health

import (
	"context"
	"database/sql"

	"github.com/chrscato/cdx-billreview/log"
)

type HealthChecker struct {
	db *sql.DB
}

func NewHealthChecker(db *sql.DB) HealthChecker {
	return HealthChecker{db: db}
}

func (h HealthChecker) IsDatabaseOK(ctx context.Context) (result string, ok bool) {
	if err := h.db.PingContext(ctx); err != nil {
		log.API.Error("Health check: database ping error: ", err.Error())
		return "database ping error", false
	}

	return "ok", true
}
