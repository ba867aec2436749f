package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/chrscato/cdx-billreview/billreview/utils"
	"github.com/chrscato/cdx-billreview/conf"
)

// Variable substitution to support testing.
var LogFatal = log.Fatal

func GetDbConnection() *sql.DB {
	databaseURL := conf.GetEnv("DATABASE_URL")
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		LogFatal(err)
	}

	db.SetMaxOpenConns(utils.GetEnvInt("BILLREVIEW_DB_MAX_OPEN_CONNS", 25))
	db.SetMaxIdleConns(utils.GetEnvInt("BILLREVIEW_DB_MAX_IDLE_CONNS", 5))
	db.SetConnMaxLifetime(time.Duration(utils.GetEnvInt("BILLREVIEW_DB_CONN_MAX_LIFETIME_MIN", 5)) * time.Minute)

	if pingErr := db.Ping(); pingErr != nil {
		LogFatal(pingErr)
	}
	return db
}
