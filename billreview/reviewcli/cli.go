package reviewcli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	"github.com/chrscato/cdx-billreview/billreview/database"
	"github.com/chrscato/cdx-billreview/billreview/ingest"
	"github.com/chrscato/cdx-billreview/billreview/models/postgres"
	"github.com/chrscato/cdx-billreview/billreview/service"
	"github.com/chrscato/cdx-billreview/billreview/storage"
	"github.com/chrscato/cdx-billreview/billreview/utils"
	"github.com/chrscato/cdx-billreview/billreview/web"
	"github.com/chrscato/cdx-billreview/conf"
	applog "github.com/chrscato/cdx-billreview/log"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "billreview"
const Usage = "Failed-bill triage and rate assignment CLI"

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version
	var outFile string
	app.Commands = []cli.Command{
		{
			Name:  "start-api",
			Usage: "Start the API",
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()

				repository := postgres.NewRepository(db)
				svc := service.NewService(repository, newPayloadHandler())

				fmt.Fprintf(app.Writer, "%s\n", "Starting billreview...")

				srv := &http.Server{
					Handler:      web.NewAPIRouter(web.NewHandler(svc, db)),
					Addr:         fmt.Sprintf(":%d", utils.GetEnvInt("BILLREVIEW_PORT", 3000)),
					ReadTimeout:  time.Duration(utils.GetEnvInt("API_READ_TIMEOUT", 10)) * time.Second,
					WriteTimeout: time.Duration(utils.GetEnvInt("API_WRITE_TIMEOUT", 20)) * time.Second,
					IdleTimeout:  time.Duration(utils.GetEnvInt("API_IDLE_TIMEOUT", 120)) * time.Second,
				}
				return srv.ListenAndServe()
			},
		},
		{
			Name:     "import-fails",
			Category: "Data import",
			Usage:    "Import failed-bill payloads from the backing store into the index",
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()

				repository := postgres.NewRepository(db)
				success, failure, skipped, err := ingest.ImportFailedBills(context.Background(), newPayloadHandler(), repository)

				fmt.Fprintf(app.Writer, "Completed import.  Successfully imported %d payloads.  Failed to import %d payloads.  Skipped %d payloads.\n", success, failure, skipped)
				return err
			},
		},
		{
			Name:     "refresh-summary",
			Category: "Data import",
			Usage:    "Recompute the failed-bill summary and write it as JSON",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "out",
					Usage:       "File to write the summary to (default stdout)",
					Destination: &outFile,
				},
			},
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()

				repository := postgres.NewRepository(db)
				svc := service.NewService(repository, nil)

				stats, err := svc.GetAggregateStats(context.Background())
				if err != nil {
					return err
				}

				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}

				if outFile == "" {
					fmt.Fprintf(app.Writer, "%s\n", data)
					return nil
				}
				return os.WriteFile(outFile, data, 0644)
			},
		},
	}
	return app
}

// newPayloadHandler picks the payload backend: S3 when a bucket is
// configured, the local filesystem otherwise.
func newPayloadHandler() storage.PayloadHandler {
	if bucket := conf.GetEnv("BILLREVIEW_S3_BUCKET"); bucket != "" {
		return &storage.S3PayloadHandler{
			Logger:         applog.Ingest,
			Bucket:         bucket,
			FailsPrefix:    conf.GetEnv("BILLREVIEW_FAILS_PREFIX"),
			ResolvedPrefix: conf.GetEnv("BILLREVIEW_RESOLVED_PREFIX"),
			Endpoint:       conf.GetEnv("BILLREVIEW_S3_ENDPOINT"),
			AssumeRoleArn:  conf.GetEnv("BILLREVIEW_S3_ASSUME_ROLE_ARN"),
		}
	}

	return &storage.LocalPayloadHandler{
		Logger:         applog.Ingest,
		RootDir:        utils.FromEnv("BILLREVIEW_LOCAL_ROOT", "."),
		FailsPrefix:    conf.GetEnv("BILLREVIEW_FAILS_PREFIX"),
		ResolvedPrefix: conf.GetEnv("BILLREVIEW_RESOLVED_PREFIX"),
	}
}
