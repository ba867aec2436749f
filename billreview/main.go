package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/chrscato/cdx-billreview/billreview/reviewcli"
)

func main() {
	if err := reviewcli.GetApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
