package main

import (
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
)

func setupLogging(level string) {
	log.SetFormatter(&nested.Formatter{
		FieldsOrder:     []string{"run_id", "stage", "query"},
		TimestampFormat: time.RFC3339,
	})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}
