package models

import (
	"log"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &Quarter{}, &Metric{}, &ReportVersion{}, &MetricValue{},
		&MetricAverageSummary{}, &RiskScoreSummary{},
		&BatchExecution{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
