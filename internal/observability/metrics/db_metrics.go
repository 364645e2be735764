package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "location_value_rows",
			Help: "Stored location identifier values across the four typed tables",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT (SELECT COUNT(*) FROM location_string_value)
	+ (SELECT COUNT(*) FROM location_integer_value)
	+ (SELECT COUNT(*) FROM location_float_value)
	+ (SELECT COUNT(*) FROM location_boolean_value)`)
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sensor_reading_rows",
			Help: "Stored sensor readings across the four typed tables",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT (SELECT COUNT(*) FROM sensor_string_reading)
	+ (SELECT COUNT(*) FROM sensor_integer_reading)
	+ (SELECT COUNT(*) FROM sensor_float_reading)
	+ (SELECT COUNT(*) FROM sensor_boolean_reading)`)
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "model_value_rows",
			Help: "Stored model predicted values across the four typed tables",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT (SELECT COUNT(*) FROM model_string_value)
	+ (SELECT COUNT(*) FROM model_integer_value)
	+ (SELECT COUNT(*) FROM model_float_value)
	+ (SELECT COUNT(*) FROM model_boolean_value)`)
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
