package otel

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

// sqlitePragmas apply to the single pooled connection.
var sqlitePragmas = []string{
	"journal_mode=WAL",
	"foreign_keys=ON",
	"busy_timeout=5000",
}

// OpenDB opens a SQLite database with OpenTelemetry instrumentation.
// Every statement is traced and the connection pool reports metrics.
func OpenDB(dataSourceName string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	// The store and River share one connection; SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec("PRAGMA " + pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	return db, nil
}
