// Package migrations ships the schema inside the binary. Importing it for
// side effects registers the embedded *.sql files with the database
// package's migration runner.
package migrations

import (
	"embed"

	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.MigrationsFS = schema
	database.MigrationsDir = "."
}
