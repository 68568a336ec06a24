// Package db embeds the SQL migrations for every supported driver
package db

import (
	"embed"
	"io/fs"
)

//go:embed pg/*.sql sqlite/*.sql
var migrations embed.FS

// Migrations returns the migration source and directory for driverName.
func Migrations(driverName string) (fs.FS, string) {
	if driverName == "sqlite3" {
		return migrations, "sqlite"
	}
	return migrations, "pg"
}
