// Package db embeds the goose migrations applied at startup.
package db

import "embed"

// Dir is the directory inside Migrations holding the SQL files.
const Dir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
