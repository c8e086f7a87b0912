// Package migrations embeds the SQL migration files for the carpool service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
