// Package migrations embeds the goose migration set for the storage
// schema, for use with pkg/db.Migrate.
package migrations

import "embed"

//go:embed migrations
var FS embed.FS
