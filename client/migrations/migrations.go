// Package migrations embeds the field client's queue schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
