// Package migrations embeds the SQL schema for Gray Logic Integrations.
//
// The files are compiled into the binary so the migrate command and the
// serve command work without the SQL present on disk.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS exposes the embedded migration files at its root.
var FS = files
