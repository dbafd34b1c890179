// Package migrations embeds the versioned postgres schema applied by
// marketctl migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
