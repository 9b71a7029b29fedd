// Package migrations holds the versioned schema of the rental store.
package migrations

import "embed"

// FS contains the numbered up/down SQL files
//
//go:embed *.sql
var FS embed.FS
