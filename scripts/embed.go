// Package scripts holds the built-in Risor report scripts.
package scripts

import "embed"

// FS contains every report script under reports/.
//
//go:embed reports/*.risor
var FS embed.FS
