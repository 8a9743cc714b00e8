// Package web embeds the static control panel served at /.
package web

import "embed"

//go:embed static
var FS embed.FS
