// Package web embeds the browser UI.
package web

import _ "embed"

// IndexHTML is the single-page player served at "/".
//
//go:embed index.html
var IndexHTML []byte
