//go:build tools

// Package tools keeps track of toolchain dependencies that are required at
// build time (gomobile/gobind for the platform package) but not imported by
// the boundary code.
package tools

import (
	_ "golang.org/x/mobile/bind"
)
