//go:build tools
// +build tools

// Package tools tracks the code generators used by go:generate so that
// go.mod keeps them pinned.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
