package stm

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the library version, read from the VERSION file.
var Version = strings.TrimSpace(rawVersion)
