//go:build tools
// +build tools

// Tool dependencies, tracked so `go generate` works on a fresh checkout.
// Never imported at runtime.
package whisper

import (
	_ "go.uber.org/mock/mockgen"
)
