//go:build !v8 && !quickjs

package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/gojaengine"
	"github.com/cryguy/jsbridge/internal/transform"
)

// goja implements ES2017 syntax with partial support for later additions.
const transformTarget = transform.TargetES2017

func newBackend() core.Backend {
	return gojaengine.New()
}
