//go:build quickjs

package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/quickjs"
	"github.com/cryguy/jsbridge/internal/transform"
)

const transformTarget = transform.TargetES2022

func newBackend() core.Backend {
	return quickjs.New()
}
