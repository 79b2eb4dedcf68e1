//go:build v8

package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/transform"
	"github.com/cryguy/jsbridge/internal/v8engine"
)

const transformTarget = transform.TargetES2022

func newBackend() core.Backend {
	return v8engine.New()
}
