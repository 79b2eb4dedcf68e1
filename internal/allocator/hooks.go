package allocator

import (
	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

// Hooks overrides individual allocator operations. Every hook is optional
// and receives super, the fallback allocator's implementation of the same
// operation, so a hook can decorate rather than replace it.
type Hooks struct {
	UserData any

	Allocate              func(ud any, length int, super func(int) []byte) []byte
	AllocateUninitialized func(ud any, length int, super func(int) []byte) []byte
	Reserve               func(ud any, length int, super func(int) []byte) []byte
	Free                  func(ud any, addr uintptr, length int, mode FreeMode, super func(uintptr, int, FreeMode))
	SetProtection         func(ud any, addr uintptr, length int, p Protection, super func(uintptr, int, Protection) bool) bool

	// Destroy runs once when the allocator is closed. A panic is fatal.
	Destroy func(ud any)
}

// Hooked is an Allocator assembled from Hooks over a fallback.
type Hooked struct {
	h    Hooks
	base Allocator
}

var _ Allocator = (*Hooked)(nil)

// NewHooked builds an allocator from h. A nil base uses NewDefault(0).
func NewHooked(h Hooks, base Allocator) *Hooked {
	if base == nil {
		base = NewDefault(0)
	}
	return &Hooked{h: h, base: base}
}

// Base returns the fallback allocator.
func (a *Hooked) Base() Allocator { return a.base }

func (a *Hooked) Allocate(length int) []byte {
	if a.h.Allocate != nil {
		return a.h.Allocate(a.h.UserData, length, a.base.Allocate)
	}
	return a.base.Allocate(length)
}

func (a *Hooked) AllocateUninitialized(length int) []byte {
	if a.h.AllocateUninitialized != nil {
		return a.h.AllocateUninitialized(a.h.UserData, length, a.base.AllocateUninitialized)
	}
	return a.base.AllocateUninitialized(length)
}

func (a *Hooked) Reserve(length int) []byte {
	if a.h.Reserve != nil {
		return a.h.Reserve(a.h.UserData, length, a.base.Reserve)
	}
	return a.base.Reserve(length)
}

func (a *Hooked) Free(addr uintptr, length int, mode FreeMode) {
	if a.h.Free != nil {
		a.h.Free(a.h.UserData, addr, length, mode, a.base.Free)
		return
	}
	a.base.Free(addr, length, mode)
}

func (a *Hooked) SetProtection(addr uintptr, length int, p Protection) bool {
	if a.h.SetProtection != nil {
		return a.h.SetProtection(a.h.UserData, addr, length, p, a.base.SetProtection)
	}
	return a.base.SetProtection(addr, length, p)
}

// Close runs the Destroy hook.
func (a *Hooked) Close() {
	if a.h.Destroy == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			core.Logger().Error("allocator: Destroy hook failed", zap.Any("panic", r))
			panic(r)
		}
	}()
	a.h.Destroy(a.h.UserData)
}
