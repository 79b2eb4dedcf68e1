// Package trampoline defines the carrier slot layout shared by the code that
// writes registrations into carriers and the trampolines that read them
// back, plus the JavaScript prelude that installs the engine-facing handlers.
package trampoline

import "fmt"

// Role identifies which callback a carrier slot holds.
type Role uint8

const (
	RoleGetter Role = iota + 1
	RoleSetter
	RoleQuery
	RoleDeleter
	RoleEnumerator
	RoleDefiner
	RoleDescriptor
	RoleFunctionCall
	RoleConstructCall
	RoleAccessCheck
	RoleFatalError
	RoleOOMError
)

var roleNames = map[Role]string{
	RoleGetter:        "getter",
	RoleSetter:        "setter",
	RoleQuery:         "query",
	RoleDeleter:       "deleter",
	RoleEnumerator:    "enumerator",
	RoleDefiner:       "definer",
	RoleDescriptor:    "descriptor",
	RoleFunctionCall:  "call",
	RoleConstructCall: "construct",
	RoleAccessCheck:   "access",
	RoleFatalError:    "fatal",
	RoleOOMError:      "oom",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Kind is the interceptor flavor a carrier belongs to.
type Kind uint8

const (
	KindNamed Kind = iota
	KindIndexed
	KindFunction
	KindAccessCheck
	KindInstance // template instance: no roles, data holds the internal fields
)

var kindNames = [...]string{"named", "indexed", "function", "access", "instance"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Layout is the fixed slot assignment of one carrier kind: one slot per
// role, then the data slot.
type Layout struct {
	Kind  Kind
	Roles []Role // Roles[i] lives in slot i
	Data  int
	Count int
}

// Slot returns the slot index of role, or false if the kind has no such role.
func (l Layout) Slot(role Role) (int, bool) {
	for i, r := range l.Roles {
		if r == role {
			return i, true
		}
	}
	return 0, false
}

func newLayout(kind Kind, roles ...Role) Layout {
	return Layout{Kind: kind, Roles: roles, Data: len(roles), Count: len(roles) + 1}
}

var propertyRoles = []Role{
	RoleGetter, RoleSetter, RoleQuery, RoleDeleter, RoleEnumerator, RoleDefiner, RoleDescriptor,
}

var layouts = [...]Layout{
	KindNamed:       newLayout(KindNamed, propertyRoles...),
	KindIndexed:     newLayout(KindIndexed, propertyRoles...),
	KindFunction:    newLayout(KindFunction, RoleFunctionCall, RoleConstructCall),
	KindAccessCheck: newLayout(KindAccessCheck, RoleAccessCheck),
	KindInstance:    newLayout(KindInstance),
}

// LayoutFor returns the layout of kind.
func LayoutFor(kind Kind) Layout {
	return layouts[kind]
}

// Slots builds a carrier's slot values: ids[role] in each role slot (0 when
// absent) and data in the data slot.
func (l Layout) Slots(ids map[Role]uint64, data uint64) []uint64 {
	out := make([]uint64, l.Count)
	for i, r := range l.Roles {
		out[i] = ids[r]
	}
	out[l.Data] = data
	return out
}
