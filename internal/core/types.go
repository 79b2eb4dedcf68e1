package core

// Kind is the coarse type of an engine value as seen by Describe.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindBigInt
	KindString
	KindSymbol
	KindObject
	KindFunction
)

// Primitive is the Go-side view of a value. Bool, Number and String are
// only meaningful for the matching Kind; String also carries the decimal
// form of a BigInt.
type Primitive struct {
	Kind   Kind
	Bool   bool
	Number float64
	String string
}

// IsObject reports whether the value is an object or function.
func (p Primitive) IsObject() bool {
	return p.Kind == KindObject || p.Kind == KindFunction
}

// Frame is one entry of a captured JavaScript stack trace.
type Frame struct {
	FunctionName  string
	ScriptName    string
	Line          int
	Column        int
	IsEval        bool
	IsConstructor bool
}

// Thrown describes an exception raised by a single engine call.
type Thrown struct {
	Exception  Value  // the thrown value itself
	Text       string // the exception's string form, e.g. "Error: boom"
	ScriptName string
	Line       int
	Column     int
	SourceLine string
	Frames     []Frame

	// OutOfMemory is set by the engine when the throw reports its own heap
	// running out, never for errors a script raises.
	OutOfMemory bool
}

// SetOrigin fills the location fields from the topmost frame that has a
// source position, when they are not already known.
func (t *Thrown) SetOrigin() {
	if t.ScriptName != "" {
		return
	}
	for _, f := range t.Frames {
		if f.Line == 0 {
			continue
		}
		t.ScriptName = f.ScriptName
		t.Line = f.Line
		t.Column = f.Column
		return
	}
}
