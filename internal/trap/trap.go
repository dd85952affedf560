// Package trap implements the non-local escape mechanism execution uses to
// abandon an activation chain: builtin traps raised by numeric operations,
// and user traps raised by an embedder-supplied tag and payload.
package trap

import (
	"fmt"

	"github.com/pkg/errors"
)

// BuiltinReason enumerates the trap conditions this engine's numeric
// operations can raise (§4.1).
type BuiltinReason int

const (
	// IntegerDivideByZero is raised by div_s/div_u/rem_s/rem_u when the
	// divisor is zero.
	IntegerDivideByZero BuiltinReason = iota
	// IntegerOverflow is raised by div_s(minSigned, -1) and by a
	// non-saturating truncation whose source is finite but out of the
	// destination integer's representable range.
	IntegerOverflow
	// InvalidConversionToInteger is raised by a non-saturating truncation
	// whose source is NaN.
	InvalidConversionToInteger
)

func (r BuiltinReason) String() string {
	switch r {
	case IntegerDivideByZero:
		return "integer divide by zero"
	case IntegerOverflow:
		return "integer overflow"
	case InvalidConversionToInteger:
		return "invalid conversion to integer"
	default:
		return "unknown trap reason"
	}
}

// Frame is one entry of a Trap's diagnostic frame trail: the function index
// and program counter active in one activation at the moment a trap was
// raised.
type Frame struct {
	FunctionIndex uint32
	ProgramCounter uint32
	DebugName      string
}

func (f Frame) String() string {
	if f.DebugName != "" {
		return fmt.Sprintf("%s (func %d, pc %d)", f.DebugName, f.FunctionIndex, f.ProgramCounter)
	}
	return fmt.Sprintf("func %d, pc %d", f.FunctionIndex, f.ProgramCounter)
}

// Trap is the value unwound through a Go panic/recover pair when execution
// must abandon its current activation chain (§7). It is never returned as
// an ordinary error value: the interpreter's Call entrypoint recovers it
// and turns it into a returned error only at the outermost boundary.
type Trap struct {
	// Builtin is set for an engine-raised trap; Tag is set (non-empty) for
	// a user-raised one. Exactly one of the two applies.
	Builtin BuiltinReason
	IsUser  bool

	// Tag identifies a user trap's kind, and Payload carries its
	// associated values, mirroring the exception-tag/payload model
	// supplemented from the original source (see SPEC_FULL.md).
	Tag     string
	Payload []interface{}

	// Frames is the diagnostic trail, appended to by each activation the
	// trap unwinds through, innermost frame first.
	Frames []Frame
}

// NewBuiltin constructs a builtin trap for reason.
func NewBuiltin(reason BuiltinReason) *Trap {
	return &Trap{Builtin: reason}
}

// NewUser constructs a user trap carrying tag and payload.
func NewUser(tag string, payload ...interface{}) *Trap {
	return &Trap{IsUser: true, Tag: tag, Payload: payload}
}

// WithFrame returns t with frame appended to its trail. Mutates and returns
// t so interpreter unwind code can chain this call without a temporary.
func (t *Trap) WithFrame(frame Frame) *Trap {
	t.Frames = append(t.Frames, frame)
	return t
}

func (t *Trap) Error() string {
	if t.IsUser {
		return fmt.Sprintf("trap: tag %q, payload %v", t.Tag, t.Payload)
	}
	return fmt.Sprintf("trap: %s", t.Builtin)
}

// Raise panics with a *Trap, to be recovered by the nearest Call
// entrypoint (internal/interpreter).
func Raise(t *Trap) {
	panic(t)
}

// Recover is called from a deferred function in every entrypoint that must
// turn an in-flight Trap panic into a returned error rather than letting it
// propagate past the Go call stack boundary into host code. recovered is
// the value captured by `recover()`; ok is false if recovered was not a
// *Trap, in which case the caller should re-panic.
func Recover(recovered interface{}) (t *Trap, err error, ok bool) {
	if recovered == nil {
		return nil, nil, true
	}
	t, isTrap := recovered.(*Trap)
	if !isTrap {
		return nil, nil, false
	}
	return t, errors.Wrap(t, "wasm execution trapped"), true
}
