package trap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinTrapError(t *testing.T) {
	tr := NewBuiltin(IntegerDivideByZero)
	require.Contains(t, tr.Error(), "integer divide by zero")
}

func TestUserTrapCarriesPayload(t *testing.T) {
	tr := NewUser("my_exception", int32(1), int64(2))
	require.True(t, tr.IsUser)
	require.Equal(t, "my_exception", tr.Tag)
	require.Equal(t, []interface{}{int32(1), int64(2)}, tr.Payload)
}

func TestWithFrameAppendsInOrder(t *testing.T) {
	tr := NewBuiltin(IntegerOverflow)
	tr.WithFrame(Frame{FunctionIndex: 2, ProgramCounter: 10}).
		WithFrame(Frame{FunctionIndex: 0, ProgramCounter: 4, DebugName: "main"})

	require.Len(t, tr.Frames, 2)
	require.Equal(t, uint32(2), tr.Frames[0].FunctionIndex)
	require.Equal(t, "main", tr.Frames[1].DebugName)
}

func TestRecoverDistinguishesTrapFromOtherPanics(t *testing.T) {
	tr, err, ok := Recover(NewBuiltin(IntegerDivideByZero))
	require.True(t, ok)
	require.NotNil(t, tr)
	require.Error(t, err)

	_, _, ok = Recover("not a trap")
	require.False(t, ok)

	tr, err, ok = Recover(nil)
	require.True(t, ok)
	require.Nil(t, tr)
	require.NoError(t, err)
}

func TestRaiseRecoverRoundTrip(t *testing.T) {
	run := func() (tr *Trap, err error) {
		defer func() {
			var ok bool
			tr, err, ok = Recover(recover())
			if !ok {
				panic("unexpected non-trap panic")
			}
		}()
		Raise(NewBuiltin(InvalidConversionToInteger))
		return nil, nil
	}

	tr, err := run()
	require.NotNil(t, tr)
	require.Error(t, err)
	require.Equal(t, InvalidConversionToInteger, tr.Builtin)
}
