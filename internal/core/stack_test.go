package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStackPointerInvariant covers property 3: after any sequence of
// push/pop/drop/duplicate the pointer stays in [0, stackCapacity], and
// overflow/underflow always panic rather than silently clamp.
func TestStackPointerInvariant(t *testing.T) {
	var s Stack
	require.Zero(t, s.Len())

	s.Push([]byte{1, 2, 3})
	require.Equal(t, 3, s.Len())

	s.Duplicate(2)
	require.Equal(t, 5, s.Len())
	require.Equal(t, []byte{1, 2, 3, 2, 3}, s.Bytes())

	got := s.Pop(2)
	require.Equal(t, []byte{2, 3}, got)
	require.Equal(t, 3, s.Len())

	s.Drop(1)
	require.Equal(t, 2, s.Len())
}

func TestStackPushOverflowPanicsAndDoesNotMutate(t *testing.T) {
	var s Stack
	s.Push(make([]byte, stackCapacity))

	require.PanicsWithValue(t, errStackOverflow, func() { s.Push([]byte{0}) })
	require.Equal(t, stackCapacity, s.Len())
}

func TestStackPopUnderflowPanics(t *testing.T) {
	var s Stack
	s.Push([]byte{1})

	require.PanicsWithValue(t, errStackUnderflow, func() { s.Pop(2) })
	require.Equal(t, 1, s.Len(), "a failed pop must not mutate the stack")
}

func TestStackDropUnderflowPanics(t *testing.T) {
	var s Stack
	require.PanicsWithValue(t, errStackUnderflow, func() { s.Drop(1) })
}

func TestStackDuplicateUnderflowPanics(t *testing.T) {
	var s Stack
	require.PanicsWithValue(t, errStackUnderflow, func() { s.Duplicate(1) })
}

func TestStackDuplicateOverflowPanics(t *testing.T) {
	var s Stack
	s.Push(make([]byte, stackCapacity))
	require.PanicsWithValue(t, errStackOverflow, func() { s.Duplicate(1) })
}

func TestRegister64PushTruncatesAndZeroFills(t *testing.T) {
	var r Register64
	r.Push([]byte{1, 2})
	require.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0}, r.Pop(registerCapacity))

	r.Push([]byte{0xFF})
	require.Equal(t, []byte{0xFF, 0, 0, 0}, r.Pop(4))
}

func TestRegister64PushOverflowPanics(t *testing.T) {
	var r Register64
	require.PanicsWithValue(t, errRegisterOverflow, func() { r.Push(make([]byte, registerCapacity+1)) })
}
