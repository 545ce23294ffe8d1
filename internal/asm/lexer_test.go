package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeBasicRoutine(t *testing.T) {
	toks, err := Tokenize(": main LIT8 3 LIT8 4 +8 ;")
	require.NoError(t, err)

	var kinds []TextTokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []TextTokenKind{
		TokRune, TokStringLiteral, TokAssembly, TokNumber,
		TokAssembly, TokNumber, TokAssembly, TokRune,
	}, kinds)
}

func TestTokenizeComment(t *testing.T) {
	toks, err := Tokenize(": main ( this is a comment ) ;")
	require.NoError(t, err)

	var comment *TextToken
	for i := range toks {
		if toks[i].Kind == TokComment {
			comment = &toks[i]
		}
	}
	require.NotNil(t, comment)
	require.Equal(t, "this is a comment", comment.Comment)
}

func TestTokenizeUnterminatedCommentFails(t *testing.T) {
	_, err := Tokenize(": main ( never closed ;")
	require.Error(t, err)
}

func TestTokenizeNewlineAndTab(t *testing.T) {
	toks, err := Tokenize(": main\n\tLIT8 1\n;")
	require.NoError(t, err)

	require.Equal(t, TokNewLine, toks[2].Kind)
	require.Equal(t, TokTab, toks[3].Kind)
	require.Equal(t, 1, toks[3].TabN)
}

func TestTokenizeCommandBeforeNumberOrName(t *testing.T) {
	toks, err := Tokenize(">routine_a")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	require.Equal(t, TokCommand, toks[0].Kind)
	require.Equal(t, MarkerRoutineCallLocal, toks[0].Command.Marker)
}

func TestTokenizeUnrecognisedStringLiteral(t *testing.T) {
	toks, err := Tokenize("just_a_name")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	require.Equal(t, TokStringLiteral, toks[0].Kind)
	require.Equal(t, "just_a_name", toks[0].String)
}
