package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) Module {
	t.Helper()
	toks, err := Tokenize(src)
	require.NoError(t, err)
	mod, err := ParseModule(toks)
	require.NoError(t, err)
	return mod
}

func TestParseModuleRoutine(t *testing.T) {
	mod := parseSource(t, ": main LIT8 3 LIT8 4 +8 ;")
	require.Len(t, mod.Routines, 1)

	r := mod.Routines[0]
	require.Equal(t, "main", r.Name)
	require.False(t, r.Exported)
	require.Len(t, r.Tokens, 3)
	require.Equal(t, STNumberLiteral, r.Tokens[0].Kind)
	require.EqualValues(t, 3, r.Tokens[0].Number.Value)
	require.Equal(t, STNumberLiteral, r.Tokens[1].Kind)
	require.EqualValues(t, 4, r.Tokens[1].Number.Value)
	require.Equal(t, STInstruction, r.Tokens[2].Kind)
}

func TestParseModuleExportedRoutine(t *testing.T) {
	mod := parseSource(t, "^ shared LIT8 1 ;")
	require.Len(t, mod.Routines, 1)
	require.True(t, mod.Routines[0].Exported)
}

func TestParseModuleMacroWithParams(t *testing.T) {
	mod := parseSource(t, "% callit [ target ] >{target} ;")
	require.Len(t, mod.Macros, 1)

	m := mod.Macros[0]
	require.Equal(t, "callit", m.Name)
	require.Equal(t, []string{"target"}, m.Params)
	require.Len(t, m.Tokens, 1)
	require.Equal(t, STRoutineCallLocal, m.Tokens[0].Kind)
	require.Equal(t, []LabelComponent{{Parameter: true, Text: "target"}}, m.Tokens[0].Label.Components)
}

func TestParseModuleMacroUseWithArgs(t *testing.T) {
	mod := parseSource(t, "% callit [ target ] >{target} ;\n: main ~callit [ a ] ;")
	require.Len(t, mod.Routines, 1)

	tok := mod.Routines[0].Tokens[0]
	require.Equal(t, STMacroUse, tok.Kind)
	require.Equal(t, "callit", tok.Label.String())
	require.Len(t, tok.MacroArgs, 1)
	require.Equal(t, "a", tok.MacroArgs[0].String())
}

func TestParseModuleImportBlock(t *testing.T) {
	mod := parseSource(t, "+ .util :helper %inc ;")
	require.Len(t, mod.Imports, 2)
	require.Equal(t, ImportRoutine, mod.Imports[0].Kind)
	require.Equal(t, "helper", mod.Imports[0].Name)
	require.Equal(t, ImportMacro, mod.Imports[1].Kind)
	require.Equal(t, "inc", mod.Imports[1].Name)
	require.Equal(t, []string{"util"}, mod.Imports[0].Path.Names)
}

func TestParseModuleImportBlockWithAlias(t *testing.T) {
	mod := parseSource(t, "+ .util :myhelper=helper ;")
	require.Len(t, mod.Imports, 1)
	require.Equal(t, "helper", mod.Imports[0].Name)
	require.Equal(t, "myhelper", mod.Imports[0].LocalName)
}

func TestParseModuleRejectsUnexpectedTopLevelToken(t *testing.T) {
	toks, err := Tokenize("stray_name ;")
	require.NoError(t, err)
	_, err = ParseModule(toks)
	require.Error(t, err)
}

func TestParseModuleRejectsDanglingNumber(t *testing.T) {
	_, err := Tokenize(": main 5 ;")
	require.NoError(t, err)
	toks, _ := Tokenize(": main 5 ;")
	_, err = ParseModule(toks)
	require.Error(t, err)
}

func TestParseModuleRejectsMissingNumberAfterLiteralOpcode(t *testing.T) {
	toks, err := Tokenize(": main LIT8 +8 ;")
	require.NoError(t, err)
	_, err = ParseModule(toks)
	require.Error(t, err)
}

func TestParseModuleRoutineCommentsPreserved(t *testing.T) {
	mod := parseSource(t, ": main ( note ) LIT8 1 ;")
	require.Equal(t, STComment, mod.Routines[0].Tokens[0].Kind)
	require.Equal(t, "note", mod.Routines[0].Tokens[0].Comment)
}

func TestParseModuleAnchorAndRoutineReferenceTokens(t *testing.T) {
	mod := parseSource(t, ": main #start *start &start >other $other <shared @shared ;")
	kinds := make([]SourceTokenKind, len(mod.Routines[0].Tokens))
	for i, tok := range mod.Routines[0].Tokens {
		kinds[i] = tok.Kind
	}
	require.Equal(t, []SourceTokenKind{
		STAnchorDef, STAnchorAddressAbsolute, STAnchorAddressRelative,
		STRoutineCallLocal, STRoutineAddressLocal,
		STRoutineCallExported, STRoutineAddressExported,
	}, kinds)
}
