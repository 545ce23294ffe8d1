package asm

import "fmt"

// SourceTokenKind tags the variant of a SourceToken.
type SourceTokenKind int

const (
	STComment SourceTokenKind = iota
	STInstruction
	STNumberLiteral
	STParameterDef
	STParameterUse
	STRoutineCallLocal
	STRoutineCallExported
	STRoutineAddressLocal
	STRoutineAddressExported
	STMacroUse
	STAnchorDef
	STAnchorAddressAbsolute
	STAnchorAddressRelative
)

// SourceToken is one element of a routine or macro body, after the
// module parser has lifted raw TextTokens into their structural roles.
type SourceToken struct {
	Kind SourceTokenKind

	Comment   string
	Opcode    byte
	Number    NumberLiteral
	ParamName string
	Label     Label
	// MacroArgs holds the positional argument labels supplied at a
	// MacroUse site, explicitly binding the invoked macro's declared
	// parameters (see DESIGN.md: MacroUse parameter binding).
	MacroArgs []Label
}

// Macro is a named, reusable body of source tokens with zero or more
// declared parameters, substituted positionally at each MacroUse.
type Macro struct {
	Name   string
	Params []string
	Tokens []SourceToken
}

// Routine is a named, callable unit of source tokens. Exported routines
// are addressable across modules by content hash.
type Routine struct {
	Name     string
	Exported bool
	Tokens   []SourceToken
}

// ImportKind distinguishes a routine import from a macro import.
type ImportKind int

const (
	ImportRoutine ImportKind = iota
	ImportMacro
)

// Import names one symbol pulled in from another module's path, optionally
// under a local alias.
type Import struct {
	Kind      ImportKind
	Path      Path
	Name      string
	LocalName string
}

// Module is the top-level parse result: everything a source file defines,
// exclusively owned until handed to a Context.
type Module struct {
	Imports  []Import
	Macros   []Macro
	Routines []Routine
}

type tokenCursor struct {
	tokens []TextToken
	pos    int
}

func (c *tokenCursor) peek() (TextToken, bool) {
	for c.pos < len(c.tokens) {
		t := c.tokens[c.pos]
		if t.Kind == TokNewLine || t.Kind == TokTab {
			c.pos++
			continue
		}
		return t, true
	}
	return TextToken{}, false
}

func (c *tokenCursor) next() (TextToken, bool) {
	t, ok := c.peek()
	if ok {
		c.pos++
	}
	return t, ok
}

// ParseModule lifts a tokenized source file into a Module. At the top
// level only runes open definitions: `+` imports, `:`/`^` routines,
// `%` macros; comments are skipped and anything else is a parse error.
func ParseModule(tokens []TextToken) (Module, error) {
	cur := &tokenCursor{tokens: tokens}
	var mod Module

	for {
		tok, ok := cur.next()
		if !ok {
			return mod, nil
		}

		switch tok.Kind {
		case TokComment:
			continue

		case TokRune:
			switch tok.Rune {
			case RuneOpenImport:
				imports, err := parseImports(cur)
				if err != nil {
					return Module{}, err
				}
				mod.Imports = append(mod.Imports, imports...)

			case RuneOpenRoutine, RuneOpenExported:
				routine, err := parseRoutine(cur, tok.Rune == RuneOpenExported)
				if err != nil {
					return Module{}, err
				}
				mod.Routines = append(mod.Routines, routine)

			case RuneOpenMacro:
				macro, err := parseMacro(cur)
				if err != nil {
					return Module{}, err
				}
				mod.Macros = append(mod.Macros, macro)

			default:
				return Module{}, fmt.Errorf("asm: unexpected rune %q at top level", tok.Rune)
			}

		default:
			return Module{}, fmt.Errorf("asm: unexpected token at top level (expected '+', ':', '^' or '%%')")
		}
	}
}

func parseImports(cur *tokenCursor) ([]Import, error) {
	tok, ok := cur.next()
	if !ok || tok.Kind != TokStringLiteral {
		return nil, fmt.Errorf("asm: import block must start with a path string")
	}
	path, err := ParsePath(tok.String)
	if err != nil {
		return nil, err
	}

	var imports []Import
	for {
		tok, ok := cur.next()
		if !ok {
			return nil, fmt.Errorf("asm: unterminated import block for %q", tok.String)
		}
		switch tok.Kind {
		case TokComment:
			continue
		case TokRune:
			if tok.Rune == RuneClose {
				return imports, nil
			}
			return nil, fmt.Errorf("asm: unexpected rune %q in import block", tok.Rune)
		case TokCommand:
			var kind ImportKind
			switch tok.Command.Marker {
			case MarkerImportRoutine:
				kind = ImportRoutine
			case MarkerImportMacro:
				kind = ImportMacro
			default:
				return nil, fmt.Errorf("asm: import entries must use ':name' or '%%name' syntax")
			}
			name, localName := splitAlias(tok.Command.Label.String())
			imports = append(imports, Import{Kind: kind, Path: path, Name: name, LocalName: localName})
		default:
			return nil, fmt.Errorf("asm: unexpected token in import block")
		}
	}
}

func parseRoutine(cur *tokenCursor, exported bool) (Routine, error) {
	nameTok, ok := cur.next()
	if !ok || nameTok.Kind != TokStringLiteral {
		return Routine{}, fmt.Errorf("asm: routine definition must start with a name string")
	}
	routine := Routine{Name: nameTok.String, Exported: exported}

	for {
		tok, ok := cur.next()
		if !ok {
			return Routine{}, fmt.Errorf("asm: unterminated routine %q", routine.Name)
		}
		if tok.Kind == TokRune && tok.Rune == RuneClose {
			return routine, nil
		}
		st, err := sourceTokenFrom(cur, tok)
		if err != nil {
			return Routine{}, err
		}
		if st != nil {
			routine.Tokens = append(routine.Tokens, *st)
		}
	}
}

func parseMacro(cur *tokenCursor) (Macro, error) {
	nameTok, ok := cur.next()
	if !ok || nameTok.Kind != TokStringLiteral {
		return Macro{}, fmt.Errorf("asm: macro definition must start with a name string")
	}
	macro := Macro{Name: nameTok.String}

	for {
		tok, ok := cur.next()
		if !ok {
			return Macro{}, fmt.Errorf("asm: unterminated macro %q", macro.Name)
		}
		if tok.Kind == TokRune && tok.Rune == RuneClose {
			return macro, nil
		}
		if tok.Kind == TokRune && tok.Rune == RuneOpenParamDef {
			params, err := parseParamDefs(cur)
			if err != nil {
				return Macro{}, err
			}
			macro.Params = append(macro.Params, params...)
			continue
		}
		st, err := sourceTokenFrom(cur, tok)
		if err != nil {
			return Macro{}, err
		}
		if st != nil {
			macro.Tokens = append(macro.Tokens, *st)
		}
	}
}

func parseParamDefs(cur *tokenCursor) ([]string, error) {
	var names []string
	for {
		tok, ok := cur.next()
		if !ok {
			return nil, fmt.Errorf("asm: unterminated parameter definition list")
		}
		switch tok.Kind {
		case TokRune:
			if tok.Rune == RuneCloseParamDef {
				return names, nil
			}
			return nil, fmt.Errorf("asm: unexpected rune %q in parameter definition list", tok.Rune)
		case TokStringLiteral:
			names = append(names, tok.String)
		case TokComment:
			continue
		default:
			return nil, fmt.Errorf("asm: parameter definitions must be plain names")
		}
	}
}

// sourceTokenFrom converts one already-consumed TextToken into a
// SourceToken, consuming additional tokens from cur when the token
// requires lookahead (a literal opcode's numeric operand, or a MacroUse's
// bracketed argument list).
func sourceTokenFrom(cur *tokenCursor, tok TextToken) (*SourceToken, error) {
	switch tok.Kind {
	case TokComment:
		return &SourceToken{Kind: STComment, Comment: tok.Comment}, nil

	case TokNumber:
		return nil, fmt.Errorf("asm: dangling numeric literal %v with no preceding literal opcode", tok.Number.Value)

	case TokAssembly:
		if tok.Opcode >= 0xB0 && tok.Opcode <= 0xB3 {
			numTok, ok := cur.next()
			for ok && numTok.Kind == TokComment {
				numTok, ok = cur.next()
			}
			if !ok || numTok.Kind != TokNumber {
				return nil, fmt.Errorf("asm: literal opcode must be followed by a number")
			}
			num := numTok.Number
			width := NumberWidth(tok.Opcode - 0xB0)
			if num.Width > width {
				return nil, fmt.Errorf("asm: number %d does not fit a %d-byte literal", num.Value, width.ByteLen())
			}
			num.Width = width
			return &SourceToken{Kind: STNumberLiteral, Number: num}, nil
		}
		return &SourceToken{Kind: STInstruction, Opcode: tok.Opcode}, nil

	case TokCommand:
		return sourceTokenFromCommand(cur, tok.Command)

	case TokRune:
		return nil, fmt.Errorf("asm: unexpected rune %q inside body", tok.Rune)

	case TokStringLiteral:
		return nil, fmt.Errorf("asm: unrecognised token %q inside body", tok.String)

	default:
		return nil, nil
	}
}

func sourceTokenFromCommand(cur *tokenCursor, cmd Command) (*SourceToken, error) {
	kindFor := map[Marker]SourceTokenKind{
		MarkerRoutineCallLocal:       STRoutineCallLocal,
		MarkerRoutineCallExported:    STRoutineCallExported,
		MarkerRoutineAddressLocal:    STRoutineAddressLocal,
		MarkerRoutineAddressExported: STRoutineAddressExported,
		MarkerParameterUse:           STParameterUse,
		MarkerAnchorDef:              STAnchorDef,
		MarkerAnchorAddressAbsolute:  STAnchorAddressAbsolute,
		MarkerAnchorAddressRelative:  STAnchorAddressRelative,
	}

	if cmd.Marker == MarkerMacroUse {
		args, err := maybeParseMacroArgs(cur)
		if err != nil {
			return nil, err
		}
		return &SourceToken{Kind: STMacroUse, Label: cmd.Label, MacroArgs: args}, nil
	}

	kind, ok := kindFor[cmd.Marker]
	if !ok {
		return nil, fmt.Errorf("asm: unrecognised command marker")
	}
	return &SourceToken{Kind: kind, Label: cmd.Label}, nil
}

// maybeParseMacroArgs consumes an optional bracketed argument list
// immediately following a MacroUse marker, binding the invoked macro's
// declared parameters positionally.
func maybeParseMacroArgs(cur *tokenCursor) ([]Label, error) {
	tok, ok := cur.peek()
	if !ok || tok.Kind != TokRune || tok.Rune != RuneOpenParamDef {
		return nil, nil
	}
	cur.next()

	var args []Label
	for {
		tok, ok := cur.next()
		if !ok {
			return nil, fmt.Errorf("asm: unterminated macro argument list")
		}
		switch tok.Kind {
		case TokRune:
			if tok.Rune == RuneCloseParamDef {
				return args, nil
			}
			return nil, fmt.Errorf("asm: unexpected rune %q in macro argument list", tok.Rune)
		case TokComment:
			continue
		case TokStringLiteral:
			label, err := ParseLabel(tok.String)
			if err != nil {
				return nil, err
			}
			args = append(args, label)
		case TokCommand:
			if tok.Command.Marker != MarkerParameterUse {
				return nil, fmt.Errorf("asm: macro arguments must be literals or parameter forwards")
			}
			args = append(args, tok.Command.Label)
		default:
			return nil, fmt.Errorf("asm: unexpected token in macro argument list")
		}
	}
}
