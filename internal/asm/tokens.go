// Package asm implements the Coalescent Core assembler: a text tokenizer,
// a module parser, and an assembler context that resolves macros, anchors
// and routine references down to flat bytes.
package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved runes. A StringLiteral must contain none of these; everything
// else about the source grammar is built from them.
const (
	RuneOpenComment   = '('
	RuneCloseComment  = ')'
	RuneOpenImport    = '+'
	RuneOpenRoutine   = ':'
	RuneOpenExported  = '^'
	RuneOpenMacro     = '%'
	RuneClose         = ';'
	RuneOpenParamDef  = '['
	RuneCloseParamDef = ']'

	RuneRoutineCallLocal      = '>'
	RuneRoutineCallExported   = '<'
	RuneRoutineAddressLocal   = '$'
	RuneRoutineAddressExport  = '@'
	RuneParameterUse          = '\''
	RuneMacroUse              = '~'
	RuneAnchorDef             = '#'
	RuneAnchorAddressAbsolute = '*'
	RuneAnchorAddressRelative = '&'

	// RuneOpenRoutine and RuneOpenMacro double as import-entry markers
	// when attached directly to a name (":name", "%name") rather than
	// appearing as a standalone token (": name ... ;").
	runeImportRoutine = RuneOpenRoutine
	runeImportMacro   = RuneOpenMacro

	runePathSep     = '.'
	runeAliasEquals = '='
	runeParamOpen   = '{'
	runeParamClose  = '}'
)

// reservedRunes holds the 21 characters a StringLiteral token may not
// contain. The path separator '.' is not among them, so that a
// dot-separated import path tokenizes as a StringLiteral.
var reservedRunes = map[rune]bool{
	RuneOpenComment: true, RuneCloseComment: true, RuneOpenImport: true,
	RuneOpenRoutine: true, RuneOpenExported: true, RuneOpenMacro: true,
	RuneClose: true, RuneOpenParamDef: true, RuneCloseParamDef: true,
	RuneRoutineCallLocal: true, RuneRoutineCallExported: true,
	RuneRoutineAddressLocal: true, RuneRoutineAddressExport: true,
	RuneParameterUse: true, RuneMacroUse: true, RuneAnchorDef: true,
	RuneAnchorAddressAbsolute: true, RuneAnchorAddressRelative: true,
	runeAliasEquals: true, runeParamOpen: true, runeParamClose: true,
}

// structuralRunes are the single-character tokens recognised at the top
// of the tokenizer's parse priority, keyed by the literal character.
var structuralRunes = map[rune]bool{
	RuneOpenComment: true, RuneCloseComment: true, RuneOpenImport: true,
	RuneOpenRoutine: true, RuneOpenExported: true, RuneOpenMacro: true,
	RuneClose: true, RuneOpenParamDef: true, RuneCloseParamDef: true,
}

// markerRunes are the characters that open a Command token (a marker
// followed by a label body).
var markerRunes = map[rune]bool{
	RuneRoutineCallLocal: true, RuneRoutineCallExported: true,
	RuneRoutineAddressLocal: true, RuneRoutineAddressExport: true,
	RuneParameterUse: true, RuneMacroUse: true, RuneAnchorDef: true,
	RuneAnchorAddressAbsolute: true, RuneAnchorAddressRelative: true,
}

// validateStringLiteral reports an error if s contains any reserved rune.
func validateStringLiteral(s string) error {
	for _, r := range s {
		if reservedRunes[r] {
			return fmt.Errorf("asm: string literal %q contains reserved character %q", s, r)
		}
	}
	return nil
}

// LabelComponent is one span of a Label: either a literal run of text or a
// {name} parameter placeholder.
type LabelComponent struct {
	Parameter bool
	Text      string
}

// Label is an ordered sequence of literal and parameter components.
// Rendering requires a parameter environment; a literal-only Label
// renders without one.
type Label struct {
	Components []LabelComponent
}

// ParseLabel parses a label body, splitting {name} spans into parameter
// components and everything else into literal components.
func ParseLabel(body string) (Label, error) {
	var label Label
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			label.Components = append(label.Components, LabelComponent{Text: buf.String()})
			buf.Reset()
		}
	}

	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == runeParamOpen {
			flush()
			j := i + 1
			for j < len(runes) && runes[j] != runeParamClose {
				j++
			}
			if j >= len(runes) {
				return Label{}, fmt.Errorf("asm: unterminated parameter placeholder in label %q", body)
			}
			label.Components = append(label.Components, LabelComponent{Parameter: true, Text: string(runes[i+1 : j])})
			i = j
			continue
		}
		buf.WriteRune(r)
	}
	flush()
	return label, nil
}

// Render resolves a Label to a concrete string given a parameter
// environment. It fails if any placeholder the label references is
// missing from env.
func (l Label) Render(env map[string]string) (string, error) {
	var out strings.Builder
	for _, c := range l.Components {
		if !c.Parameter {
			out.WriteString(c.Text)
			continue
		}
		v, ok := env[c.Text]
		if !ok {
			return "", fmt.Errorf("asm: label contains undefined parameter %q", c.Text)
		}
		out.WriteString(v)
	}
	return out.String(), nil
}

// String renders the label using no environment, for labels known to be
// literal-only (validated by callers before constructing them this way).
func (l Label) String() string {
	s, err := l.Render(nil)
	if err != nil {
		// Only reachable for labels with unresolved parameters; render the
		// raw spans instead of failing a Stringer.
		var out strings.Builder
		for _, c := range l.Components {
			if c.Parameter {
				out.WriteByte('{')
				out.WriteString(c.Text)
				out.WriteByte('}')
			} else {
				out.WriteString(c.Text)
			}
		}
		return out.String()
	}
	return s
}

// Marker identifies which kind of Command a marker character introduces.
type Marker int

const (
	MarkerRoutineCallLocal Marker = iota
	MarkerRoutineCallExported
	MarkerRoutineAddressLocal
	MarkerRoutineAddressExported
	MarkerParameterUse
	MarkerMacroUse
	MarkerAnchorDef
	MarkerAnchorAddressAbsolute
	MarkerAnchorAddressRelative
	MarkerImportRoutine
	MarkerImportMacro
)

func markerFromRune(r rune) (Marker, bool) {
	switch r {
	case RuneRoutineCallLocal:
		return MarkerRoutineCallLocal, true
	case RuneRoutineCallExported:
		return MarkerRoutineCallExported, true
	case RuneRoutineAddressLocal:
		return MarkerRoutineAddressLocal, true
	case RuneRoutineAddressExport:
		return MarkerRoutineAddressExported, true
	case RuneParameterUse:
		return MarkerParameterUse, true
	case RuneMacroUse:
		return MarkerMacroUse, true
	case RuneAnchorDef:
		return MarkerAnchorDef, true
	case RuneAnchorAddressAbsolute:
		return MarkerAnchorAddressAbsolute, true
	case RuneAnchorAddressRelative:
		return MarkerAnchorAddressRelative, true
	case runeImportRoutine:
		return MarkerImportRoutine, true
	case runeImportMacro:
		return MarkerImportMacro, true
	default:
		return 0, false
	}
}

// Command is a marker character followed by a label body, e.g. `>routine`
// or `~inc` or `#loop{n}`.
type Command struct {
	Marker Marker
	Label  Label
}

// ParseCommand parses a full command token (marker char plus label body).
func ParseCommand(token string) (Command, bool, error) {
	runes := []rune(token)
	if len(runes) == 0 {
		return Command{}, false, nil
	}
	marker, ok := markerFromRune(runes[0])
	if !ok {
		return Command{}, false, nil
	}
	label, err := ParseLabel(string(runes[1:]))
	if err != nil {
		return Command{}, true, err
	}
	return Command{Marker: marker, Label: label}, true, nil
}

// NumberWidth is the byte width a NumberLiteral was tagged with, matching
// the Literal opcode it will assemble to (0xB0 + width index).
type NumberWidth int

const (
	WidthByte NumberWidth = iota
	WidthShort
	WidthInt
	WidthLong
)

// ByteLen returns the operand width in bytes.
func (w NumberWidth) ByteLen() int {
	return [4]int{1, 2, 4, 8}[w]
}

// NumberLiteral is a parsed numeric token, tagged by the width implied by
// its value until the module parser rebinds it to the width of the
// Literal opcode that precedes it.
type NumberLiteral struct {
	Width NumberWidth
	Value uint64
}

// parseNumber parses a decimal or `0x`-prefixed hexadecimal literal,
// choosing the narrowest width that holds the value.
func parseNumber(token string) (NumberLiteral, bool, error) {
	var (
		v   uint64
		err error
	)
	if rest, ok := strings.CutPrefix(token, "0x"); ok {
		if rest == "" {
			return NumberLiteral{}, false, nil
		}
		v, err = strconv.ParseUint(rest, 16, 64)
	} else {
		if token == "" {
			return NumberLiteral{}, false, nil
		}
		for _, r := range token {
			if r < '0' || r > '9' {
				return NumberLiteral{}, false, nil
			}
		}
		v, err = strconv.ParseUint(token, 10, 64)
	}
	if err != nil {
		return NumberLiteral{}, true, fmt.Errorf("asm: invalid number literal %q: %w", token, err)
	}

	width := WidthLong
	switch {
	case v <= 0xFF:
		width = WidthByte
	case v <= 0xFFFF:
		width = WidthShort
	case v <= 0xFFFFFFFF:
		width = WidthInt
	}
	return NumberLiteral{Width: width, Value: v}, true, nil
}

// Bytes renders the literal as opcode-prefixed, little-endian bytes: the
// Literal opcode for the width (0xB0-0xB3) followed by the value.
func (n NumberLiteral) Bytes() []byte {
	length := n.Width.ByteLen()
	out := make([]byte, 1+length)
	out[0] = byte(0xB0 + int(n.Width))
	for i := 0; i < length; i++ {
		out[1+i] = byte(n.Value >> (8 * i))
	}
	return out
}

// Path is a dot-separated import path. Source syntax requires a leading
// dot, which ParsePath strips.
type Path struct {
	Names []string
}

// ParsePath parses a leading-dot, dot-separated path string.
func ParsePath(s string) (Path, error) {
	rest, ok := strings.CutPrefix(s, ".")
	if !ok {
		return Path{}, fmt.Errorf("asm: import path %q must start with '.'", s)
	}
	if rest == "" {
		return Path{}, fmt.Errorf("asm: empty import path")
	}
	return Path{Names: strings.Split(rest, ".")}, nil
}

// splitAlias splits an import entry body on the first '=' into (name,
// localName). "alias=name" imports the symbol "name" under the local
// name "alias"; a body with no '=' imports under its own name.
func splitAlias(s string) (name, localName string) {
	if idx := strings.IndexRune(s, runeAliasEquals); idx >= 0 {
		return s[idx+1:], s[:idx]
	}
	return s, s
}
