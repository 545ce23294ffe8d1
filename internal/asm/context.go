package asm

import (
	"crypto/sha256"
	"fmt"

	"github.com/jakintosh/cohost/internal/core"
)

// Resolved opcode bytes the final emission pass writes in place of a
// symbolic ByteCoIL reference. opLit16/opCall16 come straight from the
// core instruction table (LIT16, CALL16); opLit8 is LIT8.
const (
	opLit8  = 0xB0
	opLit16 = 0xB1
	opCall16 = 0x05 // core.Encode(Instruction{Op: OpCall, Len: 2})

	// Exported routine/address references are a link-time construct: a
	// 32-byte content hash can't be pushed through the Literal mechanism
	// (widths top out at 8 bytes), so they're emitted as a bare marker
	// plus hash for an external linker to resolve before the ROM is
	// loaded. Both markers fall in the §4.B reserved range and decode to
	// NoOperation on a CPU that sees them unresolved.
	opRoutineCallExported    = 0x20
	opRoutineAddressExported = 0x21
)

// Context resolves one Module's macros, anchors and routine references
// against a Library and itself, and lowers the result to flat bytes.
// It borrows the Library for the duration of assembly and exclusively
// owns the pre-assembled macro cache.
type Context struct {
	library *Library

	macros map[string]Macro

	routineOrder []string
	routines     map[string]Routine

	assembledCache map[string][]ByteCoIL
	finalBytes     map[string][]byte
}

// NewContext registers every macro and routine in module against library,
// failing on the first duplicate name.
func NewContext(library *Library, module Module) (*Context, error) {
	ctx := &Context{
		library:        library,
		macros:         make(map[string]Macro),
		routines:       make(map[string]Routine),
		assembledCache: make(map[string][]ByteCoIL),
	}
	for _, m := range module.Macros {
		if err := ctx.registerMacro(m); err != nil {
			return nil, err
		}
	}
	for _, r := range module.Routines {
		if err := ctx.registerRoutine(r); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func (ctx *Context) registerMacro(m Macro) error {
	if _, exists := ctx.macros[m.Name]; exists {
		return fmt.Errorf("asm: duplicate macro %q", m.Name)
	}
	ctx.macros[m.Name] = m
	return nil
}

func (ctx *Context) registerRoutine(r Routine) error {
	if _, exists := ctx.routines[r.Name]; exists {
		return fmt.Errorf("asm: duplicate routine %q", r.Name)
	}
	ctx.routines[r.Name] = r
	ctx.routineOrder = append(ctx.routineOrder, r.Name)
	return nil
}

// renderLabel resolves label to a literal string using env. A nil env
// only succeeds for labels with no parameter components, matching "a
// Label referencing parameter p can only be rendered inside a macro
// invocation supplying p".
func renderLabel(label Label, env map[string]string) (string, error) {
	return label.Render(env)
}

// preAssembleToken lowers one SourceToken to zero or more ByteCoIL items.
// env is the active macro parameter environment (nil outside any macro
// expansion); assembling tracks macro names currently being expanded, so
// a mutually recursive pair is caught here instead of diverging.
func (ctx *Context) preAssembleToken(tok SourceToken, env map[string]string, assembling map[string]bool) ([]ByteCoIL, error) {
	switch tok.Kind {
	case STComment:
		return []ByteCoIL{{Kind: BCComment, Comment: tok.Comment}}, nil

	case STNumberLiteral:
		return []ByteCoIL{{Kind: BCAssembled, Bytes: tok.Number.Bytes()}}, nil

	case STInstruction:
		return []ByteCoIL{{Kind: BCAssembled, Bytes: []byte{tok.Opcode}}}, nil

	case STParameterUse:
		// A bare parameter reference stands in for the numeric value its
		// macro invocation bound the parameter to (see DESIGN.md: MacroUse
		// parameter binding). It assembles exactly like a literal number.
		rendered, err := renderLabel(tok.Label, env)
		if err != nil {
			return nil, err
		}
		num, ok, err := parseNumber(rendered)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("asm: parameter use %q did not resolve to a number", rendered)
		}
		return []ByteCoIL{{Kind: BCAssembled, Bytes: num.Bytes()}}, nil

	case STRoutineCallLocal, STRoutineCallExported,
		STRoutineAddressLocal, STRoutineAddressExported,
		STAnchorDef, STAnchorAddressAbsolute, STAnchorAddressRelative:
		rendered, err := renderLabel(tok.Label, env)
		if err != nil {
			return nil, err
		}
		literalLabel := Label{Components: []LabelComponent{{Text: rendered}}}
		return []ByteCoIL{{Kind: byteCoILKindFor(tok.Kind), Label: literalLabel}}, nil

	case STMacroUse:
		return ctx.preAssembleMacroUse(tok, env, assembling)

	case STParameterDef:
		return nil, nil

	default:
		return nil, fmt.Errorf("asm: unexpected source token kind %d", tok.Kind)
	}
}

func byteCoILKindFor(kind SourceTokenKind) ByteCoILKind {
	switch kind {
	case STRoutineCallLocal:
		return BCRoutineCallLocal
	case STRoutineCallExported:
		return BCRoutineCallExported
	case STRoutineAddressLocal:
		return BCRoutineAddressLocal
	case STRoutineAddressExported:
		return BCRoutineAddressExported
	case STAnchorDef:
		return BCAnchorDef
	case STAnchorAddressAbsolute:
		return BCAnchorAbs
	case STAnchorAddressRelative:
		return BCAnchorRel
	default:
		return BCComment
	}
}

// preAssembleMacroUse inlines one macro invocation. Parameter-less macros
// are cached under their bare name once assembled (property 6: a second
// pre-assembly is served from cache); macros with declared parameters
// vary by call site and are never cached, since their expansion depends
// on the bound environment, not just the name.
func (ctx *Context) preAssembleMacroUse(tok SourceToken, callerEnv map[string]string, assembling map[string]bool) ([]ByteCoIL, error) {
	name, err := renderLabel(tok.Label, callerEnv)
	if err != nil {
		return nil, err
	}

	mac, isContextMacro := ctx.macros[name]
	if !isContextMacro {
		if il, ok := ctx.assembledCache[name]; ok {
			return il, nil
		}
		if raw, ok := ctx.library.Macros[name]; ok {
			return []ByteCoIL{{Kind: BCAssembled, Bytes: raw}}, nil
		}
		return nil, fmt.Errorf("asm: using undefined macro: %s", name)
	}

	if len(mac.Params) == 0 {
		if il, ok := ctx.assembledCache[name]; ok {
			return il, nil
		}
	}

	if assembling[name] {
		return nil, fmt.Errorf("asm: cyclic macro dependency on %q", name)
	}
	assembling[name] = true
	defer delete(assembling, name)

	env, err := bindMacroParams(mac, tok.MacroArgs, callerEnv)
	if err != nil {
		return nil, err
	}

	var il []ByteCoIL
	for _, t := range mac.Tokens {
		sub, err := ctx.preAssembleToken(t, env, assembling)
		if err != nil {
			return nil, err
		}
		il = append(il, sub...)
	}

	if len(mac.Params) == 0 {
		ctx.assembledCache[name] = il
	}
	return il, nil
}

func bindMacroParams(mac Macro, args []Label, callerEnv map[string]string) (map[string]string, error) {
	if len(args) != len(mac.Params) {
		return nil, fmt.Errorf("asm: macro %q expects %d argument(s), got %d", mac.Name, len(mac.Params), len(args))
	}
	if len(mac.Params) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(mac.Params))
	for i, p := range mac.Params {
		rendered, err := renderLabel(args[i], callerEnv)
		if err != nil {
			return nil, err
		}
		env[p] = rendered
	}
	return env, nil
}

// anchorKey scopes an anchor name to the routine that defines it: two
// routines may each declare an anchor of the same name without clashing.
type anchorKey struct {
	routine string
	anchor  string
}

type compiledRoutine struct {
	name  string
	items []ByteCoIL
}

// Assemble runs the full pipeline: pre-assemble every routine's source
// tokens into a ByteCoIL sequence (each one starting RoutineDef, ending
// RoutineEnd per property 7), lay out routine and anchor offsets from the
// fixed per-item byte lengths, then resolve every symbolic reference and
// concatenate the routines in module order.
func (ctx *Context) Assemble() ([]byte, error) {
	var compiled []compiledRoutine
	for _, name := range ctx.routineOrder {
		r := ctx.routines[name]
		items := []ByteCoIL{{Kind: BCRoutineDef}}
		for _, tok := range r.Tokens {
			sub, err := ctx.preAssembleToken(tok, nil, map[string]bool{})
			if err != nil {
				return nil, fmt.Errorf("asm: routine %q: %w", name, err)
			}
			items = append(items, sub...)
		}
		items = append(items, ByteCoIL{Kind: BCRoutineEnd})
		compiled = append(compiled, compiledRoutine{name: name, items: items})
	}

	routineOffset := make(map[string]int, len(compiled))
	anchorAbsOffset := make(map[anchorKey]int)

	cursor := 0
	for _, r := range compiled {
		routineOffset[r.name] = cursor
		within := 0
		for _, item := range r.items {
			if item.Kind == BCAnchorDef {
				key := anchorKey{routine: r.name, anchor: item.Label.String()}
				anchorAbsOffset[key] = cursor + within
			}
			within += item.Len()
		}
		cursor += within
	}

	ctx.finalBytes = make(map[string][]byte, len(compiled))
	var out []byte

	for _, r := range compiled {
		bytes, err := ctx.resolveRoutine(r, routineOffset, anchorAbsOffset)
		if err != nil {
			return nil, err
		}
		ctx.finalBytes[r.name] = bytes
		out = append(out, bytes...)
	}

	return out, nil
}

func (ctx *Context) resolveRoutine(r compiledRoutine, routineOffset map[string]int, anchorAbsOffset map[anchorKey]int) ([]byte, error) {
	var buf []byte
	offset := routineOffset[r.name]

	for _, item := range r.items {
		switch item.Kind {
		case BCAssembled:
			buf = append(buf, item.Bytes...)

		case BCComment:
			buf = append(buf, item.Comment...)
			buf = append(buf, 0)

		case BCRoutineDef, BCAnchorDef:
			// contribute no bytes

		case BCRoutineEnd:
			nop, _ := core.Encode(core.Instruction{Op: core.OpNop})
			buf = append(buf, nop)

		case BCRoutineAddressLocal:
			target := item.Label.String()
			addr, ok := routineOffset[target]
			if !ok {
				return nil, fmt.Errorf("asm: routine %q references undefined local routine %q", r.name, target)
			}
			buf = append(buf, opLit16, byte(addr), byte(addr>>8))

		case BCRoutineCallLocal:
			target := item.Label.String()
			addr, ok := routineOffset[target]
			if !ok {
				return nil, fmt.Errorf("asm: routine %q calls undefined local routine %q", r.name, target)
			}
			buf = append(buf, opLit16, byte(addr), byte(addr>>8), opCall16)

		case BCRoutineAddressExported, BCRoutineCallExported:
			name := item.Label.String()
			hash, ok := ctx.library.RoutineNames[name]
			if !ok {
				return nil, fmt.Errorf("asm: routine %q references undefined exported routine %q", r.name, name)
			}
			marker := byte(opRoutineAddressExported)
			if item.Kind == BCRoutineCallExported {
				marker = opRoutineCallExported
			}
			buf = append(buf, marker)
			buf = append(buf, hash[:]...)

		case BCAnchorAbs:
			name := item.Label.String()
			addr, ok := anchorAbsOffset[anchorKey{routine: r.name, anchor: name}]
			if !ok {
				return nil, fmt.Errorf("asm: routine %q references undefined anchor %q", r.name, name)
			}
			buf = append(buf, opLit16, byte(addr), byte(addr>>8))

		case BCAnchorRel:
			name := item.Label.String()
			key := anchorKey{routine: r.name, anchor: name}
			target, ok := anchorAbsOffset[key]
			if !ok {
				return nil, fmt.Errorf("asm: routine %q references undefined anchor %q", r.name, name)
			}
			// Relative to the byte immediately following this 2-byte
			// push. JUMP's 1-byte relative form pops the displacement and
			// adds it to PC as an unsigned, zero-extended value (see
			// core.execJump), so only forward anchors are reachable this
			// way; a backward target needs the 16-bit relative form,
			// which this assembler does not yet emit (DESIGN.md).
			here := offset + len(buf) + 2
			rel := target - here
			if rel < 0 || rel > 255 {
				return nil, fmt.Errorf("asm: routine %q: relative anchor %q not a forward 8-bit offset (%d)", r.name, name, rel)
			}
			buf = append(buf, opLit8, byte(rel))

		default:
			return nil, fmt.Errorf("asm: unresolved ByteCoIL kind %d", item.Kind)
		}
	}

	return buf, nil
}

// ExportedRoutineHashes computes the content hash of every exported
// routine's final resolved bytes. Call after Assemble. A caller wires
// the result into a Library (via Library.RegisterRoutine) so a later
// module's RoutineCallExported/RoutineAddressExported can resolve
// against it.
func (ctx *Context) ExportedRoutineHashes() map[string]Hash {
	out := make(map[string]Hash)
	for name, r := range ctx.routines {
		if !r.Exported {
			continue
		}
		bytes, ok := ctx.finalBytes[name]
		if !ok {
			continue
		}
		out[name] = sha256.Sum256(bytes)
	}
	return out
}
