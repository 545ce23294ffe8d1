package asm

// ByteCoILKind tags one item of a bytecode intermediate list: either
// concrete bytes/a comment, or a symbolic reference awaiting the layout
// pass to resolve it into bytes.
type ByteCoILKind int

const (
	BCAssembled ByteCoILKind = iota
	BCComment
	BCRoutineDef
	BCRoutineCallLocal
	BCRoutineCallExported
	BCRoutineAddressLocal
	BCRoutineAddressExported
	BCRoutineEnd
	BCAnchorDef
	BCAnchorRel
	BCAnchorAbs
)

// ByteCoIL is one item of a routine's pre-assembled token stream. Exactly
// one of Bytes/Comment/Label is meaningful, depending on Kind.
type ByteCoIL struct {
	Kind    ByteCoILKind
	Bytes   []byte
	Comment string
	Label   Label
}

// Len reports this item's byte-length contribution to the layout pass.
// Symbolic items (calls, addresses, anchors) report their final resolved
// width up front so routine start offsets can be computed before any
// reference is actually resolved.
func (b ByteCoIL) Len() int {
	switch b.Kind {
	case BCAssembled:
		return len(b.Bytes)
	case BCComment:
		return len(b.Comment) + 1
	case BCRoutineDef, BCAnchorDef:
		return 0
	case BCRoutineCallLocal:
		return 4
	case BCRoutineAddressLocal:
		return 3
	case BCRoutineCallExported, BCRoutineAddressExported:
		return 33
	case BCRoutineEnd:
		return 1
	case BCAnchorRel:
		return 2
	case BCAnchorAbs:
		return 3
	default:
		return 0
	}
}
