package asm

// Hash is the 32-byte content address a routine is looked up by across
// module boundaries: sha256 of that routine's final, fully-resolved
// bytes (see Context.ExportedRoutineHashes).
type Hash [32]byte

// Library is the read-only symbol store the assembler context consults
// for macros and routines the current module does not itself define.
// It is owned externally and borrowed for the lifetime of one assembly:
// nothing in this package ever mutates a Library it was handed, only the
// RegisterRoutine/RegisterMacro helpers a caller uses to build one up
// between builds.
type Library struct {
	Macros       map[string][]byte
	RoutineNames map[string]Hash
	Routines     map[Hash][]byte
}

// NewLibrary returns an empty Library ready to be populated or consulted.
func NewLibrary() *Library {
	return &Library{
		Macros:       make(map[string][]byte),
		RoutineNames: make(map[string]Hash),
		Routines:     make(map[Hash][]byte),
	}
}

// RegisterRoutine publishes a routine's final bytes under name and hash,
// the two-level indirection RoutineCallExported/RoutineAddressExported
// resolve through in a later assembly.
func (l *Library) RegisterRoutine(name string, hash Hash, bytes []byte) {
	l.RoutineNames[name] = hash
	l.Routines[hash] = bytes
}

// RegisterMacro publishes a macro's raw bytes for inlining by name.
func (l *Library) RegisterMacro(name string, bytes []byte) {
	l.Macros[name] = bytes
}
