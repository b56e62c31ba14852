package linker

import "github.com/kirkbrauer/llvm-classic-mac/pkg/pef"

// SymbolState is the three-state lattice from spec §4.4. A Symbol starts
// absent from the table, and moves through these states only forward —
// never back to Undefined once Defined or Imported.
type SymbolState uint8

const (
	StateUndefined SymbolState = iota
	StateDefined
	StateImported
)

// DefinedInfo is populated when State == StateDefined.
type DefinedInfo struct {
	File         *ObjectFile
	Value        uint32
	SectionIndex int16
	Class        pef.SymbolClass
	VAddr        uint64 // filled in by the layout pass (§4.5); 0 until then
}

// ImportedInfo is populated when State == StateImported.
type ImportedInfo struct {
	Library     *SharedLibrary
	Class       pef.SymbolClass
	Weak        bool
	ImportIndex int // global index assigned by the loader-section builder (§4.7); -1 until then
}

// Symbol is the tagged variant described in spec §9: a sum type, not a
// class hierarchy. State transitions mutate the entry in place, so every
// pointer to a Symbol, including the one in SymbolTable's map, sees its
// current state.
type Symbol struct {
	Name  string
	State SymbolState

	Defined  *DefinedInfo
	Imported *ImportedInfo
}

// SymbolTable is the process-wide name -> Symbol map plus the
// insertion-ordered list that makes output table construction and error
// reporting deterministic (spec §5 ordering guarantees).
type SymbolTable struct {
	byName map[string]*Symbol
	order  []*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// insert is the idempotent entry point all three add* operations share:
// it creates an Undefined placeholder on first mention of a name, or
// returns the existing entry.
func (t *SymbolTable) insert(name string) *Symbol {
	if sym, ok := t.byName[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name, State: StateUndefined}
	t.byName[name] = sym
	t.order = append(t.order, sym)
	return sym
}

// AddDefined implements the addDefined column of spec §4.4's table.
// permissive mirrors Config.AllowUndefined: per spec §8 S6 and the open
// question decision recorded in DESIGN.md, when permissive is true a
// redefinition is silently dropped (first definition wins) instead of
// erroring.
func (t *SymbolTable) AddDefined(name string, file *ObjectFile, value uint32, sectionIndex int16, class pef.SymbolClass, permissive bool) (*Symbol, error) {
	sym := t.insert(name)
	switch sym.State {
	case StateUndefined:
		sym.State = StateDefined
		sym.Defined = &DefinedInfo{File: file, Value: value, SectionIndex: sectionIndex, Class: class}
		sym.Imported = nil
	case StateDefined, StateImported:
		if permissive {
			return sym, nil
		}
		return sym, newError(DuplicateDefinition, name, nil)
	}
	return sym, nil
}

// AddUndefined implements the addUndefined column: a no-op whenever the
// symbol already has an entry of any state, returning the existing one.
func (t *SymbolTable) AddUndefined(name string) *Symbol {
	return t.insert(name)
}

// AddImported implements the addImported column. It never errors:
// Defined and Imported entries both win over a later import attempt
// ("prefer local" / "first library wins").
func (t *SymbolTable) AddImported(name string, lib *SharedLibrary, class pef.SymbolClass, weak bool) *Symbol {
	sym := t.insert(name)
	if sym.State == StateUndefined {
		sym.State = StateImported
		sym.Imported = &ImportedInfo{Library: lib, Class: class, Weak: weak, ImportIndex: -1}
	}
	return sym
}

// Lookup returns the existing entry for name, or nil if it was never
// mentioned.
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.byName[name]
}

// Ordered returns every symbol in first-mention order.
func (t *SymbolTable) Ordered() []*Symbol {
	return t.order
}
