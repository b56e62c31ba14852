package linker

import (
	"path/filepath"
	"strings"

	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
)

// SharedLibrary is a parsed PEF container opened purely to resolve
// imports against — its code and data sections are never merged into
// the output (spec §4.3). Only its loader section's export table
// matters here.
type SharedLibrary struct {
	*InputFile

	// Weak records whether this library was named on the weak-library
	// list (spec §6.3 WeakLibraries); Undefined symbols are resolved
	// against strong libraries first, weak ones only if no strong library
	// exports the name (spec §4.3).
	Weak bool
}

// OpenSharedLibrary parses file as a shared library: its container and
// loader section, nothing more.
func OpenSharedLibrary(file *File, weak bool) (*SharedLibrary, error) {
	inputFile, err := parseInputFile(file)
	if err != nil {
		return nil, err
	}
	return &SharedLibrary{InputFile: inputFile, Weak: weak}, nil
}

// Name is the library name recorded in the output's ImportedLibrary
// table: the base name of the file it was read from, without directory
// or extension ("/path/to/InterfaceLib.shlb" is recorded as
// "InterfaceLib").
func (lib *SharedLibrary) Name() string {
	base := filepath.Base(lib.File.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FindExport looks up name in this library's export hash table (spec
// §4.3, using the layout and hash function defined in §4.7). It returns
// ok=false if the library has no loader section, no export table, or
// does not export the name.
func (lib *SharedLibrary) FindExport(name string) (class pef.SymbolClass, sectionIndex int16, value uint32, ok bool) {
	if lib.Loader == nil || len(lib.Loader.ExportHashSlots) == 0 {
		return 0, 0, 0, false
	}

	key := pef.HashName(name)
	slotIndex := uint32(key.HashValue()) & (uint32(len(lib.Loader.ExportHashSlots)) - 1)
	slot := lib.Loader.ExportHashSlots[slotIndex]

	first := slot.FirstIndex()
	for i := uint32(0); i < slot.ChainCount(); i++ {
		idx := first + i
		if int(idx) >= len(lib.Loader.ExportHashKeys) || int(idx) >= len(lib.Loader.ExportedSymbols) {
			break
		}
		entryKey := lib.Loader.ExportHashKeys[idx]
		if entryKey.NameLength() != uint16(len(name)) || entryKey.HashValue() != key.HashValue() {
			continue
		}
		sym := lib.Loader.ExportedSymbols[idx]
		if lib.Loader.ExportedSymbolName(sym) != name {
			continue
		}
		return sym.Class(), sym.SectionIndex, sym.SymbolValue, true
	}

	return 0, 0, 0, false
}

// ResolveAgainstLibraries walks every Undefined symbol in ctx.Symbols and
// promotes it to Imported by checking strong libraries (in command-line
// order), then weak ones, exactly as spec §4.3 describes. Names still
// Undefined afterward remain Undefined; the caller decides whether that
// is an error (spec §7 UndefinedSymbol, gated by Config.AllowUndefined).
func ResolveAgainstLibraries(ctx *Context) {
	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateUndefined {
			continue
		}
		if resolveOneAgainstLibraries(ctx, sym, ctx.Libraries, false) {
			continue
		}
		resolveOneAgainstLibraries(ctx, sym, ctx.WeakLibraries, true)
	}
}

func resolveOneAgainstLibraries(ctx *Context, sym *Symbol, libs []*SharedLibrary, weak bool) bool {
	for _, lib := range libs {
		class, _, _, ok := lib.FindExport(sym.Name)
		if !ok {
			continue
		}
		ctx.Symbols.AddImported(sym.Name, lib, class, weak)
		return true
	}
	return false
}
