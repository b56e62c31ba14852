package linker

import "github.com/kirkbrauer/llvm-classic-mac/pkg/pef"

// LoaderBuild collects everything BuildLoaderSection assembles, in the
// exact order the sub-regions are written to disk (spec §4.7 step 3):
// info header, imported libraries, imported symbols, relocation headers,
// relocation instruction bytes, string table, export hash slots, export
// hash keys, exported symbols.
type LoaderBuild struct {
	Info              pef.LoaderInfoHeader
	ImportedLibraries []pef.ImportedLibrary
	ImportedSymbols   []pef.ImportedSymbol
	RelocHeaders      []pef.LoaderRelocationHeader
	RelocInstrBytes   []byte
	Strings           []byte
	ExportHashSlots   []pef.ExportHashSlot
	ExportHashKeys    []pef.ExportHashKey
	ExportedSymbols   []pef.ExportedSymbol
}

// stringTableBuilder deduplicates names into a single NUL-terminated
// blob, returning each name's byte offset.
type stringTableBuilder struct {
	buf     []byte
	offsets map[string]uint32
}

func newStringTableBuilder() *stringTableBuilder {
	return &stringTableBuilder{offsets: make(map[string]uint32)}
}

func (b *stringTableBuilder) intern(s string) uint32 {
	if off, ok := b.offsets[s]; ok {
		return off
	}
	off := uint32(len(b.buf))
	b.buf = append(b.buf, []byte(s)...)
	b.buf = append(b.buf, 0)
	b.offsets[s] = off
	return off
}

// BuildLoaderSection assembles the output container's loader section from
// the fully resolved symbol table and laid-out sections (spec §4.7). It
// must run after LayoutOutputSections and AssignSectionIndices; it
// regenerates every InputSection's relocation stream itself, once global
// import indices have been assigned.
func BuildLoaderSection(ctx *Context) *LoaderBuild {
	lb := &LoaderBuild{}
	strs := newStringTableBuilder()

	// Step: collect imports grouped by library, preserving first-seen
	// order of both libraries and symbols within each library.
	libIndex := make(map[*SharedLibrary]int)
	type pendingImport struct {
		name  string
		class pef.SymbolClass
	}
	var libImports [][]pendingImport

	assignImportIndex := func(sym *Symbol) int {
		lib := sym.Imported.Library
		idx, ok := libIndex[lib]
		if !ok {
			idx = len(libImports)
			libIndex[lib] = idx
			libImports = append(libImports, nil)
		}
		libImports[idx] = append(libImports[idx], pendingImport{name: sym.Name, class: sym.Imported.Class})
		return len(libImports[idx]) - 1
	}

	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateImported {
			continue
		}
		localIdx := assignImportIndex(sym)
		sym.Imported.ImportIndex = localIdx // patched to a global offset below
	}

	firstSymbolOfLib := make([]uint32, len(libImports))
	total := uint32(0)
	for i, syms := range libImports {
		firstSymbolOfLib[i] = total
		total += uint32(len(syms))
	}

	for lib, idx := range libIndex {
		nameOff := strs.intern(lib.Name())
		options := uint8(0)
		if lib.Weak {
			options |= pef.WeakImportLibMask
		}
		entry := pef.ImportedLibrary{
			NameOffset:          nameOff,
			OldImpVersion:       lib.Header.OldImpVersion,
			CurrentVersion:      lib.Header.CurrentVersion,
			ImportedSymbolCount: uint32(len(libImports[idx])),
			FirstImportedSymbol: firstSymbolOfLib[idx],
			Options:             options,
		}
		if idx >= len(lb.ImportedLibraries) {
			grown := make([]pef.ImportedLibrary, idx+1)
			copy(grown, lb.ImportedLibraries)
			lb.ImportedLibraries = grown
		}
		lb.ImportedLibraries[idx] = entry
	}

	for _, syms := range libImports {
		for _, s := range syms {
			lb.ImportedSymbols = append(lb.ImportedSymbols, pef.ComposeImportedSymbol(s.class, strs.intern(s.name)))
		}
	}

	// Now that every library's FirstImportedSymbol offset is known, patch
	// every Imported symbol's ImportIndex from library-local to global —
	// this is what EncodeRelocations needs (spec §4.6 "import-index
	// remapping").
	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateImported {
			continue
		}
		idx := libIndex[sym.Imported.Library]
		sym.Imported.ImportIndex = int(firstSymbolOfLib[idx]) + sym.Imported.ImportIndex
	}

	// Step: regenerate every section's relocation stream against the
	// now-final global import indices, and collect the relocation headers
	// that reference each output section index.
	instrCursor := uint32(0)
	for kind := OutputKind(0); kind < numOutputKinds; kind++ {
		for _, isec := range ctx.OutputSections[kind].Members {
			fixups := isec.regenerateFixups(ctx)
			if len(fixups) == 0 {
				continue
			}
			instrs, err := EncodeRelocations(fixups)
			if err != nil {
				ctx.AddError(err)
				continue
			}
			rh := pef.LoaderRelocationHeader{
				SectionIndex:     uint16(ctx.OutputSections[kind].SectionIndex),
				RelocCount:       uint32(len(instrs)),
				FirstRelocOffset: instrCursor,
			}
			lb.RelocHeaders = append(lb.RelocHeaders, rh)
			for _, instr := range instrs {
				lb.RelocInstrBytes = append(lb.RelocInstrBytes, byte(instr>>8), byte(instr))
			}
			instrCursor += uint32(len(instrs)) * 2
		}
	}

	// Step: collect exports.
	var exportNames []string
	exportByName := make(map[string]*Symbol)
	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateDefined {
			continue
		}
		exportNames = append(exportNames, sym.Name)
		exportByName[sym.Name] = sym
	}

	for _, name := range exportNames {
		sym := exportByName[name]
		nameOff := strs.intern(name)
		lb.ExportedSymbols = append(lb.ExportedSymbols, pef.ComposeExportedSymbol(
			sym.Defined.Class, nameOff, sym.Defined.Value, sym.Defined.SectionIndex))
	}

	lb.Strings = strs.buf

	// Step: build the export hash table (spec §4.7 step 5): power picked
	// by HashTablePower, entries grouped into slots by hash value modulo
	// the slot count, each slot a contiguous chain in insertion order.
	power := pef.HashTablePower(len(exportNames))
	slotCount := uint32(1) << power
	chains := make([][]int, slotCount)
	for i, name := range exportNames {
		key := pef.HashName(name)
		slot := uint32(key.HashValue()) & (slotCount - 1)
		chains[slot] = append(chains[slot], i)
	}

	lb.ExportHashSlots = make([]pef.ExportHashSlot, slotCount)
	lb.ExportHashKeys = make([]pef.ExportHashKey, len(exportNames))
	reordered := make([]pef.ExportedSymbol, len(exportNames))
	firstIdx := uint32(0)
	for slot, chain := range chains {
		lb.ExportHashSlots[slot] = pef.ComposeExportHashSlot(uint32(len(chain)), firstIdx)
		for _, origIdx := range chain {
			key := pef.HashName(exportNames[origIdx])
			lb.ExportHashKeys[firstIdx] = key
			reordered[firstIdx] = lb.ExportedSymbols[origIdx]
			firstIdx++
		}
	}
	lb.ExportedSymbols = reordered

	lb.Info = pef.LoaderInfoHeader{
		MainSection:              -1,
		InitSection:              -1,
		TermSection:              -1,
		ImportedLibraryCount:     uint32(len(lb.ImportedLibraries)),
		TotalImportedSymbolCount: uint32(len(lb.ImportedSymbols)),
		RelocSectionCount:        uint32(len(lb.RelocHeaders)),
		ExportHashTablePower:     power,
		ExportedSymbolCount:      uint32(len(lb.ExportedSymbols)),
	}

	if entrySym := ctx.Symbols.Lookup(ctx.Config.Entry); entrySym != nil && entrySym.State == StateDefined {
		lb.Info.MainSection = int32(entrySym.Defined.SectionIndex)
		lb.Info.MainOffset = entrySym.Defined.Value
	}

	return lb
}
