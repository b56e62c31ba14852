package linker

import (
	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
	"github.com/kirkbrauer/llvm-classic-mac/pkg/utils"
)

// This file builds minimal, byte-exact PEF containers for use as test
// fixtures. It duplicates a little of what writer.go does, deliberately:
// the fixtures exist to feed the *reader* side (ParseObjectFile,
// OpenSharedLibrary), so they must not be produced by the code under test.

type fixtureSection struct {
	kind  pef.SectionKind
	data  []byte
	align uint8
	reloc []pef.Instruction
}

type fixtureExport struct {
	name    string
	value   uint32
	section int16
	class   pef.SymbolClass
}

type fixtureImportSym struct {
	name  string
	class pef.SymbolClass
}

type fixtureImportLib struct {
	name    string
	weak    bool
	symbols []fixtureImportSym
}

// buildPEF assembles a full big-endian PEF container: a header, one
// SectionHeader per entry in sections, then bodies, then (if imports or
// exports are non-empty, or forceLoader is set) a loader section
// describing them.
func buildPEF(arch pef.Architecture, sections []fixtureSection, imports []fixtureImportLib, exports []fixtureExport, forceLoader bool) []byte {
	haveLoader := forceLoader || len(imports) > 0 || len(exports) > 0

	sectionCount := len(sections)
	if haveLoader {
		sectionCount++
	}

	headerTableSize := pef.ContainerHeaderSize + sectionCount*pef.SectionHeaderSize
	cursor := uint32(headerTableSize)

	type builtSection struct {
		header pef.SectionHeader
		body   []byte
	}
	built := make([]builtSection, len(sections))
	for i, s := range sections {
		built[i] = builtSection{
			header: pef.SectionHeader{
				NameOffset:      -1,
				DefaultAddress:  0,
				TotalLength:     uint32(len(s.data)),
				UnpackedLength:  uint32(len(s.data)),
				ContainerLength: uint32(len(s.data)),
				ContainerOffset: cursor,
				SectionKind:     s.kind,
				ShareKind:       pef.ShareProcess,
				Alignment:       s.align,
			},
			body: s.data,
		}
		cursor += uint32(len(s.data))
	}

	var loaderHeader pef.SectionHeader
	var loaderBody []byte
	if haveLoader {
		loaderBody = buildLoaderBody(sections, imports, exports)
		loaderHeader = pef.SectionHeader{
			NameOffset:      -1,
			ContainerOffset: cursor,
			TotalLength:     uint32(len(loaderBody)),
			UnpackedLength:  uint32(len(loaderBody)),
			ContainerLength: uint32(len(loaderBody)),
			SectionKind:     pef.SectionLoader,
			ShareKind:       pef.ShareProcess,
			Alignment:       2,
		}
		cursor += uint32(len(loaderBody))
	}

	header := pef.ContainerHeader{
		Tag1:             pef.Tag1,
		Tag2:             pef.Tag2,
		Architecture:     arch,
		FormatVersion:    pef.FormatVersion,
		SectionCount:     uint16(sectionCount),
		InstSectionCount: uint16(sectionCount),
	}

	out := make([]byte, 0, cursor)
	out = append(out, header.Encode()...)
	for _, b := range built {
		out = append(out, b.header.Encode()...)
	}
	if haveLoader {
		out = append(out, loaderHeader.Encode()...)
	}
	for _, b := range built {
		out = append(out, b.body...)
	}
	if haveLoader {
		out = append(out, loaderBody...)
	}
	return out
}

// buildLoaderBody assembles a loader section following the sub-region
// order of spec §4.7 step 3: info header, imported libraries, imported
// symbols, relocation headers, relocation instruction bytes, string
// table, export hash slots, export keys, export symbols.
func buildLoaderBody(sections []fixtureSection, imports []fixtureImportLib, exports []fixtureExport) []byte {
	strs := newStringTableBuilder()

	var importedLibs []pef.ImportedLibrary
	var importedSyms []pef.ImportedSymbol
	firstSym := uint32(0)
	for _, lib := range imports {
		nameOff := strs.intern(lib.name)
		options := uint8(0)
		if lib.weak {
			options |= pef.WeakImportLibMask
		}
		importedLibs = append(importedLibs, pef.ImportedLibrary{
			NameOffset:          nameOff,
			ImportedSymbolCount: uint32(len(lib.symbols)),
			FirstImportedSymbol: firstSym,
			Options:             options,
		})
		for _, sym := range lib.symbols {
			importedSyms = append(importedSyms, pef.ComposeImportedSymbol(sym.class, strs.intern(sym.name)))
		}
		firstSym += uint32(len(lib.symbols))
	}

	var relocHeaders []pef.LoaderRelocationHeader
	var relocBytes []byte
	instrCursor := uint32(0)
	for i, s := range sections {
		if len(s.reloc) == 0 {
			continue
		}
		relocHeaders = append(relocHeaders, pef.LoaderRelocationHeader{
			SectionIndex:     uint16(i),
			RelocCount:       uint32(len(s.reloc)),
			FirstRelocOffset: instrCursor,
		})
		for _, instr := range s.reloc {
			relocBytes = append(relocBytes, byte(instr>>8), byte(instr))
		}
		instrCursor += uint32(len(s.reloc)) * 2
	}

	var exportedSyms []pef.ExportedSymbol
	exportNames := make([]string, len(exports))
	for i, e := range exports {
		nameOff := strs.intern(e.name)
		exportedSyms = append(exportedSyms, pef.ComposeExportedSymbol(e.class, nameOff, e.value, e.section))
		exportNames[i] = e.name
	}

	power := pef.HashTablePower(len(exports))
	slotCount := uint32(1) << power
	chains := make([][]int, slotCount)
	for i, name := range exportNames {
		key := pef.HashName(name)
		slot := uint32(key.HashValue()) & (slotCount - 1)
		chains[slot] = append(chains[slot], i)
	}
	hashSlots := make([]pef.ExportHashSlot, slotCount)
	hashKeys := make([]pef.ExportHashKey, len(exports))
	reordered := make([]pef.ExportedSymbol, len(exports))
	firstIdx := uint32(0)
	for slot, chain := range chains {
		hashSlots[slot] = pef.ComposeExportHashSlot(uint32(len(chain)), firstIdx)
		for _, orig := range chain {
			hashKeys[firstIdx] = pef.HashName(exportNames[orig])
			reordered[firstIdx] = exportedSyms[orig]
			firstIdx++
		}
	}

	relocHeaderStart := pef.LoaderInfoHeaderSize +
		len(importedLibs)*pef.ImportedLibrarySize +
		len(importedSyms)*pef.ImportedSymbolSize
	relocInstrStart := relocHeaderStart + len(relocHeaders)*pef.LoaderRelocationHeaderSize
	stringsStart := relocInstrStart + len(relocBytes)
	hashStart := int(utils.AlignTo(uint64(stringsStart+len(strs.buf)), 4))
	stringsPad := hashStart - (stringsStart + len(strs.buf))

	info := pef.LoaderInfoHeader{
		MainSection:              -1,
		InitSection:              -1,
		TermSection:              -1,
		ImportedLibraryCount:     uint32(len(importedLibs)),
		TotalImportedSymbolCount: uint32(len(importedSyms)),
		RelocSectionCount:        uint32(len(relocHeaders)),
		RelocInstrOffset:         uint32(relocInstrStart),
		LoaderStringsOffset:      uint32(stringsStart),
		ExportHashOffset:         uint32(hashStart),
		ExportHashTablePower:     power,
		ExportedSymbolCount:      uint32(len(exports)),
	}

	var buf []byte
	buf = append(buf, info.Encode()...)
	for _, l := range importedLibs {
		buf = append(buf, l.Encode()...)
	}
	for _, s := range importedSyms {
		buf = append(buf, s.Encode()...)
	}
	for _, rh := range relocHeaders {
		buf = append(buf, rh.Encode()...)
	}
	buf = append(buf, relocBytes...)
	buf = append(buf, strs.buf...)
	buf = append(buf, make([]byte, stringsPad)...)
	for _, slot := range hashSlots {
		buf = append(buf, slot.Encode()...)
	}
	for _, key := range hashKeys {
		buf = append(buf, key.Encode()...)
	}
	for _, sym := range reordered {
		buf = append(buf, sym.Encode()...)
	}
	for len(buf)%16 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
