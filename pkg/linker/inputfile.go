package linker

import (
	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
)

// InputFile wraps one parsed PEF container: its header, its section
// header table, and (if present) the decoded contents of its loader
// section. It never copies section bodies — InputSection wraps slices of
// File.Contents directly (spec §4.2 step 3).
type InputFile struct {
	File    *File
	Header  pef.ContainerHeader
	Headers []pef.SectionHeader

	// LoaderIndex is the section-table index of this file's own loader
	// section, or -1 if it has none (a shared library always has one;
	// a minimal object file may not).
	LoaderIndex int
	Loader      *LoaderSection
}

// LoaderSection holds the decoded sub-structures of a container's loader
// section (spec §4.7), plus the raw string-table and relocation-byte
// regions needed to resolve names and re-walk relocation streams lazily.
type LoaderSection struct {
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

// StringAt reads the NUL-terminated string starting at offset in the
// loader string table.
func (l *LoaderSection) StringAt(offset uint32) string {
	if int(offset) >= len(l.Strings) {
		return ""
	}
	end := offset
	for end < uint32(len(l.Strings)) && l.Strings[end] != 0 {
		end++
	}
	return string(l.Strings[offset:end])
}

func (l *LoaderSection) LibraryName(lib pef.ImportedLibrary) string {
	return l.StringAt(lib.NameOffset)
}

func (l *LoaderSection) ImportedSymbolName(sym pef.ImportedSymbol) string {
	return l.StringAt(sym.NameOffset())
}

func (l *LoaderSection) ExportedSymbolName(sym pef.ExportedSymbol) string {
	return l.StringAt(sym.NameOffset())
}

// RelocInstructionsFor returns the 16-bit instruction words for the
// section named by hdr, decoded from the raw relocation byte region.
func (l *LoaderSection) RelocInstructionsFor(hdr pef.LoaderRelocationHeader) []pef.Instruction {
	out := make([]pef.Instruction, hdr.RelocCount)
	for i := range out {
		off := int(hdr.FirstRelocOffset) + i*2
		if off+2 > len(l.RelocInstrBytes) {
			break
		}
		out[i] = pef.Instruction(uint16(l.RelocInstrBytes[off])<<8 | uint16(l.RelocInstrBytes[off+1]))
	}
	return out
}

// parseInputFile decodes the container header and section table of a raw
// file, and, if one of its sections is a loader section, decodes that
// section's sub-structures too. It performs no copying of section bodies.
func parseInputFile(file *File) (*InputFile, error) {
	header, err := pef.DecodeContainerHeader(file.Contents)
	if err != nil {
		return nil, newError(MalformedFile, file.Name, err)
	}
	if header.Architecture != pef.ArchPowerPC && header.Architecture != pef.ArchM68K {
		return nil, newError(UnknownArchitecture, file.Name, nil)
	}
	if header.SectionCount == 0 {
		return nil, newError(MalformedFile, file.Name, pef.ErrMalformed("no sections"))
	}

	f := &InputFile{File: file, Header: header, LoaderIndex: -1}

	off := pef.ContainerHeaderSize
	for i := 0; i < int(header.SectionCount); i++ {
		sh, err := pef.DecodeSectionHeader(file.Contents[off:])
		if err != nil {
			return nil, newError(MalformedFile, file.Name, err)
		}
		if uint64(sh.ContainerOffset)+uint64(sh.ContainerLength) > uint64(len(file.Contents)) {
			return nil, newError(MalformedFile, file.Name, pef.ErrMalformed("section %d out of range", i))
		}
		f.Headers = append(f.Headers, sh)
		if sh.SectionKind == pef.SectionLoader {
			f.LoaderIndex = i
		}
		off += pef.SectionHeaderSize
	}

	if f.LoaderIndex >= 0 {
		loader, err := parseLoaderSection(file.Contents, f.Headers[f.LoaderIndex])
		if err != nil {
			return nil, newError(MalformedFile, file.Name, err)
		}
		f.Loader = loader
	}

	return f, nil
}

// parseLoaderSection decodes every fixed-size sub-structure of a loader
// section, per the region layout in spec §4.7 step 3.
func parseLoaderSection(contents []byte, sh pef.SectionHeader) (*LoaderSection, error) {
	base := sh.ContainerOffset
	data := contents[base : base+sh.ContainerLength]

	info, err := pef.DecodeLoaderInfoHeader(data)
	if err != nil {
		return nil, err
	}

	l := &LoaderSection{Info: info}

	cursor := uint32(pef.LoaderInfoHeaderSize)
	for i := uint32(0); i < info.ImportedLibraryCount; i++ {
		lib, err := pef.DecodeImportedLibrary(data[cursor:])
		if err != nil {
			return nil, err
		}
		l.ImportedLibraries = append(l.ImportedLibraries, lib)
		cursor += pef.ImportedLibrarySize
	}

	for i := uint32(0); i < info.TotalImportedSymbolCount; i++ {
		sym, err := pef.DecodeImportedSymbol(data[cursor:])
		if err != nil {
			return nil, err
		}
		l.ImportedSymbols = append(l.ImportedSymbols, sym)
		cursor += pef.ImportedSymbolSize
	}

	relocHeaderCursor := cursor
	for i := uint32(0); i < info.RelocSectionCount; i++ {
		rh, err := pef.DecodeLoaderRelocationHeader(data[relocHeaderCursor:])
		if err != nil {
			return nil, err
		}
		l.RelocHeaders = append(l.RelocHeaders, rh)
		relocHeaderCursor += pef.LoaderRelocationHeaderSize
	}

	relocBytesStart := base + info.RelocInstrOffset
	relocBytesEnd := base + info.LoaderStringsOffset
	if relocBytesEnd >= relocBytesStart && relocBytesEnd <= uint32(len(contents)) {
		l.RelocInstrBytes = contents[relocBytesStart:relocBytesEnd]
	}

	stringsStart := base + info.LoaderStringsOffset
	hashStart := base + info.ExportHashOffset
	if hashStart >= stringsStart && hashStart <= uint32(len(contents)) {
		l.Strings = contents[stringsStart:hashStart]
	}

	hashSlotCount := uint32(1) << info.ExportHashTablePower
	hashCursor := hashStart
	for i := uint32(0); i < hashSlotCount; i++ {
		slot, err := pef.DecodeExportHashSlot(contents[hashCursor:])
		if err != nil {
			return nil, err
		}
		l.ExportHashSlots = append(l.ExportHashSlots, slot)
		hashCursor += pef.ExportHashSlotSize
	}

	for i := uint32(0); i < info.ExportedSymbolCount; i++ {
		key, err := pef.DecodeExportHashKey(contents[hashCursor:])
		if err != nil {
			return nil, err
		}
		l.ExportHashKeys = append(l.ExportHashKeys, key)
		hashCursor += pef.ExportHashKeySize
	}

	for i := uint32(0); i < info.ExportedSymbolCount; i++ {
		sym, err := pef.DecodeExportedSymbol(contents[hashCursor:])
		if err != nil {
			return nil, err
		}
		l.ExportedSymbols = append(l.ExportedSymbols, sym)
		hashCursor += pef.ExportedSymbolSize
	}

	return l, nil
}
