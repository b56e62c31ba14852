package pef

import "github.com/kirkbrauer/llvm-classic-mac/pkg/utils"

// LoaderInfoHeaderSize is the on-disk size of LoaderInfoHeader.
const LoaderInfoHeaderSize = 56

// LoaderInfoHeader is the first structure in a container's loader section.
// MainSection/InitSection/TermSection of -1 mean "none".
type LoaderInfoHeader struct {
	MainSection               int32
	MainOffset                uint32
	InitSection               int32
	InitOffset                uint32
	TermSection               int32
	TermOffset                uint32
	ImportedLibraryCount      uint32
	TotalImportedSymbolCount  uint32
	RelocSectionCount         uint32
	RelocInstrOffset          uint32
	LoaderStringsOffset       uint32
	ExportHashOffset          uint32
	ExportHashTablePower      uint32
	ExportedSymbolCount       uint32
}

func DecodeLoaderInfoHeader(data []byte) (LoaderInfoHeader, error) {
	if len(data) < LoaderInfoHeaderSize {
		return LoaderInfoHeader{}, ErrTruncated("loader info header")
	}
	return LoaderInfoHeader{
		MainSection:              int32(utils.Read[uint32](data[0:])),
		MainOffset:               utils.Read[uint32](data[4:]),
		InitSection:              int32(utils.Read[uint32](data[8:])),
		InitOffset:               utils.Read[uint32](data[12:]),
		TermSection:              int32(utils.Read[uint32](data[16:])),
		TermOffset:               utils.Read[uint32](data[20:]),
		ImportedLibraryCount:     utils.Read[uint32](data[24:]),
		TotalImportedSymbolCount: utils.Read[uint32](data[28:]),
		RelocSectionCount:        utils.Read[uint32](data[32:]),
		RelocInstrOffset:         utils.Read[uint32](data[36:]),
		LoaderStringsOffset:      utils.Read[uint32](data[40:]),
		ExportHashOffset:         utils.Read[uint32](data[44:]),
		ExportHashTablePower:     utils.Read[uint32](data[48:]),
		ExportedSymbolCount:      utils.Read[uint32](data[52:]),
	}, nil
}

func (h LoaderInfoHeader) Encode() []byte {
	buf := make([]byte, LoaderInfoHeaderSize)
	putI32(buf[0:], h.MainSection)
	putU32(buf[4:], h.MainOffset)
	putI32(buf[8:], h.InitSection)
	putU32(buf[12:], h.InitOffset)
	putI32(buf[16:], h.TermSection)
	putU32(buf[20:], h.TermOffset)
	putU32(buf[24:], h.ImportedLibraryCount)
	putU32(buf[28:], h.TotalImportedSymbolCount)
	putU32(buf[32:], h.RelocSectionCount)
	putU32(buf[36:], h.RelocInstrOffset)
	putU32(buf[40:], h.LoaderStringsOffset)
	putU32(buf[44:], h.ExportHashOffset)
	putU32(buf[48:], h.ExportHashTablePower)
	putU32(buf[52:], h.ExportedSymbolCount)
	return buf
}

// ImportedLibrarySize is the on-disk size of ImportedLibrary.
const ImportedLibrarySize = 24

// ImportedLibrary describes one library dependency of the container.
type ImportedLibrary struct {
	NameOffset          uint32
	OldImpVersion       uint32
	CurrentVersion      uint32
	ImportedSymbolCount uint32
	FirstImportedSymbol uint32
	Options             uint8
	ReservedA           uint8
	ReservedB           uint16
}

func DecodeImportedLibrary(data []byte) (ImportedLibrary, error) {
	if len(data) < ImportedLibrarySize {
		return ImportedLibrary{}, ErrTruncated("imported library")
	}
	return ImportedLibrary{
		NameOffset:          utils.Read[uint32](data[0:]),
		OldImpVersion:       utils.Read[uint32](data[4:]),
		CurrentVersion:      utils.Read[uint32](data[8:]),
		ImportedSymbolCount: utils.Read[uint32](data[12:]),
		FirstImportedSymbol: utils.Read[uint32](data[16:]),
		Options:             data[20],
		ReservedA:           data[21],
		ReservedB:           utils.Read[uint16](data[22:]),
	}, nil
}

func (l ImportedLibrary) Encode() []byte {
	buf := make([]byte, ImportedLibrarySize)
	putU32(buf[0:], l.NameOffset)
	putU32(buf[4:], l.OldImpVersion)
	putU32(buf[8:], l.CurrentVersion)
	putU32(buf[12:], l.ImportedSymbolCount)
	putU32(buf[16:], l.FirstImportedSymbol)
	buf[20] = l.Options
	buf[21] = l.ReservedA
	putU16(buf[22:], l.ReservedB)
	return buf
}

func (l ImportedLibrary) Weak() bool       { return l.Options&WeakImportLibMask != 0 }
func (l ImportedLibrary) InitBefore() bool { return l.Options&InitLibBeforeMask != 0 }

// ImportedSymbolSize is the on-disk size of ImportedSymbol.
const ImportedSymbolSize = 4

// ImportedSymbol is a packed (class:4, nameOffset:28) word.
type ImportedSymbol uint32

func ComposeImportedSymbol(class SymbolClass, nameOffset uint32) ImportedSymbol {
	return ImportedSymbol((uint32(class)<<28 | (nameOffset & 0x0FFFFFFF)))
}

func (s ImportedSymbol) Class() SymbolClass { return SymbolClass(uint32(s) >> 28) }
func (s ImportedSymbol) NameOffset() uint32 { return uint32(s) & 0x0FFFFFFF }

func DecodeImportedSymbol(data []byte) (ImportedSymbol, error) {
	if len(data) < ImportedSymbolSize {
		return 0, ErrTruncated("imported symbol")
	}
	return ImportedSymbol(utils.Read[uint32](data)), nil
}

func (s ImportedSymbol) Encode() []byte {
	buf := make([]byte, ImportedSymbolSize)
	putU32(buf, uint32(s))
	return buf
}

// ExportedSymbolSize is the on-disk size of ExportedSymbol.
const ExportedSymbolSize = 10

// ExportedSymbol is a published entry point or data item.
type ExportedSymbol struct {
	ClassAndName uint32
	SymbolValue  uint32
	SectionIndex int16
}

func ComposeExportedSymbol(class SymbolClass, nameOffset uint32, value uint32, section int16) ExportedSymbol {
	return ExportedSymbol{
		ClassAndName: uint32(class)<<24 | (nameOffset & 0x00FFFFFF),
		SymbolValue:  value,
		SectionIndex: section,
	}
}

func (s ExportedSymbol) Class() SymbolClass { return SymbolClass(s.ClassAndName >> 24) }
func (s ExportedSymbol) NameOffset() uint32 { return s.ClassAndName & 0x00FFFFFF }

func DecodeExportedSymbol(data []byte) (ExportedSymbol, error) {
	if len(data) < ExportedSymbolSize {
		return ExportedSymbol{}, ErrTruncated("exported symbol")
	}
	return ExportedSymbol{
		ClassAndName: utils.Read[uint32](data[0:]),
		SymbolValue:  utils.Read[uint32](data[4:]),
		SectionIndex: int16(utils.Read[uint16](data[8:])),
	}, nil
}

func (s ExportedSymbol) Encode() []byte {
	buf := make([]byte, ExportedSymbolSize)
	putU32(buf[0:], s.ClassAndName)
	putU32(buf[4:], s.SymbolValue)
	putI16(buf[8:], s.SectionIndex)
	return buf
}

// LoaderRelocationHeaderSize is the on-disk size of LoaderRelocationHeader.
const LoaderRelocationHeaderSize = 12

// LoaderRelocationHeader locates the relocation instructions for one
// section. RelocCount is a count of 16-bit instructions, not bytes.
type LoaderRelocationHeader struct {
	SectionIndex     uint16
	ReservedA        uint16
	RelocCount       uint32
	FirstRelocOffset uint32
}

func DecodeLoaderRelocationHeader(data []byte) (LoaderRelocationHeader, error) {
	if len(data) < LoaderRelocationHeaderSize {
		return LoaderRelocationHeader{}, ErrTruncated("loader relocation header")
	}
	return LoaderRelocationHeader{
		SectionIndex:     utils.Read[uint16](data[0:]),
		ReservedA:        utils.Read[uint16](data[2:]),
		RelocCount:       utils.Read[uint32](data[4:]),
		FirstRelocOffset: utils.Read[uint32](data[8:]),
	}, nil
}

func (h LoaderRelocationHeader) Encode() []byte {
	buf := make([]byte, LoaderRelocationHeaderSize)
	putU16(buf[0:], h.SectionIndex)
	putU16(buf[2:], h.ReservedA)
	putU32(buf[4:], h.RelocCount)
	putU32(buf[8:], h.FirstRelocOffset)
	return buf
}
