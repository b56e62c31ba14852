// Package pef defines the on-disk structures and constants of the
// Preferred Executable Format, the PowerPC Classic Mac OS container
// consumed by the Code Fragment Manager. Every multi-byte field is
// big-endian; structures are read and written through explicit per-field
// codecs (container.go, section.go, loader.go, hash.go) rather than by
// reinterpreting a byte slice, since PEF's on-disk layouts are packed.
package pef

// Container magic tags and format version.
const (
	Tag1          uint32 = 0x4A6F7921 // 'Joy!'
	Tag2          uint32 = 0x70656666 // 'peff'
	FormatVersion uint32 = 1
)

// Architecture identifies the instruction set of Code sections.
type Architecture uint32

const (
	ArchPowerPC Architecture = 0x70777063 // 'pwpc'
	ArchM68K    Architecture = 0x6D36386B // 'm68k'
)

func (a Architecture) String() string {
	switch a {
	case ArchPowerPC:
		return "pwpc"
	case ArchM68K:
		return "m68k"
	default:
		return "unknown"
	}
}

// ShareKind controls how the Code Fragment Manager shares a section's
// instantiation across processes.
type ShareKind uint8

const (
	ShareProcess   ShareKind = 1
	ShareGlobal    ShareKind = 4
	ShareProtected ShareKind = 5
)

// SectionKind enumerates the kinds a SectionHeader may carry. It is left
// as an open uint8, not a closed Go enum, so an object produced by a newer
// PEF producer with an unrecognized kind still round-trips through a link
// that never merges it (spec §4.2 step 2: unknown kinds are retained but
// ignored in merging).
type SectionKind uint8

const (
	SectionCode           SectionKind = 0
	SectionUnpackedData    SectionKind = 1
	SectionPatternData     SectionKind = 2
	SectionConstant        SectionKind = 3
	SectionLoader          SectionKind = 4
	SectionDebug           SectionKind = 5
	SectionExecutableData  SectionKind = 6
	SectionException       SectionKind = 7
	SectionTraceback       SectionKind = 8
)

// SymbolClass is the class tag carried by both ImportedSymbol and
// ExportedSymbol records.
type SymbolClass uint8

const (
	ClassCode    SymbolClass = 0
	ClassData    SymbolClass = 1
	ClassTVector SymbolClass = 2
	ClassTOC     SymbolClass = 3
	ClassGlue    SymbolClass = 4
)

// ImportedLibrary.Options bit flags.
const (
	WeakImportLibMask uint8 = 0x40
	InitLibBeforeMask uint8 = 0x80
)

// Export hash table sizing parameters (spec §4.7).
const (
	HashExponentLimit   = 16 // table never exceeds 2^16 slots
	HashAverageChainLen = 10
)

// Sentinel section indices used by ExportedSymbol.SectionIndex and the
// loader info header's Main/Init/Term section fields.
const (
	SectionIndexAbsolute  int16 = -1
	SectionIndexUndefined int16 = -2
	SectionIndexNone      int32 = -1
)
