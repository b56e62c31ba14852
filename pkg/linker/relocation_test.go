package linker

import (
	"testing"

	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRelocationsBySectC(t *testing.T) {
	instrs := []pef.Instruction{
		pef.ComposeSmSetSectC(2),
		pef.ComposeBySectC(2), // 3 words
	}
	fixups := DecodeRelocations(instrs)
	assert.Len(t, fixups, 3)
	for i, f := range fixups {
		assert.Equal(t, FixupSectC, f.Kind)
		assert.Equal(t, 2, f.SectionIndex)
		assert.EqualValues(t, i*4, f.Position)
	}
}

func TestDecodeRelocationsSmByImport(t *testing.T) {
	instrs := []pef.Instruction{
		pef.ComposeSmByImport(7),
	}
	fixups := DecodeRelocations(instrs)
	assert.Len(t, fixups, 1)
	assert.Equal(t, FixupImport, fixups[0].Kind)
	assert.Equal(t, 7, fixups[0].ImportIndex)
	assert.EqualValues(t, 0, fixups[0].Position)
}

func TestDecodeRelocationsLgByImport(t *testing.T) {
	first, second := pef.ComposeLgByImport(70000)
	fixups := DecodeRelocations([]pef.Instruction{first, second})
	assert.Len(t, fixups, 1)
	assert.Equal(t, FixupImport, fixups[0].Kind)
	assert.Equal(t, 70000, fixups[0].ImportIndex)
}

func TestDecodeRelocationsSetPosition(t *testing.T) {
	first, second := pef.ComposeSetPosition(0x1234)
	instrs := []pef.Instruction{first, second, pef.ComposeSmByImport(0)}
	fixups := DecodeRelocations(instrs)
	assert.Len(t, fixups, 1)
	assert.EqualValues(t, 0x1234, fixups[0].Position)
}

func TestDecodeRelocationsUnknownOpcodeStopsDecoding(t *testing.T) {
	instrs := []pef.Instruction{
		pef.ComposeSmByImport(0),
		pef.Instruction(0xFF00), // opcode 0xFF is unassigned
		pef.ComposeSmByImport(1),
	}
	fixups := DecodeRelocations(instrs)
	assert.Len(t, fixups, 1, "decoding must stop at the first unrecognized opcode")
}

// TestRelocationIdempotence is spec §8 property 6: decode then re-encode
// with unchanged section/import indices reproduces an equivalent stream
// (same fixups in the same order), modulo coalescable SetPosition/run
// choices the encoder is free to make differently from the original.
func TestRelocationIdempotence(t *testing.T) {
	original := []Fixup{
		{Position: 0, Kind: FixupSectC, SectionIndex: 0},
		{Position: 4, Kind: FixupSectC, SectionIndex: 0},
		{Position: 8, Kind: FixupSectC, SectionIndex: 0},
		{Position: 12, Kind: FixupImport, ImportIndex: 3},
		{Position: 16, Kind: FixupSectD, SectionIndex: 1},
	}

	instrs, err := EncodeRelocations(original)
	require.NoError(t, err)
	decoded := DecodeRelocations(instrs)

	assert.Len(t, decoded, len(original))
	for i, f := range original {
		assert.Equal(t, f.Position, decoded[i].Position, "fixup %d position", i)
		assert.Equal(t, f.Kind, decoded[i].Kind, "fixup %d kind", i)
		switch f.Kind {
		case FixupSectC, FixupSectD:
			assert.Equal(t, f.SectionIndex, decoded[i].SectionIndex, "fixup %d section", i)
		case FixupImport:
			assert.Equal(t, f.ImportIndex, decoded[i].ImportIndex, "fixup %d import", i)
		}
	}
}

func TestRelocationIdempotenceWithLargeImportIndex(t *testing.T) {
	original := []Fixup{
		{Position: 0, Kind: FixupImport, ImportIndex: 2048},
	}
	instrs, err := EncodeRelocations(original)
	require.NoError(t, err)
	assert.Len(t, instrs, 2, "an import index >= 256 must use the two-word LgByImport form")
	decoded := DecodeRelocations(instrs)
	assert.Equal(t, original, decoded)
}

// TestEncodeRelocationsMidRangeImportIndexUsesLgForm covers the gap
// between SmByImport's one-word range and the previous (wrong) 1024
// cutoff: an index like 500 must still round-trip exactly rather than
// being truncated to its low 8 bits by SmByImport's operand byte.
func TestEncodeRelocationsMidRangeImportIndexUsesLgForm(t *testing.T) {
	original := []Fixup{{Position: 0, Kind: FixupImport, ImportIndex: 500}}
	instrs, err := EncodeRelocations(original)
	require.NoError(t, err)
	assert.Len(t, instrs, 2, "import index 500 exceeds SmByImport's 8-bit operand and needs LgByImport")
	decoded := DecodeRelocations(instrs)
	assert.Equal(t, original, decoded)
}

func TestEncodeRelocationsCoalescesContiguousRun(t *testing.T) {
	fixups := []Fixup{
		{Position: 0, Kind: FixupSectC, SectionIndex: 0},
		{Position: 4, Kind: FixupSectC, SectionIndex: 0},
		{Position: 8, Kind: FixupSectC, SectionIndex: 0},
	}
	instrs, err := EncodeRelocations(fixups)
	require.NoError(t, err)
	// SmSetSectC + one BySectC run instruction, no SetPosition needed since
	// the cursor already starts at 0.
	assert.Len(t, instrs, 2)
	assert.Equal(t, pef.RelocSmSetSectC, instrs[0].Opcode())
	assert.Equal(t, pef.RelocBySectC, instrs[1].Opcode())
	assert.EqualValues(t, 2, instrs[1].Operand())
}

func TestEncodeRelocationsSplitsRunsLongerThanMax(t *testing.T) {
	fixups := make([]Fixup, pef.MaxRunLength+1)
	for i := range fixups {
		fixups[i] = Fixup{Position: uint32(i * 4), Kind: FixupSectC, SectionIndex: 0}
	}
	instrs, err := EncodeRelocations(fixups)
	require.NoError(t, err)
	decoded := DecodeRelocations(instrs)
	assert.Len(t, decoded, len(fixups))
}

// TestEncodeRelocationsRejectsOversizedSectionIndex is spec §7's
// RelocationOverflow: a section index that cannot fit SmSetSectC/D's
// one-word, 8-bit operand must fail rather than silently truncate.
func TestEncodeRelocationsRejectsOversizedSectionIndex(t *testing.T) {
	fixups := []Fixup{{Position: 0, Kind: FixupSectC, SectionIndex: 0x100}}
	_, err := EncodeRelocations(fixups)
	assert.Error(t, err)
	var linkErr *Error
	assert.ErrorAs(t, err, &linkErr)
	assert.Equal(t, RelocationOverflow, linkErr.Kind)
}
