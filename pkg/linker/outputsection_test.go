package linker

import (
	"testing"

	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
	"github.com/stretchr/testify/assert"
)

func sectionWithAlign(size uint32, alignLog2 uint8) *InputSection {
	return &InputSection{
		Data:   make([]byte, size),
		Header: pef.SectionHeader{Alignment: alignLog2},
	}
}

// TestLayoutMonotonicity is spec §8 property 4: adjacent members never
// overlap and every member starts on a multiple of its own alignment.
func TestLayoutMonotonicity(t *testing.T) {
	osec := NewOutputSection(OutputCode)
	a := sectionWithAlign(10, 0) // 1-byte aligned, forces a gap before b
	b := sectionWithAlign(20, 4) // 16-byte aligned
	osec.Add(a)
	osec.Add(b)

	osec.Layout(0x1000)

	assert.GreaterOrEqual(t, b.VAddr, a.VAddr+uint64(a.Size()))
	assert.EqualValues(t, 0, b.VAddr%16)
	assert.Equal(t, osec.BaseVAddr, a.VAddr)
}

// TestLayoutRoundsUnalignedBaseToMemberAlignment covers spec.md's
// requirement that a section's own alignment is the max of its members'
// alignment, floored at 16, and that Layout rounds an unaligned base up
// to it before placing anything.
func TestLayoutRoundsUnalignedBaseToMemberAlignment(t *testing.T) {
	osec := NewOutputSection(OutputData)
	a := sectionWithAlign(4, 5) // 32-byte aligned, exceeds the 16-byte floor
	osec.Add(a)

	osec.Layout(0x1003)

	assert.EqualValues(t, 32, osec.Alignment)
	assert.EqualValues(t, 0x1020, osec.BaseVAddr, "base must round up to the section's own alignment")
	assert.Zero(t, osec.BaseVAddr%32)
	assert.Equal(t, osec.BaseVAddr, a.VAddr)
}

func TestLayoutFloorsAlignmentAt16WhenMembersAreLessAligned(t *testing.T) {
	osec := NewOutputSection(OutputCode)
	osec.Add(sectionWithAlign(4, 0)) // 1-byte aligned member

	osec.Layout(0x1003)

	assert.EqualValues(t, 16, osec.Alignment)
	assert.EqualValues(t, 0x1010, osec.BaseVAddr)
}

func TestLayoutEmptySectionHasZeroSize(t *testing.T) {
	osec := NewOutputSection(OutputData)
	assert.True(t, osec.Empty())
	size := osec.Layout(0x2000)
	assert.EqualValues(t, 0, size)
}

func TestAssignSectionIndicesSkipsEmptyKinds(t *testing.T) {
	cfg := Config{}
	ctx := NewContext(cfg, nil)
	ctx.OutputSections[OutputCode].Add(sectionWithAlign(4, 0))
	// Data left empty.
	ctx.OutputSections[OutputRodata].Add(sectionWithAlign(4, 0))

	loaderIdx := AssignSectionIndices(ctx)

	assert.EqualValues(t, 0, ctx.OutputSections[OutputCode].SectionIndex)
	assert.EqualValues(t, -1, ctx.OutputSections[OutputData].SectionIndex)
	assert.EqualValues(t, 1, ctx.OutputSections[OutputRodata].SectionIndex)
	assert.EqualValues(t, 2, loaderIdx)
}

func TestLayoutOutputSectionsBindsSymbolVAddr(t *testing.T) {
	cfg := Config{BaseCode: 0x4000, BaseData: 0x8000}
	ctx := NewContext(cfg, nil)

	obj := &ObjectFile{InputFile: &InputFile{}}
	isec := &InputSection{File: obj, Kind: OutputCode, Data: make([]byte, 8)}
	obj.Sections = []*InputSection{isec}
	ctx.Objects = append(ctx.Objects, obj)
	ctx.OutputSections[OutputCode].Add(isec)

	sym, err := ctx.Symbols.AddDefined("main", obj, 4, 0, pef.ClassCode, false)
	assert.NoError(t, err)

	LayoutOutputSections(ctx)

	assert.EqualValues(t, 0x4000+4, sym.Defined.VAddr)
}
