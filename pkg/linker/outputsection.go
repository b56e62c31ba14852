package linker

// OutputSection accumulates every InputSection assigned to one of the
// three fixed output groupings (spec §4.5) and lays them out into a
// single contiguous byte range once every input has been read.
type OutputSection struct {
	Kind    OutputKind
	Members []*InputSection

	// BaseVAddr is the virtual address this section's first byte occupies
	// once Layout has run.
	BaseVAddr uint64
	Size      uint32

	// Alignment is the maximum alignment of any member, floored at 16
	// (spec §4.5: "an alignment (max of members, initially 16)"). Layout
	// computes it and rounds the section's base up to it.
	Alignment uint64

	// SectionIndex is this section's index in the output container's
	// section-header table, assigned by AssignSectionIndices once every
	// input section has been binned; -1 while unassigned or empty.
	SectionIndex int16
}

func NewOutputSection(kind OutputKind) *OutputSection {
	return &OutputSection{Kind: kind, SectionIndex: -1, Alignment: 16}
}

// Add appends isec as a member. Members keep the order they were
// encountered in across all input files (spec §5 ordering guarantees).
func (o *OutputSection) Add(isec *InputSection) {
	o.Members = append(o.Members, isec)
}

func (o *OutputSection) Empty() bool { return len(o.Members) == 0 }

// Layout computes this section's own alignment (the maximum alignment of
// its members, floored at 16), rounds base up to it, and assigns each
// member an Offset within the section and a VAddr relative to the
// rounded base, honoring each member's own alignment in turn (spec §4.5:
// "align the running virtual-address cursor up to the output's alignment
// ... then assign each member its own aligned offset"). It returns the
// section's total size once every member is placed.
func (o *OutputSection) Layout(base uint64) uint32 {
	o.Alignment = 16
	for _, isec := range o.Members {
		if a := isec.Align(); a > o.Alignment {
			o.Alignment = a
		}
	}

	o.BaseVAddr = alignUp(base, o.Alignment)

	var cursor uint64
	for _, isec := range o.Members {
		cursor = alignUp(cursor, isec.Align())
		isec.Offset = uint32(cursor)
		isec.VAddr = o.BaseVAddr + cursor
		cursor += uint64(isec.Size())
	}
	o.Size = uint32(cursor)
	return o.Size
}

func alignUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// AssignSectionIndices numbers every non-empty output section in
// code/data/rodata order and returns the index the loader section itself
// should use (spec §4.8: section-header order matches section-body
// order, and the loader section always comes last).
func AssignSectionIndices(ctx *Context) int16 {
	idx := int16(0)
	for k := OutputKind(0); k < numOutputKinds; k++ {
		osec := ctx.OutputSections[k]
		if osec.Empty() {
			osec.SectionIndex = -1
			continue
		}
		osec.SectionIndex = idx
		idx++
	}
	return idx
}

// BinSections walks every parsed object's mergeable sections and appends
// each one to the OutputSection matching its Kind (spec §4.5 "sections
// are merged only by kind, never by name or content").
func BinSections(ctx *Context) {
	for _, obj := range ctx.Objects {
		for _, isec := range obj.Sections {
			if isec == nil {
				continue
			}
			ctx.OutputSections[isec.Kind].Add(isec)
		}
	}
}

// LayoutOutputSections assigns virtual addresses to every output
// section's members in code, data, rodata order, and resolves every
// Defined symbol's VAddr from its owning section's placement (spec §4.5:
// "a defined symbol's virtual address is its input section's virtual
// address plus the symbol's stored value").
func LayoutOutputSections(ctx *Context) {
	ctx.OutputSections[OutputCode].Layout(uint64(ctx.Config.BaseCode))

	// Rodata (PEF "constant") sections are read-only counterparts of the
	// data segment and share its base; there is no separate configuration
	// knob for a third base address (spec §6.3 lists only BaseCode and
	// BaseData). Rodata is chained off Data's actual (alignment-rounded)
	// base and size, not the raw configured BaseData, since Layout may
	// have rounded Data's base up.
	dataSection := ctx.OutputSections[OutputData]
	dataSize := dataSection.Layout(uint64(ctx.Config.BaseData))
	ctx.OutputSections[OutputRodata].Layout(dataSection.BaseVAddr + uint64(dataSize))

	for _, sym := range ctx.Symbols.Ordered() {
		if sym.State != StateDefined {
			continue
		}
		file := sym.Defined.File
		if int(sym.Defined.SectionIndex) < 0 || int(sym.Defined.SectionIndex) >= len(file.Sections) {
			continue
		}
		isec := file.Sections[sym.Defined.SectionIndex]
		if isec == nil {
			continue
		}
		sym.Defined.VAddr = isec.VAddr + uint64(sym.Defined.Value)
	}
}
