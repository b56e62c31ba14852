package linker

import "github.com/kirkbrauer/llvm-classic-mac/pkg/pef"

// InputSection wraps one mergeable section of an InputFile: its decoded
// header, its materialized bytes, and the virtual address/offset layout
// assigns it. Loader-kind sections never become InputSections — they are
// parsed directly into InputFile.Loader (spec §4.2 step 2).
type InputSection struct {
	File   *ObjectFile
	Index  int
	Header pef.SectionHeader
	Data   []byte
	Kind   OutputKind

	// Offset is this section's byte offset within its OutputSection,
	// assigned by the layout pass (§4.5). VAddr is Offset plus the
	// OutputSection's base virtual address.
	Offset uint32
	VAddr  uint64

	// Reloc holds this section's raw relocation instruction words, if its
	// file's loader section described any for this section index.
	Reloc []pef.Instruction
}

// newInputSection materializes the bytes for section index idx of file,
// expanding pattern-initialized data if necessary (spec §4.5).
func newInputSection(file *ObjectFile, idx int, header pef.SectionHeader) (*InputSection, error) {
	raw := file.InputFile.File.Contents[header.ContainerOffset : header.ContainerOffset+header.ContainerLength]

	var data []byte
	switch header.SectionKind {
	case pef.SectionPatternData:
		data = unpackPatternData(raw, header.UnpackedLength)
	default:
		data = raw
	}

	kind, ok := outputKindForSection(header.SectionKind)
	if !ok {
		// Unknown or non-mergeable kind: retained (so section bodies that
		// reference it by index stay consistent) but never bound to an
		// OutputSection (spec §4.2 step 2).
		kind = OutputCode
	}

	return &InputSection{
		File:   file,
		Index:  idx,
		Header: header,
		Data:   data,
		Kind:   kind,
	}, nil
}

// outputKindForSection maps a mergeable PEF section kind to one of the
// three fixed output groupings (spec §4.5).
func outputKindForSection(k pef.SectionKind) (OutputKind, bool) {
	switch k {
	case pef.SectionCode, pef.SectionExecutableData:
		return OutputCode, true
	case pef.SectionUnpackedData, pef.SectionPatternData:
		return OutputData, true
	case pef.SectionConstant:
		return OutputRodata, true
	default:
		return OutputCode, false
	}
}

// Size is the in-memory size of the section's unpacked data.
func (s *InputSection) Size() uint32 { return uint32(len(s.Data)) }

// Align is the section's required byte alignment.
func (s *InputSection) Align() uint64 { return s.Header.AlignBytes() }

// regenerateFixups decodes this section's original relocation stream and
// remaps every fixup so it is valid in the output container (spec §4.6):
// a FixupSectC/D's file-local "current section" index becomes the output
// section index of whichever fixed grouping that section landed in, and
// a FixupImport's file-local imported-symbol index becomes the symbol's
// final global import index, resolved by name through the global symbol
// table, and every Position is shifted by this section's Offset within
// its OutputSection. Fixups that can no longer be resolved (dangling section or
// import references) are dropped rather than emitted incorrectly.
func (s *InputSection) regenerateFixups(ctx *Context) []Fixup {
	if len(s.Reloc) == 0 {
		return nil
	}

	raw := DecodeRelocations(s.Reloc)
	out := make([]Fixup, 0, len(raw))

	for _, f := range raw {
		switch f.Kind {
		case FixupSectC, FixupSectD:
			kind := s.Kind
			if f.SectionIndex >= 0 && f.SectionIndex < len(s.File.Sections) && s.File.Sections[f.SectionIndex] != nil {
				kind = s.File.Sections[f.SectionIndex].Kind
			}
			f.SectionIndex = int(ctx.OutputSections[kind].SectionIndex)
			f.Position += s.Offset
			out = append(out, f)

		case FixupImport:
			if s.File.Loader == nil || f.ImportIndex < 0 || f.ImportIndex >= len(s.File.Loader.ImportedSymbols) {
				continue
			}
			name := s.File.Loader.ImportedSymbolName(s.File.Loader.ImportedSymbols[f.ImportIndex])
			sym := ctx.Symbols.Lookup(name)
			if sym == nil || sym.State != StateImported {
				continue
			}
			f.ImportIndex = sym.Imported.ImportIndex
			f.Position += s.Offset
			out = append(out, f)
		}
	}

	return out
}
