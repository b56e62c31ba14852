package linker

import "github.com/kirkbrauer/llvm-classic-mac/pkg/pef"

// FixupKind identifies what a decoded relocation fixup patches.
type FixupKind int

const (
	FixupSectC FixupKind = iota // add the current code section's base address
	FixupSectD                  // add the current data section's base address
	FixupImport                 // patch with the address of an imported symbol
)

// Fixup is one decoded relocation event: "patch the 32-bit word at
// Position with <something>". Position is a byte offset from the start
// of the section being relocated.
type Fixup struct {
	Position     uint32
	Kind         FixupKind
	SectionIndex int // for FixupSectC/FixupSectD: the section index recorded by the preceding SmSetSectC/D
	ImportIndex  int // for FixupImport: the file-local imported-symbol index
}

// DecodeRelocations walks a section's raw relocation instruction stream
// and returns every fixup it describes, in position order (spec §4.6).
//
// The minimal opcode set required by spec §9 — SetPosition, BySectC,
// BySectD, SmByImport, LgByImport, SmSetSectC/D — is decoded exactly.
// TVector8/12, VTable8, ImportRun, the WithSkip variants, and
// SmRepeat/LgRepeat are decoded only far enough to keep the position
// cursor correct and, where the semantics are unambiguous, to still
// surface the fixups they carry; spec §9 explicitly permits an encoder
// that re-emits everything through the minimal set regardless of which
// opcode originally produced it.
func DecodeRelocations(instrs []pef.Instruction) []Fixup {
	var fixups []Fixup
	pos := uint32(0)
	sectC, sectD := -1, -1

	// applyRun appends count consecutive 4-byte fixups of kind starting at
	// pos, advancing pos as it goes. Used by BySectC/D, ImportRun, and the
	// WithSkip legacy opcodes.
	applyRun := func(kind FixupKind, count int) {
		for w := 0; w < count; w++ {
			fixups = append(fixups, Fixup{Position: pos, Kind: kind, SectionIndex: map[FixupKind]int{FixupSectC: sectC, FixupSectD: sectD}[kind]})
			pos += 4
		}
	}

	i := 0
	for i < len(instrs) {
		instr := instrs[i]
		i++
		op := instr.Opcode()

		switch op {
		case pef.RelocBySectC:
			applyRun(FixupSectC, int(instr.Operand())+1)

		case pef.RelocBySectD:
			applyRun(FixupSectD, int(instr.Operand())+1)

		case pef.RelocBySectCWithSkip, pef.RelocBySectDWithSkip:
			operand := instr.Operand()
			skipWords := int(operand >> 4)
			runLength := int(operand&0xF) + 1
			pos += uint32(skipWords) * 4
			if op == pef.RelocBySectCWithSkip {
				applyRun(FixupSectC, runLength)
			} else {
				applyRun(FixupSectD, runLength)
			}

		case pef.RelocSmByImport:
			fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: int(instr.Operand())})
			pos += 4

		case pef.RelocLgByImport:
			if i >= len(instrs) {
				return fixups
			}
			second := instrs[i]
			i++
			idx := pef.DecodePosition(instr, second)
			fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: int(idx)})
			pos += 4

		case pef.RelocSetPosition:
			if i >= len(instrs) {
				return fixups
			}
			second := instrs[i]
			i++
			pos = pef.DecodePosition(instr, second)

		case pef.RelocSmSetSectC:
			sectC = int(instr.Operand())

		case pef.RelocSmSetSectD:
			sectD = int(instr.Operand())

		case pef.RelocSmRepeat:
			blockCount := int(instr.Operand()>>4) + 1
			repeatCount := int(instr.Operand()&0xF) + 1
			i, pos = replayRepeat(instrs, i, blockCount, repeatCount, pos, &sectC, &sectD, &fixups)

		case pef.RelocLgRepeat:
			if i >= len(instrs) {
				return fixups
			}
			second := instrs[i]
			i++
			blockCount := int(instr.Operand()) + 1
			repeatCount := int(second) + 1
			i, pos = replayRepeat(instrs, i, blockCount, repeatCount, pos, &sectC, &sectD, &fixups)

		case pef.RelocTVector8:
			idx := int(instr.Operand())
			fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: idx})
			pos += 8

		case pef.RelocTVector12:
			idx := int(instr.Operand())
			fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: idx})
			pos += 12

		case pef.RelocVTable8:
			idx := int(instr.Operand())
			fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: idx})
			pos += 8

		case pef.RelocImportRun:
			count := int(instr.Operand()) + 1
			for w := 0; w < count && i < len(instrs); w++ {
				idx := int(instrs[i].Operand())
				i++
				fixups = append(fixups, Fixup{Position: pos, Kind: FixupImport, ImportIndex: idx})
				pos += 4
			}

		default:
			// Unrecognized opcode: nothing further in the stream can be
			// trusted to align, so stop decoding rather than misinterpret it.
			return fixups
		}
	}

	return fixups
}

// replayRepeat reapplies the blockCount instructions immediately
// preceding index start (i.e. instrs[start-blockCount:start]) repeatCount
// additional times. Nested repeats inside a repeated block are not
// supported — SmRepeat/LgRepeat are themselves never expected to appear
// as the repeated content.
func replayRepeat(instrs []pef.Instruction, start, blockCount, repeatCount int, pos uint32, sectC, sectD *int, fixups *[]Fixup) (int, uint32) {
	lo := start - blockCount
	if lo < 0 {
		lo = 0
	}
	block := instrs[lo:start]
	span := blockSpan(block)
	for r := 0; r < repeatCount; r++ {
		sub := DecodeRelocations(block)
		for _, f := range sub {
			f.Position += pos
			*fixups = append(*fixups, f)
		}
		pos += span
	}
	return start, pos
}

// blockSpan is how many bytes a single pass over block advances the
// cursor by, used only by replayRepeat's bookkeeping.
func blockSpan(block []pef.Instruction) uint32 {
	fixups := DecodeRelocations(block)
	if len(fixups) == 0 {
		return 0
	}
	return fixups[len(fixups)-1].Position + 4
}

// maxEncodablePosition and maxEncodableImportIndex are the largest values
// SetPosition/LgByImport's 24-bit combined operand can carry (spec §4.6,
// §7's RelocationOverflow: "offset that cannot be encoded").
const maxEncodablePosition = 1<<24 - 1
const maxEncodableImportIndex = 1<<24 - 1

// maxEncodableSectionIndex is the largest section index SmSetSectC/D's
// one-word, 8-bit operand can carry.
const maxEncodableSectionIndex = 0xFF

// maxSmImportIndex is the largest import index SmByImport's one-word,
// 8-bit operand can carry; wider indices need LgByImport's two-word form.
const maxSmImportIndex = 0xFF

// EncodeRelocations produces a minimal-opcode-set bytecode stream
// equivalent to fixups (spec §4.6, §9). fixups must be sorted by
// Position and must already carry globally remapped ImportIndex values
// (spec §4.6 "Import-index remapping"). It reports RelocationOverflow if
// any position, section index, or import index does not fit the
// instruction encoding.
func EncodeRelocations(fixups []Fixup) ([]pef.Instruction, error) {
	var out []pef.Instruction
	cur := uint32(0)
	curSectC, curSectD := -1, -1

	emitPosition := func(target uint32) error {
		if target == cur {
			return nil
		}
		if target > maxEncodablePosition {
			return newError(RelocationOverflow, "relocation position", nil)
		}
		first, second := pef.ComposeSetPosition(target)
		out = append(out, first, second)
		cur = target
		return nil
	}

	n := len(fixups)
	for idx := 0; idx < n; {
		f := fixups[idx]
		if err := emitPosition(f.Position); err != nil {
			return nil, err
		}

		switch f.Kind {
		case FixupSectC, FixupSectD:
			if f.SectionIndex < 0 || f.SectionIndex > maxEncodableSectionIndex {
				return nil, newError(RelocationOverflow, "relocation section index", nil)
			}
			if f.Kind == FixupSectC && curSectC != f.SectionIndex {
				out = append(out, pef.ComposeSmSetSectC(uint16(f.SectionIndex)))
				curSectC = f.SectionIndex
			}
			if f.Kind == FixupSectD && curSectD != f.SectionIndex {
				out = append(out, pef.ComposeSmSetSectD(uint16(f.SectionIndex)))
				curSectD = f.SectionIndex
			}

			run := 1
			for idx+run < n && run < pef.MaxRunLength {
				next := fixups[idx+run]
				if next.Kind != f.Kind || next.SectionIndex != f.SectionIndex || next.Position != f.Position+uint32(run)*4 {
					break
				}
				run++
			}
			if f.Kind == FixupSectC {
				out = append(out, pef.ComposeBySectC(uint16(run-1)))
			} else {
				out = append(out, pef.ComposeBySectD(uint16(run-1)))
			}
			cur += uint32(run) * 4
			idx += run

		case FixupImport:
			if f.ImportIndex < 0 || f.ImportIndex > maxEncodableImportIndex {
				return nil, newError(RelocationOverflow, "relocation import index", nil)
			}
			// SmByImport's operand is packed into Instruction's 8-bit
			// operand byte (composeOp's 8/8 split, see pkg/pef/reloc.go),
			// so only indices up to maxSmImportIndex fit in one word;
			// anything wider needs LgByImport's 24-bit pair.
			if f.ImportIndex <= maxSmImportIndex {
				out = append(out, pef.ComposeSmByImport(uint16(f.ImportIndex)))
			} else {
				first, second := pef.ComposeLgByImport(uint32(f.ImportIndex))
				out = append(out, first, second)
			}
			cur += 4
			idx++
		}
	}

	return out, nil
}
