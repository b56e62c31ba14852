package linker

import (
	"github.com/kirkbrauer/llvm-classic-mac/pkg/pef"
	"github.com/kirkbrauer/llvm-classic-mac/pkg/utils"
)

// nameTableBuilder is a second, independent string table: section names
// live in the container's own name pool, disjoint from the loader
// section's string table (spec §4.8).
type nameTableBuilder = stringTableBuilder

func newNameTableBuilder() *nameTableBuilder { return newStringTableBuilder() }

// sectionKindForOutput maps a fixed output grouping back to the PEF
// section kind its body should be tagged with when written out. Pattern
// data is never re-encoded (spec §1 Non-goals); everything is emitted
// unpacked.
func sectionKindForOutput(k OutputKind) pef.SectionKind {
	switch k {
	case OutputCode:
		return pef.SectionCode
	case OutputRodata:
		return pef.SectionConstant
	default:
		return pef.SectionUnpackedData
	}
}

// WriteOutput assembles the final container bytes: header, section
// headers, section bodies, then the loader section (spec §4.8). It never
// mutates ctx; all layout state it needs (VAddrs, section indices, the
// built loader section) must already be computed by the caller.
func WriteOutput(ctx *Context, lb *LoaderBuild) []byte {
	names := newNameTableBuilder()

	type outSec struct {
		kind   OutputKind
		header pef.SectionHeader
		body   []byte
	}
	var secs []outSec

	for k := OutputKind(0); k < numOutputKinds; k++ {
		osec := ctx.OutputSections[k]
		if osec.Empty() {
			continue
		}
		body := make([]byte, osec.Size)
		for _, isec := range osec.Members {
			copy(body[isec.Offset:], isec.Data)
		}
		nameOff := names.intern(k.String())
		secs = append(secs, outSec{
			kind: k,
			header: pef.SectionHeader{
				NameOffset:      int32(nameOff),
				DefaultAddress:  uint32(osec.BaseVAddr),
				TotalLength:     osec.Size,
				UnpackedLength:  osec.Size,
				ContainerLength: osec.Size,
				SectionKind:     sectionKindForOutput(k),
				ShareKind:       pef.ShareProcess,
				Alignment:       4,
			},
			body: body,
		})
	}

	loaderBody := encodeLoaderBody(lb)
	loaderNameOff := names.intern("loader")

	sectionCount := len(secs) + 1
	header := pef.ContainerHeader{
		Tag1:           pef.Tag1,
		Tag2:           pef.Tag2,
		Architecture:   ctx.arch(),
		FormatVersion:  pef.FormatVersion,
		SectionCount:   uint16(sectionCount),
		InstSectionCount: uint16(len(secs)),
	}

	headerTableSize := pef.ContainerHeaderSize + sectionCount*pef.SectionHeaderSize
	cursor := uint64(headerTableSize)

	// Every section body, including the loader's, starts on a 16-byte
	// boundary (spec §4.8: "each output section body aligned to 16 bytes,
	// then the loader section aligned to 16 bytes").
	for i := range secs {
		cursor = utils.AlignTo(cursor, 16)
		secs[i].header.ContainerOffset = uint32(cursor)
		secs[i].header.ContainerLength = uint32(len(secs[i].body))
		cursor += uint64(len(secs[i].body))
	}
	cursor = utils.AlignTo(cursor, 16)
	loaderHeader := pef.SectionHeader{
		NameOffset:      int32(loaderNameOff),
		TotalLength:     uint32(len(loaderBody)),
		UnpackedLength:  uint32(len(loaderBody)),
		ContainerLength: uint32(len(loaderBody)),
		ContainerOffset: uint32(cursor),
		SectionKind:     pef.SectionLoader,
		ShareKind:       pef.ShareProcess,
		Alignment:       2,
	}
	cursor += uint64(len(loaderBody))

	out := make([]byte, 0, cursor)
	out = append(out, header.Encode()...)
	for _, s := range secs {
		out = append(out, s.header.Encode()...)
	}
	out = append(out, loaderHeader.Encode()...)

	padTo := func(offset uint32) {
		if gap := int(offset) - len(out); gap > 0 {
			out = append(out, make([]byte, gap)...)
		}
	}
	for _, s := range secs {
		padTo(s.header.ContainerOffset)
		out = append(out, s.body...)
	}
	padTo(loaderHeader.ContainerOffset)
	out = append(out, loaderBody...)

	return out
}

// arch resolves the architecture tag for the output container. It is
// taken from the first parsed object file, since every input is required
// to share one architecture (spec §4.2 step 1's validation runs per
// file, but never checks inputs against each other — recorded as an
// accepted gap in the grounding ledger).
func (ctx *Context) arch() pef.Architecture {
	if len(ctx.Objects) > 0 {
		return ctx.Objects[0].Header.Architecture
	}
	return pef.ArchPowerPC
}

// encodeLoaderBody serializes a LoaderBuild in the exact sub-region order
// of spec §4.7 step 3. The string table is padded so the export hash
// table that follows it lands 4-byte aligned, and the whole body is
// padded to a 16-byte boundary.
func encodeLoaderBody(lb *LoaderBuild) []byte {
	var buf []byte

	relocHeaderStart := pef.LoaderInfoHeaderSize +
		len(lb.ImportedLibraries)*pef.ImportedLibrarySize +
		len(lb.ImportedSymbols)*pef.ImportedSymbolSize
	relocInstrStart := relocHeaderStart + len(lb.RelocHeaders)*pef.LoaderRelocationHeaderSize
	stringsStart := relocInstrStart + len(lb.RelocInstrBytes)
	hashStart := int(utils.AlignTo(uint64(stringsStart+len(lb.Strings)), 4))
	stringsPad := hashStart - (stringsStart + len(lb.Strings))

	lb.Info.RelocInstrOffset = uint32(relocInstrStart)
	lb.Info.LoaderStringsOffset = uint32(stringsStart)
	lb.Info.ExportHashOffset = uint32(hashStart)

	buf = append(buf, lb.Info.Encode()...)
	for _, l := range lb.ImportedLibraries {
		buf = append(buf, l.Encode()...)
	}
	for _, s := range lb.ImportedSymbols {
		buf = append(buf, s.Encode()...)
	}
	for _, rh := range lb.RelocHeaders {
		buf = append(buf, rh.Encode()...)
	}
	buf = append(buf, lb.RelocInstrBytes...)
	buf = append(buf, lb.Strings...)
	buf = append(buf, make([]byte, stringsPad)...)
	for _, slot := range lb.ExportHashSlots {
		buf = append(buf, slot.Encode()...)
	}
	for _, key := range lb.ExportHashKeys {
		buf = append(buf, key.Encode()...)
	}
	for _, sym := range lb.ExportedSymbols {
		buf = append(buf, sym.Encode()...)
	}

	for len(buf)%16 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
