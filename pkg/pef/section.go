package pef

import "github.com/kirkbrauer/llvm-classic-mac/pkg/utils"

// SectionHeaderSize is the on-disk size of SectionHeader.
const SectionHeaderSize = 28

// SectionHeader describes one section of a PEF container. NameOffset is
// -1 when the section has no name; Alignment is stored as log2 of the
// byte alignment.
type SectionHeader struct {
	NameOffset      int32
	DefaultAddress  uint32
	TotalLength     uint32
	UnpackedLength  uint32
	ContainerLength uint32
	ContainerOffset uint32
	SectionKind     SectionKind
	ShareKind       ShareKind
	Alignment       uint8
	ReservedA       uint8
}

// DecodeSectionHeader reads a SectionHeader from the front of data.
func DecodeSectionHeader(data []byte) (SectionHeader, error) {
	if len(data) < SectionHeaderSize {
		return SectionHeader{}, ErrTruncated("section header")
	}
	return SectionHeader{
		NameOffset:      int32(utils.Read[uint32](data[0:])),
		DefaultAddress:  utils.Read[uint32](data[4:]),
		TotalLength:     utils.Read[uint32](data[8:]),
		UnpackedLength:  utils.Read[uint32](data[12:]),
		ContainerLength: utils.Read[uint32](data[16:]),
		ContainerOffset: utils.Read[uint32](data[20:]),
		SectionKind:     SectionKind(data[24]),
		ShareKind:       ShareKind(data[25]),
		Alignment:       data[26],
		ReservedA:       data[27],
	}, nil
}

// Encode writes h as 28 big-endian bytes.
func (h SectionHeader) Encode() []byte {
	buf := make([]byte, SectionHeaderSize)
	putI32(buf[0:], h.NameOffset)
	putU32(buf[4:], h.DefaultAddress)
	putU32(buf[8:], h.TotalLength)
	putU32(buf[12:], h.UnpackedLength)
	putU32(buf[16:], h.ContainerLength)
	putU32(buf[20:], h.ContainerOffset)
	buf[24] = byte(h.SectionKind)
	buf[25] = byte(h.ShareKind)
	buf[26] = h.Alignment
	buf[27] = h.ReservedA
	return buf
}

// AlignBytes returns the section's alignment in bytes (2^Alignment).
func (h SectionHeader) AlignBytes() uint64 {
	return uint64(1) << h.Alignment
}

// Mergeable reports whether a section of this kind participates in the
// linker's section merger (spec §4.2 step 2, §4.5). Loader sections are
// consumed separately; debug/exception/traceback sections are not
// constructed by this linker (spec §1 Non-goals) and are skipped even
// when present on input.
func (k SectionKind) Mergeable() bool {
	switch k {
	case SectionCode, SectionUnpackedData, SectionPatternData, SectionConstant, SectionExecutableData:
		return true
	default:
		return false
	}
}
