package pef

import "github.com/kirkbrauer/llvm-classic-mac/pkg/utils"

// ContainerHeaderSize is the on-disk size of ContainerHeader.
const ContainerHeaderSize = 40

// ContainerHeader is the 40-byte header at the start of every PEF file.
type ContainerHeader struct {
	Tag1             uint32
	Tag2             uint32
	Architecture     Architecture
	FormatVersion    uint32
	DateTimeStamp    uint32
	OldDefVersion    uint32
	OldImpVersion    uint32
	CurrentVersion   uint32
	SectionCount     uint16
	InstSectionCount uint16
	ReservedA        uint32
}

// DecodeContainerHeader reads a ContainerHeader from the first
// ContainerHeaderSize bytes of data.
func DecodeContainerHeader(data []byte) (ContainerHeader, error) {
	if len(data) < ContainerHeaderSize {
		return ContainerHeader{}, ErrTruncated("container header")
	}
	h := ContainerHeader{
		Tag1:             utils.Read[uint32](data[0:]),
		Tag2:             utils.Read[uint32](data[4:]),
		Architecture:     Architecture(utils.Read[uint32](data[8:])),
		FormatVersion:    utils.Read[uint32](data[12:]),
		DateTimeStamp:    utils.Read[uint32](data[16:]),
		OldDefVersion:    utils.Read[uint32](data[20:]),
		OldImpVersion:    utils.Read[uint32](data[24:]),
		CurrentVersion:   utils.Read[uint32](data[28:]),
		SectionCount:     utils.Read[uint16](data[32:]),
		InstSectionCount: utils.Read[uint16](data[34:]),
		ReservedA:        utils.Read[uint32](data[36:]),
	}
	if h.Tag1 != Tag1 || h.Tag2 != Tag2 {
		return ContainerHeader{}, ErrMalformed("bad PEF magic tag")
	}
	if h.FormatVersion != FormatVersion {
		return ContainerHeader{}, ErrMalformed("unsupported PEF format version")
	}
	return h, nil
}

// Encode writes h as 40 big-endian bytes.
func (h ContainerHeader) Encode() []byte {
	buf := make([]byte, ContainerHeaderSize)
	putU32(buf[0:], h.Tag1)
	putU32(buf[4:], h.Tag2)
	putU32(buf[8:], uint32(h.Architecture))
	putU32(buf[12:], h.FormatVersion)
	putU32(buf[16:], h.DateTimeStamp)
	putU32(buf[20:], h.OldDefVersion)
	putU32(buf[24:], h.OldImpVersion)
	putU32(buf[28:], h.CurrentVersion)
	putU16(buf[32:], h.SectionCount)
	putU16(buf[34:], h.InstSectionCount)
	putU32(buf[36:], h.ReservedA)
	return buf
}
