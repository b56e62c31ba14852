package pef

import "github.com/kirkbrauer/llvm-classic-mac/pkg/utils"

// ExportHashSlotSize is the on-disk size of ExportHashSlot.
const ExportHashSlotSize = 4

// ExportHashSlot is a packed (chainCount:14, firstIndex:18) word. It
// identifies a contiguous run in the key/symbol arrays that share a hash
// bucket.
type ExportHashSlot uint32

func ComposeExportHashSlot(chainCount, firstIndex uint32) ExportHashSlot {
	return ExportHashSlot((chainCount&0x3FFF)<<18 | (firstIndex & 0x3FFFF))
}

func (s ExportHashSlot) ChainCount() uint32 { return (uint32(s) >> 18) & 0x3FFF }
func (s ExportHashSlot) FirstIndex() uint32 { return uint32(s) & 0x3FFFF }

func DecodeExportHashSlot(data []byte) (ExportHashSlot, error) {
	if len(data) < ExportHashSlotSize {
		return 0, ErrTruncated("export hash slot")
	}
	return ExportHashSlot(utils.Read[uint32](data)), nil
}

func (s ExportHashSlot) Encode() []byte {
	buf := make([]byte, ExportHashSlotSize)
	putU32(buf, uint32(s))
	return buf
}

// ExportHashKeySize is the on-disk size of ExportHashKey.
const ExportHashKeySize = 4

// ExportHashKey is the full hash word stored per export for collision
// disambiguation: (nameLength:16, hashValue:16).
type ExportHashKey uint32

func ComposeExportHashKey(nameLength, hashValue uint16) ExportHashKey {
	return ExportHashKey(uint32(nameLength)<<16 | uint32(hashValue))
}

func (k ExportHashKey) NameLength() uint16 { return uint16(uint32(k) >> 16) }
func (k ExportHashKey) HashValue() uint16  { return uint16(uint32(k)) }

func DecodeExportHashKey(data []byte) (ExportHashKey, error) {
	if len(data) < ExportHashKeySize {
		return 0, ErrTruncated("export hash key")
	}
	return ExportHashKey(utils.Read[uint32](data)), nil
}

func (k ExportHashKey) Encode() []byte {
	buf := make([]byte, ExportHashKeySize)
	putU32(buf, uint32(k))
	return buf
}

// HashName computes the canonical PEF export hash word for name: the
// 16-bit name length in the high half, a 16-bit mixed hash of the bytes
// in the low half. Arithmetic wraps on 32-bit signed 2's complement,
// matching the Code Fragment Manager's loader implementation exactly —
// any deviation here breaks every PEF file's export lookup.
func HashName(name string) ExportHashKey {
	var h int32
	for i := 0; i < len(name); i++ {
		h = (h << 1) - (h >> 16)
		h ^= int32(byte(name[i]))
	}
	final := uint16((uint32(h) ^ (uint32(h) >> 16)) & 0xFFFF)
	return ComposeExportHashKey(uint16(len(name)), final)
}

// HashTablePower picks the smallest power of two number of slots, capped
// at 2^HashExponentLimit, whose average chain length does not exceed
// HashAverageChainLen for exportCount exports.
func HashTablePower(exportCount int) uint32 {
	if exportCount <= 0 {
		return 0
	}
	want := (exportCount + HashAverageChainLen - 1) / HashAverageChainLen
	power := uint32(0)
	for (uint64(1) << power) < uint64(want) {
		power++
		if power >= HashExponentLimit {
			return HashExponentLimit
		}
	}
	return power
}
