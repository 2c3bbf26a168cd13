package position

import (
	"fmt"
	"math/big"
)

// PackedInfo is the decoded form of the position manager's packed
// position-info word. Layout, most significant bits first:
//
//	bits 255..56  truncated pool key hash (25 bytes)
//	bits  55..32  tickUpper (int24, two's complement)
//	bits  31..8   tickLower (int24, two's complement)
//	bits   7..0   subscriber flag
type PackedInfo struct {
	PoolKeyHash   [25]byte
	TickUpper     int32
	TickLower     int32
	HasSubscriber bool
}

const (
	int24Mask  = 0xffffff
	int24Sign  = 0x800000
	int24Width = 1 << 24
)

// DecodePackedInfo unpacks the raw uint256 position-info word. Tick
// fields above 2^23-1 are negative and must be sign-extended.
func DecodePackedInfo(raw *big.Int) (PackedInfo, error) {
	if raw == nil || raw.Sign() < 0 || raw.BitLen() > 256 {
		return PackedInfo{}, fmt.Errorf("packed info must be an unsigned 256-bit value")
	}

	var info PackedInfo
	word := new(big.Int).Set(raw)

	flags := new(big.Int).And(word, big.NewInt(0xff)).Uint64()
	info.HasSubscriber = flags != 0

	word.Rsh(word, 8)
	info.TickLower = signExtend24(uint32(new(big.Int).And(word, big.NewInt(int24Mask)).Uint64()))

	word.Rsh(word, 24)
	info.TickUpper = signExtend24(uint32(new(big.Int).And(word, big.NewInt(int24Mask)).Uint64()))

	word.Rsh(word, 24)
	word.FillBytes(info.PoolKeyHash[:])

	return info, nil
}

// Encode packs the info back into its uint256 wire form. Decode and
// Encode are exact inverses.
func (i PackedInfo) Encode() *big.Int {
	word := new(big.Int).SetBytes(i.PoolKeyHash[:])
	word.Lsh(word, 24)
	word.Or(word, big.NewInt(int64(uint32(i.TickUpper)&int24Mask)))
	word.Lsh(word, 24)
	word.Or(word, big.NewInt(int64(uint32(i.TickLower)&int24Mask)))
	word.Lsh(word, 8)
	if i.HasSubscriber {
		word.Or(word, big.NewInt(1))
	}
	return word
}

func signExtend24(v uint32) int32 {
	if v&int24Sign != 0 {
		return int32(v) - int24Width
	}
	return int32(v)
}
