package vanity

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"rangeKeeper/internal/model"
)

// Params defines one CREATE2 salt search.
type Params struct {
	// Deployer is the factory that will execute CREATE2.
	Deployer common.Address
	// InitCodeHash is keccak256 of the exact deployment bytecode.
	InitCodeHash common.Hash
	// Suffix is the wanted hex ending of the address, no 0x prefix.
	Suffix string
	// MaxAttempts bounds the search; zero means 10 million.
	MaxAttempts uint64
}

// Result is a found salt and the address it produces.
type Result struct {
	Salt     common.Hash
	Address  common.Address
	Attempts uint64
}

const defaultMaxAttempts = 10_000_000

// Search scans salts sequentially until a CREATE2 address ends with the
// wanted suffix. The salt space is walked deterministically from zero,
// so a given (deployer, initCodeHash, suffix) always yields the same
// salt. Returns an error when the attempt bound is hit first.
func Search(ctx context.Context, p Params) (Result, error) {
	suffix := strings.ToLower(strings.TrimPrefix(p.Suffix, "0x"))
	if suffix == "" {
		return Result{}, model.NewValidationError("suffix", "must not be empty")
	}
	if len(suffix) > 2*common.AddressLength {
		return Result{}, model.NewValidationError("suffix", "longer than an address: %d hex chars", len(suffix))
	}
	for _, c := range suffix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return Result{}, model.NewValidationError("suffix", "not hex: %q", c)
		}
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}

	// 0xff ++ deployer ++ salt ++ initCodeHash, hashed, last 20 bytes.
	preimage := make([]byte, 1+common.AddressLength+2*common.HashLength)
	preimage[0] = 0xff
	copy(preimage[1:], p.Deployer.Bytes())
	copy(preimage[1+common.AddressLength+common.HashLength:], p.InitCodeHash.Bytes())
	saltSlot := preimage[1+common.AddressLength : 1+common.AddressLength+common.HashLength]

	for attempt := uint64(0); attempt < maxAttempts; attempt++ {
		if attempt%8192 == 0 && ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		binary.BigEndian.PutUint64(saltSlot[common.HashLength-8:], attempt)

		digest := crypto.Keccak256(preimage)
		addr := common.BytesToAddress(digest[12:])
		if strings.HasSuffix(strings.ToLower(addr.Hex()[2:]), suffix) {
			return Result{
				Salt:     common.BytesToHash(saltSlot),
				Address:  addr,
				Attempts: attempt + 1,
			}, nil
		}
	}
	return Result{}, fmt.Errorf("no address ending in %q within %d attempts", suffix, maxAttempts)
}
