package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// CommitHash is keccak256(text || secret), the preimage scheme the contract
// checks for guess commits and answer commits alike. Callers normalize text.
func CommitHash(text, secret string) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(text))
	hasher.Write([]byte(secret))
	var out common.Hash
	hasher.Sum(out[:0])
	return out
}
