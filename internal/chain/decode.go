package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type gameTuple struct {
	GameId         *big.Int
	ImageHash      string
	AnswerHash     [32]byte
	TotalPixels    *big.Int
	RevealedPixels *big.Int
	PoolAmount     *big.Int
	Winner         common.Address
	IsActive       bool
	CreatedAt      *big.Int
	EndedAt        *big.Int
}

func decodeGame(out []interface{}) (*Game, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("getGame: expected 1 output, got %d", len(out))
	}
	raw, ok := abi.ConvertType(out[0], new(gameTuple)).(*gameTuple)
	if !ok {
		return nil, fmt.Errorf("getGame: unexpected output %T", out[0])
	}
	return &Game{
		GameID:         toUint64(raw.GameId),
		ImageHash:      raw.ImageHash,
		AnswerHash:     common.Hash(raw.AnswerHash),
		TotalPixels:    toUint64(raw.TotalPixels),
		RevealedPixels: toUint64(raw.RevealedPixels),
		PoolAmount:     orZero(raw.PoolAmount),
		Winner:         raw.Winner,
		IsActive:       raw.IsActive,
		CreatedAt:      toTime(raw.CreatedAt),
		EndedAt:        toTime(raw.EndedAt),
	}, nil
}

func decodeCurrentGame(out []interface{}) (*CurrentGame, error) {
	d := decoder{method: "getCurrentGame", out: out}
	game := &CurrentGame{
		GameID:         toUint64(d.bigInt(0)),
		ImageHash:      d.text(1),
		TotalPixels:    toUint64(d.bigInt(2)),
		RevealedPixels: toUint64(d.bigInt(3)),
		PoolAmount:     d.bigInt(4),
		Winner:         d.address(5),
		IsActive:       d.flag(6),
	}
	return game, d.err
}

func decodeUserCommit(out []interface{}) (*UserCommit, error) {
	d := decoder{method: "getUserCommit", out: out}
	commit := &UserCommit{
		CommitHash:  d.hash(0),
		BlockNumber: toUint64(d.bigInt(1)),
		Revealed:    d.flag(2),
		CanReveal:   d.flag(3),
	}
	return commit, d.err
}

func decodePrizeRecord(out []interface{}) (*PrizeRecord, error) {
	d := decoder{method: "prizes", out: out}
	record := &PrizeRecord{
		WinnerAmount:       d.bigInt(0),
		RevealerPoolAmount: d.bigInt(1),
		TotalReveals:       toUint64(d.bigInt(2)),
		WinnerClaimed:      d.flag(3),
		RevealsDistributed: d.flag(4),
	}
	return record, d.err
}

func decodeUserPrize(out []interface{}) (*UserPrize, error) {
	d := decoder{method: "getUserPrize", out: out}
	prize := &UserPrize{Amount: d.bigInt(0), Claimed: d.flag(1)}
	return prize, d.err
}

// decoder reads positional outputs and keeps the first mismatch.
type decoder struct {
	method string
	out    []interface{}
	err    error
}

func (d *decoder) at(i int) interface{} {
	if d.err != nil {
		return nil
	}
	if i >= len(d.out) {
		d.err = fmt.Errorf("%s: missing output %d", d.method, i)
		return nil
	}
	return d.out[i]
}

func (d *decoder) fail(i int, value interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: output %d has type %T", d.method, i, value)
	}
}

func (d *decoder) bigInt(i int) *big.Int {
	value := d.at(i)
	if d.err != nil {
		return new(big.Int)
	}
	out, ok := value.(*big.Int)
	if !ok {
		d.fail(i, value)
		return new(big.Int)
	}
	return orZero(out)
}

func (d *decoder) flag(i int) bool {
	value := d.at(i)
	out, ok := value.(bool)
	if !ok && d.err == nil {
		d.fail(i, value)
	}
	return out
}

func (d *decoder) text(i int) string {
	value := d.at(i)
	out, ok := value.(string)
	if !ok && d.err == nil {
		d.fail(i, value)
	}
	return out
}

func (d *decoder) address(i int) common.Address {
	value := d.at(i)
	out, ok := value.(common.Address)
	if !ok && d.err == nil {
		d.fail(i, value)
	}
	return out
}

func (d *decoder) hash(i int) common.Hash {
	value := d.at(i)
	out, ok := value.([32]byte)
	if !ok && d.err == nil {
		d.fail(i, value)
	}
	return common.Hash(out)
}

func toUint64(value *big.Int) uint64 {
	if value == nil || !value.IsUint64() {
		return 0
	}
	return value.Uint64()
}

func toTime(value *big.Int) time.Time {
	seconds := toUint64(value)
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds), 0).UTC()
}

func orZero(value *big.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return value
}
