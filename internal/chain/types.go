package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Game is the contract's record of one round.
type Game struct {
	GameID         uint64
	ImageHash      string
	AnswerHash     common.Hash
	TotalPixels    uint64
	RevealedPixels uint64
	PoolAmount     *big.Int
	Winner         common.Address
	IsActive       bool
	CreatedAt      time.Time
	EndedAt        time.Time
}

// Exists reports whether the contract knows the game; unknown ids decode as zero.
func (g Game) Exists() bool { return g.GameID != 0 }

func (g Game) HasWinner() bool { return g.Winner != (common.Address{}) }

type CurrentGame struct {
	GameID         uint64
	ImageHash      string
	TotalPixels    uint64
	RevealedPixels uint64
	PoolAmount     *big.Int
	Winner         common.Address
	IsActive       bool
}

type UserCommit struct {
	CommitHash  common.Hash
	BlockNumber uint64
	Revealed    bool
	CanReveal   bool
}

// Pending reports an outstanding commit that has not been revealed yet.
func (c UserCommit) Pending() bool {
	return c.CommitHash != (common.Hash{}) && !c.Revealed
}

// PrizeRecord is the per-game prize bookkeeping read via prizes(gameId, 0x0).
type PrizeRecord struct {
	WinnerAmount       *big.Int
	RevealerPoolAmount *big.Int
	TotalReveals       uint64
	WinnerClaimed      bool
	RevealsDistributed bool
}

type UserPrize struct {
	Amount  *big.Int
	Claimed bool
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
	GasUsed     uint64
}

type ContractStats struct {
	GuessFee           *big.Int
	WinnerPercentage   uint64
	RevealerPercentage uint64
	Balance            *big.Int
}
