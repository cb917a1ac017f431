// Package prize merges the local record of wins and reveals with the
// contract's prize bookkeeping. Amounts and claim flags always come from chain.
package prize

import (
	"context"
	"math/big"

	"pixpot/internal/chain"
	"pixpot/internal/game"
	"pixpot/internal/logger"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const (
	WinnerPercent      = 70
	defaultChainFanOut = 4
)

var ErrWinnerAlreadySet = store.ErrWinnerAlreadySet

// Store is the subset of the repository the reconciler reads and writes.
type Store interface {
	RecordGuess(ctx context.Context, rec store.GuessRecord) (store.GuessOutcome, error)
	WinnerClaims(ctx context.Context, address string) ([]store.Claim, error)
	RevealerGames(ctx context.Context, address string) ([]store.RevealerGame, error)
}

// Chain is the read side of the contract needed for prize listings.
type Chain interface {
	GetGame(ctx context.Context, gameID uint64) (*chain.Game, error)
	Prizes(ctx context.Context, gameID uint64) (*chain.PrizeRecord, error)
	GetUserContribution(ctx context.Context, gameID uint64, user common.Address) (*big.Int, error)
	GetUserPrize(ctx context.Context, gameID uint64, user common.Address) (*chain.UserPrize, error)
}

type Reconciler struct {
	store  Store
	chain  Chain
	fanOut int
}

func NewReconciler(repo Store, contract Chain) *Reconciler {
	return &Reconciler{store: repo, chain: contract, fanOut: defaultChainFanOut}
}

// Win is a confirmed declareWinner transaction to mirror locally.
type Win struct {
	GameID      uint64
	Winner      string
	Guess       string
	Pool        *big.Int
	TxRef       string
	AdminSecret string
}

// ReconcileWin records the winning guess and completes the game. Replaying the
// same win is a no-op on the game row; a different winner is rejected.
func (r *Reconciler) ReconcileWin(ctx context.Context, win Win) (store.GuessOutcome, error) {
	gameID := win.GameID
	rec := store.GuessRecord{
		OnchainGameID: &gameID,
		Address:       win.Winner,
		Guess:         win.Guess,
		Complete:      true,
	}
	if win.Pool != nil {
		pool := chain.FromWei(win.Pool)
		rec.PoolAmount = &pool
	}
	if win.TxRef != "" {
		txRef := win.TxRef
		rec.TxRef = &txRef
	}
	if win.AdminSecret != "" {
		secret := win.AdminSecret
		rec.AdminSecret = &secret
	}
	outcome, err := r.store.RecordGuess(ctx, rec)
	if err != nil {
		return outcome, err
	}
	logger.Log.Infow("win reconciled",
		"game_id", gameID,
		"winner", game.NormalizeAddress(win.Winner),
		"completed", outcome.Completed,
		"duplicate", outcome.Duplicate,
	)
	return outcome, nil
}

type WinnerPrize struct {
	GameID       uint64 `json:"gameId"`
	ImageID      uint   `json:"imageId"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Answer       string `json:"answer"`
	PoolAmount   string `json:"poolAmount"`
	WinnerAmount string `json:"winnerAmount"`
	Claimed      bool   `json:"isClaimed"`
	Unavailable  bool   `json:"unavailable,omitempty"`
	Error        string `json:"error,omitempty"`
}

type RevealerShare struct {
	GameID         uint64 `json:"gameId"`
	ImageID        uint   `json:"imageId"`
	Filename       string `json:"filename"`
	OriginalName   string `json:"originalName"`
	PoolAmount     string `json:"poolAmount"`
	RevealerAmount string `json:"revealerAmount"`
	Claimed        bool   `json:"isClaimed"`
	Distributed    bool   `json:"isDistributed"`
	Contribution   uint64 `json:"userContribution"`
	LocalPixels    int    `json:"localPixels"`
	Unavailable    bool   `json:"unavailable,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ListClaimablePrizes returns one descriptor per game the address won.
func (r *Reconciler) ListClaimablePrizes(ctx context.Context, address string) ([]WinnerPrize, error) {
	claims, err := r.store.WinnerClaims(ctx, address)
	if err != nil {
		return nil, err
	}
	prizes := make([]WinnerPrize, len(claims))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.fanOut)
	for i, claim := range claims {
		group.Go(func() error {
			prizes[i] = r.winnerPrize(groupCtx, claim)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return prizes, nil
}

func (r *Reconciler) winnerPrize(ctx context.Context, claim store.Claim) WinnerPrize {
	prize := WinnerPrize{
		GameID:       claim.OnchainGameID,
		ImageID:      claim.ImageID,
		Filename:     claim.Filename,
		OriginalName: claim.OriginalName,
		Answer:       claim.Answer,
		PoolAmount:   "0",
		WinnerAmount: "0",
	}
	onchain, err := r.chain.GetGame(ctx, claim.OnchainGameID)
	if err != nil {
		return unavailableWinner(prize, err)
	}
	record, err := r.chain.Prizes(ctx, claim.OnchainGameID)
	if err != nil {
		return unavailableWinner(prize, err)
	}
	prize.PoolAmount = chain.FromWei(onchain.PoolAmount)
	prize.WinnerAmount = chain.FromWei(record.WinnerAmount)
	prize.Claimed = record.WinnerClaimed
	return prize
}

func unavailableWinner(prize WinnerPrize, err error) WinnerPrize {
	logger.Log.Warnw("winner prize read failed", "game_id", prize.GameID, "error", err)
	prize.Unavailable = true
	prize.Error = err.Error()
	return prize
}

// ListRevealerShares returns revealer prize descriptors for completed games the
// address contributed to and did not win. Games where the contract records no
// contribution are left out.
func (r *Reconciler) ListRevealerShares(ctx context.Context, address string) ([]RevealerShare, error) {
	user := common.HexToAddress(address)
	normalized := game.NormalizeAddress(address)
	games, err := r.store.RevealerGames(ctx, normalized)
	if err != nil {
		return nil, err
	}
	candidates := make([]store.RevealerGame, 0, len(games))
	for _, candidate := range games {
		if !game.SameAddress(candidate.WinnerAddress, normalized) {
			candidates = append(candidates, candidate)
		}
	}

	shares := make([]*RevealerShare, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.fanOut)
	for i, candidate := range candidates {
		group.Go(func() error {
			shares[i] = r.revealerShare(groupCtx, candidate, user)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	out := make([]RevealerShare, 0, len(shares))
	for _, share := range shares {
		if share != nil {
			out = append(out, *share)
		}
	}
	return out, nil
}

func (r *Reconciler) revealerShare(ctx context.Context, candidate store.RevealerGame, user common.Address) *RevealerShare {
	share := &RevealerShare{
		GameID:         candidate.OnchainGameID,
		ImageID:        candidate.ImageID,
		Filename:       candidate.Filename,
		OriginalName:   candidate.OriginalName,
		PoolAmount:     "0",
		RevealerAmount: "0",
		LocalPixels:    candidate.Pixels,
	}
	contribution, err := r.chain.GetUserContribution(ctx, candidate.OnchainGameID, user)
	if err != nil {
		return unavailableShare(share, err)
	}
	if contribution == nil || contribution.Sign() == 0 {
		return nil
	}
	share.Contribution = contribution.Uint64()
	userPrize, err := r.chain.GetUserPrize(ctx, candidate.OnchainGameID, user)
	if err != nil {
		return unavailableShare(share, err)
	}
	record, err := r.chain.Prizes(ctx, candidate.OnchainGameID)
	if err != nil {
		return unavailableShare(share, err)
	}
	onchain, err := r.chain.GetGame(ctx, candidate.OnchainGameID)
	if err != nil {
		return unavailableShare(share, err)
	}
	share.RevealerAmount = chain.FromWei(userPrize.Amount)
	share.Claimed = userPrize.Claimed
	share.Distributed = record.RevealsDistributed
	share.PoolAmount = chain.FromWei(onchain.PoolAmount)
	return share
}

func unavailableShare(share *RevealerShare, err error) *RevealerShare {
	logger.Log.Warnw("revealer share read failed", "game_id", share.GameID, "error", err)
	share.Unavailable = true
	share.Error = err.Error()
	return share
}

// Split divides a pool between the winner and the revealers. The revealer
// part takes the remainder so the two always sum to pool.
func Split(pool *big.Int) (winner, revealers *big.Int) {
	if pool == nil || pool.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	winner = new(big.Int).Mul(pool, big.NewInt(WinnerPercent))
	winner.Quo(winner, big.NewInt(100))
	revealers = new(big.Int).Sub(pool, winner)
	return winner, revealers
}
