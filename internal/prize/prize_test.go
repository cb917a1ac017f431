package prize

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"pixpot/internal/chain"
	"pixpot/internal/db"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/common"
)

const (
	winnerAddr = "0x00000000000000000000000000000000000000aa"
	helperAddr = "0x00000000000000000000000000000000000000bb"
	idleAddr   = "0x00000000000000000000000000000000000000cc"
)

type fakeChain struct {
	mu            sync.Mutex
	games         map[uint64]*chain.Game
	prizes        map[uint64]*chain.PrizeRecord
	contributions map[common.Address]*big.Int
	userPrizes    map[common.Address]*chain.UserPrize
	failGame      map[uint64]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		games:         make(map[uint64]*chain.Game),
		prizes:        make(map[uint64]*chain.PrizeRecord),
		contributions: make(map[common.Address]*big.Int),
		userPrizes:    make(map[common.Address]*chain.UserPrize),
		failGame:      make(map[uint64]bool),
	}
}

func (f *fakeChain) GetGame(ctx context.Context, gameID uint64) (*chain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGame[gameID] {
		return nil, errors.New("rpc unavailable")
	}
	g, ok := f.games[gameID]
	if !ok {
		return &chain.Game{PoolAmount: new(big.Int)}, nil
	}
	return g, nil
}

func (f *fakeChain) Prizes(ctx context.Context, gameID uint64) (*chain.PrizeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.prizes[gameID]; ok {
		return record, nil
	}
	return &chain.PrizeRecord{WinnerAmount: new(big.Int), RevealerPoolAmount: new(big.Int)}, nil
}

func (f *fakeChain) GetUserContribution(ctx context.Context, gameID uint64, user common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value, ok := f.contributions[user]; ok {
		return value, nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) GetUserPrize(ctx context.Context, gameID uint64, user common.Address) (*chain.UserPrize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prize, ok := f.userPrizes[user]; ok {
		return prize, nil
	}
	return &chain.UserPrize{Amount: new(big.Int)}, nil
}

func wei(t *testing.T, amount string) *big.Int {
	t.Helper()
	value, err := chain.ToWei(amount)
	if err != nil {
		t.Fatalf("to wei: %v", err)
	}
	return value
}

func ptr[T any](value T) *T { return &value }

// seedCompletedGame creates onchain game 4 won by winnerAddr, with helperAddr
// revealing two pixels and idleAddr one.
func seedCompletedGame(t *testing.T) (*store.Memory, *Reconciler, *fakeChain) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	image := &db.Image{Width: 4, Height: 4, PixelData: make([]byte, 4*4*3), Answer: "cat", Filename: "cat.png"}
	if err := repo.CreateGame(ctx, image); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, store.GameUpdate{AdminSecret: ptr("s"), OnchainGameID: ptr(uint64(4))}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := repo.SetActiveGame(ctx, store.ActivateTarget{Target: store.Target{GameID: &image.ID}}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	reveals := []struct {
		who string
		tx  string
	}{{helperAddr, "0x1"}, {helperAddr, "0x2"}, {idleAddr, "0x3"}, {winnerAddr, "0x4"}}
	for i, reveal := range reveals {
		if _, err := repo.RevealPixel(ctx, store.RevealRequest{Index: i, Revealer: reveal.who, TxRef: reveal.tx}); err != nil {
			t.Fatalf("reveal: %v", err)
		}
	}

	contract := newFakeChain()
	reconciler := NewReconciler(repo, contract)
	if _, err := reconciler.ReconcileWin(ctx, Win{
		GameID:      4,
		Winner:      winnerAddr,
		Guess:       "Cat",
		Pool:        wei(t, "1"),
		TxRef:       "0xdeclare",
		AdminSecret: "s",
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	return repo, reconciler, contract
}

func TestReconcileWinIdempotent(t *testing.T) {
	repo, reconciler, _ := seedCompletedGame(t)
	ctx := context.Background()

	again, err := reconciler.ReconcileWin(ctx, Win{GameID: 4, Winner: winnerAddr, Guess: "cat", TxRef: "0xdeclare", AdminSecret: "s"})
	if err != nil || !again.Duplicate {
		t.Fatalf("expected duplicate no-op, got %#v %v", again, err)
	}
	_, err = reconciler.ReconcileWin(ctx, Win{GameID: 4, Winner: helperAddr, Guess: "cat", TxRef: "0xother", AdminSecret: "s"})
	if !errors.Is(err, ErrWinnerAlreadySet) {
		t.Fatalf("expected winner already set, got %v", err)
	}
	current, err := repo.GameByOnchainID(ctx, 4)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if current.WinnerAddress == nil || *current.WinnerAddress != winnerAddr || current.PoolAmount != "1" {
		t.Fatalf("unexpected game state %#v", current)
	}
}

func TestListClaimablePrizesUsesChainAmounts(t *testing.T) {
	_, reconciler, contract := seedCompletedGame(t)
	contract.games[4] = &chain.Game{GameID: 4, PoolAmount: wei(t, "1")}
	contract.prizes[4] = &chain.PrizeRecord{WinnerAmount: wei(t, "0.7"), RevealerPoolAmount: wei(t, "0.3"), WinnerClaimed: true}

	prizes, err := reconciler.ListClaimablePrizes(context.Background(), winnerAddr)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prizes) != 1 {
		t.Fatalf("expected one prize, got %#v", prizes)
	}
	got := prizes[0]
	if got.GameID != 4 || got.WinnerAmount != "0.7" || got.PoolAmount != "1" || !got.Claimed || got.Unavailable {
		t.Fatalf("unexpected prize %#v", got)
	}
}

func TestListClaimablePrizesMarksUnavailable(t *testing.T) {
	_, reconciler, contract := seedCompletedGame(t)
	contract.failGame[4] = true

	prizes, err := reconciler.ListClaimablePrizes(context.Background(), winnerAddr)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prizes) != 1 || !prizes[0].Unavailable || prizes[0].Error == "" {
		t.Fatalf("expected unavailable descriptor, got %#v", prizes)
	}
}

func TestListRevealerShares(t *testing.T) {
	_, reconciler, contract := seedCompletedGame(t)
	contract.games[4] = &chain.Game{GameID: 4, PoolAmount: wei(t, "1")}
	contract.prizes[4] = &chain.PrizeRecord{WinnerAmount: wei(t, "0.7"), RevealerPoolAmount: wei(t, "0.3"), RevealsDistributed: true}
	// The contract counts three reveals for the helper even though the local tally has two.
	contract.contributions[common.HexToAddress(helperAddr)] = big.NewInt(3)
	contract.userPrizes[common.HexToAddress(helperAddr)] = &chain.UserPrize{Amount: wei(t, "0.2")}

	shares, err := reconciler.ListRevealerShares(context.Background(), helperAddr)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shares) != 1 {
		t.Fatalf("expected one share, got %#v", shares)
	}
	share := shares[0]
	if share.Contribution != 3 || share.LocalPixels != 2 || share.RevealerAmount != "0.2" || !share.Distributed || share.Claimed {
		t.Fatalf("unexpected share %#v", share)
	}

	idle, err := reconciler.ListRevealerShares(context.Background(), idleAddr)
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 0 {
		t.Fatalf("zero onchain contribution should be omitted, got %#v", idle)
	}

	winner, err := reconciler.ListRevealerShares(context.Background(), winnerAddr)
	if err != nil {
		t.Fatalf("list winner: %v", err)
	}
	if len(winner) != 0 {
		t.Fatalf("winner should have no revealer share, got %#v", winner)
	}
}

func TestSplit(t *testing.T) {
	cases := []struct {
		pool, winner, revealers string
	}{
		{"1000000000000000000", "700000000000000000", "300000000000000000"},
		{"1", "0", "1"},
		{"333", "233", "100"},
		{"0", "0", "0"},
	}
	for _, tc := range cases {
		pool, _ := new(big.Int).SetString(tc.pool, 10)
		winner, revealers := Split(pool)
		if winner.String() != tc.winner || revealers.String() != tc.revealers {
			t.Fatalf("Split(%s) = %s/%s, want %s/%s", tc.pool, winner, revealers, tc.winner, tc.revealers)
		}
		if new(big.Int).Add(winner, revealers).Cmp(pool) != 0 {
			t.Fatalf("split of %s does not sum to pool", tc.pool)
		}
	}
}
