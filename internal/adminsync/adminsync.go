// Package adminsync keeps the database's active game aligned with the contract.
package adminsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pixpot/internal/chain"
	"pixpot/internal/db"
	"pixpot/internal/logger"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	NextGameWatch       = 10 * time.Second
	NextGameScanWindow  = 10
)

var (
	ErrNotActiveOnchain = errors.New("game is not active onchain")
	ErrNoNextGame       = errors.New("no active game found onchain")
)

type Store interface {
	ActiveGame(ctx context.Context) (*db.Image, error)
	SetActiveGame(ctx context.Context, target store.ActivateTarget) (*db.Image, error)
	AppendEvent(ctx context.Context, imageID *uint, eventType string, payload any) error
}

type Chain interface {
	GetGame(ctx context.Context, gameID uint64) (*chain.Game, error)
	GetCurrentGame(ctx context.Context) (*chain.CurrentGame, error)
	CurrentGameID(ctx context.Context) (uint64, error)
	WatchGameActivated(ctx context.Context, sink chan<- uint64) (event.Subscription, error)
}

// ActivatedPayload is the event body recorded and broadcast on activation.
type ActivatedPayload struct {
	GameID        uint    `json:"gameId"`
	OnchainGameID *uint64 `json:"onchainGameId"`
	PoolAmount    string  `json:"poolAmount"`
	Source        string  `json:"source"`
}

type Syncer struct {
	store      Store
	chain      Chain
	interval   time.Duration
	onActivate func(*db.Image, ActivatedPayload)
	log        *zap.SugaredLogger
}

// NewSyncer builds a syncer. contract may be nil when no chain is configured;
// only manual activation is available then.
func NewSyncer(repo Store, contract Chain, interval time.Duration, onActivate func(*db.Image, ActivatedPayload)) *Syncer {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Syncer{
		store:      repo,
		chain:      contract,
		interval:   interval,
		onActivate: onActivate,
		log:        logger.Named("adminsync"),
	}
}

// Activate archives every other active game and activates target in one
// transaction. Repeating it yields the same end state.
func (s *Syncer) Activate(ctx context.Context, target store.ActivateTarget, source string) (*db.Image, error) {
	image, err := s.store.SetActiveGame(ctx, target)
	if err != nil {
		return nil, err
	}
	payload := ActivatedPayload{
		GameID:        image.ID,
		OnchainGameID: image.OnchainGameID,
		PoolAmount:    image.PoolAmount,
		Source:        source,
	}
	if err := s.store.AppendEvent(ctx, &image.ID, "game_activated", payload); err != nil {
		s.log.Warnw("record activation event", "game_id", image.ID, "error", err)
	}
	s.log.Infow("game activated", "game_id", image.ID, "onchain_game_id", image.OnchainGameID, "source", source)
	if s.onActivate != nil {
		s.onActivate(image, payload)
	}
	return image, nil
}

// MirrorOnchain activates the local game for onchainID after confirming the
// contract reports it active, using the contract's pool amount.
func (s *Syncer) MirrorOnchain(ctx context.Context, onchainID uint64, source string) (*db.Image, error) {
	if s.chain == nil {
		return nil, chain.ErrNotConfigured
	}
	onchain, err := s.chain.GetGame(ctx, onchainID)
	if err != nil {
		return nil, err
	}
	if !onchain.Exists() || !onchain.IsActive {
		return nil, fmt.Errorf("%w: %d", ErrNotActiveOnchain, onchainID)
	}
	pool := chain.FromWei(onchain.PoolAmount)
	return s.Activate(ctx, store.ActivateTarget{
		Target:     store.Target{OnchainGameID: &onchainID},
		PoolAmount: &pool,
	}, source)
}

// SyncOnce mirrors the contract's current game when it differs from the local one.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s.chain == nil {
		return chain.ErrNotConfigured
	}
	current, err := s.chain.GetCurrentGame(ctx)
	if err != nil {
		return err
	}
	if current.GameID == 0 || !current.IsActive {
		return nil
	}
	local, err := s.store.ActiveGame(ctx)
	if err != nil && !errors.Is(err, store.ErrNoActiveGame) {
		return err
	}
	if local != nil && local.OnchainGameID != nil && *local.OnchainGameID == current.GameID {
		return nil
	}
	_, err = s.MirrorOnchain(ctx, current.GameID, "poll")
	return err
}

// Run mirrors GameActivated events until ctx ends. Without subscription
// support it polls the current game every interval instead.
func (s *Syncer) Run(ctx context.Context) error {
	if s.chain == nil {
		return chain.ErrNotConfigured
	}
	if err := s.SyncOnce(ctx); err != nil {
		s.log.Warnw("initial sync failed", "error", err)
	}
	sink := make(chan uint64, 8)
	sub, err := s.chain.WatchGameActivated(ctx, sink)
	if err != nil {
		s.log.Infow("event subscription unavailable, polling", "interval", s.interval, "error", err)
		return s.poll(ctx)
	}
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case gameID := <-sink:
			if _, err := s.MirrorOnchain(ctx, gameID, "event"); err != nil {
				s.log.Warnw("mirror activation failed", "onchain_game_id", gameID, "error", err)
			}
		case err := <-sub.Err():
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warnw("event subscription dropped, polling", "error", err)
			return s.poll(ctx)
		}
	}
}

func (s *Syncer) poll(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.log.Warnw("sync failed", "error", err)
			}
		}
	}
}

// NextActivation waits for the contract to activate a game other than
// previous. It watches events for up to watchFor, then scans the most recent
// game ids.
func NextActivation(ctx context.Context, contract Chain, previous uint64, watchFor time.Duration) (uint64, error) {
	if watchFor <= 0 {
		watchFor = NextGameWatch
	}
	if gameID, ok := watchNext(ctx, contract, previous, watchFor); ok {
		return gameID, nil
	}
	if current, err := contract.GetCurrentGame(ctx); err == nil && current.IsActive && current.GameID != 0 && current.GameID != previous {
		return current.GameID, nil
	}
	latest, err := contract.CurrentGameID(ctx)
	if err != nil {
		return 0, err
	}
	for gameID, scanned := latest, 0; gameID > 0 && scanned < NextGameScanWindow; gameID, scanned = gameID-1, scanned+1 {
		if gameID == previous {
			continue
		}
		onchain, err := contract.GetGame(ctx, gameID)
		if err != nil {
			continue
		}
		if onchain.IsActive && !onchain.HasWinner() {
			return gameID, nil
		}
	}
	return 0, ErrNoNextGame
}

func watchNext(ctx context.Context, contract Chain, previous uint64, watchFor time.Duration) (uint64, bool) {
	watchCtx, cancel := context.WithTimeout(ctx, watchFor)
	defer cancel()
	sink := make(chan uint64, 4)
	sub, err := contract.WatchGameActivated(watchCtx, sink)
	if err != nil {
		return 0, false
	}
	defer sub.Unsubscribe()
	for {
		select {
		case gameID := <-sink:
			if gameID != 0 && gameID != previous {
				return gameID, true
			}
		case <-sub.Err():
			return 0, false
		case <-watchCtx.Done():
			return 0, false
		}
	}
}
