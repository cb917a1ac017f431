package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"pixpot/internal/adminsync"
	"pixpot/internal/apiclient"
	"pixpot/internal/chain"
	"pixpot/internal/protocol"
)

func (a *app) protocol(ctx context.Context) (*protocol.Protocol, error) {
	if err := a.requireSigner(); err != nil {
		return nil, err
	}
	state, err := a.clientState()
	if err != nil {
		return nil, err
	}
	fee, err := a.gateway.GuessFee(ctx)
	if err != nil {
		configured, ok := new(big.Int).SetString(a.cfg.GuessFeeWei, 10)
		if !ok {
			return nil, fmt.Errorf("read guess fee: %w", err)
		}
		fee = configured
	}
	return protocol.New(a.gateway, a.api, protocol.Options{
		Fee:           fee,
		RequiredDelay: a.cfg.RevealDelayBlocks,
		PollInterval:  a.cfg.BlockPollInterval(),
		Store:         state,
		NextGame: func(ctx context.Context, previous uint64) (uint64, error) {
			return adminsync.NextActivation(ctx, a.gateway, previous, adminsync.NextGameWatch)
		},
		Progress: func(remaining uint64) {
			a.printf("waiting for %d more block(s) before reveal\n", remaining)
		},
	}), nil
}

// gameID resolves -game, then the last game played, then the active game.
func (a *app) gameID(ctx context.Context, flagged uint64) (uint64, error) {
	if flagged > 0 {
		return flagged, nil
	}
	if state, err := a.clientState(); err == nil && a.key != nil {
		if last, err := state.LastGame(a.address()); err == nil && last > 0 {
			return last, nil
		}
	}
	return a.activeGameID(ctx)
}

func (a *app) activeGameID(ctx context.Context) (uint64, error) {
	current, err := a.api.CurrentGame(ctx)
	if err != nil {
		return 0, err
	}
	if current.OnchainGameID == nil {
		return 0, errors.New("active game is not linked onchain")
	}
	return *current.OnchainGameID, nil
}

func (a *app) rememberGame(gameID uint64) {
	if state, err := a.clientState(); err == nil {
		_ = state.SetLastGame(a.address(), gameID)
	}
}

func (a *app) report(p *protocol.Protocol) {
	snap := p.Snapshot()
	a.printf("state: %s\n", snap)
	if snap.Message != "" {
		a.printf("%s\n", snap.Message)
	}
}

func runStatus(ctx context.Context, a *app, args []string) error {
	current, err := a.api.CurrentGame(ctx)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		a.printf("no active game\n")
		return nil
	}
	if err != nil {
		return err
	}
	onchain := "unlinked"
	if current.OnchainGameID != nil {
		onchain = fmt.Sprint(*current.OnchainGameID)
	}
	a.printf("game %s (image %d): %d/%d pixels revealed, pool %s ETH, %d guesses from %d players\n",
		onchain, current.ImageID, current.RevealedPixels, current.TotalPixels,
		current.PoolAmount, current.GuessesCount, current.ParticipantsCount)
	for i, hint := range current.Hints {
		a.printf("hint %d: %s\n", i+1, hint)
	}
	return nil
}

func runGuess(ctx context.Context, a *app, args []string) error {
	var flagged uint64
	fs := flag.NewFlagSet("guess", flag.ContinueOnError)
	fs.Uint64Var(&flagged, "game", 0, "onchain game id (default: active game)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	guess := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(guess) == "" {
		return protocol.ErrEmptyGuess
	}
	gameID := flagged
	if gameID == 0 {
		var err error
		if gameID, err = a.activeGameID(ctx); err != nil {
			return err
		}
	}
	p, err := a.protocol(ctx)
	if err != nil {
		return err
	}
	a.rememberGame(gameID)
	result, err := p.Play(ctx, gameID, guess)
	a.report(p)
	if errors.Is(err, protocol.ErrMirrorLagging) {
		a.printf("the win is onchain; run `pixpot resume` to finish recording it\n")
		return nil
	}
	if err != nil {
		return err
	}
	if result.Declare != nil {
		a.printf("winner declared in %s, pool %s ETH\n", result.Declare.TxHash.Hex(), result.Declare.PoolAmount)
		if result.Declare.NextGameID > 0 {
			a.printf("next game %d is active\n", result.Declare.NextGameID)
		}
	}
	return nil
}

func (a *app) recovered(ctx context.Context, args []string, name string) (*protocol.Protocol, error) {
	var flagged uint64
	if err := parseFlags(name, args, func(fs *flag.FlagSet) {
		fs.Uint64Var(&flagged, "game", 0, "onchain game id (default: last played)")
	}); err != nil {
		return nil, err
	}
	gameID, err := a.gameID(ctx, flagged)
	if err != nil {
		return nil, err
	}
	p, err := a.protocol(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Recover(ctx, gameID); err != nil {
		return nil, err
	}
	return p, nil
}

func runRecover(ctx context.Context, a *app, args []string) error {
	p, err := a.recovered(ctx, args, "recover")
	if err != nil {
		return err
	}
	a.report(p)
	return nil
}

func runCancel(ctx context.Context, a *app, args []string) error {
	p, err := a.recovered(ctx, args, "cancel")
	if err != nil {
		return err
	}
	if err := p.Cancel(ctx); err != nil {
		return err
	}
	a.report(p)
	return nil
}

func runDeclare(ctx context.Context, a *app, args []string) error {
	p, err := a.recovered(ctx, args, "declare")
	if err != nil {
		return err
	}
	outcome, err := p.Declare(ctx)
	a.report(p)
	if errors.Is(err, protocol.ErrMirrorLagging) {
		a.printf("the win is onchain; run `pixpot resume` to finish recording it\n")
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("winner declared in %s, pool %s ETH\n", outcome.TxHash.Hex(), outcome.PoolAmount)
	return nil
}

func runSkip(ctx context.Context, a *app, args []string) error {
	p, err := a.recovered(ctx, args, "skip")
	if err != nil {
		return err
	}
	if err := p.Skip(); err != nil {
		return err
	}
	a.report(p)
	return nil
}

// runResume finishes whatever a previous run left behind: a pending
// declaration is declared, a lagging mirror is retried.
func runResume(ctx context.Context, a *app, args []string) error {
	p, err := a.recovered(ctx, args, "resume")
	if err != nil {
		return err
	}
	snap := p.Snapshot()
	switch {
	case snap.MirrorPending:
		_, err = p.RetryMirror(ctx)
	case snap.State == protocol.StateWinnerPending:
		_, err = p.Declare(ctx)
	default:
		err = protocol.ErrNothingToResume
	}
	a.report(p)
	return err
}

func runRevealPixel(ctx context.Context, a *app, args []string) error {
	var index int
	if err := parseFlags("reveal-pixel", args, func(fs *flag.FlagSet) {
		fs.IntVar(&index, "index", -1, "pixel index")
	}); err != nil {
		return err
	}
	if err := a.requireSigner(); err != nil {
		return err
	}
	current, err := a.api.CurrentGame(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= current.TotalPixels {
		return fmt.Errorf("index must be between 0 and %d", current.TotalPixels-1)
	}
	if current.OnchainGameID == nil {
		return errors.New("active game is not linked onchain")
	}
	txHash, err := a.gateway.RevealPixels(ctx, *current.OnchainGameID, 1)
	if err != nil {
		return err
	}
	if _, err := a.gateway.WaitMined(ctx, txHash); err != nil {
		return err
	}
	result, err := a.api.RevealPixel(ctx, index, a.address(), txHash)
	if errors.Is(err, apiclient.ErrAlreadyRevealed) {
		a.printf("pixel %d was just revealed by another player (%s); your contribution still counts\n", index, result.Color)
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("pixel %d is %s (tx %s)\n", result.Index, result.Color, txHash.Hex())
	return nil
}

var _ protocol.Chain = (*chain.Gateway)(nil)
