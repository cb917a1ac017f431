package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"

	"pixpot/internal/apiclient"
	"pixpot/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

// errMirrorLagging marks an admin write that confirmed onchain while the API
// copy was not updated. admin-mirror replays the API side only.
var errMirrorLagging = errors.New("API is behind the chain")

type mirrorAPI interface {
	Activate(ctx context.Context, req apiclient.ActivateRequest) (*apiclient.Activation, error)
	DeleteGame(ctx context.Context, onchainGameID uint64) error
}

func lagging(action string, gameID uint64, tx common.Hash, retry string, err error) error {
	confirmed := "confirmed onchain"
	if tx != (common.Hash{}) {
		confirmed += " in tx " + tx.Hex()
	}
	return fmt.Errorf("%w: %s of game %d %s; run %q to retry: %w", errMirrorLagging, action, gameID, confirmed, retry, err)
}

func mirrorActivation(ctx context.Context, api mirrorAPI, gameID uint64, pool string, tx common.Hash) (*apiclient.Activation, error) {
	activation, err := api.Activate(ctx, apiclient.ActivateRequest{OnchainGameID: &gameID, PoolAmount: &pool})
	if err != nil {
		return nil, lagging("activation", gameID, tx, fmt.Sprintf("pixpot admin-mirror -game %d", gameID), err)
	}
	return activation, nil
}

// mirrorDeletion removes the API copy. A game the API never had is already consistent.
func mirrorDeletion(ctx context.Context, api mirrorAPI, gameID uint64, tx common.Hash) error {
	err := api.DeleteGame(ctx, gameID)
	if err == nil || apiclient.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return lagging("deletion", gameID, tx, fmt.Sprintf("pixpot admin-mirror -game %d -delete", gameID), err)
}

func runAdminMirror(ctx context.Context, a *app, args []string) error {
	var (
		gameID  uint64
		deleted bool
	)
	if err := parseFlags("admin-mirror", args, func(fs *flag.FlagSet) {
		fs.Uint64Var(&gameID, "game", 0, "onchain game id")
		fs.BoolVar(&deleted, "delete", false, "mirror a deletion instead of an activation")
	}); err != nil {
		return err
	}
	if gameID == 0 {
		return errors.New("-game is required")
	}
	if deleted {
		if err := mirrorDeletion(ctx, a.api, gameID, common.Hash{}); err != nil {
			return err
		}
		a.printf("game %d removed from the API\n", gameID)
		return nil
	}
	onchain, err := a.gateway.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !onchain.IsActive {
		return fmt.Errorf("game %d is not active onchain", gameID)
	}
	activation, err := mirrorActivation(ctx, a.api, gameID, chain.FromWei(onchain.PoolAmount), common.Hash{})
	if err != nil {
		return err
	}
	a.printf("game %d active with pool %s ETH\n", gameID, activation.PoolAmount)
	return nil
}
