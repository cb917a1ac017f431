package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
)

func runPrizes(ctx context.Context, a *app, args []string) error {
	var address string
	if err := parseFlags("prizes", args, func(fs *flag.FlagSet) {
		fs.StringVar(&address, "address", "", "wallet address (default: signer)")
	}); err != nil {
		return err
	}
	if address == "" {
		if err := a.requireSigner(); err != nil {
			return err
		}
		address = a.address()
	}
	winners, err := a.api.WinnerPrizes(ctx, address)
	if err != nil {
		return err
	}
	shares, err := a.api.RevealerShares(ctx, address)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tGAME\tNAME\tAMOUNT\tPOOL\tSTATUS")
	for _, prize := range winners {
		fmt.Fprintf(w, "winner\t%d\t%s\t%s\t%s\t%s\n", prize.GameID, prize.OriginalName, prize.WinnerAmount, prize.PoolAmount, claimStatus(prize.Claimed, prize.Unavailable))
	}
	for _, share := range shares {
		fmt.Fprintf(w, "revealer\t%d\t%s\t%s\t%s\t%s\n", share.GameID, share.OriginalName, share.RevealerAmount, share.PoolAmount, claimStatus(share.Claimed, share.Unavailable))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(winners) == 0 && len(shares) == 0 {
		a.printf("no prizes for %s\n", address)
	}
	return nil
}

func claimStatus(claimed, unavailable bool) string {
	switch {
	case unavailable:
		return "unavailable"
	case claimed:
		return "claimed"
	default:
		return "claimable"
	}
}

func gameFlag(name string, args []string) (uint64, error) {
	var gameID uint64
	if err := parseFlags(name, args, func(fs *flag.FlagSet) {
		fs.Uint64Var(&gameID, "game", 0, "onchain game id")
	}); err != nil {
		return 0, err
	}
	if gameID == 0 {
		return 0, errors.New("-game is required")
	}
	return gameID, nil
}

func runClaimWinner(ctx context.Context, a *app, args []string) error {
	gameID, err := gameFlag("claim-winner", args)
	if err != nil {
		return err
	}
	return a.send(ctx, "winner prize claimed", func() (common.Hash, error) {
		return a.gateway.ClaimWinnerPrize(ctx, gameID)
	})
}

func runClaimRevealer(ctx context.Context, a *app, args []string) error {
	gameID, err := gameFlag("claim-revealer", args)
	if err != nil {
		return err
	}
	return a.send(ctx, "revealer share claimed", func() (common.Hash, error) {
		return a.gateway.ClaimMyRevealerPrize(ctx, gameID)
	})
}
