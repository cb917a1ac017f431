package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"pixpot/internal/apiclient"
	"pixpot/internal/chain"
	"pixpot/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// send submits a transaction, waits for it and prints done.
func (a *app) send(ctx context.Context, done string, submit func() (common.Hash, error)) error {
	if err := a.requireSigner(); err != nil {
		return err
	}
	hash, err := a.submit(ctx, submit)
	if err != nil {
		return err
	}
	a.printf("%s (tx %s)\n", done, hash.Hex())
	return nil
}

func (a *app) submit(ctx context.Context, submit func() (common.Hash, error)) (common.Hash, error) {
	hash, err := submit()
	if err != nil {
		return common.Hash{}, err
	}
	a.printf("sent %s, waiting for confirmation\n", hash.Hex())
	if _, err := a.gateway.WaitMined(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

// readRaster decodes a PNG or JPEG into packed RGB bytes.
func readRaster(path string) ([]byte, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	bounds := img.Bounds()
	raster := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			raster = append(raster, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return raster, bounds.Dx(), bounds.Dy(), nil
}

func (a *app) nextGameID(ctx context.Context) (uint64, error) {
	ids, err := a.gateway.GetAllGameIDs(ctx)
	if err != nil {
		return 0, err
	}
	var highest uint64
	for _, id := range ids {
		if id > highest {
			highest = id
		}
	}
	return highest + 1, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func runAdminCreate(ctx context.Context, a *app, args []string) error {
	var (
		path, answer, name, pool string
		hints                    [3]string
		gameID                   uint64
		activate                 bool
	)
	if err := parseFlags("admin-create", args, func(fs *flag.FlagSet) {
		fs.StringVar(&path, "image", "", "PNG or JPEG to hide")
		fs.StringVar(&answer, "answer", "", "answer; separate alternatives with |")
		fs.StringVar(&name, "name", "", "display name (default: file name)")
		fs.StringVar(&pool, "pool", "0", "initial pool in ETH")
		fs.StringVar(&hints[0], "hint0", "", "hint shown from the start")
		fs.StringVar(&hints[1], "hint1000", "", "hint shown after 1000 reveals")
		fs.StringVar(&hints[2], "hint2000", "", "hint shown after 2000 reveals")
		fs.Uint64Var(&gameID, "game", 0, "onchain game id (default: next free id)")
		fs.BoolVar(&activate, "activate", false, "activate the game once created")
	}); err != nil {
		return err
	}
	if err := a.requireSigner(); err != nil {
		return err
	}
	accepted := game.AcceptedAnswers(answer)
	if path == "" || len(accepted) == 0 {
		return errors.New("-image and -answer are required")
	}
	poolWei, err := chain.ToWei(pool)
	if err != nil {
		return err
	}
	raster, width, height, err := readRaster(path)
	if err != nil {
		return err
	}
	if gameID == 0 {
		if gameID, err = a.nextGameID(ctx); err != nil {
			return err
		}
	}

	secret := uuid.NewString()
	commit := chain.CommitHash(accepted[0], secret)
	imageHash := crypto.Keccak256Hash(raster).Hex()
	if _, err := a.submit(ctx, func() (common.Hash, error) {
		return a.gateway.CreateGame(ctx, gameID, imageHash, commit, uint64(width*height), poolWei)
	}); err != nil {
		return err
	}

	filename := filepath.Base(path)
	if name == "" {
		name = filename
	}
	imageID, err := a.api.CreateImage(ctx, apiclient.CreateImageRequest{
		Filename:      filename,
		OriginalName:  name,
		Width:         width,
		Height:        height,
		PixelData:     base64.StdEncoding.EncodeToString(raster),
		Answer:        answer,
		Hint0:         optional(hints[0]),
		Hint1000:      optional(hints[1]),
		Hint2000:      optional(hints[2]),
		PoolAmount:    &pool,
		AdminSecret:   &secret,
		OnchainGameID: &gameID,
	})
	if err != nil {
		return fmt.Errorf("%w: game %d exists onchain but the upload failed: %w", errMirrorLagging, gameID, err)
	}
	a.printf("created game %d (image %d, %dx%d)\n", gameID, imageID, width, height)
	if !activate {
		return nil
	}
	return a.activate(ctx, gameID)
}

func (a *app) activate(ctx context.Context, gameID uint64) error {
	tx, err := a.submit(ctx, func() (common.Hash, error) {
		return a.gateway.SetActiveGame(ctx, gameID)
	})
	if err != nil {
		return err
	}
	onchain, err := a.gateway.GetGame(ctx, gameID)
	if err != nil {
		return lagging("activation", gameID, tx, fmt.Sprintf("pixpot admin-mirror -game %d", gameID), err)
	}
	activation, err := mirrorActivation(ctx, a.api, gameID, chain.FromWei(onchain.PoolAmount), tx)
	if err != nil {
		return err
	}
	a.printf("game %d active with pool %s ETH\n", gameID, activation.PoolAmount)
	return nil
}

func runAdminActivate(ctx context.Context, a *app, args []string) error {
	gameID, err := gameFlag("admin-activate", args)
	if err != nil {
		return err
	}
	if err := a.requireSigner(); err != nil {
		return err
	}
	return a.activate(ctx, gameID)
}

func runAdminDelete(ctx context.Context, a *app, args []string) error {
	gameID, err := gameFlag("admin-delete", args)
	if err != nil {
		return err
	}
	if err := a.requireSigner(); err != nil {
		return err
	}
	tx, err := a.submit(ctx, func() (common.Hash, error) {
		return a.gateway.DeleteGame(ctx, gameID)
	})
	if err != nil {
		return err
	}
	a.printf("game %d deleted onchain (tx %s)\n", gameID, tx.Hex())
	return mirrorDeletion(ctx, a.api, gameID, tx)
}

func runAdminDeposit(ctx context.Context, a *app, args []string) error {
	var (
		gameID uint64
		amount string
	)
	if err := parseFlags("admin-deposit", args, func(fs *flag.FlagSet) {
		fs.Uint64Var(&gameID, "game", 0, "onchain game id")
		fs.StringVar(&amount, "amount", "", "amount in ETH")
	}); err != nil {
		return err
	}
	wei, err := chain.ToWei(amount)
	if err != nil {
		return err
	}
	if gameID == 0 || wei.Sign() == 0 {
		return errors.New("-game and a positive -amount are required")
	}
	return a.send(ctx, fmt.Sprintf("deposited %s ETH into game %d", amount, gameID), func() (common.Hash, error) {
		return a.gateway.DepositToPool(ctx, gameID, wei)
	})
}

func runAdminWithdraw(ctx context.Context, a *app, args []string) error {
	var amount string
	if err := parseFlags("admin-withdraw", args, func(fs *flag.FlagSet) {
		fs.StringVar(&amount, "amount", "", "amount in ETH")
	}); err != nil {
		return err
	}
	wei, err := chain.ToWei(amount)
	if err != nil {
		return err
	}
	return a.send(ctx, fmt.Sprintf("withdrew %s ETH", amount), func() (common.Hash, error) {
		return a.gateway.Withdraw(ctx, wei)
	})
}

func runAdminDistribute(ctx context.Context, a *app, args []string) error {
	gameID, err := gameFlag("admin-distribute", args)
	if err != nil {
		return err
	}
	return a.send(ctx, fmt.Sprintf("revealer prizes for game %d distributed", gameID), func() (common.Hash, error) {
		return a.gateway.ClaimRevealerPrizes(ctx, gameID)
	})
}
