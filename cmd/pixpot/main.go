// Command pixpot plays and administers PixPot from the terminal.
package main

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"pixpot/internal/apiclient"
	"pixpot/internal/chain"
	"pixpot/internal/clientstate"
	"pixpot/internal/config"
	"pixpot/internal/logger"

	"github.com/ethereum/go-ethereum/crypto"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"status":           {"show the active game", runStatus},
	"guess":            {"commit, reveal and declare a guess", runGuess},
	"recover":          {"restore protocol state from chain", runRecover},
	"cancel":           {"cancel a pending commit", runCancel},
	"declare":          {"declare a verified win", runDeclare},
	"skip":             {"abandon a pending declaration", runSkip},
	"resume":           {"finish an interrupted declaration or mirror", runResume},
	"reveal-pixel":     {"pay for and reveal one pixel", runRevealPixel},
	"prizes":           {"list winner prizes and revealer shares", runPrizes},
	"claim-winner":     {"claim a winner prize", runClaimWinner},
	"claim-revealer":   {"claim a revealer share", runClaimRevealer},
	"admin-create":     {"create a game onchain and upload its image", runAdminCreate},
	"admin-activate":   {"activate a game onchain and in the API", runAdminActivate},
	"admin-delete":     {"delete a game without a winner", runAdminDelete},
	"admin-mirror":     {"replay the API side of a confirmed activation or deletion", runAdminMirror},
	"admin-deposit":    {"add funds to a game pool", runAdminDeposit},
	"admin-withdraw":   {"withdraw contract funds", runAdminWithdraw},
	"admin-distribute": {"distribute revealer prizes for a game", runAdminDistribute},
}

func main() {
	yes := flag.Bool("yes", false, "send transactions without confirmation")
	envPath := flag.String("env", ".env", "dotenv file to load")
	flag.Usage = usage
	flag.Parse()

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Printf("failed to load %s: %v", *envPath, err)
	}
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, *yes)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := cmd.run(ctx, a, flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: pixpot [-yes] [-env .env] <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-17s %s\n", name, commands[name].usage)
	}
	flag.PrintDefaults()
}

type app struct {
	cfg      config.Config
	gateway  *chain.Gateway
	api      *apiclient.Client
	key      *ecdsa.PrivateKey
	stateDir string
	state    *clientstate.Store
	out      io.Writer
	in       *bufio.Reader
}

func newApp(ctx context.Context, cfg config.Config, yes bool) (*app, error) {
	a := &app{
		cfg:      cfg,
		api:      apiclient.New(cfg.APIURL),
		stateDir: cfg.StateDir,
		out:      os.Stdout,
		in:       bufio.NewReader(os.Stdin),
	}
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse PRIVATE_KEY: %w", err)
		}
		a.key = key
		a.api.WithAdminKey(key)
	}
	approve := a.confirm
	if yes {
		approve = nil
	}
	gateway, err := chain.Dial(ctx, cfg, cfg.PrivateKey, approve)
	if err != nil {
		return nil, fmt.Errorf("connect to chain: %w", err)
	}
	a.gateway = gateway
	return a, nil
}

func (a *app) Close() {
	if a.state != nil {
		_ = a.state.Close()
	}
	a.gateway.Close()
}

// clientState opens the local declaration store on first use.
func (a *app) clientState() (*clientstate.Store, error) {
	if a.state != nil {
		return a.state, nil
	}
	if err := os.MkdirAll(a.stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	state, err := clientstate.Open(filepath.Join(a.stateDir, "state"))
	if err != nil {
		return nil, err
	}
	a.state = state
	return state, nil
}

func (a *app) requireSigner() error {
	if a.key == nil {
		return chain.ErrNoSigner
	}
	return nil
}

func (a *app) address() string {
	return a.gateway.From().Hex()
}

// confirm is the transaction approver; declining surfaces as ErrUserRejected.
func (a *app) confirm(ctx context.Context, method string, value *big.Int) error {
	prompt := fmt.Sprintf("send %s", method)
	if value != nil && value.Sign() > 0 {
		prompt += fmt.Sprintf(" with %s ETH", chain.FromWei(value))
	}
	fmt.Fprintf(a.out, "%s? [y/N] ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return chain.ErrUserRejected
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func describe(err error) string {
	var revert *chain.RevertError
	switch {
	case errors.As(err, &revert):
		return revert.UserMessage()
	case errors.Is(err, chain.ErrUserRejected):
		return "Transaction cancelled."
	case errors.Is(err, chain.ErrChainTimeout):
		return "Transaction is taking longer than expected. Run resume once it confirms."
	default:
		return err.Error()
	}
}

func parseFlags(name string, args []string, define func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	define(fs)
	return fs.Parse(args)
}
