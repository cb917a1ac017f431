// Package protocol drives one wallet through the commit-reveal guess flow:
// commit, wait for the block delay, reveal, verify and declare the winner.
package protocol

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"pixpot/internal/chain"
	"pixpot/internal/game"
	"pixpot/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	DefaultRequiredDelay  = 2
	DefaultPollInterval   = 3 * time.Second
	defaultMirrorAttempts = 3
	defaultMirrorBackoff  = time.Second
	secretBytes           = 16
)

var (
	ErrNotAuthenticated = errors.New("wallet not connected")
	ErrNoActiveGame     = errors.New("no active game")
	ErrEmptyGuess       = errors.New("guess is empty")
	ErrAlreadyCommitted = errors.New("a guess is already committed for this game")
	ErrCancelNotAllowed = errors.New("only a recovered commit without its secret can be cancelled")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrRevealTooEarly   = errors.New("reveal delay has not elapsed")
	ErrNoSecret         = errors.New("commit secret is not available")
	ErrMissingSecret    = errors.New("verifier returned no admin secret for a correct guess")
	ErrMirrorLagging    = errors.New("onchain transaction succeeded but the database mirror lags")
	ErrNothingToResume  = errors.New("nothing to resume")
)

// Chain is the subset of the contract gateway the protocol calls.
type Chain interface {
	From() common.Address
	BlockNumber(ctx context.Context) (uint64, error)
	GetGame(ctx context.Context, gameID uint64) (*chain.Game, error)
	GetUserCommit(ctx context.Context, gameID uint64, user common.Address) (*chain.UserCommit, error)
	CommitGuess(ctx context.Context, gameID uint64, commitHash common.Hash, fee *big.Int) (common.Hash, error)
	RevealGuess(ctx context.Context, gameID uint64, guess, secret string) (common.Hash, error)
	CancelCommit(ctx context.Context, gameID uint64) (common.Hash, error)
	DeclareWinner(ctx context.Context, gameID uint64, answer, adminSecret string) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*chain.Receipt, error)
}

type VerifyRequest struct {
	GameID  uint64
	Guess   string
	Address string
	TxHash  common.Hash
}

type Verdict struct {
	Correct     bool
	AdminSecret string
	// Answer is the committed answer to declare; empty means the guess itself.
	Answer string
}

type GuessReport struct {
	GameID      uint64
	Address     string
	Guess       string
	Correct     bool
	PoolAmount  string
	TxHash      common.Hash
	AdminSecret string
}

// Backend is the database side: the verifier and the guess log.
type Backend interface {
	VerifyGuess(ctx context.Context, req VerifyRequest) (*Verdict, error)
	RecordGuess(ctx context.Context, report GuessReport) error
}

// DeclarationStore keeps pending declarations across restarts. Load returns
// nil, nil when nothing is stored.
type DeclarationStore interface {
	SaveDeclaration(decl Declaration) error
	LoadDeclaration(address string, gameID uint64) (*Declaration, error)
	DeleteDeclaration(address string, gameID uint64) error
}

type Options struct {
	Fee            *big.Int
	RequiredDelay  uint64
	PollInterval   time.Duration
	MirrorAttempts int
	MirrorBackoff  time.Duration
	Store          DeclarationStore
	// NextGame is called after a completed win to find the next active game.
	NextGame func(ctx context.Context, previous uint64) (uint64, error)
	// Progress receives the remaining block count while waiting to reveal.
	Progress func(remaining uint64)
	Secret   func() (string, error)
}

type RevealOutcome struct {
	TxHash   common.Hash
	Correct  bool
	Recorded bool
}

type DeclareOutcome struct {
	TxHash        common.Hash
	PoolAmount    string
	MirrorPending bool
	NextGameID    uint64
}

type PlayResult struct {
	Reveal  *RevealOutcome
	Declare *DeclareOutcome
}

type Protocol struct {
	chain   Chain
	backend Backend
	opts    Options
	address string
	log     *zap.SugaredLogger

	// run serializes operations; mu guards the fields below for Snapshot.
	run sync.Mutex
	mu  sync.Mutex

	state       State
	gameID      uint64
	commit      *commitInfo
	revealTx    common.Hash
	declaration *Declaration
	mirror      *GuessReport
	message     string
}

func New(contract Chain, backend Backend, opts Options) *Protocol {
	if opts.Fee == nil {
		opts.Fee = new(big.Int)
	}
	if opts.RequiredDelay == 0 {
		opts.RequiredDelay = DefaultRequiredDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MirrorAttempts <= 0 {
		opts.MirrorAttempts = defaultMirrorAttempts
	}
	if opts.MirrorBackoff <= 0 {
		opts.MirrorBackoff = defaultMirrorBackoff
	}
	if opts.Secret == nil {
		opts.Secret = newSecret
	}
	p := &Protocol{
		chain:   contract,
		backend: backend,
		opts:    opts,
		state:   StateIdle,
		log:     logger.Named("protocol"),
	}
	if from := contract.From(); from != (common.Address{}) {
		p.address = game.NormalizeAddress(from.Hex())
	}
	return p
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (p *Protocol) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{
		State:              p.state,
		Address:            p.address,
		GameID:             p.gameID,
		RevealTx:           p.revealTx,
		PendingDeclaration: p.declaration != nil,
		MirrorPending:      p.mirror != nil,
		Message:            p.message,
	}
	if p.commit != nil {
		snap.CommitHash = p.commit.hash
		snap.CommitTx = p.commit.tx
		snap.CommitBlock = p.commit.block
		snap.HasSecret = p.commit.hasSecret()
		snap.Recovered = p.commit.recovered
	}
	if p.declaration != nil {
		snap.DeclareTx = p.declaration.DeclareTx
	}
	return snap
}

func (p *Protocol) current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// transition moves to the next state and applies field changes atomically.
// Entering Idle drops all round data.
func (p *Protocol) transition(to State, apply func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !canTransition(p.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, p.state, to)
	}
	p.log.Debugw("state change", "from", p.state, "to", to, "game_id", p.gameID)
	p.state = to
	if to == StateIdle {
		p.commit = nil
		p.revealTx = common.Hash{}
		p.declaration = nil
		p.mirror = nil
	}
	if apply != nil {
		apply()
	}
	return nil
}

// fail returns to a stable state and records the display message for err.
func (p *Protocol) fail(to State, err error) error {
	if terr := p.transition(to, func() { p.message = describe(err) }); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

// note records err without leaving the current state.
func (p *Protocol) note(err error) error {
	p.mu.Lock()
	p.message = describe(err)
	p.mu.Unlock()
	return err
}

func describe(err error) string {
	var revert *chain.RevertError
	switch {
	case errors.As(err, &revert):
		return revert.UserMessage()
	case errors.Is(err, chain.ErrUserRejected):
		return "Transaction cancelled."
	case errors.Is(err, chain.ErrChainTimeout):
		return "Transaction is taking longer than expected. Check again before retrying."
	default:
		return err.Error()
	}
}

func isRevert(err error) bool {
	var revert *chain.RevertError
	return errors.As(err, &revert)
}

// Submit commits keccak(guess || secret) for gameID and waits for the commit
// to be mined.
func (p *Protocol) Submit(ctx context.Context, gameID uint64, guess string) error {
	p.run.Lock()
	defer p.run.Unlock()

	if p.address == "" {
		return ErrNotAuthenticated
	}
	if gameID == 0 {
		return ErrNoActiveGame
	}
	normalized := game.NormalizeGuess(guess)
	if normalized == "" {
		return ErrEmptyGuess
	}
	secret, err := p.opts.Secret()
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	commit := &commitInfo{hash: chain.CommitHash(normalized, secret), guess: normalized, secret: secret}
	if err := p.transition(StateCommitting, func() {
		p.gameID = gameID
		p.commit = commit
		p.revealTx = common.Hash{}
		p.declaration = nil
		p.mirror = nil
		p.message = ""
	}); err != nil {
		return err
	}

	tx, err := p.chain.CommitGuess(ctx, gameID, commit.hash, p.opts.Fee)
	if err != nil {
		return p.fail(StateIdle, commitError(err))
	}
	if err := p.transition(StateAwaitingConfirm, func() { commit.tx = tx }); err != nil {
		return err
	}
	p.log.Infow("guess committed", "game_id", gameID, "tx", tx.Hex(), "address", p.address)
	return p.confirmCommit(ctx)
}

func commitError(err error) error {
	if chain.IsRevert(err, "already committed") {
		return fmt.Errorf("%w: %w", ErrAlreadyCommitted, err)
	}
	return err
}

func (p *Protocol) confirmCommit(ctx context.Context) error {
	receipt, err := p.chain.WaitMined(ctx, p.commit.tx)
	if err != nil {
		if isRevert(err) {
			return p.fail(StateIdle, commitError(err))
		}
		return p.note(err)
	}
	return p.transition(StateAwaitingBlockDelay, func() { p.commit.block = receipt.BlockNumber })
}

// WaitForReveal polls the chain height until the reveal delay has elapsed.
// It does not hold the operation lock, so Cancel may run meanwhile; the wait
// then ends with ErrInvalidState.
func (p *Protocol) WaitForReveal(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateAwaitingBlockDelay || p.commit == nil {
		p.mu.Unlock()
		return ErrInvalidState
	}
	commit := p.commit
	target := commit.block + p.opts.RequiredDelay
	p.mu.Unlock()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		still := p.state == StateAwaitingBlockDelay && p.commit == commit
		p.mu.Unlock()
		if !still {
			return ErrInvalidState
		}

		height, err := p.chain.BlockNumber(ctx)
		if err != nil {
			p.log.Warnw("read block number", "error", err)
		} else {
			if height >= target {
				return nil
			}
			if p.opts.Progress != nil {
				p.opts.Progress(target - height)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reveal discloses the committed guess onchain and asks the verifier whether
// it is correct. A correct guess moves to WinnerPending.
func (p *Protocol) Reveal(ctx context.Context) (*RevealOutcome, error) {
	p.run.Lock()
	defer p.run.Unlock()

	if p.current() != StateAwaitingBlockDelay {
		return nil, ErrInvalidState
	}
	commit := p.commit
	if !commit.hasSecret() {
		return nil, ErrNoSecret
	}
	height, err := p.chain.BlockNumber(ctx)
	if err != nil {
		return nil, p.note(err)
	}
	if target := commit.block + p.opts.RequiredDelay; height < target {
		return nil, fmt.Errorf("%w: %d blocks remaining", ErrRevealTooEarly, target-height)
	}
	if err := p.transition(StateRevealing, nil); err != nil {
		return nil, err
	}

	tx, err := p.chain.RevealGuess(ctx, p.gameID, commit.guess, commit.secret)
	if err != nil {
		if isRevert(err) && !chain.IsRevert(err, "too early") {
			return nil, p.fail(StateIdle, err)
		}
		return nil, p.fail(StateAwaitingBlockDelay, err)
	}
	p.mu.Lock()
	p.revealTx = tx
	p.mu.Unlock()
	p.log.Infow("guess revealed", "game_id", p.gameID, "tx", tx.Hex(), "address", p.address)
	return p.confirmReveal(ctx)
}

func (p *Protocol) confirmReveal(ctx context.Context) (*RevealOutcome, error) {
	if _, err := p.chain.WaitMined(ctx, p.revealTx); err != nil {
		if isRevert(err) {
			return nil, p.fail(StateIdle, err)
		}
		return nil, p.note(err)
	}
	if err := p.transition(StateVerifying, nil); err != nil {
		return nil, err
	}
	return p.verify(ctx)
}

func (p *Protocol) verify(ctx context.Context) (*RevealOutcome, error) {
	guess := p.commit.guess
	verdict, err := p.backend.VerifyGuess(ctx, VerifyRequest{
		GameID:  p.gameID,
		Guess:   guess,
		Address: p.address,
		TxHash:  p.revealTx,
	})
	if err != nil {
		return nil, p.note(fmt.Errorf("verify guess: %w", err))
	}
	outcome := &RevealOutcome{TxHash: p.revealTx, Correct: verdict.Correct}

	if verdict.Correct {
		if verdict.AdminSecret == "" {
			return nil, p.note(ErrMissingSecret)
		}
		declared := guess
		if verdict.Answer != "" {
			declared = verdict.Answer
		}
		decl := &Declaration{
			Address:     p.address,
			GameID:      p.gameID,
			Guess:       declared,
			AdminSecret: verdict.AdminSecret,
			RevealTx:    p.revealTx,
			CreatedAt:   time.Now().UTC(),
		}
		p.saveDeclaration(decl)
		if err := p.transition(StateWinnerPending, func() { p.declaration = decl }); err != nil {
			return nil, err
		}
		p.log.Infow("correct guess verified", "game_id", p.gameID, "address", p.address)
		return outcome, nil
	}

	err = p.recordWithRetry(ctx, GuessReport{
		GameID:  p.gameID,
		Address: p.address,
		Guess:   guess,
		TxHash:  p.revealTx,
	})
	if err != nil {
		p.log.Warnw("record wrong guess", "game_id", p.gameID, "error", err)
	}
	outcome.Recorded = err == nil
	if err := p.transition(StateIdle, func() { p.message = "Incorrect guess." }); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (p *Protocol) saveDeclaration(decl *Declaration) {
	if p.opts.Store == nil {
		return
	}
	if err := p.opts.Store.SaveDeclaration(*decl); err != nil {
		p.log.Warnw("persist pending declaration", "game_id", decl.GameID, "error", err)
	}
}

func (p *Protocol) clearDeclaration(decl *Declaration) {
	if p.opts.Store == nil || decl == nil {
		return
	}
	if err := p.opts.Store.DeleteDeclaration(decl.Address, decl.GameID); err != nil {
		p.log.Warnw("clear pending declaration", "game_id", decl.GameID, "error", err)
	}
}

// Declare sends declareWinner for the pending declaration, then mirrors the
// win into the database. Rejections and reverts return to WinnerPending.
func (p *Protocol) Declare(ctx context.Context) (*DeclareOutcome, error) {
	p.run.Lock()
	defer p.run.Unlock()

	if p.current() != StateWinnerPending || p.declaration == nil {
		return nil, ErrInvalidState
	}
	decl := p.declaration
	if err := p.transition(StateDeclaringWinner, func() { p.message = "" }); err != nil {
		return nil, err
	}
	tx, err := p.chain.DeclareWinner(ctx, decl.GameID, decl.Guess, decl.AdminSecret)
	if err != nil {
		return nil, p.fail(StateWinnerPending, err)
	}
	p.mu.Lock()
	decl.DeclareTx = tx
	p.mu.Unlock()
	p.saveDeclaration(decl)
	p.log.Infow("winner declaration sent", "game_id", decl.GameID, "tx", tx.Hex())
	return p.confirmDeclare(ctx)
}

func (p *Protocol) confirmDeclare(ctx context.Context) (*DeclareOutcome, error) {
	decl := p.declaration
	if _, err := p.chain.WaitMined(ctx, decl.DeclareTx); err != nil {
		if isRevert(err) {
			p.mu.Lock()
			decl.DeclareTx = common.Hash{}
			p.mu.Unlock()
			p.saveDeclaration(decl)
			return nil, p.fail(StateWinnerPending, err)
		}
		return nil, p.note(err)
	}
	return p.mirrorWin(ctx, decl)
}

func (p *Protocol) mirrorWin(ctx context.Context, decl *Declaration) (*DeclareOutcome, error) {
	report := GuessReport{
		GameID:      decl.GameID,
		Address:     decl.Address,
		Guess:       decl.Guess,
		Correct:     true,
		TxHash:      decl.DeclareTx,
		AdminSecret: decl.AdminSecret,
	}
	outcome := &DeclareOutcome{TxHash: decl.DeclareTx}

	err := p.retry(ctx, func() error {
		if report.PoolAmount == "" {
			onchain, err := p.chain.GetGame(ctx, decl.GameID)
			if err != nil {
				return fmt.Errorf("read final pool: %w", err)
			}
			report.PoolAmount = chain.FromWei(onchain.PoolAmount)
		}
		return p.backend.RecordGuess(ctx, report)
	})
	outcome.PoolAmount = report.PoolAmount
	if err != nil {
		outcome.MirrorPending = true
		lagging := fmt.Errorf("%w: %w", ErrMirrorLagging, err)
		if terr := p.transition(StateCompleted, func() {
			p.mirror = &report
			p.message = describe(lagging)
		}); terr != nil {
			return nil, terr
		}
		p.log.Errorw("win mirror lagging", "game_id", decl.GameID, "tx", decl.DeclareTx.Hex(), "error", err)
		return outcome, lagging
	}
	if err := p.transition(StateCompleted, func() {
		p.mirror = nil
		p.declaration = nil
		p.message = "You won!"
	}); err != nil {
		return nil, err
	}
	p.clearDeclaration(decl)
	p.log.Infow("win mirrored", "game_id", decl.GameID, "pool", report.PoolAmount)
	outcome.NextGameID = p.nextGame(ctx, decl.GameID)
	return outcome, nil
}

func (p *Protocol) nextGame(ctx context.Context, previous uint64) uint64 {
	if p.opts.NextGame == nil {
		return 0
	}
	next, err := p.opts.NextGame(ctx, previous)
	if err != nil {
		p.log.Infow("next game not found", "previous", previous, "error", err)
		return 0
	}
	return next
}

// RetryMirror replays a lagging win mirror. The backend treats the same
// winning transaction as a no-op, so repeating it is safe.
func (p *Protocol) RetryMirror(ctx context.Context) (*DeclareOutcome, error) {
	p.run.Lock()
	defer p.run.Unlock()

	p.mu.Lock()
	report := p.mirror
	decl := p.declaration
	p.mu.Unlock()
	if p.current() != StateCompleted || report == nil {
		return nil, ErrInvalidState
	}
	outcome := &DeclareOutcome{TxHash: report.TxHash, PoolAmount: report.PoolAmount}
	if err := p.retry(ctx, func() error { return p.backend.RecordGuess(ctx, *report) }); err != nil {
		outcome.MirrorPending = true
		return outcome, p.note(fmt.Errorf("%w: %w", ErrMirrorLagging, err))
	}
	p.mu.Lock()
	p.mirror = nil
	p.declaration = nil
	p.message = "You won!"
	p.mu.Unlock()
	p.clearDeclaration(decl)
	outcome.NextGameID = p.nextGame(ctx, report.GameID)
	return outcome, nil
}

func (p *Protocol) recordWithRetry(ctx context.Context, report GuessReport) error {
	return p.retry(ctx, func() error { return p.backend.RecordGuess(ctx, report) })
}

func (p *Protocol) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.opts.MirrorAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.opts.MirrorAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(p.opts.MirrorBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// Skip abandons a pending declaration and resumes normal play.
func (p *Protocol) Skip() error {
	p.run.Lock()
	defer p.run.Unlock()

	if p.current() != StateWinnerPending {
		return ErrInvalidState
	}
	decl := p.declaration
	if err := p.transition(StateIdle, func() { p.message = "" }); err != nil {
		return err
	}
	p.clearDeclaration(decl)
	return nil
}

// Cancel withdraws an outstanding commit whose secret is lost.
func (p *Protocol) Cancel(ctx context.Context) error {
	p.run.Lock()
	defer p.run.Unlock()

	prior := p.current()
	if prior != StateAwaitingConfirm && prior != StateAwaitingBlockDelay {
		return ErrCancelNotAllowed
	}
	if p.commit.hasSecret() {
		return ErrCancelNotAllowed
	}
	if err := p.transition(StateCancelling, nil); err != nil {
		return err
	}
	tx, err := p.chain.CancelCommit(ctx, p.gameID)
	if err != nil {
		return p.fail(prior, err)
	}
	if _, err := p.chain.WaitMined(ctx, tx); err != nil {
		return p.fail(prior, err)
	}
	p.log.Infow("commit cancelled", "game_id", p.gameID, "tx", tx.Hex())
	return p.transition(StateIdle, func() { p.message = "Commit cancelled." })
}

// Recover rebuilds state after a restart: a stored declaration for gameID
// takes precedence, then any unrevealed commit read from the chain.
func (p *Protocol) Recover(ctx context.Context, gameID uint64) error {
	p.run.Lock()
	defer p.run.Unlock()

	if state := p.current(); state != StateIdle && state != StateCompleted {
		return ErrInvalidState
	}
	if p.address == "" {
		return ErrNotAuthenticated
	}
	if gameID == 0 {
		return ErrNoActiveGame
	}
	if p.current() == StateCompleted {
		if err := p.transition(StateIdle, nil); err != nil {
			return err
		}
	}

	restored, err := p.recoverDeclaration(ctx, gameID)
	if err != nil || restored {
		return err
	}

	commit, err := p.chain.GetUserCommit(ctx, gameID, p.chain.From())
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.gameID = gameID
	p.mu.Unlock()
	if !commit.Pending() {
		return nil
	}
	p.log.Infow("pending commit recovered", "game_id", gameID, "block", commit.BlockNumber)
	return p.transition(StateAwaitingBlockDelay, func() {
		p.commit = &commitInfo{hash: commit.CommitHash, block: commit.BlockNumber, recovered: true}
		p.message = "A pending guess was found but its secret is not available. Cancel it to guess again."
	})
}

func (p *Protocol) recoverDeclaration(ctx context.Context, gameID uint64) (bool, error) {
	if p.opts.Store == nil {
		return false, nil
	}
	decl, err := p.opts.Store.LoadDeclaration(p.address, gameID)
	if err != nil || decl == nil {
		return false, err
	}
	onchain, err := p.chain.GetGame(ctx, gameID)
	if err != nil {
		return false, err
	}
	switch {
	case onchain.HasWinner() && onchain.Winner == p.chain.From() && decl.DeclareTx != (common.Hash{}):
		report := &GuessReport{
			GameID:      decl.GameID,
			Address:     decl.Address,
			Guess:       decl.Guess,
			Correct:     true,
			PoolAmount:  chain.FromWei(onchain.PoolAmount),
			TxHash:      decl.DeclareTx,
			AdminSecret: decl.AdminSecret,
		}
		return true, p.transition(StateCompleted, func() {
			p.gameID = gameID
			p.declaration = decl
			p.mirror = report
			p.message = "Win declared onchain; database update pending."
		})
	case onchain.HasWinner() || !onchain.IsActive:
		p.clearDeclaration(decl)
		return false, nil
	default:
		return true, p.transition(StateWinnerPending, func() {
			p.gameID = gameID
			p.declaration = decl
			p.message = "You guessed correctly. Declare the win to claim the prize."
		})
	}
}

// Resume continues an operation interrupted by a timeout or transport error.
func (p *Protocol) Resume(ctx context.Context) error {
	p.run.Lock()
	defer p.run.Unlock()

	var err error
	switch state := p.current(); {
	case state == StateAwaitingConfirm && p.commit != nil:
		err = p.confirmCommit(ctx)
	case state == StateRevealing && p.revealTx != (common.Hash{}):
		_, err = p.confirmReveal(ctx)
	case state == StateVerifying:
		_, err = p.verify(ctx)
	case state == StateDeclaringWinner && p.declaration != nil && p.declaration.DeclareTx != (common.Hash{}):
		_, err = p.confirmDeclare(ctx)
	default:
		err = ErrNothingToResume
	}
	return err
}

// Play runs one full round: commit, wait, reveal and, when correct, declare.
func (p *Protocol) Play(ctx context.Context, gameID uint64, guess string) (*PlayResult, error) {
	if err := p.Submit(ctx, gameID, guess); err != nil {
		return nil, err
	}
	if err := p.WaitForReveal(ctx); err != nil {
		return nil, err
	}
	reveal, err := p.Reveal(ctx)
	if err != nil {
		return nil, err
	}
	result := &PlayResult{Reveal: reveal}
	if !reveal.Correct {
		return result, nil
	}
	result.Declare, err = p.Declare(ctx)
	return result, err
}
