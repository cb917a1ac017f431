package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"pixpot/internal/config"
	"pixpot/internal/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	defaultReceiptTimeout = 20 * time.Second
	defaultReceiptPoll    = time.Second
)

// Backend is the node surface the gateway needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Approver confirms an outgoing transaction before it is signed. Returning an
// error cancels the send and surfaces as ErrUserRejected.
type Approver func(ctx context.Context, method string, value *big.Int) error

type Options struct {
	ChainID        *big.Int
	PrivateKey     string
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	Approve        Approver
}

// Gateway reads and writes the PixPot contract.
type Gateway struct {
	backend        Backend
	address        common.Address
	contract       *bind.BoundContract
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	receiptTimeout time.Duration
	pollInterval   time.Duration
	approve        Approver
	log            *zap.SugaredLogger
}

// Dial connects to RPC_URL and binds CONTRACT_ADDRESS. privateKey may be empty
// for read-only use.
func Dial(ctx context.Context, cfg config.Config, privateKey string, approve Approver) (*Gateway, error) {
	if cfg.RPCURL == "" || cfg.ContractAddress == "" {
		return nil, ErrNotConfigured
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return New(client, cfg.ContractAddress, Options{
		ChainID:        big.NewInt(cfg.ChainID),
		PrivateKey:     privateKey,
		ReceiptTimeout: cfg.ReceiptTimeout(),
		Approve:        approve,
	})
}

func New(backend Backend, contractAddress string, opts Options) (*Gateway, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	address := common.HexToAddress(contractAddress)
	g := &Gateway{
		backend:        backend,
		address:        address,
		contract:       bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		chainID:        opts.ChainID,
		receiptTimeout: opts.ReceiptTimeout,
		pollInterval:   opts.PollInterval,
		approve:        opts.Approve,
		log:            logger.Named("chain"),
	}
	if g.receiptTimeout <= 0 {
		g.receiptTimeout = defaultReceiptTimeout
	}
	if g.pollInterval <= 0 {
		g.pollInterval = defaultReceiptPoll
	}
	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.PrivateKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		if g.chainID == nil {
			return nil, errors.New("chain id required for signing")
		}
		g.key = key
		g.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return g, nil
}

// Close releases the underlying client when it supports closing.
func (g *Gateway) Close() {
	if closer, ok := g.backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (g *Gateway) Address() common.Address { return g.address }

// From is the signing account, zero when the gateway is read-only.
func (g *Gateway) From() common.Address { return g.from }

func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	height, err := g.backend.BlockNumber(ctx)
	return height, Classify(err)
}

func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, Classify(err))
	}
	return out, nil
}

func bigID(gameID uint64) *big.Int { return new(big.Int).SetUint64(gameID) }

func (g *Gateway) GetGame(ctx context.Context, gameID uint64) (*Game, error) {
	out, err := g.call(ctx, "getGame", bigID(gameID))
	if err != nil {
		return nil, err
	}
	return decodeGame(out)
}

func (g *Gateway) GetCurrentGame(ctx context.Context) (*CurrentGame, error) {
	out, err := g.call(ctx, "getCurrentGame")
	if err != nil {
		return nil, err
	}
	return decodeCurrentGame(out)
}

func (g *Gateway) CurrentGameID(ctx context.Context) (uint64, error) {
	out, err := g.call(ctx, "currentGameId")
	if err != nil {
		return 0, err
	}
	d := decoder{method: "currentGameId", out: out}
	value := toUint64(d.bigInt(0))
	return value, d.err
}

func (g *Gateway) GetAllGameIDs(ctx context.Context) ([]uint64, error) {
	out, err := g.call(ctx, "getAllGameIds")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllGameIds: expected 1 output, got %d", len(out))
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAllGameIds: unexpected output %T", out[0])
	}
	ids := make([]uint64, 0, len(raw))
	for _, value := range raw {
		ids = append(ids, toUint64(value))
	}
	return ids, nil
}

func (g *Gateway) GuessFee(ctx context.Context) (*big.Int, error) {
	return g.uintView(ctx, "guessFee")
}

func (g *Gateway) uintView(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := g.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	d := decoder{method: method, out: out}
	value := d.bigInt(0)
	return value, d.err
}

func (g *Gateway) GetUserCommit(ctx context.Context, gameID uint64, user common.Address) (*UserCommit, error) {
	out, err := g.call(ctx, "getUserCommit", bigID(gameID), user)
	if err != nil {
		return nil, err
	}
	return decodeUserCommit(out)
}

func (g *Gateway) GetUserContribution(ctx context.Context, gameID uint64, user common.Address) (*big.Int, error) {
	return g.uintView(ctx, "getUserContribution", bigID(gameID), user)
}

func (g *Gateway) GetUserPrize(ctx context.Context, gameID uint64, user common.Address) (*UserPrize, error) {
	out, err := g.call(ctx, "getUserPrize", bigID(gameID), user)
	if err != nil {
		return nil, err
	}
	return decodeUserPrize(out)
}

// Prizes reads the game-level prize record, keyed by the zero address.
func (g *Gateway) Prizes(ctx context.Context, gameID uint64) (*PrizeRecord, error) {
	out, err := g.call(ctx, "prizes", bigID(gameID), common.Address{})
	if err != nil {
		return nil, err
	}
	return decodePrizeRecord(out)
}

// Stats reads fee, split percentages and the contract balance.
func (g *Gateway) Stats(ctx context.Context) (*ContractStats, error) {
	fee, err := g.GuessFee(ctx)
	if err != nil {
		return nil, err
	}
	winner, err := g.uintView(ctx, "winnerPercentage")
	if err != nil {
		return nil, err
	}
	revealer, err := g.uintView(ctx, "revealerPercentage")
	if err != nil {
		return nil, err
	}
	balance, err := g.backend.BalanceAt(ctx, g.address, nil)
	if err != nil {
		return nil, Classify(err)
	}
	return &ContractStats{
		GuessFee:           fee,
		WinnerPercentage:   toUint64(winner),
		RevealerPercentage: toUint64(revealer),
		Balance:            balance,
	}, nil
}

func (g *Gateway) transact(ctx context.Context, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	if g.key == nil {
		return common.Hash{}, ErrNoSigner
	}
	if g.approve != nil {
		if err := g.approve(ctx, method, value); err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
	}
	opts, err := bind.NewKeyedTransactorWithChainID(g.key, g.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	opts.Context = ctx
	opts.Value = value
	tx, err := g.contract.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, Classify(err))
	}
	g.log.Infow("transaction sent", "method", method, "tx", tx.Hash().Hex(), "from", g.from.Hex())
	return tx.Hash(), nil
}

func (g *Gateway) CommitGuess(ctx context.Context, gameID uint64, commitHash common.Hash, fee *big.Int) (common.Hash, error) {
	return g.transact(ctx, MethodCommitGuess, fee, bigID(gameID), [32]byte(commitHash))
}

func (g *Gateway) RevealGuess(ctx context.Context, gameID uint64, guess, secret string) (common.Hash, error) {
	return g.transact(ctx, MethodRevealGuess, nil, bigID(gameID), guess, secret)
}

func (g *Gateway) CancelCommit(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodCancelCommit, nil, bigID(gameID))
}

func (g *Gateway) DeclareWinner(ctx context.Context, gameID uint64, answer, adminSecret string) (common.Hash, error) {
	return g.transact(ctx, MethodDeclareWinner, nil, bigID(gameID), answer, adminSecret)
}

func (g *Gateway) ClaimWinnerPrize(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodClaimWinnerPrize, nil, bigID(gameID))
}

func (g *Gateway) ClaimMyRevealerPrize(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodClaimMyRevealerPrize, nil, bigID(gameID))
}

// ClaimRevealerPrizes distributes the revealer pool of a completed game (admin).
func (g *Gateway) ClaimRevealerPrizes(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodClaimRevealerPrizes, nil, bigID(gameID))
}

func (g *Gateway) RevealPixels(ctx context.Context, gameID, count uint64) (common.Hash, error) {
	return g.transact(ctx, MethodRevealPixels, nil, bigID(gameID), new(big.Int).SetUint64(count))
}

func (g *Gateway) DepositToPool(ctx context.Context, gameID uint64, amount *big.Int) (common.Hash, error) {
	return g.transact(ctx, MethodDepositToPool, amount, bigID(gameID))
}

func (g *Gateway) Withdraw(ctx context.Context, amount *big.Int) (common.Hash, error) {
	return g.transact(ctx, MethodWithdraw, nil, amount)
}

func (g *Gateway) CreateGame(ctx context.Context, gameID uint64, imageHash string, answerCommit common.Hash, totalPixels uint64, initialPool *big.Int) (common.Hash, error) {
	return g.transact(ctx, MethodCreateGame, initialPool, bigID(gameID), imageHash, [32]byte(answerCommit), new(big.Int).SetUint64(totalPixels))
}

func (g *Gateway) SetActiveGame(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodSetActiveGame, nil, bigID(gameID))
}

func (g *Gateway) DeleteGame(ctx context.Context, gameID uint64) (common.Hash, error) {
	return g.transact(ctx, MethodDeleteGame, nil, bigID(gameID))
}

// WaitMined polls for the receipt of txHash until the receipt timeout. A
// mined but failed transaction returns its receipt and a *RevertError.
func (g *Gateway) WaitMined(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		raw, err := g.backend.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			receipt := toReceipt(raw)
			if !receipt.Success {
				return receipt, g.failureReason(ctx, txHash, raw.BlockNumber)
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			return nil, Classify(err)
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrChainTimeout, txHash.Hex())
		case <-ticker.C:
		}
	}
}

func toReceipt(raw *types.Receipt) *Receipt {
	receipt := &Receipt{
		TxHash:  raw.TxHash,
		Success: raw.Status == types.ReceiptStatusSuccessful,
		GasUsed: raw.GasUsed,
	}
	if raw.BlockNumber != nil {
		receipt.BlockNumber = raw.BlockNumber.Uint64()
	}
	return receipt
}

// failureReason replays a failed transaction at its block to recover the revert reason.
func (g *Gateway) failureReason(ctx context.Context, txHash common.Hash, block *big.Int) error {
	fallback := &RevertError{Reason: "transaction reverted"}
	tx, _, err := g.backend.TransactionByHash(ctx, txHash)
	if err != nil {
		return fallback
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return fallback
	}
	msg := ethereum.CallMsg{From: from, To: tx.To(), Gas: tx.Gas(), Value: tx.Value(), Data: tx.Data()}
	if _, err := g.backend.CallContract(ctx, msg, block); err != nil {
		var revert *RevertError
		if errors.As(Classify(err), &revert) {
			return revert
		}
	}
	return fallback
}
