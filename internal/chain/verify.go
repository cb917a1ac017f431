package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Expectation describes the transaction a client claims to have sent.
type Expectation struct {
	From   common.Address
	Method string
	GameID uint64
}

// VerifiedTx is a mined, successful contract call with its decoded arguments.
type VerifiedTx struct {
	Hash        common.Hash
	From        common.Address
	BlockNumber uint64
	Method      string
	Args        []interface{}
}

// StringArg returns argument i when it is a string.
func (v *VerifiedTx) StringArg(i int) (string, bool) {
	if i < 0 || i >= len(v.Args) {
		return "", false
	}
	value, ok := v.Args[i].(string)
	return value, ok
}

// DecodeCall resolves calldata to a contract method and its arguments.
func DecodeCall(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, ErrWrongMethod
	}
	method, err := parsedABI.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrWrongMethod, err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrArgsMismatch, err)
	}
	return method.Name, args, nil
}

// VerifyTx checks that txHash succeeded, targeted this contract, came from
// want.From and called want.Method for want.GameID.
func (g *Gateway) VerifyTx(ctx context.Context, txHash common.Hash, want Expectation) (*VerifiedTx, error) {
	receipt, err := g.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, Classify(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}
	tx, pending, err := g.backend.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, Classify(err)
	}
	if pending {
		return nil, ErrTxNotFound
	}
	verified, err := checkTx(tx, g.address, want)
	if err != nil {
		return nil, err
	}
	if receipt.BlockNumber != nil {
		verified.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return verified, nil
}

func checkTx(tx *types.Transaction, contract common.Address, want Expectation) (*VerifiedTx, error) {
	if tx.To() == nil || *tx.To() != contract {
		return nil, ErrWrongContract
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongSender, err)
	}
	if from != want.From {
		return nil, ErrWrongSender
	}
	method, args, err := DecodeCall(tx.Data())
	if err != nil {
		return nil, err
	}
	if method != want.Method {
		return nil, fmt.Errorf("%w: got %s", ErrWrongMethod, method)
	}
	if len(args) == 0 {
		return nil, ErrArgsMismatch
	}
	gameID, ok := args[0].(*big.Int)
	if !ok || !gameID.IsUint64() || gameID.Uint64() != want.GameID {
		return nil, fmt.Errorf("%w: game id", ErrArgsMismatch)
	}
	return &VerifiedTx{Hash: tx.Hash(), From: from, Method: method, Args: args}, nil
}
