package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrUserRejected  = errors.New("transaction cancelled")
	ErrChainTimeout  = errors.New("transaction confirmation timeout")
	ErrNoSigner      = errors.New("no signing key configured")
	ErrNotConfigured = errors.New("chain gateway not configured")
	ErrTxNotFound    = errors.New("transaction not found")
	ErrTxFailed      = errors.New("transaction failed")
	ErrWrongContract = errors.New("transaction not sent to PixPot contract")
	ErrWrongSender   = errors.New("transaction sender does not match")
	ErrWrongMethod   = errors.New("transaction does not call the expected method")
	ErrArgsMismatch  = errors.New("transaction arguments do not match")
	ErrInvalidAmount = errors.New("invalid amount")
)

// RevertError is a contract revert with its decoded reason string.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

var revertMessages = []struct {
	match   string
	message string
}{
	{"already committed", "You already have a pending guess. Please wait to reveal it."},
	{"too early", "Please wait for the reveal delay before revealing."},
	{"no commit", "No pending guess found for this game."},
	{"invalid reveal", "The revealed guess does not match your commit."},
	{"not active", "This game is not active."},
	{"exceeds total pixels", "All pixels are already revealed."},
	{"insufficient fee", "The transaction did not include the required fee."},
	{"incorrect fee", "The transaction did not include the required fee."},
	{"already claimed", "This prize was already claimed."},
	{"already distributed", "Revealer prizes were already distributed."},
	{"not completed", "The game is not completed yet."},
	{"game with a winner", "A game with a winner cannot be deleted."},
	{"does not exist", "The game does not exist onchain."},
	{"insufficient contract balance", "The contract balance is too low."},
	{"not the winner", "Only the winner can claim this prize."},
	{"incorrect answer", "The answer or admin secret was rejected by the contract."},
}

// UserMessage maps known revert reasons to display text; unknown reasons pass through.
func (e *RevertError) UserMessage() string {
	lower := strings.ToLower(e.Reason)
	for _, known := range revertMessages {
		if strings.Contains(lower, known.match) {
			return known.message
		}
	}
	if e.Reason == "" {
		return "Transaction failed."
	}
	return "Transaction failed: " + e.Reason
}

// IsRevert reports whether err is a contract revert whose reason contains match.
func IsRevert(err error, match string) bool {
	var revert *RevertError
	if !errors.As(err, &revert) {
		return false
	}
	return strings.Contains(strings.ToLower(revert.Reason), strings.ToLower(match))
}

var rejectionMarkers = []string{"user rejected", "user denied", "rejected the request", "request rejected"}

type dataError interface {
	ErrorData() interface{}
}

// Classify folds transport and signer errors into ErrUserRejected, ErrChainTimeout
// or *RevertError. Unrecognized errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var revert *RevertError
	if errors.Is(err, ErrUserRejected) || errors.Is(err, ErrChainTimeout) || errors.As(err, &revert) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrChainTimeout, err)
	}
	message := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(message, marker) {
			return fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
	}
	var withData dataError
	if errors.As(err, &withData) {
		if reason, ok := revertReason(withData.ErrorData()); ok {
			return &RevertError{Reason: reason}
		}
	}
	if idx := strings.Index(message, "execution reverted"); idx >= 0 {
		reason := strings.TrimSpace(err.Error()[idx+len("execution reverted"):])
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		return &RevertError{Reason: reason}
	}
	return err
}

func revertReason(data interface{}) (string, bool) {
	encoded, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
