// Package auth implements the signed-timestamp scheme that guards admin endpoints.
//
// The admin wallet signs "PixPot Admin Auth\nTimestamp: <unix ms>" with an
// EIP-191 personal signature and sends it in the x-wallet-address,
// x-signature and x-timestamp headers. Players prove they own a wallet the
// same way with "PixPot Wallet Auth\nTimestamp: <unix ms>".
package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	HeaderAddress   = "x-wallet-address"
	HeaderSignature = "x-signature"
	HeaderTimestamp = "x-timestamp"

	DefaultWindow = 5 * time.Minute

	messagePrefix       = "PixPot Admin Auth\nTimestamp: "
	walletMessagePrefix = "PixPot Wallet Auth\nTimestamp: "
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMissingHeaders   = errors.New("missing authentication headers")
	ErrNotAdmin         = errors.New("wallet is not the admin")
	ErrBadTimestamp     = errors.New("invalid timestamp")
	ErrFutureTimestamp  = errors.New("timestamp is in the future")
	ErrExpiredTimestamp = errors.New("timestamp expired")
	ErrBadSignature     = errors.New("invalid signature")
)

// Message is the text the admin signs for a given millisecond timestamp.
func Message(timestamp string) string {
	return messagePrefix + timestamp
}

// WalletMessage is the text a player signs to prove wallet ownership.
func WalletMessage(timestamp string) string {
	return walletMessagePrefix + timestamp
}

// Verifier checks admin headers against one configured admin address.
type Verifier struct {
	admin  common.Address
	window time.Duration
	now    func() time.Time
}

func NewVerifier(adminAddress string, window time.Duration) *Verifier {
	if window <= 0 {
		window = DefaultWindow
	}
	v := &Verifier{window: window, now: time.Now}
	if common.IsHexAddress(adminAddress) {
		v.admin = common.HexToAddress(adminAddress)
	}
	return v
}

// Configured reports whether an admin address is set.
func (v *Verifier) Configured() bool {
	return v.admin != (common.Address{})
}

// Verify returns the authenticated admin address. Every failure wraps ErrUnauthorized.
func (v *Verifier) Verify(address, signature, timestamp string) (common.Address, error) {
	address, signature, timestamp = strings.TrimSpace(address), strings.TrimSpace(signature), strings.TrimSpace(timestamp)
	if address == "" || signature == "" || timestamp == "" {
		return common.Address{}, deny(ErrMissingHeaders)
	}
	if !v.Configured() || !common.IsHexAddress(address) || common.HexToAddress(address) != v.admin {
		return common.Address{}, deny(ErrNotAdmin)
	}
	return v.verifySigned(v.admin, Message(timestamp), signature, timestamp)
}

// VerifyWallet returns address once the signature proves its owner signed
// WalletMessage inside the window. Every failure wraps ErrUnauthorized.
func (v *Verifier) VerifyWallet(address, signature, timestamp string) (common.Address, error) {
	address, signature, timestamp = strings.TrimSpace(address), strings.TrimSpace(signature), strings.TrimSpace(timestamp)
	if address == "" || signature == "" || timestamp == "" {
		return common.Address{}, deny(ErrMissingHeaders)
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, deny(ErrBadSignature)
	}
	return v.verifySigned(common.HexToAddress(address), WalletMessage(timestamp), signature, timestamp)
}

func (v *Verifier) verifySigned(want common.Address, message, signature, timestamp string) (common.Address, error) {
	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return common.Address{}, deny(ErrBadTimestamp)
	}
	age := v.now().Sub(time.UnixMilli(millis))
	if age < 0 {
		return common.Address{}, deny(ErrFutureTimestamp)
	}
	if age > v.window {
		return common.Address{}, deny(ErrExpiredTimestamp)
	}
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return common.Address{}, deny(err)
	}
	if signer != want {
		return common.Address{}, deny(ErrBadSignature)
	}
	return signer, nil
}

func deny(reason error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, reason)
}

// RecoverSigner recovers the address behind an EIP-191 personal signature.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces the personal signature for message, with V in {27, 28}.
func Sign(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Headers builds the admin header set for key at time now.
func Headers(key *ecdsa.PrivateKey, now time.Time) (map[string]string, error) {
	return signedHeaders(key, now, Message)
}

// WalletHeaders builds the wallet-ownership header set for key at time now.
func WalletHeaders(key *ecdsa.PrivateKey, now time.Time) (map[string]string, error) {
	return signedHeaders(key, now, WalletMessage)
}

func signedHeaders(key *ecdsa.PrivateKey, now time.Time, message func(string) string) (map[string]string, error) {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	signature, err := Sign(key, message(timestamp))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		HeaderSignature: signature,
		HeaderTimestamp: timestamp,
	}, nil
}
