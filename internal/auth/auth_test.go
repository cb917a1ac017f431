package auth

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestVerify(t *testing.T) {
	admin, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	adminAddress := crypto.PubkeyToAddress(admin.PublicKey).Hex()
	now := time.UnixMilli(1_700_000_000_000)

	verifier := NewVerifier(adminAddress, 0)
	verifier.now = func() time.Time { return now }

	signed := func(key string, at time.Time) (string, string) {
		ts := strconv.FormatInt(at.UnixMilli(), 10)
		signer := admin
		if key == "other" {
			signer = other
		}
		sig, err := Sign(signer, Message(ts))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return sig, ts
	}

	sig, ts := signed("admin", now.Add(-time.Minute))
	if got, err := verifier.Verify(adminAddress, sig, ts); err != nil || got.Hex() != adminAddress {
		t.Fatalf("expected valid admin, got %s %v", got.Hex(), err)
	}

	cases := []struct {
		name    string
		address string
		key     string
		at      time.Time
		want    error
	}{
		{"future", adminAddress, "admin", now.Add(time.Second), ErrFutureTimestamp},
		{"expired", adminAddress, "admin", now.Add(-5*time.Minute - time.Millisecond), ErrExpiredTimestamp},
		{"wrong signer", adminAddress, "other", now, ErrBadSignature},
		{"not admin", crypto.PubkeyToAddress(other.PublicKey).Hex(), "other", now, ErrNotAdmin},
	}
	for _, tc := range cases {
		sig, ts := signed(tc.key, tc.at)
		_, err := verifier.Verify(tc.address, sig, ts)
		if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := verifier.Verify(adminAddress, "", ts); !errors.Is(err, ErrMissingHeaders) {
		t.Fatalf("expected missing headers, got %v", err)
	}
	if _, err := verifier.Verify(adminAddress, "0x1234", ts); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected bad signature, got %v", err)
	}
	if _, err := verifier.Verify(adminAddress, sig, "soon"); !errors.Is(err, ErrBadTimestamp) {
		t.Fatalf("expected bad timestamp, got %v", err)
	}
}

func TestHeadersRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	now := time.Now()
	headers, err := Headers(key, now)
	if err != nil {
		t.Fatalf("headers: %v", err)
	}
	verifier := NewVerifier(headers[HeaderAddress], DefaultWindow)
	if _, err := verifier.Verify(headers[HeaderAddress], headers[HeaderSignature], headers[HeaderTimestamp]); err != nil {
		t.Fatalf("expected generated headers to verify: %v", err)
	}
}

func TestUnconfiguredVerifierRejects(t *testing.T) {
	verifier := NewVerifier("", DefaultWindow)
	if verifier.Configured() {
		t.Fatalf("expected unconfigured verifier")
	}
	if _, err := verifier.Verify("0x00000000000000000000000000000000000000aa", "0x00", "1"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected not admin, got %v", err)
	}
}

func TestVerifyWallet(t *testing.T) {
	player, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	address := crypto.PubkeyToAddress(player.PublicKey).Hex()
	verifier := NewVerifier("", DefaultWindow)

	headers, err := WalletHeaders(player, time.Now())
	if err != nil {
		t.Fatalf("wallet headers: %v", err)
	}
	got, err := verifier.VerifyWallet(headers[HeaderAddress], headers[HeaderSignature], headers[HeaderTimestamp])
	if err != nil || got.Hex() != address {
		t.Fatalf("expected %s to verify, got %s %v", address, got.Hex(), err)
	}

	adminStyle, err := Headers(player, time.Now())
	if err != nil {
		t.Fatalf("admin headers: %v", err)
	}
	if _, err := verifier.VerifyWallet(address, adminStyle[HeaderSignature], adminStyle[HeaderTimestamp]); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("admin message must not pass as wallet proof, got %v", err)
	}
	spoofed := crypto.PubkeyToAddress(other.PublicKey).Hex()
	if _, err := verifier.VerifyWallet(spoofed, headers[HeaderSignature], headers[HeaderTimestamp]); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected signature for another wallet to fail, got %v", err)
	}
	if _, err := verifier.VerifyWallet(address, "", headers[HeaderTimestamp]); !errors.Is(err, ErrMissingHeaders) {
		t.Fatalf("expected missing headers, got %v", err)
	}
}
