package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pixpot/internal/auth"
	"pixpot/internal/chain"
	"pixpot/internal/config"
	"pixpot/internal/db"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
)

const (
	playerA = "0x00000000000000000000000000000000000000aa"
	playerB = "0x00000000000000000000000000000000000000bb"
)

// testRaster is a 2x2 image: red, green, blue, white.
var testRaster = []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255}

type fakeChain struct {
	mu    sync.Mutex
	games map[uint64]*chain.Game
	txs   map[common.Hash]*chain.VerifiedTx
	next  int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{games: make(map[uint64]*chain.Game), txs: make(map[common.Hash]*chain.VerifiedTx)}
}

func (f *fakeChain) setGame(id uint64, active bool, pool *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[id] = &chain.Game{GameID: id, IsActive: active, PoolAmount: pool}
}

// addTx registers a mined call and returns its hash.
func (f *fakeChain) addTx(from, method string, args ...interface{}) string {
	f.mu.Lock()
	f.next++
	hash := crypto.Keccak256Hash(big.NewInt(f.next).Bytes())
	f.mu.Unlock()
	return f.addTxAt(hash, from, method, args...)
}

func (f *fakeChain) addTxAt(hash common.Hash, from, method string, args ...interface{}) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[hash] = &chain.VerifiedTx{Hash: hash, From: common.HexToAddress(from), Method: method, Args: args}
	return hash.Hex()
}

func (f *fakeChain) VerifyTx(ctx context.Context, txHash common.Hash, want chain.Expectation) (*chain.VerifiedTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[txHash]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	if tx.From != want.From {
		return nil, chain.ErrWrongSender
	}
	if tx.Method != want.Method {
		return nil, chain.ErrWrongMethod
	}
	gameID, ok := tx.Args[0].(*big.Int)
	if !ok || gameID.Uint64() != want.GameID {
		return nil, chain.ErrArgsMismatch
	}
	return tx, nil
}

func (f *fakeChain) GetGame(ctx context.Context, gameID uint64) (*chain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.games[gameID]; ok {
		copied := *g
		return &copied, nil
	}
	return &chain.Game{PoolAmount: new(big.Int)}, nil
}

func (f *fakeChain) GetCurrentGame(ctx context.Context) (*chain.CurrentGame, error) {
	return &chain.CurrentGame{PoolAmount: new(big.Int)}, nil
}

func (f *fakeChain) CurrentGameID(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) WatchGameActivated(ctx context.Context, sink chan<- uint64) (event.Subscription, error) {
	return nil, errors.New("subscriptions unsupported")
}

func (f *fakeChain) Prizes(ctx context.Context, gameID uint64) (*chain.PrizeRecord, error) {
	return &chain.PrizeRecord{WinnerAmount: new(big.Int), RevealerPoolAmount: new(big.Int)}, nil
}

func (f *fakeChain) GetUserContribution(ctx context.Context, gameID uint64, user common.Address) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeChain) GetUserPrize(ctx context.Context, gameID uint64, user common.Address) (*chain.UserPrize, error) {
	return &chain.UserPrize{Amount: new(big.Int)}, nil
}

type testEnv struct {
	ts    *httptest.Server
	repo  *store.Memory
	chain *fakeChain
	admin *ecdsa.PrivateKey
	srv   *Server
}

func newTestEnv(t *testing.T, withChain bool) *testEnv {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := config.Default()
	cfg.AdminAddress = crypto.PubkeyToAddress(key.PublicKey).Hex()
	env := &testEnv{repo: store.NewMemory(), admin: key}
	if withChain {
		env.chain = newFakeChain()
		env.srv = New(cfg, env.repo, env.chain)
	} else {
		env.srv = New(cfg, env.repo, nil)
	}
	env.ts = newTestServer(t, env.srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

// seedActive stores an active 2x2 game bound to onchainID with answer "dog".
func (e *testEnv) seedActive(t *testing.T, onchainID uint64) *db.Image {
	t.Helper()
	secret := "admin-secret"
	hint := "it barks"
	image := &db.Image{
		OnchainGameID: &onchainID,
		Filename:      fmt.Sprintf("game-%d.png", onchainID),
		OriginalName:  "Dog",
		Width:         2,
		Height:        2,
		PixelData:     testRaster,
		Answer:        "dog",
		AdminSecret:   &secret,
		Hint0:         &hint,
	}
	ctx := context.Background()
	if err := e.repo.CreateGame(ctx, image); err != nil {
		t.Fatalf("create game: %v", err)
	}
	active, err := e.repo.SetActiveGame(ctx, store.ActivateTarget{Target: store.Target{GameID: &image.ID}})
	if err != nil {
		t.Fatalf("activate game: %v", err)
	}
	return active
}

func (e *testEnv) adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	headers, err := auth.Headers(e.admin, time.Now())
	if err != nil {
		t.Fatalf("sign admin headers: %v", err)
	}
	return headers
}

// newPlayer returns a fresh wallet key and its normalized address.
func newPlayer(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func walletHeaders(t *testing.T, key *ecdsa.PrivateKey) map[string]string {
	t.Helper()
	headers, err := auth.WalletHeaders(key, time.Now())
	if err != nil {
		t.Fatalf("sign wallet headers: %v", err)
	}
	return headers
}

func send(ts *httptest.Server, method, path string, payload any, headers map[string]string) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return http.DefaultClient.Do(req)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	return doRequestWithHeaders(t, ts, method, path, payload, nil)
}

func doRequestWithHeaders(t *testing.T, ts *httptest.Server, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	resp, err := send(ts, method, path, payload, headers)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, want int) map[string]any {
	t.Helper()
	body := decodeBody(t, resp)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %v", want, resp.StatusCode, body)
	}
	return body
}
