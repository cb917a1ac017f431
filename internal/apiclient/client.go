// Package apiclient talks to the PixPot HTTP API on behalf of a player or
// the admin. It is the Backend the guess protocol verifies and records through.
package apiclient

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixpot/internal/auth"
	"pixpot/internal/prize"
	"pixpot/internal/protocol"

	"github.com/ethereum/go-ethereum/common"
)

const defaultTimeout = 30 * time.Second

var (
	ErrAlreadyRevealed = errors.New("pixel was just revealed by another player")
	ErrNoAdminKey      = errors.New("admin key not configured")
)

// APIError is a non-2xx response with the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed (%d)", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL  string
	http     *http.Client
	key      *ecdsa.PrivateKey
	now      func() time.Time
}

type signing int

const (
	unsigned signing = iota
	adminSigned
	// walletSigned attaches an ownership proof when a key is set.
	walletSigned
)

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		now:     time.Now,
	}
}

// WithAdminKey signs admin requests and wallet-ownership proofs with key.
func (c *Client) WithAdminKey(key *ecdsa.PrivateKey) *Client {
	c.key = key
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.http = client
	return c
}

var _ protocol.Backend = (*Client)(nil)

type verifyGuessRequest struct {
	GameID        uint64 `json:"gameId"`
	Guess         string `json:"guess"`
	WalletAddress string `json:"walletAddress"`
	TxHash        string `json:"txHash"`
}

type verifyGuessResponse struct {
	Correct     bool   `json:"correct"`
	AdminSecret string `json:"adminSecret"`
	Answer      string `json:"answer"`
	Message     string `json:"message"`
}

func (c *Client) VerifyGuess(ctx context.Context, req protocol.VerifyRequest) (*protocol.Verdict, error) {
	var resp verifyGuessResponse
	err := c.do(ctx, http.MethodPost, "/api/verify-guess", verifyGuessRequest{
		GameID:        req.GameID,
		Guess:         req.Guess,
		WalletAddress: req.Address,
		TxHash:        req.TxHash.Hex(),
	}, &resp, unsigned)
	if err != nil {
		return nil, err
	}
	return &protocol.Verdict{Correct: resp.Correct, AdminSecret: resp.AdminSecret, Answer: resp.Answer}, nil
}

type recordGuessRequest struct {
	Guess         string  `json:"guess"`
	WalletAddress string  `json:"walletAddress"`
	IsCorrect     bool    `json:"isCorrect"`
	GameID        uint64  `json:"gameId"`
	PoolAmount    *string `json:"poolAmount,omitempty"`
	TxHash        *string `json:"txHash,omitempty"`
	AdminSecret   *string `json:"adminSecret,omitempty"`
}

func (c *Client) RecordGuess(ctx context.Context, report protocol.GuessReport) error {
	req := recordGuessRequest{
		Guess:         report.Guess,
		WalletAddress: report.Address,
		IsCorrect:     report.Correct,
		GameID:        report.GameID,
	}
	if report.TxHash != (common.Hash{}) {
		hash := report.TxHash.Hex()
		req.TxHash = &hash
	}
	if report.PoolAmount != "" {
		req.PoolAmount = &report.PoolAmount
	}
	if report.AdminSecret != "" {
		req.AdminSecret = &report.AdminSecret
	}
	return c.do(ctx, http.MethodPost, "/api/guess", req, nil, unsigned)
}

// Game is the public view of the active round.
type Game struct {
	ImageID           uint     `json:"imageId"`
	OnchainGameID     *uint64  `json:"onchainGameId"`
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	TotalPixels       int      `json:"totalPixels"`
	RevealedPixels    int      `json:"revealedPixels"`
	Status            string   `json:"status"`
	PoolAmount        string   `json:"poolAmount"`
	WinnerAddress     *string  `json:"winnerAddress"`
	ParticipantsCount int      `json:"participantsCount"`
	GuessesCount      int      `json:"guessesCount"`
	Hints             []string `json:"hints"`
}

func (c *Client) CurrentGame(ctx context.Context) (*Game, error) {
	var game Game
	if err := c.do(ctx, http.MethodGet, "/api/game", nil, &game, unsigned); err != nil {
		return nil, err
	}
	return &game, nil
}

type PixelResult struct {
	Index int    `json:"index"`
	Color string `json:"color"`
}

// RevealPixel records a confirmed revealPixels transaction against index. A
// lost race returns the pixel's color along with ErrAlreadyRevealed.
func (c *Client) RevealPixel(ctx context.Context, index int, address string, txHash common.Hash) (*PixelResult, error) {
	var result PixelResult
	err := c.do(ctx, http.MethodPost, "/api/pixels", map[string]any{
		"index":         index,
		"walletAddress": address,
		"txHash":        txHash.Hex(),
	}, &result, unsigned)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return &result, ErrAlreadyRevealed
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClaimData is what a winner needs to call declareWinner again.
type ClaimData struct {
	GameID      uint64 `json:"gameId"`
	Answer      string `json:"answer"`
	AdminSecret string `json:"adminSecret"`
}

func (c *Client) ClaimData(ctx context.Context, address string, gameID uint64) (*ClaimData, error) {
	var data ClaimData
	err := c.do(ctx, http.MethodPost, "/api/claim-prize", map[string]any{
		"walletAddress": address,
		"gameId":        gameID,
	}, &data, walletSigned)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) WinnerPrizes(ctx context.Context, address string) ([]prize.WinnerPrize, error) {
	var resp struct {
		Prizes []prize.WinnerPrize `json:"prizes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prizes/winner?address="+url.QueryEscape(address), nil, &resp, unsigned); err != nil {
		return nil, err
	}
	return resp.Prizes, nil
}

func (c *Client) RevealerShares(ctx context.Context, address string) ([]prize.RevealerShare, error) {
	var resp struct {
		Shares []prize.RevealerShare `json:"shares"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prizes/revealer?address="+url.QueryEscape(address), nil, &resp, unsigned); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}

// CreateImageRequest uploads a raw RGB raster as base64.
type CreateImageRequest struct {
	Filename      string  `json:"filename"`
	OriginalName  string  `json:"originalName,omitempty"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	PixelData     string  `json:"pixelData"`
	Answer        string  `json:"answer"`
	Hint0         *string `json:"hint0,omitempty"`
	Hint1000      *string `json:"hint1000,omitempty"`
	Hint2000      *string `json:"hint2000,omitempty"`
	PoolAmount    *string `json:"poolAmount,omitempty"`
	AdminSecret   *string `json:"adminSecret,omitempty"`
	OnchainGameID *uint64 `json:"onchainGameId,omitempty"`
}

func (c *Client) CreateImage(ctx context.Context, req CreateImageRequest) (uint, error) {
	var resp struct {
		ImageID uint `json:"imageId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/images", req, &resp, adminSigned); err != nil {
		return 0, err
	}
	return resp.ImageID, nil
}

type ActivateRequest struct {
	GameID        *uint   `json:"gameId,omitempty"`
	OnchainGameID *uint64 `json:"onchainGameId,omitempty"`
	PoolAmount    *string `json:"poolAmount,omitempty"`
	AutoActivate  bool    `json:"autoActivate,omitempty"`
}

type Activation struct {
	ImageID       uint    `json:"imageId"`
	OnchainGameID *uint64 `json:"onchainGameId"`
	PoolAmount    string  `json:"poolAmount"`
}

// Activate signs the request unless it only asks the server to mirror an
// onchain activation.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) (*Activation, error) {
	var activation Activation
	if err := c.do(ctx, http.MethodPost, "/api/admin/activate", req, &activation, activateSigning(req)); err != nil {
		return nil, err
	}
	return &activation, nil
}

func activateSigning(req ActivateRequest) signing {
	if req.AutoActivate {
		return unsigned
	}
	return adminSigned
}

func (c *Client) DeleteGame(ctx context.Context, onchainGameID uint64) error {
	path := "/api/admin/games?onchainGameId=" + strconv.FormatUint(onchainGameID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, adminSigned)
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest any, sign signing) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	var headers map[string]string
	switch {
	case sign == adminSigned && c.key == nil:
		return ErrNoAdminKey
	case sign == adminSigned:
		headers, err = auth.Headers(c.key, c.now())
	case sign == walletSigned && c.key != nil:
		headers, err = auth.WalletHeaders(c.key, c.now())
	}
	if err != nil {
		return fmt.Errorf("sign %s request: %w", path, err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach api: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil {
			apiErr.Message = parsed.Error
		}
		if dest != nil {
			_ = json.Unmarshal(raw, dest)
		}
		return apiErr
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
