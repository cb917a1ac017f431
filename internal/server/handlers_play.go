package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pixpot/internal/chain"
	"pixpot/internal/db"
	"pixpot/internal/game"
	"pixpot/internal/prize"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const followUpSyncTimeout = 15 * time.Second

type revealPixelRequest struct {
	Index         *int   `json:"index" binding:"required,min=0"`
	WalletAddress string `json:"walletAddress" binding:"required,address"`
	TxHash        string `json:"txHash" binding:"required,txhash"`
}

var revealPixelMessages = bindMessages{
	"Index":         {"*": "invalid index"},
	"WalletAddress": {"*": "wallet address required"},
	"TxHash":        {"required": "Transaction hash required", "*": "invalid transaction hash"},
}

// verifyTx checks a client-submitted transaction against the contract. It
// fails closed when no chain is configured.
func (s *Server) verifyTx(ctx context.Context, txHash, from, method string, gameID uint64) (*chain.VerifiedTx, error) {
	if s.chain == nil {
		return nil, errChainUnavailable
	}
	hash, ok := parseTxHash(txHash)
	if !ok {
		return nil, fmt.Errorf("%w: malformed hash", chain.ErrTxNotFound)
	}
	return s.chain.VerifyTx(ctx, hash, chain.Expectation{
		From:   common.HexToAddress(from),
		Method: method,
		GameID: gameID,
	})
}

func (s *Server) handleRevealPixel(c *gin.Context) {
	var req revealPixelRequest
	if !bindJSON(c, &req, revealPixelMessages, "invalid request") {
		return
	}
	ctx := c.Request.Context()
	current, err := s.repo.ActiveGame(ctx)
	if errors.Is(err, store.ErrNoActiveGame) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No active game"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if *req.Index >= current.TotalPixels {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid index"})
		return
	}
	if current.OnchainGameID == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Active game is not linked onchain"})
		return
	}
	if _, err := s.verifyTx(ctx, req.TxHash, req.WalletAddress, chain.MethodRevealPixels, *current.OnchainGameID); err != nil {
		s.respondError(c, err)
		return
	}

	revealer := game.NormalizeAddress(req.WalletAddress)
	txRef := canonicalTxHash(req.TxHash)
	result, err := s.repo.RevealPixel(ctx, store.RevealRequest{
		Index:    *req.Index,
		Revealer: revealer,
		TxRef:    txRef,
	})
	if errors.Is(err, store.ErrAlreadyRevealed) {
		c.JSON(http.StatusConflict, gin.H{
			"success":         false,
			"alreadyRevealed": true,
			"error":           "Pixel was just revealed by another player",
			"index":           result.Index,
			"color":           result.Color,
		})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	event := pixelRevealedEvent{
		ImageID:        result.ImageID,
		Index:          result.Index,
		Color:          result.Color,
		RevealedBy:     revealer,
		RevealedPixels: result.RevealedPixels,
	}
	imageID := result.ImageID
	if err := s.repo.AppendEvent(ctx, &imageID, eventPixelRevealed, event); err != nil {
		s.log.Warnw("pixel event not stored", "image_id", imageID, "error", err)
	}
	s.broadcast(eventPixelRevealed, event)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"index":   result.Index,
		"color":   result.Color,
		"txHash":  txRef,
	})
}

type verifyGuessRequest struct {
	GameID        uint64 `json:"gameId" binding:"required"`
	Guess         string `json:"guess" binding:"required,guess"`
	WalletAddress string `json:"walletAddress" binding:"required,address"`
	TxHash        string `json:"txHash" binding:"required,txhash"`
}

var verifyGuessMessages = bindMessages{
	"GameID":        {"*": "Missing gameId or guess"},
	"Guess":         {"*": "Missing gameId or guess"},
	"WalletAddress": {"*": "wallet address required"},
	"TxHash":        {"required": "Transaction hash required", "*": "invalid transaction hash"},
}

// handleVerifyGuess checks a revealed guess against the stored answer and,
// when it matches, hands out the admin secret needed for declareWinner.
func (s *Server) handleVerifyGuess(c *gin.Context) {
	var req verifyGuessRequest
	if !bindJSON(c, &req, verifyGuessMessages, "invalid request") {
		return
	}
	ctx := c.Request.Context()
	image, err := s.repo.GameByOnchainID(ctx, req.GameID)
	if errors.Is(err, store.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Game not found"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if image.AdminSecret == nil || *image.AdminSecret == "" {
		s.log.Errorw("game missing admin secret", "image_id", image.ID, "onchain_game_id", req.GameID)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Game not properly configured (missing admin_secret)"})
		return
	}
	if image.Status == db.StatusCompleted {
		s.respondError(c, store.ErrGameCompleted)
		return
	}
	tx, err := s.verifyTx(ctx, req.TxHash, req.WalletAddress, chain.MethodRevealGuess, req.GameID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	revealed, ok := tx.StringArg(1)
	if !ok || game.NormalizeGuess(revealed) != game.NormalizeGuess(req.Guess) {
		s.respondError(c, fmt.Errorf("%w: revealed guess", chain.ErrArgsMismatch))
		return
	}

	if !game.IsCorrect(image.Answer, req.Guess) {
		c.JSON(http.StatusOK, gin.H{"correct": false, "message": "Not quite right. Try again!"})
		return
	}
	s.log.Infow("correct guess verified", "onchain_game_id", req.GameID, "address", game.NormalizeAddress(req.WalletAddress))
	c.JSON(http.StatusOK, gin.H{
		"correct":     true,
		"adminSecret": *image.AdminSecret,
		"answer":      game.AcceptedAnswers(image.Answer)[0],
		"message":     "Correct! You can now claim your prize.",
	})
}

type recordGuessRequest struct {
	Guess         string  `json:"guess" binding:"required,guess"`
	WalletAddress string  `json:"walletAddress" binding:"required,address"`
	IsCorrect     bool    `json:"isCorrect"`
	GameID        *uint64 `json:"gameId"`
	PoolAmount    *string `json:"poolAmount" binding:"omitempty,amount"`
	TxHash        *string `json:"txHash" binding:"omitempty,txhash"`
	AdminSecret   *string `json:"adminSecret"`
}

var recordGuessMessages = bindMessages{
	"Guess":         {"*": "empty guess"},
	"WalletAddress": {"*": "wallet address required"},
	"PoolAmount":    {"*": "invalid pool amount"},
	"TxHash":        {"*": "invalid transaction hash"},
}

// handleRecordGuess logs a guess. A winning record must point at a confirmed
// declareWinner transaction and completes the game.
func (s *Server) handleRecordGuess(c *gin.Context) {
	var req recordGuessRequest
	if !bindJSON(c, &req, recordGuessMessages, "invalid request") {
		return
	}
	if req.TxHash != nil {
		txRef := canonicalTxHash(*req.TxHash)
		req.TxHash = &txRef
	}
	if req.IsCorrect {
		s.recordWin(c, req)
		return
	}
	ctx := c.Request.Context()
	rec := store.GuessRecord{
		OnchainGameID: req.GameID,
		Address:       req.WalletAddress,
		Guess:         req.Guess,
		TxRef:         req.TxHash,
	}
	if req.TxHash != nil && req.GameID != nil && s.chain != nil {
		if _, err := s.verifyTx(ctx, *req.TxHash, req.WalletAddress, chain.MethodRevealGuess, *req.GameID); err != nil {
			s.respondError(c, err)
			return
		}
	}
	outcome, err := s.repo.RecordGuess(ctx, rec)
	if err != nil {
		s.respondGuessError(c, err)
		return
	}
	message := "Not quite, try again."
	if outcome.Correct {
		message = "Correct guess recorded. Declare the win onchain to claim the pool."
	}
	c.JSON(http.StatusOK, gin.H{"success": outcome.Correct, "correct": outcome.Correct, "message": message})
}

func (s *Server) recordWin(c *gin.Context, req recordGuessRequest) {
	if req.GameID == nil || req.TxHash == nil || req.AdminSecret == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "gameId, txHash and adminSecret are required for a win"})
		return
	}
	ctx := c.Request.Context()
	gameID := *req.GameID
	tx, err := s.verifyTx(ctx, *req.TxHash, req.WalletAddress, chain.MethodDeclareWinner, gameID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	answer, _ := tx.StringArg(1)
	secret, _ := tx.StringArg(2)
	if game.NormalizeGuess(answer) != game.NormalizeGuess(req.Guess) || secret != *req.AdminSecret {
		s.respondError(c, fmt.Errorf("%w: declared answer", chain.ErrArgsMismatch))
		return
	}
	onchain, err := s.chain.GetGame(ctx, gameID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	outcome, err := s.prizes.ReconcileWin(ctx, prize.Win{
		GameID:      gameID,
		Winner:      req.WalletAddress,
		Guess:       req.Guess,
		Pool:        onchain.PoolAmount,
		TxRef:       *req.TxHash,
		AdminSecret: *req.AdminSecret,
	})
	if err != nil {
		s.respondGuessError(c, err)
		return
	}
	if outcome.Completed {
		s.announceCompletion(outcome.Game)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"correct": true,
		"payout":  outcome.Game.PoolAmount,
		"message": "You won! Claim your prize in Profile anytime.",
	})
}

func (s *Server) respondGuessError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNoActiveGame) || errors.Is(err, store.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No active game found"})
		return
	}
	s.respondError(c, err)
}

// announceCompletion pushes the finished round to browsers and pulls in
// whatever the contract activates next.
func (s *Server) announceCompletion(image *db.Image) {
	winner := ""
	if image.WinnerAddress != nil {
		winner = *image.WinnerAddress
	}
	event := gameCompletedEvent{
		ImageID:       image.ID,
		OnchainGameID: image.OnchainGameID,
		WinnerAddress: winner,
		PoolAmount:    image.PoolAmount,
	}
	imageID := image.ID
	if err := s.repo.AppendEvent(context.Background(), &imageID, eventGameCompleted, event); err != nil {
		s.log.Warnw("completion event not stored", "image_id", imageID, "error", err)
	}
	s.broadcast(eventGameCompleted, event)
	if s.chain == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), followUpSyncTimeout)
		defer cancel()
		if err := s.syncer.SyncOnce(ctx); err != nil {
			s.log.Debugw("follow-up sync skipped", "error", err)
		}
	}()
}
