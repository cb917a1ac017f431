package server

import (
	"errors"
	"net/http"
	"time"

	"pixpot/internal/store"

	"github.com/gin-gonic/gin"
)

type addressQuery struct {
	Address string `form:"address" binding:"required,address"`
}

var addressMessages = bindMessages{"Address": {"*": "Valid wallet address required"}}

type claimView struct {
	ImageID      uint      `json:"imageId"`
	GameID       uint64    `json:"gameId"`
	GuessText    string    `json:"guessText"`
	AdminSecret  string    `json:"adminSecret,omitempty"`
	Answer       string    `json:"answer"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// newClaimView copies a claim; the admin secret only goes to the proven owner.
func newClaimView(claim store.Claim, owner bool) claimView {
	view := claimView{
		ImageID:      claim.ImageID,
		GameID:       claim.OnchainGameID,
		GuessText:    claim.GuessText,
		Answer:       claim.Answer,
		Filename:     claim.Filename,
		OriginalName: claim.OriginalName,
		CreatedAt:    claim.CreatedAt,
	}
	if owner {
		view.AdminSecret = claim.AdminSecret
	}
	return view
}

func (s *Server) handleListClaims(c *gin.Context) {
	var query addressQuery
	if !bindQuery(c, &query, addressMessages, "") {
		return
	}
	claims, err := s.repo.WinnerClaims(c.Request.Context(), query.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	owner := s.walletOwner(c, query.Address)
	prizes := make([]claimView, 0, len(claims))
	for _, claim := range claims {
		prizes = append(prizes, newClaimView(claim, owner))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prizes": prizes})
}

type claimDataRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required,address"`
	GameID        uint64 `json:"gameId" binding:"required"`
}

var claimDataMessages = bindMessages{
	"WalletAddress": {"*": "Valid wallet address required"},
	"GameID":        {"*": "gameId required"},
}

// handleClaimData returns what a winner needs to call declareWinner again.
// The caller must sign for walletAddress.
func (s *Server) handleClaimData(c *gin.Context) {
	var req claimDataRequest
	if !bindJSON(c, &req, claimDataMessages, "") {
		return
	}
	if !s.walletOwner(c, req.WalletAddress) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Unauthorized - Invalid signature"})
		return
	}
	claim, err := s.repo.WinnerClaim(c.Request.Context(), req.WalletAddress, req.GameID)
	if errors.Is(err, store.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No claimable prize found for this game"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"gameId":      claim.OnchainGameID,
		"answer":      claim.GuessText,
		"adminSecret": claim.AdminSecret,
		"message":     "Use these values to call declareWinner on the contract",
	})
}

func (s *Server) handleWinnerPrizes(c *gin.Context) {
	var query addressQuery
	if !bindQuery(c, &query, addressMessages, "") {
		return
	}
	if s.prizes == nil {
		s.respondError(c, errChainUnavailable)
		return
	}
	prizes, err := s.prizes.ListClaimablePrizes(c.Request.Context(), query.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prizes": prizes})
}

func (s *Server) handleRevealerShares(c *gin.Context) {
	var query addressQuery
	if !bindQuery(c, &query, addressMessages, "") {
		return
	}
	if s.prizes == nil {
		s.respondError(c, errChainUnavailable)
		return
	}
	shares, err := s.prizes.ListRevealerShares(c.Request.Context(), query.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "shares": shares})
}

func (s *Server) handleProfile(c *gin.Context) {
	var query addressQuery
	if !bindQuery(c, &query, addressMessages, "") {
		return
	}
	profile, err := s.repo.Profile(c.Request.Context(), query.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	participated := profile.Participated
	if participated == nil {
		participated = []store.ParticipatedGame{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"stats":              profile.Stats,
		"participatedImages": participated,
	})
}
