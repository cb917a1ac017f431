package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pixpot/internal/db"
	"pixpot/internal/game"
	"pixpot/internal/store"

	"github.com/gin-gonic/gin"
)

type activateRequest struct {
	GameID        *uint   `json:"gameId"`
	OnchainGameID *uint64 `json:"onchainGameId"`
	PoolAmount    *string `json:"poolAmount" binding:"omitempty,amount"`
	AutoActivate  bool    `json:"autoActivate"`
}

var activateMessages = bindMessages{"PoolAmount": {"*": "invalid pool amount"}}

// handleActivate switches the active game. Admin-signed requests choose any
// target; unsigned autoActivate requests may only mirror a game the contract
// already reports active.
func (s *Server) handleActivate(c *gin.Context) {
	var req activateRequest
	if !bindJSON(c, &req, activateMessages, "") {
		return
	}
	ctx := c.Request.Context()
	var (
		image *db.Image
		err   error
	)
	if req.AutoActivate {
		if req.OnchainGameID == nil {
			s.respondError(c, store.ErrTargetRequired)
			return
		}
		if s.chain == nil {
			s.respondError(c, errChainUnavailable)
			return
		}
		image, err = s.syncer.MirrorOnchain(ctx, *req.OnchainGameID, "auto")
	} else {
		if !s.authenticateAdmin(c) {
			return
		}
		image, err = s.syncer.Activate(ctx, store.ActivateTarget{
			Target:     store.Target{GameID: req.GameID, OnchainGameID: req.OnchainGameID},
			PoolAmount: req.PoolAmount,
		}, "admin")
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Image activated successfully",
		"imageId":       image.ID,
		"onchainGameId": image.OnchainGameID,
		"poolAmount":    image.PoolAmount,
	})
}

type deleteGameQuery struct {
	GameID        *uint   `form:"gameId"`
	OnchainGameID *uint64 `form:"onchainGameId"`
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	var query deleteGameQuery
	if !bindQuery(c, &query, nil, "gameId and onchainGameId must be numeric") {
		return
	}
	deleted, err := s.repo.DeleteGame(c.Request.Context(), store.Target{GameID: query.GameID, OnchainGameID: query.OnchainGameID})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Infow("game deleted", "image_id", deleted.ID, "onchain_game_id", deleted.OnchainGameID, "admin", c.GetString(adminAddressKey))
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Game deleted successfully",
		"deletedGameId": deleted.ID,
		"filename":      deleted.Filename,
	})
}

type adminImageView struct {
	ID             uint      `json:"id"`
	OnchainGameID  *uint64   `json:"onchainGameId"`
	Filename       string    `json:"filename"`
	OriginalName   string    `json:"originalName"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	TotalPixels    int       `json:"totalPixels"`
	RevealedPixels int       `json:"revealedPixels"`
	Answer         string    `json:"answer"`
	Status         string    `json:"status"`
	PoolAmount     string    `json:"poolAmount"`
	WinnerAddress  *string   `json:"winnerAddress"`
	Hint0          *string   `json:"hint0"`
	Hint1000       *string   `json:"hint1000"`
	Hint2000       *string   `json:"hint2000"`
	HasAdminSecret bool      `json:"hasAdminSecret"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newAdminImageView(image *db.Image) adminImageView {
	return adminImageView{
		ID:             image.ID,
		OnchainGameID:  image.OnchainGameID,
		Filename:       image.Filename,
		OriginalName:   image.OriginalName,
		Width:          image.Width,
		Height:         image.Height,
		TotalPixels:    image.TotalPixels,
		RevealedPixels: image.RevealedPixels,
		Answer:         image.Answer,
		Status:         image.Status,
		PoolAmount:     image.PoolAmount,
		WinnerAddress:  image.WinnerAddress,
		Hint0:          image.Hint0,
		Hint1000:       image.Hint1000,
		Hint2000:       image.Hint2000,
		HasAdminSecret: image.AdminSecret != nil && *image.AdminSecret != "",
		CreatedAt:      image.CreatedAt,
	}
}

func (s *Server) handleListImages(c *gin.Context) {
	games, err := s.repo.ListGames(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	images := make([]adminImageView, 0, len(games))
	for i := range games {
		images = append(images, newAdminImageView(&games[i]))
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

type createImageRequest struct {
	Filename      string  `json:"filename" binding:"required,max=255"`
	OriginalName  string  `json:"originalName" binding:"max=255"`
	Width         int     `json:"width" binding:"required,min=1"`
	Height        int     `json:"height" binding:"required,min=1"`
	PixelData     string  `json:"pixelData" binding:"required,base64"`
	Answer        string  `json:"answer" binding:"required,max=512"`
	Hint0         *string `json:"hint0" binding:"omitempty,max=280"`
	Hint1000      *string `json:"hint1000" binding:"omitempty,max=280"`
	Hint2000      *string `json:"hint2000" binding:"omitempty,max=280"`
	PoolAmount    *string `json:"poolAmount" binding:"omitempty,amount"`
	AdminSecret   *string `json:"adminSecret" binding:"omitempty,max=255"`
	OnchainGameID *uint64 `json:"onchainGameId"`
}

var createImageMessages = bindMessages{
	"Filename":   {"*": "filename required"},
	"Width":      {"*": "width must be positive"},
	"Height":     {"*": "height must be positive"},
	"PixelData":  {"*": "pixelData must be base64 RGB bytes"},
	"Answer":     {"*": "answer required"},
	"PoolAmount": {"*": "invalid pool amount"},
}

func (s *Server) handleCreateImage(c *gin.Context) {
	var req createImageRequest
	if !bindJSON(c, &req, createImageMessages, "") {
		return
	}
	if req.Width*req.Height > maxRasterPixels {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("image exceeds %d pixels", maxRasterPixels)})
		return
	}
	raster, err := base64.StdEncoding.DecodeString(req.PixelData)
	if err != nil || !game.ValidRaster(raster, req.Width, req.Height) {
		s.respondError(c, store.ErrInvalidRaster)
		return
	}
	name, err := validateText("originalName", req.OriginalName, maxNameLength)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if name == "" {
		name = req.Filename
	}
	image := &db.Image{
		OnchainGameID: req.OnchainGameID,
		Filename:      req.Filename,
		OriginalName:  name,
		Width:         req.Width,
		Height:        req.Height,
		TotalPixels:   req.Width * req.Height,
		PixelData:     raster,
		Answer:        req.Answer,
		Status:        db.StatusArchived,
		Hint0:         req.Hint0,
		Hint1000:      req.Hint1000,
		Hint2000:      req.Hint2000,
		AdminSecret:   req.AdminSecret,
	}
	if req.PoolAmount != nil {
		image.PoolAmount = *req.PoolAmount
	}
	if err := s.repo.CreateGame(c.Request.Context(), image); err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Infow("image created", "image_id", image.ID, "pixels", image.TotalPixels, "admin", c.GetString(adminAddressKey))
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"imageId":     image.ID,
		"filename":    image.Filename,
		"totalPixels": image.TotalPixels,
	})
}

type imageURI struct {
	ID uint `uri:"id" binding:"required"`
}

// updateImageRequest keeps the snake_case field names admin tooling sends.
type updateImageRequest struct {
	Answer        *string `json:"answer" binding:"omitempty,max=512"`
	Status        *string `json:"status"`
	OriginalName  *string `json:"original_name" binding:"omitempty,max=255"`
	Hint0         *string `json:"hint_0" binding:"omitempty,max=280"`
	Hint1000      *string `json:"hint_1000" binding:"omitempty,max=280"`
	Hint2000      *string `json:"hint_2000" binding:"omitempty,max=280"`
	PoolAmount    *string `json:"pool_amount" binding:"omitempty,amount"`
	AdminSecret   *string `json:"admin_secret" binding:"omitempty,max=255"`
	OnchainGameID *uint64 `json:"onchain_game_id"`
}

var updateImageMessages = bindMessages{"PoolAmount": {"*": "invalid pool amount"}}

func (s *Server) handleUpdateImage(c *gin.Context) {
	var uri imageURI
	if !bindURI(c, &uri) {
		return
	}
	var req updateImageRequest
	if !bindJSON(c, &req, updateImageMessages, "") {
		return
	}
	updated, err := s.repo.UpdateGame(c.Request.Context(), uri.ID, store.GameUpdate{
		Answer:        req.Answer,
		Status:        req.Status,
		OriginalName:  req.OriginalName,
		Hint0:         req.Hint0,
		Hint1000:      req.Hint1000,
		Hint2000:      req.Hint2000,
		PoolAmount:    req.PoolAmount,
		AdminSecret:   req.AdminSecret,
		OnchainGameID: req.OnchainGameID,
	})
	if errors.Is(err, store.ErrNoFields) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No fields to update"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": newAdminImageView(updated)})
}
