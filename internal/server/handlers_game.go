package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"pixpot/internal/db"
	"pixpot/internal/game"
	"pixpot/internal/store"

	"github.com/gin-gonic/gin"
)

type revealedPixelView struct {
	Index      int       `json:"index"`
	RevealedBy string    `json:"revealedBy"`
	RevealedAt time.Time `json:"revealedAt"`
}

type currentGameView struct {
	ImageID           uint                `json:"imageId"`
	OnchainGameID     *uint64             `json:"onchainGameId"`
	Width             int                 `json:"width"`
	Height            int                 `json:"height"`
	TotalPixels       int                 `json:"totalPixels"`
	RevealedPixels    int                 `json:"revealedPixels"`
	Status            string              `json:"status"`
	PoolAmount        string              `json:"poolAmount"`
	WinnerAddress     *string             `json:"winnerAddress"`
	ParticipantsCount int                 `json:"participantsCount"`
	GuessesCount      int                 `json:"guessesCount"`
	Hints             []string            `json:"hints"`
	PixelData         string              `json:"pixelData"`
	Revealed          []revealedPixelView `json:"revealed"`
}

type historyView struct {
	ID             uint      `json:"id"`
	OnchainGameID  *uint64   `json:"onchainGameId"`
	Filename       string    `json:"filename"`
	OriginalName   string    `json:"originalName"`
	Answer         string    `json:"answer"`
	WinnerAddress  *string   `json:"winnerAddress"`
	RevealedPixels int       `json:"revealedPixels"`
	TotalPixels    int       `json:"totalPixels"`
	PoolAmount     string    `json:"poolAmount"`
	CompletedAt    time.Time `json:"completedAt"`
}

func (s *Server) handleGetGame(c *gin.Context) {
	ctx := c.Request.Context()
	current, err := s.repo.ActiveGame(ctx)
	if errors.Is(err, store.ErrNoActiveGame) {
		s.respondNoActiveGame(c)
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	activity, err := s.repo.GameActivity(ctx, current.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCurrentGameView(current, activity))
}

func (s *Server) respondNoActiveGame(c *gin.Context) {
	counts, err := s.repo.StatusCounts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	allCompleted := counts[db.StatusCompleted] > 0 && counts[db.StatusArchived] == 0
	body := gin.H{"error": "No active image", "allCompleted": allCompleted}
	if allCompleted {
		body["message"] = "All games have been completed! No more images available."
	}
	c.JSON(http.StatusNotFound, body)
}

func newCurrentGameView(image *db.Image, activity *store.Activity) currentGameView {
	revealed := make([]revealedPixelView, 0, len(activity.Revealed))
	for _, pixel := range activity.Revealed {
		revealed = append(revealed, revealedPixelView{
			Index:      pixel.PixelIndex,
			RevealedBy: pixel.RevealedBy,
			RevealedAt: pixel.RevealedAt,
		})
	}
	hints := game.VisibleHints(image.RevealedPixels, image.Hint0, image.Hint1000, image.Hint2000)
	return currentGameView{
		ImageID:           image.ID,
		OnchainGameID:     image.OnchainGameID,
		Width:             image.Width,
		Height:            image.Height,
		TotalPixels:       image.TotalPixels,
		RevealedPixels:    image.RevealedPixels,
		Status:            image.Status,
		PoolAmount:        image.PoolAmount,
		WinnerAddress:     image.WinnerAddress,
		ParticipantsCount: activity.Participants,
		GuessesCount:      activity.Guesses,
		Hints:             hints,
		PixelData:         base64.StdEncoding.EncodeToString(image.PixelData),
		Revealed:          revealed,
	}
}

func (s *Server) handleNextGame(c *gin.Context) {
	next, err := s.repo.NextArchivedGame(c.Request.Context())
	if errors.Is(err, store.ErrGameNotFound) {
		c.JSON(http.StatusOK, gin.H{"nextGameId": nil, "message": "No archived games available to activate"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nextGameId": next.OnchainGameID,
		"databaseId": next.ID,
		"title":      next.OriginalName,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	games, err := s.repo.CompletedGames(c.Request.Context(), store.HistoryLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	images := make([]historyView, 0, len(games))
	for _, image := range games {
		images = append(images, historyView{
			ID:             image.ID,
			OnchainGameID:  image.OnchainGameID,
			Filename:       image.Filename,
			OriginalName:   image.OriginalName,
			Answer:         image.Answer,
			WinnerAddress:  image.WinnerAddress,
			RevealedPixels: image.RevealedPixels,
			TotalPixels:    image.TotalPixels,
			PoolAmount:     image.PoolAmount,
			CompletedAt:    image.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}
