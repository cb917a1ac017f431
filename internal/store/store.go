// Package store persists game records, pixel reveals and the guess log.
//
// Two implementations share one contract: Gorm (postgres or mysql) and Memory.
// Pixel ownership and transaction replay are resolved by uniqueness, never by
// locks held across calls.
package store

import (
	"context"
	"errors"
	"time"

	"pixpot/internal/db"
)

var (
	ErrNoActiveGame        = errors.New("no active game")
	ErrGameNotFound        = errors.New("game not found")
	ErrIndexOutOfRange     = errors.New("invalid index")
	ErrTxRefRequired       = errors.New("transaction hash required")
	ErrAlreadyRevealed     = errors.New("pixel was just revealed by another player")
	ErrReplayRejected      = errors.New("transaction hash already used")
	ErrEmptyGuess          = errors.New("empty guess")
	ErrAddressRequired     = errors.New("wallet address required")
	ErrWinnerAlreadySet    = errors.New("game already has a winner")
	ErrGuessMismatch       = errors.New("guess does not match the answer")
	ErrAdminSecretMismatch = errors.New("admin secret does not match")
	ErrHasWinner           = errors.New("cannot delete game with winner")
	ErrTargetRequired      = errors.New("either gameId or onchainGameId is required")
	ErrGameCompleted       = errors.New("game already completed")
	ErrSecretImmutable     = errors.New("admin secret already set")
	ErrOnchainIDBound      = errors.New("onchain game id already bound")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidRaster       = errors.New("pixel data does not match width and height")
	ErrNoFields            = errors.New("no fields to update")
)

// Repository is the database side of the game: the authoritative mirror of
// rounds, the pixel ownership ledger and the append-only guess log.
type Repository interface {
	ActiveGame(ctx context.Context) (*db.Image, error)
	GameByID(ctx context.Context, id uint) (*db.Image, error)
	GameByOnchainID(ctx context.Context, onchainID uint64) (*db.Image, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
	NextArchivedGame(ctx context.Context) (*db.Image, error)
	CompletedGames(ctx context.Context, limit int) ([]db.Image, error)
	ListGames(ctx context.Context) ([]db.Image, error)
	GameActivity(ctx context.Context, imageID uint) (*Activity, error)

	CreateGame(ctx context.Context, game *db.Image) error
	UpdateGame(ctx context.Context, id uint, update GameUpdate) (*db.Image, error)
	SetActiveGame(ctx context.Context, target ActivateTarget) (*db.Image, error)
	DeleteGame(ctx context.Context, target Target) (*db.Image, error)

	RevealPixel(ctx context.Context, req RevealRequest) (RevealResult, error)
	RecordGuess(ctx context.Context, rec GuessRecord) (GuessOutcome, error)

	WinnerClaims(ctx context.Context, address string) ([]Claim, error)
	WinnerClaim(ctx context.Context, address string, onchainID uint64) (*Claim, error)
	RevealerGames(ctx context.Context, address string) ([]RevealerGame, error)
	Profile(ctx context.Context, address string) (*Profile, error)

	AppendEvent(ctx context.Context, imageID *uint, eventType string, payload any) error
}

// Target selects a game by database id or onchain id.
type Target struct {
	GameID        *uint
	OnchainGameID *uint64
}

type ActivateTarget struct {
	Target
	PoolAmount *string
}

type GameUpdate struct {
	Answer        *string
	Status        *string
	OriginalName  *string
	Hint0         *string
	Hint1000      *string
	Hint2000      *string
	PoolAmount    *string
	AdminSecret   *string
	OnchainGameID *uint64
}

func (u GameUpdate) empty() bool {
	return u.Answer == nil && u.Status == nil && u.OriginalName == nil &&
		u.Hint0 == nil && u.Hint1000 == nil && u.Hint2000 == nil &&
		u.PoolAmount == nil && u.AdminSecret == nil && u.OnchainGameID == nil
}

type RevealRequest struct {
	Index    int
	Revealer string
	TxRef    string
}

// RevealResult carries the pixel color on success and on ErrAlreadyRevealed.
type RevealResult struct {
	ImageID        uint
	Index          int
	Color          string
	RevealedPixels int
}

// GuessRecord is one reveal attempt. Complete asks the store to finish the
// round for Address; it is honored only when the guess matches the answer.
type GuessRecord struct {
	OnchainGameID *uint64
	Address       string
	Guess         string
	Complete      bool
	PoolAmount    *string
	TxRef         *string
	AdminSecret   *string
}

type GuessOutcome struct {
	Game      *db.Image
	Correct   bool
	Completed bool
	// Duplicate is set when the same winning transaction was already recorded.
	Duplicate bool
}

type Activity struct {
	Revealed     []db.RevealedPixel
	Participants int
	Guesses      int
}

type Claim struct {
	ImageID       uint
	OnchainGameID uint64
	GuessText     string
	AdminSecret   string
	Answer        string
	Filename      string
	OriginalName  string
	CreatedAt     time.Time
}

type RevealerGame struct {
	ImageID       uint
	OnchainGameID uint64
	WinnerAddress string
	PoolAmount    string
	Filename      string
	OriginalName  string
	Pixels        int
}

type ProfileStats struct {
	TotalPixelsRevealed int    `json:"totalPixelsRevealed"`
	TotalGuesses        int    `json:"totalGuesses"`
	CorrectGuesses      int    `json:"correctGuesses"`
	TotalPrizesWon      string `json:"totalPrizesWon"`
}

type ParticipatedGame struct {
	ImageID            uint    `json:"id"`
	OnchainGameID      *uint64 `json:"onchainGameId"`
	Filename           string  `json:"filename"`
	OriginalName       string  `json:"originalName"`
	Status             string  `json:"status"`
	PoolAmount         string  `json:"poolAmount"`
	WinnerAddress      *string `json:"winnerAddress"`
	UserPixels         int     `json:"userPixels"`
	UserGuesses        int     `json:"userGuesses"`
	UserCorrectGuesses int     `json:"userCorrectGuesses"`
	Answer             *string `json:"answer,omitempty"`
}

type Profile struct {
	Stats        ProfileStats       `json:"stats"`
	Participated []ParticipatedGame `json:"participatedImages"`
}

const participatedLimit = 50

// HistoryLimit is the number of completed games the history view returns.
const HistoryLimit = 10

func validUpdateStatus(status string) bool {
	return status == db.StatusArchived || status == db.StatusSuspended
}
