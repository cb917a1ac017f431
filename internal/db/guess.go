package db

import "time"

// Guess is one logged reveal. Rows without a transaction are free-form
// guesses; NULL tx hashes never collide in the unique index.
type Guess struct {
	ID            uint      `gorm:"primaryKey"`
	ImageID       uint      `gorm:"index;not null;uniqueIndex:idx_guesses_image_tx"`
	WalletAddress string    `gorm:"size:42;index;not null"`
	GuessText     string    `gorm:"size:280;not null"`
	IsCorrect     bool      `gorm:"not null;default:false"`
	TxHash        *string   `gorm:"size:66;uniqueIndex:idx_guesses_image_tx"`
	AdminSecret   *string   `gorm:"size:255"`
	CreatedAt     time.Time `gorm:"not null"`
}
