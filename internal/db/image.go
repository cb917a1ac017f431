package db

import "time"

const (
	StatusArchived  = "archived"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusSuspended = "suspended"
)

// Image is the database record of one guessing round.
type Image struct {
	ID             uint    `gorm:"primaryKey"`
	OnchainGameID  *uint64 `gorm:"uniqueIndex"`
	Filename       string  `gorm:"size:255;not null;default:''"`
	OriginalName   string  `gorm:"size:255;not null;default:''"`
	Width          int     `gorm:"not null"`
	Height         int     `gorm:"not null"`
	TotalPixels    int     `gorm:"not null"`
	RevealedPixels int     `gorm:"not null;default:0"`
	PixelData      []byte  `gorm:"not null"`
	Answer         string  `gorm:"size:512;not null"`
	Status         string  `gorm:"size:16;index;not null;default:'archived'"`
	PoolAmount     string  `gorm:"type:decimal(38,18);not null;default:0"`
	WinnerAddress  *string `gorm:"size:42;index"`
	Hint0          *string `gorm:"column:hint_0;size:280"`
	Hint1000       *string `gorm:"column:hint_1000;size:280"`
	Hint2000       *string `gorm:"column:hint_2000;size:280"`
	AdminSecret    *string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Pixels         []RevealedPixel `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
	Guesses        []Guess         `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
}
