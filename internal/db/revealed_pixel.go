package db

import "time"

type RevealedPixel struct {
	ID         uint      `gorm:"primaryKey"`
	ImageID    uint      `gorm:"index;not null;uniqueIndex:idx_revealed_pixels_image_index;uniqueIndex:idx_revealed_pixels_image_tx"`
	PixelIndex int       `gorm:"not null;uniqueIndex:idx_revealed_pixels_image_index"`
	RevealedBy string    `gorm:"size:42;index;not null"`
	TxHash     string    `gorm:"size:66;not null;uniqueIndex:idx_revealed_pixels_image_tx"`
	RevealedAt time.Time `gorm:"not null;autoCreateTime"`
}
