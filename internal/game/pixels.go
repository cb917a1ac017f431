package game

import (
	"encoding/hex"
	"errors"
)

const bytesPerPixel = 3

var ErrPixelOutOfRange = errors.New("pixel index out of range")

// PixelColor returns the #rrggbb color stored at index in an RGB raster.
func PixelColor(raster []byte, index int) (string, error) {
	offset := index * bytesPerPixel
	if index < 0 || offset+bytesPerPixel > len(raster) {
		return "", ErrPixelOutOfRange
	}
	return "#" + hex.EncodeToString(raster[offset:offset+bytesPerPixel]), nil
}

// ValidRaster reports whether raster holds exactly width*height RGB pixels.
func ValidRaster(raster []byte, width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return len(raster) == width*height*bytesPerPixel
}
