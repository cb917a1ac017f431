package game

import "testing"

func TestIsCorrectNormalization(t *testing.T) {
	cases := []struct {
		guess string
		want  bool
	}{
		{"Cat", true},
		{" cat ", true},
		{"CAT", true},
		{"kitten", true},
		{"Dog", false},
		{"", false},
		{"ca t", false},
		{"cat|kitten", false},
	}
	for _, tc := range cases {
		if got := IsCorrect("cat|kitten", tc.guess); got != tc.want {
			t.Fatalf("IsCorrect(%q) = %v, want %v", tc.guess, got, tc.want)
		}
	}
}

func TestAcceptedAnswersDropsEmpty(t *testing.T) {
	got := AcceptedAnswers(" Red || Crimson |")
	if len(got) != 2 || got[0] != "red" || got[1] != "crimson" {
		t.Fatalf("unexpected answers %v", got)
	}
}

func TestPixelColor(t *testing.T) {
	raster := []byte{0xff, 0x00, 0x10, 0x01, 0x02, 0x03}
	color, err := PixelColor(raster, 1)
	if err != nil {
		t.Fatalf("pixel color: %v", err)
	}
	if color != "#010203" {
		t.Fatalf("expected #010203, got %s", color)
	}
	again, _ := PixelColor(raster, 1)
	if again != color {
		t.Fatalf("pixel color is not deterministic")
	}
	if _, err := PixelColor(raster, 2); err != ErrPixelOutOfRange {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := PixelColor(raster, -1); err != ErrPixelOutOfRange {
		t.Fatalf("expected out of range for negative index, got %v", err)
	}
}

func TestValidRaster(t *testing.T) {
	if !ValidRaster(make([]byte, 12), 2, 2) {
		t.Fatalf("expected 2x2 raster to be valid")
	}
	if ValidRaster(make([]byte, 11), 2, 2) {
		t.Fatalf("expected short raster to be invalid")
	}
}

func TestVisibleHints(t *testing.T) {
	h0, h1, h2 := "animal", "has whiskers", "meows"
	if got := VisibleHints(0, &h0, &h1, &h2); len(got) != 1 {
		t.Fatalf("expected one hint, got %v", got)
	}
	if got := VisibleHints(1500, &h0, &h1, &h2); len(got) != 2 {
		t.Fatalf("expected two hints, got %v", got)
	}
	if got := VisibleHints(2000, nil, &h1, &h2); len(got) != 2 || got[0] != h1 {
		t.Fatalf("expected later hints only, got %v", got)
	}
}
