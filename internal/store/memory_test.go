package store

import (
	"context"
	"testing"
)

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository { return NewMemory() })
}

func TestMemoryEventsRecorded(t *testing.T) {
	repo := NewMemory()
	image := seedGame(t, repo, "cat")
	if err := repo.AppendEvent(context.Background(), &image.ID, "pixel_revealed", map[string]any{"index": 3}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events := repo.Events()
	if len(events) != 1 || events[0].Type != "pixel_revealed" || string(events[0].Payload) != `{"index":3}` {
		t.Fatalf("unexpected events %#v", events)
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"2.000000000000000000": "2",
		"0.010000000000000000": "0.01",
		"0":                    "0",
		" 1.5 ":                "1.5",
		"bogus":                "0",
	}
	for raw, want := range cases {
		if got := normalizeAmount(raw); got != want {
			t.Fatalf("normalizeAmount(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCompletedGamesCappedAtHistoryLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	for i := 0; i < HistoryLimit+2; i++ {
		image := seedGame(t, repo, "cat")
		activate(t, repo, image.ID)
		if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cat", Complete: true}); err != nil {
			t.Fatalf("complete game %d: %v", image.ID, err)
		}
	}
	games, err := repo.CompletedGames(ctx, HistoryLimit)
	if err != nil {
		t.Fatalf("completed games: %v", err)
	}
	if len(games) != HistoryLimit {
		t.Fatalf("expected %d games, got %d", HistoryLimit, len(games))
	}
}
