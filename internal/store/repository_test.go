package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pixpot/internal/db"
)

type repoFactory func(t *testing.T) Repository

func testRaster(width, height int) []byte {
	raster := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		raster[i*3] = byte(i)
		raster[i*3+1] = byte(i >> 8)
		raster[i*3+2] = 0x7f
	}
	return raster
}

func seedGame(t *testing.T, repo Repository, answer string) *db.Image {
	t.Helper()
	image := &db.Image{
		Filename:     "cat.png",
		OriginalName: "cat.png",
		Width:        10,
		Height:       10,
		PixelData:    testRaster(10, 10),
		Answer:       answer,
	}
	if err := repo.CreateGame(context.Background(), image); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return image
}

func activate(t *testing.T, repo Repository, id uint) *db.Image {
	t.Helper()
	image, err := repo.SetActiveGame(context.Background(), ActivateTarget{Target: Target{GameID: &id}})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	return image
}

func ptr[T any](value T) *T { return &value }

func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	t.Run("ConcurrentRevealSameIndex", func(t *testing.T) { testConcurrentReveal(t, newRepo(t)) })
	t.Run("RevealReplayRejected", func(t *testing.T) { testRevealReplay(t, newRepo(t)) })
	t.Run("RevealValidation", func(t *testing.T) { testRevealValidation(t, newRepo(t)) })
	t.Run("ActivationIdempotent", func(t *testing.T) { testActivation(t, newRepo(t)) })
	t.Run("ActivationLinksOnchainID", func(t *testing.T) { testActivationLink(t, newRepo(t)) })
	t.Run("GuessReplay", func(t *testing.T) { testGuessReplay(t, newRepo(t)) })
	t.Run("GuessLogAndCompletion", func(t *testing.T) { testGuessCompletion(t, newRepo(t)) })
	t.Run("WinnerNeverOverwritten", func(t *testing.T) { testWinnerExclusive(t, newRepo(t)) })
	t.Run("DeleteGuard", func(t *testing.T) { testDeleteGuard(t, newRepo(t)) })
	t.Run("BindOnceFields", func(t *testing.T) { testBindOnce(t, newRepo(t)) })
	t.Run("ClaimsAndProfile", func(t *testing.T) { testClaimsAndProfile(t, newRepo(t)) })
}

func testConcurrentReveal(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		colors    = make(map[string]struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := repo.RevealPixel(ctx, RevealRequest{
				Index:    5,
				Revealer: "0xA" + string(rune('0'+i)),
				TxRef:    "0xtx" + string(rune('a'+i)),
			})
			mu.Lock()
			defer mu.Unlock()
			colors[result.Color] = struct{}{}
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyRevealed):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", workers-1, successes, conflicts)
	}
	if len(colors) != 1 {
		t.Fatalf("expected one color across results, got %v", colors)
	}
	current, err := repo.GameByID(ctx, image.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.RevealedPixels != 1 {
		t.Fatalf("expected revealed count 1, got %d", current.RevealedPixels)
	}
}

func testRevealReplay(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)

	if _, err := repo.RevealPixel(ctx, RevealRequest{Index: 5, Revealer: "0xabc", TxRef: "0xfeed"}); err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	_, err := repo.RevealPixel(ctx, RevealRequest{Index: 6, Revealer: "0xabc", TxRef: "0xfeed"})
	if !errors.Is(err, ErrReplayRejected) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
	_, err = repo.RevealPixel(ctx, RevealRequest{Index: 7, Revealer: "0xabc", TxRef: "0xFEED"})
	if !errors.Is(err, ErrReplayRejected) {
		t.Fatalf("expected replay rejection for re-cased hash, got %v", err)
	}
	activity, err := repo.GameActivity(ctx, image.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity.Revealed) != 1 || activity.Revealed[0].PixelIndex != 5 {
		t.Fatalf("expected only pixel 5 revealed, got %#v", activity.Revealed)
	}
}

func testRevealValidation(t *testing.T, repo Repository) {
	ctx := context.Background()
	if _, err := repo.RevealPixel(ctx, RevealRequest{Index: 0, Revealer: "0xabc", TxRef: "0x1"}); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected no active game, got %v", err)
	}
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)

	for _, index := range []int{-1, 100} {
		if _, err := repo.RevealPixel(ctx, RevealRequest{Index: index, Revealer: "0xabc", TxRef: "0x1"}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("index %d: expected out of range, got %v", index, err)
		}
	}
	if _, err := repo.RevealPixel(ctx, RevealRequest{Index: 1, Revealer: "0xabc"}); !errors.Is(err, ErrTxRefRequired) {
		t.Fatalf("expected tx required, got %v", err)
	}
	result, err := repo.RevealPixel(ctx, RevealRequest{Index: 1, Revealer: "0xABC", TxRef: "0x1"})
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if result.Color != "#01007f" {
		t.Fatalf("unexpected color %q", result.Color)
	}
}

func testActivation(t *testing.T, repo Repository) {
	ctx := context.Background()
	first := seedGame(t, repo, "cat")
	second := seedGame(t, repo, "dog")

	activate(t, repo, first.ID)
	activate(t, repo, second.ID)
	again := activate(t, repo, second.ID)
	if again.Status != db.StatusActive {
		t.Fatalf("expected active, got %q", again.Status)
	}
	counts, err := repo.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[db.StatusActive] != 1 || counts[db.StatusArchived] != 1 {
		t.Fatalf("expected one active and one archived, got %v", counts)
	}
	active, err := repo.ActiveGame(ctx)
	if err != nil || active.ID != second.ID {
		t.Fatalf("expected second game active, got %#v %v", active, err)
	}
	if _, err := repo.SetActiveGame(ctx, ActivateTarget{}); !errors.Is(err, ErrTargetRequired) {
		t.Fatalf("expected target required, got %v", err)
	}
}

func testActivationLink(t *testing.T, repo Repository) {
	ctx := context.Background()
	oldest := seedGame(t, repo, "cat")
	seedGame(t, repo, "dog")

	image, err := repo.SetActiveGame(ctx, ActivateTarget{
		Target:     Target{OnchainGameID: ptr(uint64(7))},
		PoolAmount: ptr("0.5"),
	})
	if err != nil {
		t.Fatalf("activate by onchain id: %v", err)
	}
	if image.ID != oldest.ID || image.OnchainGameID == nil || *image.OnchainGameID != 7 {
		t.Fatalf("expected oldest game linked to 7, got %#v", image)
	}
	linked, err := repo.GameByOnchainID(ctx, 7)
	if err != nil || linked.ID != oldest.ID {
		t.Fatalf("expected lookup by onchain id, got %#v %v", linked, err)
	}
	if normalizeAmount(linked.PoolAmount) != "0.5" {
		t.Fatalf("expected pool 0.5, got %q", linked.PoolAmount)
	}
}

func testGuessCompletion(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "Cat|kitten")
	activate(t, repo, image.ID)
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{AdminSecret: ptr("s3cret"), OnchainGameID: ptr(uint64(3))}); err != nil {
		t.Fatalf("bind secret: %v", err)
	}

	wrong, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xAAA", Guess: "Dog"})
	if err != nil || wrong.Correct || wrong.Completed {
		t.Fatalf("expected logged wrong guess, got %#v %v", wrong, err)
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "  "}); !errors.Is(err, ErrEmptyGuess) {
		t.Fatalf("expected empty guess error, got %v", err)
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "dog", Complete: true, AdminSecret: ptr("s3cret")}); !errors.Is(err, ErrGuessMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cat", Complete: true, AdminSecret: ptr("nope")}); !errors.Is(err, ErrAdminSecretMismatch) {
		t.Fatalf("expected secret mismatch, got %v", err)
	}

	won, err := repo.RecordGuess(ctx, GuessRecord{
		OnchainGameID: ptr(uint64(3)),
		Address:       "0xAAA",
		Guess:         " KITTEN ",
		Complete:      true,
		PoolAmount:    ptr("1.25"),
		TxRef:         ptr("0xwin"),
		AdminSecret:   ptr("s3cret"),
	})
	if err != nil {
		t.Fatalf("winning guess: %v", err)
	}
	if !won.Completed || won.Game.Status != db.StatusCompleted || *won.Game.WinnerAddress != "0xaaa" {
		t.Fatalf("expected completed game for 0xaaa, got %#v", won)
	}

	retry, err := repo.RecordGuess(ctx, GuessRecord{
		OnchainGameID: ptr(uint64(3)),
		Address:       "0xaaa",
		Guess:         "kitten",
		Complete:      true,
		TxRef:         ptr("0xwin"),
		AdminSecret:   ptr("s3cret"),
	})
	if err != nil || !retry.Duplicate || retry.Completed {
		t.Fatalf("expected idempotent duplicate, got %#v %v", retry, err)
	}
	activity, err := repo.GameActivity(ctx, image.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity.Guesses != 2 {
		t.Fatalf("expected 2 logged guesses, got %d", activity.Guesses)
	}
}

func testGuessReplay(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)

	first, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "dog", TxRef: ptr("0xAbCd01")})
	if err != nil || first.Duplicate {
		t.Fatalf("first guess: %#v %v", first, err)
	}
	retry, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xAAA", Guess: " DOG ", TxRef: ptr("0xabcd01")})
	if err != nil || !retry.Duplicate {
		t.Fatalf("expected retried write to be a duplicate, got %#v %v", retry, err)
	}

	cases := []struct {
		name    string
		address string
		guess   string
	}{
		{"other player", "0xbbb", "dog"},
		{"other text", "0xaaa", "bird"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.RecordGuess(ctx, GuessRecord{Address: tc.address, Guess: tc.guess, TxRef: ptr("0xABCD01")})
			if !errors.Is(err, ErrReplayRejected) {
				t.Fatalf("expected replay rejection, got %v", err)
			}
		})
	}

	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "bird"}); err != nil {
		t.Fatalf("guess without tx: %v", err)
	}
	activity, err := repo.GameActivity(ctx, image.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity.Guesses != 2 {
		t.Fatalf("expected 2 logged guesses, got %d", activity.Guesses)
	}
}

func testWinnerExclusive(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)

	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cat", Complete: true}); err != nil {
		t.Fatalf("first winner: %v", err)
	}
	done := ptr(image.ID)
	_, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xbbb", Guess: "cat", Complete: true})
	if !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected no active game after completion, got %v", err)
	}
	if _, err := repo.UpdateGame(ctx, *done, GameUpdate{OnchainGameID: ptr(uint64(9))}); err != nil {
		t.Fatalf("bind onchain id: %v", err)
	}
	_, err = repo.RecordGuess(ctx, GuessRecord{OnchainGameID: ptr(uint64(9)), Address: "0xbbb", Guess: "cat", Complete: true})
	if !errors.Is(err, ErrWinnerAlreadySet) {
		t.Fatalf("expected winner already set, got %v", err)
	}
	current, err := repo.GameByID(ctx, image.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.WinnerAddress == nil || *current.WinnerAddress != "0xaaa" {
		t.Fatalf("winner overwritten: %#v", current.WinnerAddress)
	}
	if _, err := repo.SetActiveGame(ctx, ActivateTarget{Target: Target{GameID: &image.ID}}); !errors.Is(err, ErrGameCompleted) {
		t.Fatalf("expected completed game to stay completed, got %v", err)
	}
}

func testDeleteGuard(t *testing.T, repo Repository) {
	ctx := context.Background()
	won := seedGame(t, repo, "cat")
	activate(t, repo, won.ID)
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cat", Complete: true}); err != nil {
		t.Fatalf("win: %v", err)
	}
	if _, err := repo.DeleteGame(ctx, Target{GameID: &won.ID}); !errors.Is(err, ErrHasWinner) {
		t.Fatalf("expected has winner, got %v", err)
	}

	open := seedGame(t, repo, "dog")
	activate(t, repo, open.ID)
	if _, err := repo.RevealPixel(ctx, RevealRequest{Index: 0, Revealer: "0xaaa", TxRef: "0x1"}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cow"}); err != nil {
		t.Fatalf("guess: %v", err)
	}
	deleted, err := repo.DeleteGame(ctx, Target{GameID: &open.ID})
	if err != nil || deleted.ID != open.ID {
		t.Fatalf("delete: %#v %v", deleted, err)
	}
	if _, err := repo.GameByID(ctx, open.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected deleted game gone, got %v", err)
	}
	if _, err := repo.GameActivity(ctx, open.ID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected no activity for deleted game, got %v", err)
	}
	if _, err := repo.DeleteGame(ctx, Target{}); !errors.Is(err, ErrTargetRequired) {
		t.Fatalf("expected target required, got %v", err)
	}
}

func testBindOnce(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	other := seedGame(t, repo, "dog")

	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{AdminSecret: ptr("one"), OnchainGameID: ptr(uint64(1))}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{AdminSecret: ptr("one")}); err != nil {
		t.Fatalf("same secret should be accepted: %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{AdminSecret: ptr("two")}); !errors.Is(err, ErrSecretImmutable) {
		t.Fatalf("expected immutable secret, got %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{OnchainGameID: ptr(uint64(2))}); !errors.Is(err, ErrOnchainIDBound) {
		t.Fatalf("expected bound onchain id, got %v", err)
	}
	if _, err := repo.UpdateGame(ctx, other.ID, GameUpdate{OnchainGameID: ptr(uint64(1))}); !errors.Is(err, ErrOnchainIDBound) {
		t.Fatalf("expected duplicate onchain id rejection, got %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{Status: ptr(db.StatusActive)}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected status rejection, got %v", err)
	}
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{}); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected no fields, got %v", err)
	}
	updated, err := repo.UpdateGame(ctx, image.ID, GameUpdate{Hint0: ptr("a pet"), Status: ptr(db.StatusSuspended)})
	if err != nil || updated.Hint0 == nil || *updated.Hint0 != "a pet" || updated.Status != db.StatusSuspended {
		t.Fatalf("expected hint and status update, got %#v %v", updated, err)
	}
}

func testClaimsAndProfile(t *testing.T, repo Repository) {
	ctx := context.Background()
	image := seedGame(t, repo, "cat")
	activate(t, repo, image.ID)
	if _, err := repo.UpdateGame(ctx, image.ID, GameUpdate{AdminSecret: ptr("s"), OnchainGameID: ptr(uint64(4))}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	for i, who := range []string{"0xaaa", "0xbbb", "0xbbb"} {
		tx := "0xr" + string(rune('0'+i))
		if _, err := repo.RevealPixel(ctx, RevealRequest{Index: i, Revealer: who, TxRef: tx}); err != nil {
			t.Fatalf("reveal %d: %v", i, err)
		}
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xbbb", Guess: "dog"}); err != nil {
		t.Fatalf("wrong guess: %v", err)
	}
	if _, err := repo.RecordGuess(ctx, GuessRecord{Address: "0xaaa", Guess: "cat", Complete: true, AdminSecret: ptr("s"), PoolAmount: ptr("2")}); err != nil {
		t.Fatalf("win: %v", err)
	}

	claims, err := repo.WinnerClaims(ctx, "0xAAA")
	if err != nil {
		t.Fatalf("claims: %v", err)
	}
	if len(claims) != 1 || claims[0].OnchainGameID != 4 || claims[0].AdminSecret != "s" || claims[0].GuessText != "cat" {
		t.Fatalf("unexpected claims %#v", claims)
	}
	if _, err := repo.WinnerClaim(ctx, "0xbbb", 4); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("non-winner should have no claim, got %v", err)
	}

	games, err := repo.RevealerGames(ctx, "0xbbb")
	if err != nil {
		t.Fatalf("revealer games: %v", err)
	}
	if len(games) != 1 || games[0].Pixels != 2 || games[0].WinnerAddress != "0xaaa" {
		t.Fatalf("unexpected revealer games %#v", games)
	}

	profile, err := repo.Profile(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Stats.TotalPixelsRevealed != 1 || profile.Stats.CorrectGuesses != 1 || profile.Stats.TotalPrizesWon != "2" {
		t.Fatalf("unexpected profile stats %#v", profile.Stats)
	}
	if len(profile.Participated) != 1 || profile.Participated[0].Answer == nil {
		t.Fatalf("expected completed game with answer, got %#v", profile.Participated)
	}
	if _, err := repo.Profile(ctx, ""); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected address required, got %v", err)
	}
}
