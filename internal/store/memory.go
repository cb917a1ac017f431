package store

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"sync"
	"time"

	"pixpot/internal/db"
	"pixpot/internal/game"

	"gorm.io/datatypes"
)

// Memory is a process-local Repository. It backs tests and single-node demos
// and enforces the same uniqueness rules as the database schema.
type Memory struct {
	mu          sync.Mutex
	nextImageID uint
	nextRowID   uint
	images      map[uint]*db.Image
	pixels      map[uint]map[int]db.RevealedPixel
	txRefs      map[uint]map[string]int
	guesses     []db.Guess
	events      []db.Event
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		nextImageID: 1,
		nextRowID:   1,
		images:      make(map[uint]*db.Image),
		pixels:      make(map[uint]map[int]db.RevealedPixel),
		txRefs:      make(map[uint]map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func copyImage(image *db.Image) *db.Image {
	out := *image
	out.Pixels = nil
	out.Guesses = nil
	return &out
}

func (m *Memory) activeLocked() *db.Image {
	for _, image := range m.images {
		if image.Status == db.StatusActive {
			return image
		}
	}
	return nil
}

func (m *Memory) byOnchainLocked(onchainID uint64) *db.Image {
	for _, image := range m.images {
		if image.OnchainGameID != nil && *image.OnchainGameID == onchainID {
			return image
		}
	}
	return nil
}

func (m *Memory) sortedLocked() []*db.Image {
	out := make([]*db.Image, 0, len(m.images))
	for _, image := range m.images {
		out = append(out, image)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) resolveLocked(target Target) (*db.Image, error) {
	switch {
	case target.GameID != nil:
		image, ok := m.images[*target.GameID]
		if !ok {
			return nil, ErrGameNotFound
		}
		return image, nil
	case target.OnchainGameID != nil:
		image := m.byOnchainLocked(*target.OnchainGameID)
		if image == nil {
			return nil, ErrGameNotFound
		}
		return image, nil
	default:
		return nil, ErrTargetRequired
	}
}

func (m *Memory) ActiveGame(ctx context.Context) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image := m.activeLocked()
	if image == nil {
		return nil, ErrNoActiveGame
	}
	return copyImage(image), nil
}

func (m *Memory) GameByID(ctx context.Context, id uint) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image, ok := m.images[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return copyImage(image), nil
}

func (m *Memory) GameByOnchainID(ctx context.Context, onchainID uint64) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image := m.byOnchainLocked(onchainID)
	if image == nil {
		return nil, ErrGameNotFound
	}
	return copyImage(image), nil
}

func (m *Memory) StatusCounts(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, image := range m.images {
		counts[image.Status]++
	}
	return counts, nil
}

func (m *Memory) NextArchivedGame(ctx context.Context) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, image := range m.sortedLocked() {
		if image.Status == db.StatusArchived && image.WinnerAddress == nil {
			return copyImage(image), nil
		}
	}
	return nil, ErrGameNotFound
}

func (m *Memory) CompletedGames(ctx context.Context, limit int) ([]db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Image
	for _, image := range m.sortedLocked() {
		if image.Status == db.StatusCompleted {
			out = append(out, *copyImage(image))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListGames(ctx context.Context) ([]db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := m.sortedLocked()
	out := make([]db.Image, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		out = append(out, *copyImage(sorted[i]))
	}
	return out, nil
}

func (m *Memory) GameActivity(ctx context.Context, imageID uint) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[imageID]; !ok {
		return nil, ErrGameNotFound
	}
	activity := &Activity{}
	players := make(map[string]struct{})
	for _, pixel := range m.pixels[imageID] {
		activity.Revealed = append(activity.Revealed, pixel)
		players[pixel.RevealedBy] = struct{}{}
	}
	sort.Slice(activity.Revealed, func(i, j int) bool {
		return activity.Revealed[i].PixelIndex < activity.Revealed[j].PixelIndex
	})
	for _, guess := range m.guesses {
		if guess.ImageID == imageID {
			activity.Guesses++
			players[guess.WalletAddress] = struct{}{}
		}
	}
	activity.Participants = len(players)
	return activity, nil
}

func (m *Memory) CreateGame(ctx context.Context, image *db.Image) error {
	if !game.ValidRaster(image.PixelData, image.Width, image.Height) {
		return ErrInvalidRaster
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if image.OnchainGameID != nil && m.byOnchainLocked(*image.OnchainGameID) != nil {
		return ErrOnchainIDBound
	}
	now := m.now()
	record := copyImage(image)
	record.ID = m.nextImageID
	m.nextImageID++
	record.TotalPixels = image.Width * image.Height
	record.RevealedPixels = 0
	if record.Status == "" {
		record.Status = db.StatusArchived
	}
	if record.PoolAmount == "" {
		record.PoolAmount = "0"
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	m.images[record.ID] = record
	*image = *copyImage(record)
	return nil
}

func (m *Memory) UpdateGame(ctx context.Context, id uint, update GameUpdate) (*db.Image, error) {
	if update.empty() {
		return nil, ErrNoFields
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	image, ok := m.images[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	if err := checkUpdate(image, update); err != nil {
		return nil, err
	}
	if update.OnchainGameID != nil && image.OnchainGameID == nil {
		if other := m.byOnchainLocked(*update.OnchainGameID); other != nil && other.ID != id {
			return nil, ErrOnchainIDBound
		}
	}
	applyUpdate(image, update)
	image.UpdatedAt = m.now()
	return copyImage(image), nil
}

func (m *Memory) SetActiveGame(ctx context.Context, target ActivateTarget) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var image *db.Image
	switch {
	case target.GameID != nil:
		image = m.images[*target.GameID]
	case target.OnchainGameID != nil:
		image = m.byOnchainLocked(*target.OnchainGameID)
		if image == nil {
			image = m.linkCandidateLocked()
			if image != nil {
				onchainID := *target.OnchainGameID
				image.OnchainGameID = &onchainID
			}
		}
	default:
		return nil, ErrTargetRequired
	}
	if image == nil {
		return nil, ErrGameNotFound
	}
	if image.Status == db.StatusCompleted {
		return nil, ErrGameCompleted
	}

	now := m.now()
	for _, other := range m.images {
		if other.ID != image.ID && other.Status == db.StatusActive {
			other.Status = db.StatusArchived
			other.UpdatedAt = now
		}
	}
	image.Status = db.StatusActive
	if target.PoolAmount != nil {
		image.PoolAmount = *target.PoolAmount
	}
	image.UpdatedAt = now
	return copyImage(image), nil
}

// linkCandidateLocked picks the oldest archived game that has no winner and
// no onchain id yet.
func (m *Memory) linkCandidateLocked() *db.Image {
	for _, image := range m.sortedLocked() {
		if image.Status == db.StatusArchived && image.WinnerAddress == nil && image.OnchainGameID == nil {
			return image
		}
	}
	return nil
}

func (m *Memory) DeleteGame(ctx context.Context, target Target) (*db.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image, err := m.resolveLocked(target)
	if err != nil {
		return nil, err
	}
	if image.WinnerAddress != nil {
		return nil, ErrHasWinner
	}
	delete(m.images, image.ID)
	delete(m.pixels, image.ID)
	delete(m.txRefs, image.ID)
	kept := m.guesses[:0]
	for _, guess := range m.guesses {
		if guess.ImageID != image.ID {
			kept = append(kept, guess)
		}
	}
	m.guesses = kept
	return copyImage(image), nil
}

func (m *Memory) RevealPixel(ctx context.Context, req RevealRequest) (RevealResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image := m.activeLocked()
	if image == nil {
		return RevealResult{}, ErrNoActiveGame
	}
	result := RevealResult{ImageID: image.ID, Index: req.Index, RevealedPixels: image.RevealedPixels}
	if req.Index < 0 || req.Index >= image.TotalPixels {
		return result, ErrIndexOutOfRange
	}
	color, err := game.PixelColor(image.PixelData, req.Index)
	if err != nil {
		return result, ErrIndexOutOfRange
	}
	result.Color = color
	txRef := game.NormalizeTxHash(req.TxRef)
	if txRef == "" {
		return result, ErrTxRefRequired
	}
	if req.Revealer == "" {
		return result, ErrAddressRequired
	}
	if _, used := m.txRefs[image.ID][txRef]; used {
		return result, ErrReplayRejected
	}
	if _, taken := m.pixels[image.ID][req.Index]; taken {
		return result, ErrAlreadyRevealed
	}
	if m.pixels[image.ID] == nil {
		m.pixels[image.ID] = make(map[int]db.RevealedPixel)
		m.txRefs[image.ID] = make(map[string]int)
	}
	m.pixels[image.ID][req.Index] = db.RevealedPixel{
		ID:         m.rowIDLocked(),
		ImageID:    image.ID,
		PixelIndex: req.Index,
		RevealedBy: game.NormalizeAddress(req.Revealer),
		TxHash:     txRef,
		RevealedAt: m.now(),
	}
	m.txRefs[image.ID][txRef] = req.Index
	if image.RevealedPixels < image.TotalPixels {
		image.RevealedPixels++
	}
	result.RevealedPixels = image.RevealedPixels
	return result, nil
}

func (m *Memory) rowIDLocked() uint {
	id := m.nextRowID
	m.nextRowID++
	return id
}

func (m *Memory) RecordGuess(ctx context.Context, rec GuessRecord) (GuessOutcome, error) {
	normalized := game.NormalizeGuess(rec.Guess)
	if normalized == "" {
		return GuessOutcome{}, ErrEmptyGuess
	}
	address := game.NormalizeAddress(rec.Address)
	if address == "" {
		return GuessOutcome{}, ErrAddressRequired
	}
	rec.TxRef = normalizeTxRef(rec.TxRef)

	m.mu.Lock()
	defer m.mu.Unlock()
	var image *db.Image
	if rec.OnchainGameID != nil {
		image = m.byOnchainLocked(*rec.OnchainGameID)
		if image == nil {
			return GuessOutcome{}, ErrGameNotFound
		}
	} else if image = m.activeLocked(); image == nil {
		return GuessOutcome{}, ErrNoActiveGame
	}

	retried, err := checkGuessReplay(m.guessByTxLocked(image.ID, rec.TxRef), address, normalized)
	if err != nil {
		return GuessOutcome{}, err
	}
	correct := game.IsCorrect(image.Answer, normalized)
	row := db.Guess{
		ImageID:       image.ID,
		WalletAddress: address,
		GuessText:     normalized,
		IsCorrect:     correct,
		TxHash:        rec.TxRef,
		CreatedAt:     m.now(),
	}
	if !rec.Complete {
		if !retried {
			row.ID = m.rowIDLocked()
			m.guesses = append(m.guesses, row)
		}
		return GuessOutcome{Game: copyImage(image), Correct: correct, Duplicate: retried}, nil
	}

	if err := checkCompletion(image, rec, correct, address); err != nil {
		return GuessOutcome{}, err
	}
	if image.WinnerAddress != nil {
		if !retried {
			row.ID = m.rowIDLocked()
			row.AdminSecret = rec.AdminSecret
			m.guesses = append(m.guesses, row)
		}
		return GuessOutcome{Game: copyImage(image), Correct: true, Duplicate: retried}, nil
	}

	if !retried {
		row.ID = m.rowIDLocked()
		row.AdminSecret = rec.AdminSecret
		m.guesses = append(m.guesses, row)
	}
	image.Status = db.StatusCompleted
	image.WinnerAddress = &address
	if rec.PoolAmount != nil {
		image.PoolAmount = *rec.PoolAmount
	}
	image.UpdatedAt = m.now()
	return GuessOutcome{Game: copyImage(image), Correct: true, Completed: true}, nil
}

func (m *Memory) guessByTxLocked(imageID uint, txRef *string) *db.Guess {
	if txRef == nil {
		return nil
	}
	for i := range m.guesses {
		guess := &m.guesses[i]
		if guess.ImageID == imageID && guess.TxHash != nil && *guess.TxHash == *txRef {
			return guess
		}
	}
	return nil
}

func (m *Memory) WinnerClaims(ctx context.Context, address string) ([]Claim, error) {
	address = game.NormalizeAddress(address)
	m.mu.Lock()
	defer m.mu.Unlock()
	var claims []Claim
	seen := make(map[uint]struct{})
	for i := len(m.guesses) - 1; i >= 0; i-- {
		guess := m.guesses[i]
		if claim, ok := m.claimLocked(guess, address); ok {
			if _, dup := seen[claim.ImageID]; dup {
				continue
			}
			seen[claim.ImageID] = struct{}{}
			claims = append(claims, claim)
		}
	}
	return claims, nil
}

func (m *Memory) WinnerClaim(ctx context.Context, address string, onchainID uint64) (*Claim, error) {
	claims, err := m.WinnerClaims(ctx, address)
	if err != nil {
		return nil, err
	}
	for i := range claims {
		if claims[i].OnchainGameID == onchainID {
			return &claims[i], nil
		}
	}
	return nil, ErrGameNotFound
}

func (m *Memory) claimLocked(guess db.Guess, address string) (Claim, bool) {
	if guess.WalletAddress != address || !guess.IsCorrect || guess.AdminSecret == nil {
		return Claim{}, false
	}
	image, ok := m.images[guess.ImageID]
	if !ok || image.Status != db.StatusCompleted || image.OnchainGameID == nil {
		return Claim{}, false
	}
	if image.WinnerAddress == nil || *image.WinnerAddress != address {
		return Claim{}, false
	}
	return Claim{
		ImageID:       image.ID,
		OnchainGameID: *image.OnchainGameID,
		GuessText:     guess.GuessText,
		AdminSecret:   *guess.AdminSecret,
		Answer:        image.Answer,
		Filename:      image.Filename,
		OriginalName:  image.OriginalName,
		CreatedAt:     guess.CreatedAt,
	}, true
}

func (m *Memory) RevealerGames(ctx context.Context, address string) ([]RevealerGame, error) {
	address = game.NormalizeAddress(address)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RevealerGame
	for _, image := range m.sortedLocked() {
		if image.Status != db.StatusCompleted || image.OnchainGameID == nil {
			continue
		}
		count := 0
		for _, pixel := range m.pixels[image.ID] {
			if pixel.RevealedBy == address {
				count++
			}
		}
		if count == 0 {
			continue
		}
		winner := ""
		if image.WinnerAddress != nil {
			winner = *image.WinnerAddress
		}
		out = append(out, RevealerGame{
			ImageID:       image.ID,
			OnchainGameID: *image.OnchainGameID,
			WinnerAddress: winner,
			PoolAmount:    image.PoolAmount,
			Filename:      image.Filename,
			OriginalName:  image.OriginalName,
			Pixels:        count,
		})
	}
	return out, nil
}

func (m *Memory) Profile(ctx context.Context, address string) (*Profile, error) {
	address = game.NormalizeAddress(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	profile := &Profile{Stats: ProfileStats{TotalPrizesWon: "0"}}
	perGame := make(map[uint]*ParticipatedGame)
	entry := func(imageID uint) *ParticipatedGame {
		if existing, ok := perGame[imageID]; ok {
			return existing
		}
		image := m.images[imageID]
		if image == nil {
			return nil
		}
		row := participatedFrom(image)
		perGame[imageID] = &row
		return &row
	}
	for imageID, pixels := range m.pixels {
		for _, pixel := range pixels {
			if pixel.RevealedBy != address {
				continue
			}
			profile.Stats.TotalPixelsRevealed++
			if row := entry(imageID); row != nil {
				row.UserPixels++
			}
		}
	}
	for _, guess := range m.guesses {
		if guess.WalletAddress != address {
			continue
		}
		profile.Stats.TotalGuesses++
		if guess.IsCorrect {
			profile.Stats.CorrectGuesses++
		}
		if row := entry(guess.ImageID); row != nil {
			row.UserGuesses++
			if guess.IsCorrect {
				row.UserCorrectGuesses++
			}
		}
	}
	won := new(big.Rat)
	for _, image := range m.images {
		if image.WinnerAddress != nil && *image.WinnerAddress == address {
			if amount, ok := new(big.Rat).SetString(image.PoolAmount); ok {
				won.Add(won, amount)
			}
		}
	}
	profile.Stats.TotalPrizesWon = formatDecimal(won)

	for _, row := range perGame {
		profile.Participated = append(profile.Participated, *row)
	}
	sort.Slice(profile.Participated, func(i, j int) bool {
		return profile.Participated[i].ImageID > profile.Participated[j].ImageID
	})
	if len(profile.Participated) > participatedLimit {
		profile.Participated = profile.Participated[:participatedLimit]
	}
	return profile, nil
}

func (m *Memory) AppendEvent(ctx context.Context, imageID *uint, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, db.Event{
		ID:        m.rowIDLocked(),
		ImageID:   imageID,
		Type:      eventType,
		Payload:   datatypes.JSON(data),
		CreatedAt: m.now(),
	})
	return nil
}

// Events returns a copy of the recorded event log.
func (m *Memory) Events() []db.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.Event(nil), m.events...)
}
