package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pixpot/internal/db"
	"pixpot/internal/game"
	"pixpot/internal/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const activateAttempts = 3

// Gorm is the database-backed Repository.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGorm(conn *gorm.DB) *Gorm {
	return &Gorm{db: conn, now: func() time.Time { return time.Now().UTC() }}
}

func notFound(err, replacement error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return replacement
	}
	return err
}

func (g *Gorm) ActiveGame(ctx context.Context) (*db.Image, error) {
	var image db.Image
	if err := g.db.WithContext(ctx).Where("status = ?", db.StatusActive).Order("id DESC").First(&image).Error; err != nil {
		return nil, notFound(err, ErrNoActiveGame)
	}
	return &image, nil
}

func (g *Gorm) GameByID(ctx context.Context, id uint) (*db.Image, error) {
	var image db.Image
	if err := g.db.WithContext(ctx).First(&image, id).Error; err != nil {
		return nil, notFound(err, ErrGameNotFound)
	}
	return &image, nil
}

func (g *Gorm) GameByOnchainID(ctx context.Context, onchainID uint64) (*db.Image, error) {
	var image db.Image
	if err := g.db.WithContext(ctx).Where("onchain_game_id = ?", onchainID).First(&image).Error; err != nil {
		return nil, notFound(err, ErrGameNotFound)
	}
	return &image, nil
}

func (g *Gorm) StatusCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string
		Count  int
	}
	if err := g.db.WithContext(ctx).Model(&db.Image{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (g *Gorm) NextArchivedGame(ctx context.Context) (*db.Image, error) {
	var image db.Image
	err := g.db.WithContext(ctx).Omit("pixel_data").
		Where("status = ? AND winner_address IS NULL", db.StatusArchived).
		Order("id ASC").
		First(&image).Error
	if err != nil {
		return nil, notFound(err, ErrGameNotFound)
	}
	return &image, nil
}

func (g *Gorm) CompletedGames(ctx context.Context, limit int) ([]db.Image, error) {
	var images []db.Image
	query := g.db.WithContext(ctx).Omit("pixel_data").
		Where("status = ?", db.StatusCompleted).
		Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (g *Gorm) ListGames(ctx context.Context) ([]db.Image, error) {
	var images []db.Image
	if err := g.db.WithContext(ctx).Omit("pixel_data").Order("id DESC").Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (g *Gorm) GameActivity(ctx context.Context, imageID uint) (*Activity, error) {
	conn := g.db.WithContext(ctx)
	var exists int64
	if err := conn.Model(&db.Image{}).Where("id = ?", imageID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrGameNotFound
	}
	activity := &Activity{}
	if err := conn.Where("image_id = ?", imageID).Order("pixel_index ASC").Find(&activity.Revealed).Error; err != nil {
		return nil, err
	}
	var guesses int64
	if err := conn.Model(&db.Guess{}).Where("image_id = ?", imageID).Count(&guesses).Error; err != nil {
		return nil, err
	}
	activity.Guesses = int(guesses)
	var participants int64
	if err := conn.Raw(
		`SELECT COUNT(DISTINCT addr) FROM (
			SELECT revealed_by AS addr FROM revealed_pixels WHERE image_id = ?
			UNION SELECT wallet_address AS addr FROM guesses WHERE image_id = ?
		) participants`, imageID, imageID,
	).Scan(&participants).Error; err != nil {
		return nil, err
	}
	activity.Participants = int(participants)
	return activity, nil
}

func (g *Gorm) CreateGame(ctx context.Context, image *db.Image) error {
	if !game.ValidRaster(image.PixelData, image.Width, image.Height) {
		return ErrInvalidRaster
	}
	image.ID = 0
	image.TotalPixels = image.Width * image.Height
	image.RevealedPixels = 0
	if image.Status == "" {
		image.Status = db.StatusArchived
	}
	if image.PoolAmount == "" {
		image.PoolAmount = "0"
	}
	if err := g.db.WithContext(ctx).Create(image).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrOnchainIDBound
		}
		return err
	}
	return nil
}

func (g *Gorm) UpdateGame(ctx context.Context, id uint, update GameUpdate) (*db.Image, error) {
	if update.empty() {
		return nil, ErrNoFields
	}
	var image db.Image
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&image, id).Error; err != nil {
			return notFound(err, ErrGameNotFound)
		}
		if err := checkUpdate(&image, update); err != nil {
			return err
		}
		applyUpdate(&image, update)
		image.UpdatedAt = g.now()
		return tx.Model(&db.Image{}).Where("id = ?", id).Updates(map[string]any{
			"answer":          image.Answer,
			"status":          image.Status,
			"original_name":   image.OriginalName,
			"hint_0":          image.Hint0,
			"hint_1000":       image.Hint1000,
			"hint_2000":       image.Hint2000,
			"pool_amount":     image.PoolAmount,
			"admin_secret":    image.AdminSecret,
			"onchain_game_id": image.OnchainGameID,
			"updated_at":      image.UpdatedAt,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOnchainIDBound
		}
		return nil, err
	}
	return &image, nil
}

func (g *Gorm) SetActiveGame(ctx context.Context, target ActivateTarget) (*db.Image, error) {
	if target.GameID == nil && target.OnchainGameID == nil {
		return nil, ErrTargetRequired
	}
	var (
		image *db.Image
		err   error
	)
	// A concurrent activation trips the single-active index; retrying
	// re-reads the committed state.
	for attempt := 1; attempt <= activateAttempts; attempt++ {
		image, err = g.activateOnce(ctx, target)
		if err == nil || !isUniqueViolation(err) {
			break
		}
		logger.Log.Warnw("activation conflict", "attempt", attempt, "error", err)
	}
	return image, err
}

func (g *Gorm) activateOnce(ctx context.Context, target ActivateTarget) (*db.Image, error) {
	var image db.Image
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Omit("pixel_data")
		linked := false
		switch {
		case target.GameID != nil:
			if err := locked.First(&image, *target.GameID).Error; err != nil {
				return notFound(err, ErrGameNotFound)
			}
		default:
			err := locked.Where("onchain_game_id = ?", *target.OnchainGameID).First(&image).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Omit("pixel_data").
					Where("status = ? AND winner_address IS NULL AND onchain_game_id IS NULL", db.StatusArchived).
					Order("id ASC").
					First(&image).Error
				linked = err == nil
			}
			if err != nil {
				return notFound(err, ErrGameNotFound)
			}
		}
		if image.Status == db.StatusCompleted {
			return ErrGameCompleted
		}

		now := g.now()
		if err := tx.Model(&db.Image{}).
			Where("status = ? AND id <> ?", db.StatusActive, image.ID).
			Updates(map[string]any{"status": db.StatusArchived, "updated_at": now}).Error; err != nil {
			return err
		}
		updates := map[string]any{"status": db.StatusActive, "updated_at": now}
		if target.PoolAmount != nil {
			updates["pool_amount"] = *target.PoolAmount
			image.PoolAmount = *target.PoolAmount
		}
		if linked {
			onchainID := *target.OnchainGameID
			updates["onchain_game_id"] = onchainID
			image.OnchainGameID = &onchainID
		}
		image.Status = db.StatusActive
		image.UpdatedAt = now
		return tx.Model(&db.Image{}).Where("id = ?", image.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (g *Gorm) DeleteGame(ctx context.Context, target Target) (*db.Image, error) {
	if target.GameID == nil && target.OnchainGameID == nil {
		return nil, ErrTargetRequired
	}
	var image db.Image
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Omit("pixel_data")
		var err error
		if target.GameID != nil {
			err = query.First(&image, *target.GameID).Error
		} else {
			err = query.Where("onchain_game_id = ?", *target.OnchainGameID).First(&image).Error
		}
		if err != nil {
			return notFound(err, ErrGameNotFound)
		}
		if image.WinnerAddress != nil {
			return ErrHasWinner
		}
		if err := tx.Where("image_id = ?", image.ID).Delete(&db.Guess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", image.ID).Delete(&db.RevealedPixel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Image{}, image.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (g *Gorm) RevealPixel(ctx context.Context, req RevealRequest) (RevealResult, error) {
	image, err := g.ActiveGame(ctx)
	if err != nil {
		return RevealResult{}, err
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

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := db.RevealedPixel{
			ImageID:    image.ID,
			PixelIndex: req.Index,
			RevealedBy: game.NormalizeAddress(req.Revealer),
			TxHash:     txRef,
			RevealedAt: g.now(),
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if insert.Error != nil && !isUniqueViolation(insert.Error) {
			return insert.Error
		}
		if insert.Error != nil || insert.RowsAffected == 0 {
			return revealConflict(tx, image.ID, txRef)
		}
		if err := tx.Model(&db.Image{}).
			Where("id = ? AND revealed_pixels < total_pixels", image.ID).
			UpdateColumn("revealed_pixels", gorm.Expr("revealed_pixels + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&db.Image{}).Select("revealed_pixels").Where("id = ?", image.ID).Scan(&result.RevealedPixels).Error
	})
	return result, err
}

// revealConflict names which uniqueness rule rejected an insert.
func revealConflict(tx *gorm.DB, imageID uint, txRef string) error {
	var used int64
	if err := tx.Model(&db.RevealedPixel{}).Where("image_id = ? AND tx_hash = ?", imageID, txRef).Count(&used).Error; err != nil {
		return err
	}
	if used > 0 {
		return ErrReplayRejected
	}
	return ErrAlreadyRevealed
}

func (g *Gorm) RecordGuess(ctx context.Context, rec GuessRecord) (GuessOutcome, error) {
	normalized := game.NormalizeGuess(rec.Guess)
	if normalized == "" {
		return GuessOutcome{}, ErrEmptyGuess
	}
	address := game.NormalizeAddress(rec.Address)
	if address == "" {
		return GuessOutcome{}, ErrAddressRequired
	}
	rec.TxRef = normalizeTxRef(rec.TxRef)

	var outcome GuessOutcome
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var image db.Image
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Omit("pixel_data")
		if rec.OnchainGameID != nil {
			if err := query.Where("onchain_game_id = ?", *rec.OnchainGameID).First(&image).Error; err != nil {
				return notFound(err, ErrGameNotFound)
			}
		} else if err := query.Where("status = ?", db.StatusActive).Order("id DESC").First(&image).Error; err != nil {
			return notFound(err, ErrNoActiveGame)
		}

		prior, err := guessByTx(tx, image.ID, rec.TxRef)
		if err != nil {
			return err
		}
		retried, err := checkGuessReplay(prior, address, normalized)
		if err != nil {
			return err
		}

		correct := game.IsCorrect(image.Answer, normalized)
		row := db.Guess{
			ImageID:       image.ID,
			WalletAddress: address,
			GuessText:     normalized,
			IsCorrect:     correct,
			TxHash:        rec.TxRef,
			CreatedAt:     g.now(),
		}
		outcome = GuessOutcome{Game: &image, Correct: correct, Duplicate: retried}
		if !rec.Complete {
			if retried {
				return nil
			}
			return createGuess(tx, &row)
		}

		if err := checkCompletion(&image, rec, correct, address); err != nil {
			return err
		}
		if image.WinnerAddress != nil {
			if retried {
				return nil
			}
			row.AdminSecret = rec.AdminSecret
			return createGuess(tx, &row)
		}

		if !retried {
			row.AdminSecret = rec.AdminSecret
			if err := createGuess(tx, &row); err != nil {
				return err
			}
		}
		updates := map[string]any{
			"status":         db.StatusCompleted,
			"winner_address": address,
			"updated_at":     g.now(),
		}
		if rec.PoolAmount != nil {
			updates["pool_amount"] = *rec.PoolAmount
			image.PoolAmount = *rec.PoolAmount
		}
		update := tx.Model(&db.Image{}).Where("id = ? AND winner_address IS NULL", image.ID).Updates(updates)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return ErrWinnerAlreadySet
		}
		image.Status = db.StatusCompleted
		image.WinnerAddress = &address
		outcome.Completed = true
		outcome.Duplicate = false
		return nil
	})
	if err != nil {
		return GuessOutcome{}, err
	}
	return outcome, nil
}

// guessByTx finds the guess already logged for txRef in this round.
func guessByTx(tx *gorm.DB, imageID uint, txRef *string) (*db.Guess, error) {
	if txRef == nil {
		return nil, nil
	}
	var prior db.Guess
	err := tx.Where("image_id = ? AND tx_hash = ?", imageID, *txRef).Order("id").First(&prior).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}

// createGuess inserts a guess row. A unique violation means a concurrent
// writer bound the same transaction first.
func createGuess(tx *gorm.DB, row *db.Guess) error {
	err := tx.Create(row).Error
	if isUniqueViolation(err) {
		return ErrReplayRejected
	}
	return err
}

type claimRow struct {
	ImageID       uint
	OnchainGameID uint64
	GuessText     string
	AdminSecret   string
	Answer        string
	Filename      string
	OriginalName  string
	CreatedAt     time.Time
}

func (g *Gorm) claimQuery(ctx context.Context, address string) *gorm.DB {
	return g.db.WithContext(ctx).Table("guesses AS g").
		Select("i.id AS image_id, i.onchain_game_id, g.guess_text, g.admin_secret, i.answer, i.filename, i.original_name, g.created_at").
		Joins("JOIN images AS i ON i.id = g.image_id").
		Where("g.wallet_address = ? AND g.is_correct = ? AND g.admin_secret IS NOT NULL", address, true).
		Where("i.status = ? AND i.onchain_game_id IS NOT NULL AND i.winner_address = ?", db.StatusCompleted, address).
		Order("g.created_at DESC")
}

func (g *Gorm) WinnerClaims(ctx context.Context, address string) ([]Claim, error) {
	address = game.NormalizeAddress(address)
	var rows []claimRow
	if err := g.claimQuery(ctx, address).Scan(&rows).Error; err != nil {
		return nil, err
	}
	claims := make([]Claim, 0, len(rows))
	seen := make(map[uint]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ImageID]; dup {
			continue
		}
		seen[row.ImageID] = struct{}{}
		claims = append(claims, Claim(row))
	}
	return claims, nil
}

func (g *Gorm) WinnerClaim(ctx context.Context, address string, onchainID uint64) (*Claim, error) {
	address = game.NormalizeAddress(address)
	var rows []claimRow
	if err := g.claimQuery(ctx, address).Where("i.onchain_game_id = ?", onchainID).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrGameNotFound
	}
	claim := Claim(rows[0])
	return &claim, nil
}

func (g *Gorm) RevealerGames(ctx context.Context, address string) ([]RevealerGame, error) {
	address = game.NormalizeAddress(address)
	var rows []struct {
		ImageID       uint
		OnchainGameID uint64
		WinnerAddress *string
		PoolAmount    string
		Filename      string
		OriginalName  string
		Pixels        int
	}
	err := g.db.WithContext(ctx).Table("revealed_pixels AS p").
		Select("i.id AS image_id, i.onchain_game_id, i.winner_address, i.pool_amount, i.filename, i.original_name, COUNT(p.id) AS pixels").
		Joins("JOIN images AS i ON i.id = p.image_id").
		Where("p.revealed_by = ? AND i.status = ? AND i.onchain_game_id IS NOT NULL", address, db.StatusCompleted).
		Group("i.id, i.onchain_game_id, i.winner_address, i.pool_amount, i.filename, i.original_name").
		Order("i.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]RevealerGame, 0, len(rows))
	for _, row := range rows {
		winner := ""
		if row.WinnerAddress != nil {
			winner = *row.WinnerAddress
		}
		out = append(out, RevealerGame{
			ImageID:       row.ImageID,
			OnchainGameID: row.OnchainGameID,
			WinnerAddress: winner,
			PoolAmount:    normalizeAmount(row.PoolAmount),
			Filename:      row.Filename,
			OriginalName:  row.OriginalName,
			Pixels:        row.Pixels,
		})
	}
	return out, nil
}

func (g *Gorm) Profile(ctx context.Context, address string) (*Profile, error) {
	address = game.NormalizeAddress(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	conn := g.db.WithContext(ctx)
	profile := &Profile{}

	var pixelRows []struct {
		ImageID uint
		Count   int
	}
	if err := conn.Model(&db.RevealedPixel{}).
		Select("image_id, COUNT(*) AS count").
		Where("revealed_by = ?", address).
		Group("image_id").
		Scan(&pixelRows).Error; err != nil {
		return nil, err
	}
	var guessRows []struct {
		ImageID uint
		Count   int
		Correct int
	}
	if err := conn.Model(&db.Guess{}).
		Select("image_id, COUNT(*) AS count, SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) AS correct").
		Where("wallet_address = ?", address).
		Group("image_id").
		Scan(&guessRows).Error; err != nil {
		return nil, err
	}
	var won string
	if err := conn.Model(&db.Image{}).
		Select("COALESCE(SUM(pool_amount), 0)").
		Where("winner_address = ?", address).
		Scan(&won).Error; err != nil {
		return nil, err
	}
	profile.Stats.TotalPrizesWon = normalizeAmount(won)

	perGame := make(map[uint]*ParticipatedGame)
	ids := make([]uint, 0, len(pixelRows)+len(guessRows))
	for _, row := range pixelRows {
		profile.Stats.TotalPixelsRevealed += row.Count
		perGame[row.ImageID] = &ParticipatedGame{ImageID: row.ImageID, UserPixels: row.Count}
		ids = append(ids, row.ImageID)
	}
	for _, row := range guessRows {
		profile.Stats.TotalGuesses += row.Count
		profile.Stats.CorrectGuesses += row.Correct
		entry, ok := perGame[row.ImageID]
		if !ok {
			entry = &ParticipatedGame{ImageID: row.ImageID}
			perGame[row.ImageID] = entry
			ids = append(ids, row.ImageID)
		}
		entry.UserGuesses = row.Count
		entry.UserCorrectGuesses = row.Correct
	}
	if len(ids) == 0 {
		return profile, nil
	}

	var images []db.Image
	if err := conn.Omit("pixel_data").Where("id IN ?", ids).Order("id DESC").Limit(participatedLimit).Find(&images).Error; err != nil {
		return nil, err
	}
	for i := range images {
		row := participatedFrom(&images[i])
		row.PoolAmount = normalizeAmount(row.PoolAmount)
		counts := perGame[images[i].ID]
		row.UserPixels = counts.UserPixels
		row.UserGuesses = counts.UserGuesses
		row.UserCorrectGuesses = counts.UserCorrectGuesses
		profile.Participated = append(profile.Participated, row)
	}
	return profile, nil
}

func (g *Gorm) AppendEvent(ctx context.Context, imageID *uint, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		ImageID:   imageID,
		Type:      eventType,
		Payload:   datatypes.JSON(data),
		CreatedAt: g.now(),
	}
	return g.db.WithContext(ctx).Create(&event).Error
}
