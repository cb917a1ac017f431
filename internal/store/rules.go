package store

import (
	"math/big"
	"strings"

	"pixpot/internal/db"
	"pixpot/internal/game"
)

// checkUpdate enforces the bind-once fields and admin status rules.
func checkUpdate(image *db.Image, update GameUpdate) error {
	if update.Status != nil {
		if !validUpdateStatus(*update.Status) {
			return ErrInvalidStatus
		}
		if image.Status == db.StatusCompleted {
			return ErrGameCompleted
		}
	}
	if update.AdminSecret != nil && image.AdminSecret != nil && *image.AdminSecret != *update.AdminSecret {
		return ErrSecretImmutable
	}
	if update.OnchainGameID != nil && image.OnchainGameID != nil && *image.OnchainGameID != *update.OnchainGameID {
		return ErrOnchainIDBound
	}
	return nil
}

func applyUpdate(image *db.Image, update GameUpdate) {
	if update.Answer != nil {
		image.Answer = *update.Answer
	}
	if update.Status != nil {
		image.Status = *update.Status
	}
	if update.OriginalName != nil {
		image.OriginalName = *update.OriginalName
	}
	if update.Hint0 != nil {
		image.Hint0 = update.Hint0
	}
	if update.Hint1000 != nil {
		image.Hint1000 = update.Hint1000
	}
	if update.Hint2000 != nil {
		image.Hint2000 = update.Hint2000
	}
	if update.PoolAmount != nil {
		image.PoolAmount = *update.PoolAmount
	}
	if update.AdminSecret != nil {
		image.AdminSecret = update.AdminSecret
	}
	if update.OnchainGameID != nil {
		image.OnchainGameID = update.OnchainGameID
	}
}

// checkCompletion validates a request to finish a round. A round that
// already has a different winner is never overwritten.
func checkCompletion(image *db.Image, rec GuessRecord, correct bool, address string) error {
	if !correct {
		return ErrGuessMismatch
	}
	if image.AdminSecret != nil && (rec.AdminSecret == nil || *rec.AdminSecret != *image.AdminSecret) {
		return ErrAdminSecretMismatch
	}
	if image.WinnerAddress != nil && *image.WinnerAddress != address {
		return ErrWinnerAlreadySet
	}
	return nil
}

// checkGuessReplay decides what a second record of one transaction means.
// The same player and text is a retried write; anything else reuses a paid tx.
func checkGuessReplay(prior *db.Guess, address, normalized string) (bool, error) {
	if prior == nil {
		return false, nil
	}
	if prior.WalletAddress != address || prior.GuessText != normalized {
		return false, ErrReplayRejected
	}
	return true, nil
}

func normalizeTxRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	normalized := game.NormalizeTxHash(*ref)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func participatedFrom(image *db.Image) ParticipatedGame {
	row := ParticipatedGame{
		ImageID:       image.ID,
		OnchainGameID: image.OnchainGameID,
		Filename:      image.Filename,
		OriginalName:  image.OriginalName,
		Status:        image.Status,
		PoolAmount:    image.PoolAmount,
		WinnerAddress: image.WinnerAddress,
	}
	if image.Status == db.StatusCompleted {
		answer := image.Answer
		row.Answer = &answer
	}
	return row
}

// formatDecimal renders an exact decimal without trailing zeros.
func formatDecimal(value *big.Rat) string {
	text := value.FloatString(18)
	for len(text) > 1 && text[len(text)-1] == '0' {
		text = text[:len(text)-1]
	}
	if text[len(text)-1] == '.' {
		text = text[:len(text)-1]
	}
	return text
}

// normalizeAmount canonicalizes a decimal column value as read back from the database.
func normalizeAmount(raw string) string {
	value, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
	if !ok {
		return "0"
	}
	return formatDecimal(value)
}
