package server

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"pixpot/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxGuessLength  = 64
	maxNameLength   = 120
	maxHintLength   = 280
	maxRasterPixels = 1 << 20
)

var (
	validatorOnce sync.Once
	txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("address", func(fl validator.FieldLevel) bool {
			return common.IsHexAddress(fl.Field().String())
		})
		_ = engine.RegisterValidation("txhash", func(fl validator.FieldLevel) bool {
			return txHashPattern.MatchString(fl.Field().String())
		})
		_ = engine.RegisterValidation("guess", func(fl validator.FieldLevel) bool {
			_, err := validateGuess(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			return validateAmount(fl.Field().String()) == nil
		})
	})
}

func validateGuess(text string) (string, error) {
	trimmed := strings.Join(strings.Fields(text), " ")
	if trimmed == "" {
		return "", errors.New("empty guess")
	}
	if len(trimmed) > maxGuessLength {
		return "", fmt.Errorf("guess must be %d characters or fewer", maxGuessLength)
	}
	return trimmed, nil
}

// validateAmount accepts a non-negative decimal with at most 18 fractional digits.
func validateAmount(amount string) error {
	_, err := chain.ToWei(amount)
	return err
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	return trimmed, nil
}

// canonicalTxHash is the lowercase form stored for replay checks. Chain
// lookups ignore hex case, so the stored reference must too.
func canonicalTxHash(value string) string {
	if hash, ok := parseTxHash(value); ok {
		return hash.Hex()
	}
	return value
}

func parseTxHash(value string) (common.Hash, bool) {
	if !txHashPattern.MatchString(value) {
		return common.Hash{}, false
	}
	return common.HexToHash(value), true
}
