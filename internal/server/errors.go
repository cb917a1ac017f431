package server

import (
	"errors"
	"net/http"

	"pixpot/internal/adminsync"
	"pixpot/internal/auth"
	"pixpot/internal/chain"
	"pixpot/internal/store"

	"github.com/gin-gonic/gin"
)

var errChainUnavailable = errors.New("chain verification unavailable")

type errorStatus struct {
	err    error
	status int
}

// errorStatuses is checked in order with errors.Is.
var errorStatuses = []errorStatus{
	{store.ErrNoActiveGame, http.StatusNotFound},
	{store.ErrGameNotFound, http.StatusNotFound},
	{store.ErrIndexOutOfRange, http.StatusBadRequest},
	{store.ErrTxRefRequired, http.StatusBadRequest},
	{store.ErrReplayRejected, http.StatusBadRequest},
	{store.ErrEmptyGuess, http.StatusBadRequest},
	{store.ErrAddressRequired, http.StatusBadRequest},
	{store.ErrHasWinner, http.StatusBadRequest},
	{store.ErrTargetRequired, http.StatusBadRequest},
	{store.ErrGuessMismatch, http.StatusBadRequest},
	{store.ErrInvalidStatus, http.StatusBadRequest},
	{store.ErrInvalidRaster, http.StatusBadRequest},
	{store.ErrNoFields, http.StatusBadRequest},
	{store.ErrAlreadyRevealed, http.StatusConflict},
	{store.ErrWinnerAlreadySet, http.StatusConflict},
	{store.ErrGameCompleted, http.StatusConflict},
	{store.ErrSecretImmutable, http.StatusConflict},
	{store.ErrOnchainIDBound, http.StatusConflict},
	{adminsync.ErrNotActiveOnchain, http.StatusConflict},
	{store.ErrAdminSecretMismatch, http.StatusForbidden},
	{auth.ErrUnauthorized, http.StatusForbidden},
	{chain.ErrTxNotFound, http.StatusBadRequest},
	{chain.ErrTxFailed, http.StatusBadRequest},
	{chain.ErrWrongContract, http.StatusBadRequest},
	{chain.ErrWrongSender, http.StatusBadRequest},
	{chain.ErrWrongMethod, http.StatusBadRequest},
	{chain.ErrArgsMismatch, http.StatusBadRequest},
	{chain.ErrInvalidAmount, http.StatusBadRequest},
	{chain.ErrChainTimeout, http.StatusGatewayTimeout},
	{chain.ErrNotConfigured, http.StatusServiceUnavailable},
	{errChainUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) (int, string) {
	for _, known := range errorStatuses {
		if errors.Is(err, known.err) {
			return known.status, err.Error()
		}
	}
	var revert *chain.RevertError
	if errors.As(err, &revert) {
		return http.StatusBadRequest, revert.UserMessage()
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", c.FullPath(), "error", err)
	} else {
		s.log.Debugw("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}
