package server

import (
	"net/http"

	"pixpot/internal/auth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const adminAddressKey = "adminAddress"

func (s *Server) authenticateAdmin(c *gin.Context) bool {
	signer, err := s.verifier.Verify(
		c.GetHeader(auth.HeaderAddress),
		c.GetHeader(auth.HeaderSignature),
		c.GetHeader(auth.HeaderTimestamp),
	)
	if err != nil {
		s.log.Warnw("admin auth rejected", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Unauthorized - Invalid signature"})
		return false
	}
	c.Set(adminAddressKey, signer.Hex())
	return true
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authenticateAdmin(c) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// walletOwner reports whether the request carries a fresh signature from address.
func (s *Server) walletOwner(c *gin.Context, address string) bool {
	signer, err := s.verifier.VerifyWallet(
		c.GetHeader(auth.HeaderAddress),
		c.GetHeader(auth.HeaderSignature),
		c.GetHeader(auth.HeaderTimestamp),
	)
	if err != nil {
		s.log.Debugw("wallet proof rejected", "path", c.FullPath(), "error", err)
		return false
	}
	return common.IsHexAddress(address) && signer == common.HexToAddress(address)
}
