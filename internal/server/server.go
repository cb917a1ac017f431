package server

import (
	"context"
	"net/http"
	"time"

	"pixpot/internal/adminsync"
	"pixpot/internal/auth"
	"pixpot/internal/chain"
	"pixpot/internal/config"
	"pixpot/internal/db"
	"pixpot/internal/logger"
	"pixpot/internal/prize"
	"pixpot/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Chain is the contract access the API needs: transaction verification,
// prize reads and activation sync.
type Chain interface {
	prize.Chain
	adminsync.Chain
	VerifyTx(ctx context.Context, txHash common.Hash, want chain.Expectation) (*chain.VerifiedTx, error)
}

type Server struct {
	repo     store.Repository
	chain    Chain
	prizes   *prize.Reconciler
	syncer   *adminsync.Syncer
	verifier *auth.Verifier
	hub      *hub
	cfg      config.Config
	log      *zap.SugaredLogger
}

// New builds the API server. contract may be nil; endpoints that need the
// chain then answer 503.
func New(cfg config.Config, repo store.Repository, contract Chain) *Server {
	s := &Server{
		repo:     repo,
		chain:    contract,
		verifier: auth.NewVerifier(cfg.AdminAddress, cfg.AdminAuthWindow()),
		hub:      newHub(),
		cfg:      cfg,
		log:      logger.Named("server"),
	}
	var syncChain adminsync.Chain
	if contract != nil {
		syncChain = contract
		s.prizes = prize.NewReconciler(repo, contract)
	}
	s.syncer = adminsync.NewSyncer(repo, syncChain, cfg.SyncPollInterval(), s.onActivated)
	return s
}

// Sync mirrors onchain activations until ctx ends.
func (s *Server) Sync(ctx context.Context) error {
	return s.syncer.Run(ctx)
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(s.corsConfig()))

	api := r.Group("/api")
	api.GET("/game", s.handleGetGame)
	api.GET("/game/next", s.handleNextGame)
	api.GET("/history", s.handleHistory)
	api.POST("/pixels", s.handleRevealPixel)
	api.POST("/verify-guess", s.handleVerifyGuess)
	api.POST("/guess", s.handleRecordGuess)
	api.GET("/claim-prize", s.handleListClaims)
	api.POST("/claim-prize", s.handleClaimData)
	api.GET("/prizes/winner", s.handleWinnerPrizes)
	api.GET("/prizes/revealer", s.handleRevealerShares)
	api.GET("/profile", s.handleProfile)

	api.POST("/admin/activate", s.handleActivate)
	admin := api.Group("/admin", s.requireAdmin())
	admin.DELETE("/games", s.handleDeleteGame)
	admin.GET("/images", s.handleListImages)
	admin.POST("/images", s.handleCreateImage)
	admin.PATCH("/images/:id", s.handleUpdateImage)

	r.GET("/ws/game", s.handleWebsocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", auth.HeaderAddress, auth.HeaderSignature, auth.HeaderTimestamp},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
	}
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugw("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) onActivated(image *db.Image, payload adminsync.ActivatedPayload) {
	s.broadcast(eventGameActivated, payload)
}
