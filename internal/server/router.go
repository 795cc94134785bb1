package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/auth"
	"github.com/coughcrowd/backend/internal/blobstore"
	"github.com/coughcrowd/backend/internal/evaluation"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminSubjectContextKey = "coughcrowd_admin_subject"

var (
	errMissingSnippetStore = errors.New("snippet store dependency required")
	errMissingRegistry     = errors.New("participant registry dependency required")
	errMissingLedger       = errors.New("response ledger dependency required")
	errMissingSessions     = errors.New("session service dependency required")
	errMissingBlobs        = errors.New("blob store dependency required")
	errMissingTokens       = errors.New("token issuer dependency required")
)

// Dependencies wires the domain services into the HTTP surface.
type Dependencies struct {
	Snippets    *audio.Store
	Registry    *participants.Registry
	Ledger      *responses.Ledger
	Sessions    *evaluation.Service
	Blobs       blobstore.Store
	Prober      audio.DurationProber
	Tokens      *auth.TokenIssuer
	Credentials auth.Credentials
	BaseURL     string
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin router for the public and admin surfaces.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Snippets == nil {
		return nil, errMissingSnippetStore
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Ledger == nil {
		return nil, errMissingLedger
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Blobs == nil {
		return nil, errMissingBlobs
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prober := deps.Prober
	if prober == nil {
		prober = audio.NewFixedProber()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		snippets:    deps.Snippets,
		registry:    deps.Registry,
		ledger:      deps.Ledger,
		sessions:    deps.Sessions,
		blobs:       deps.Blobs,
		prober:      prober,
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		logger:      logger,
	}

	api := router.Group("/api")
	api.POST("/auth/login", handler.handleLogin)
	api.GET("/auth/check", handler.handleAuthCheck)
	api.GET("/uploads/:filename", handler.handleServeAudio)
	api.POST("/sessions", handler.handleSession)
	api.POST("/responses", handler.handleSubmitResponse)

	admin := api.Group("/")
	admin.Use(handler.authorizeAdmin)
	admin.GET("/audio", handler.handleListSnippets)
	admin.POST("/audio", handler.handleUploadSnippet)
	admin.DELETE("/audio/:id", handler.handleDeleteSnippet)
	admin.POST("/participants/generate", handler.handleGenerateParticipants)
	admin.GET("/participants", handler.handleListParticipants)
	admin.GET("/responses", handler.handleListResponses)
	admin.DELETE("/responses", handler.handleDeleteResponses)
	admin.GET("/stats", handler.handleStats)

	return router, nil
}

type httpHandler struct {
	snippets    *audio.Store
	registry    *participants.Registry
	ledger      *responses.Ledger
	sessions    *evaluation.Service
	blobs       blobstore.Store
	prober      audio.DurationProber
	tokens      *auth.TokenIssuer
	credentials auth.Credentials
	baseURL     string
	logger      *zap.Logger
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subject, err := h.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		h.logger.Warn("admin token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(adminSubjectContextKey, subject)
	c.Next()
}

// respondDomainError maps domain sentinels onto stable error codes.
func (h *httpHandler) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, responses.ErrInvalidSelection):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_selection"})
	case errors.Is(err, participants.ErrInvalidBatchCount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_count"})
	case errors.Is(err, audio.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_duration"})
	case errors.Is(err, participants.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant_not_found"})
	case errors.Is(err, audio.ErrSnippetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "snippet_not_found"})
	case errors.Is(err, evaluation.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, blobstore.ErrBlobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
	case errors.Is(err, responses.ErrDuplicateResponse):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_response"})
	case errors.Is(err, evaluation.ErrNoContentAvailable):
		c.JSON(http.StatusConflict, gin.H{"error": "no_content_available"})
	case errors.Is(err, evaluation.ErrDanglingSnippet):
		c.JSON(http.StatusConflict, gin.H{"error": "dangling_snippet"})
	case errors.Is(err, evaluation.ErrSessionCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "session_completed"})
	case errors.Is(err, evaluation.ErrSnippetNotAssigned):
		c.JSON(http.StatusConflict, gin.H{"error": "snippet_not_assigned"})
	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
