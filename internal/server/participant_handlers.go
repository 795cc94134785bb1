package server

import (
	"net/http"
	"strings"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/evaluation"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.credentials.Verify(request.Username, request.Password); err != nil {
		h.logger.Warn("admin login rejected", zap.String("username", request.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(request.Username)
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleAuthCheck(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if subject, err := h.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err == nil {
			c.JSON(http.StatusOK, gin.H{"authenticated": true, "admin": gin.H{"username": subject}})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (h *httpHandler) handleServeAudio(c *gin.Context) {
	filename := c.Param("filename")
	snippet, err := h.snippets.GetByFilename(c.Request.Context(), filename)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	payload, err := h.blobs.Open(snippet.Filename)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	defer payload.Close()

	c.DataFromReader(http.StatusOK, -1, snippet.MimeType, payload, nil)
}

type sessionRequestPayload struct {
	Token string `json:"token"`
}

type sessionStatePayload struct {
	Position  int  `json:"position"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}

type sessionResponsePayload struct {
	Participant    participants.Participant `json:"participant"`
	Session        sessionStatePayload      `json:"session"`
	CurrentSnippet *audio.Snippet           `json:"currentSnippet,omitempty"`
	SnippetStats   *responses.SnippetStats  `json:"snippetStats,omitempty"`
}

// handleSession lazily creates the participant's evaluation session and
// returns the snippet under the cursor.
func (h *httpHandler) handleSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	participant, err := h.registry.GetByToken(c.Request.Context(), request.Token)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	session, err := h.sessions.GetOrCreateSession(c.Request.Context(), participant.ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	response := sessionResponsePayload{
		Participant: participant,
		Session: sessionStatePayload{
			Position:  session.Position,
			Total:     session.Length(),
			Completed: session.Completed,
		},
	}

	if !session.Completed {
		snippet, err := h.sessions.CurrentSnippet(c.Request.Context(), session)
		if err != nil {
			h.respondDomainError(c, err)
			return
		}
		stats, err := h.ledger.StatsForSnippet(c.Request.Context(), snippet.ID)
		if err != nil {
			h.respondDomainError(c, err)
			return
		}
		response.CurrentSnippet = &snippet
		response.SnippetStats = &stats
	}

	c.JSON(http.StatusOK, response)
}

type submitRequestPayload struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participantId"`
	SnippetID     string `json:"snippetId"`
	Selection     string `json:"selection"`
}

type submitResponsePayload struct {
	Response         responses.Response     `json:"response"`
	Stats            responses.SnippetStats `json:"stats"`
	Feedback         string                 `json:"feedback"`
	SessionCompleted bool                   `json:"sessionCompleted"`
	Session          sessionStatePayload    `json:"session"`
}

func (h *httpHandler) handleSubmitResponse(c *gin.Context) {
	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.SnippetID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	selection, err := responses.ParseSelection(request.Selection)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	var participant participants.Participant
	if strings.TrimSpace(request.ParticipantID) != "" {
		participant, err = h.registry.GetByID(c.Request.Context(), request.ParticipantID)
	} else if strings.TrimSpace(request.Token) != "" {
		participant, err = h.registry.GetByToken(c.Request.Context(), request.Token)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	result, err := h.sessions.SubmitResponse(c.Request.Context(), participant.ID, request.SnippetID, selection)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	stats, err := h.ledger.StatsForSnippet(c.Request.Context(), request.SnippetID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submitResponsePayload{
		Response:         result.Response,
		Stats:            stats,
		Feedback:         evaluation.PickFeedback(),
		SessionCompleted: result.SessionCompleted,
		Session: sessionStatePayload{
			Position:  result.Session.Position,
			Total:     result.Session.Length(),
			Completed: result.Session.Completed,
		},
	})
}
