package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/blobstore"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxUploadBytes = 10 << 20
	dateLayout     = "2006-01-02"
)

var allowedAudioMimeTypes = map[string]bool{
	"audio/mpeg":     true,
	"audio/mp3":      true,
	"audio/wav":      true,
	"audio/wave":     true,
	"audio/x-wav":    true,
	"audio/x-pn-wav": true,
	"audio/vnd.wave": true,
}

func (h *httpHandler) handleListSnippets(c *gin.Context) {
	snippets, err := h.snippets.List(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, snippets)
}

func (h *httpHandler) handleUploadSnippet(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_too_large"})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !allowedAudioMimeTypes[mimeType] {
		h.logger.Warn("rejected upload mime type", zap.String("mime_type", mimeType))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_media_type"})
		return
	}

	probeReader, err := fileHeader.Open()
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	durationMS, err := h.prober.ProbeDuration(probeReader)
	probeReader.Close()
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	if !audio.DurationInRange(durationMS) {
		h.respondDomainError(c, fmt.Errorf("%w: %dms", audio.ErrInvalidDuration, durationMS))
		return
	}

	storageKey := fmt.Sprintf("%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(fileHeader.Filename)))
	payload, err := fileHeader.Open()
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	saveErr := h.blobs.Save(storageKey, payload)
	payload.Close()
	if saveErr != nil {
		h.respondDomainError(c, saveErr)
		return
	}

	snippet, err := h.snippets.Create(c.Request.Context(), audio.CreateInput{
		Filename:     storageKey,
		OriginalName: fileHeader.Filename,
		MimeType:     mimeType,
		DurationMS:   durationMS,
	})
	if err != nil {
		// Do not leave an unreferenced payload behind.
		if removeErr := h.blobs.Remove(storageKey); removeErr != nil {
			h.logger.Warn("orphaned upload cleanup failed", zap.Error(removeErr), zap.String("filename", storageKey))
		}
		h.respondDomainError(c, err)
		return
	}

	h.logger.Info("snippet uploaded",
		zap.String("snippet_id", snippet.ID),
		zap.String("original_name", snippet.OriginalName),
		zap.Int64("duration_ms", snippet.DurationMS))
	c.JSON(http.StatusCreated, snippet)
}

func (h *httpHandler) handleDeleteSnippet(c *gin.Context) {
	snippet, err := h.snippets.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	if err := h.blobs.Remove(snippet.Filename); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		h.logger.Warn("snippet payload removal failed", zap.Error(err), zap.String("filename", snippet.Filename))
	}
	c.JSON(http.StatusOK, gin.H{"deleted": snippet.ID})
}

type generateRequestPayload struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

type generatedParticipantPayload struct {
	participants.Participant
	EvaluationURL string `json:"evaluationUrl"`
}

// handleGenerateParticipants batch-creates participants and derives the
// QR-encodable URL for each; rendering the QR image is the client's job.
func (h *httpHandler) handleGenerateParticipants(c *gin.Context) {
	var request generateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created, err := h.registry.CreateBatch(c.Request.Context(), request.Count, request.Label)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	payload := make([]generatedParticipantPayload, 0, len(created))
	for _, participant := range created {
		payload = append(payload, generatedParticipantPayload{
			Participant:   participant,
			EvaluationURL: fmt.Sprintf("%s/evaluate/%s", h.baseURL, participant.Token),
		})
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *httpHandler) handleListParticipants(c *gin.Context) {
	all, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

type expandedResponsePayload struct {
	responses.Response
	Snippet     *audio.Snippet            `json:"snippet,omitempty"`
	Participant *participants.Participant `json:"participant,omitempty"`
}

func (h *httpHandler) handleListResponses(c *gin.Context) {
	filter := responses.Filter{SnippetID: c.Query("snippetId")}

	if raw := c.Query("selection"); raw != "" && raw != "all" {
		selection, err := responses.ParseSelection(raw)
		if err != nil {
			h.respondDomainError(c, err)
			return
		}
		filter.Selection = selection
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		filter.Date = date
	}

	listed, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	expanded := make([]expandedResponsePayload, 0, len(listed))
	for _, response := range listed {
		item := expandedResponsePayload{Response: response}
		if snippet, err := h.snippets.GetByID(c.Request.Context(), response.SnippetID); err == nil {
			item.Snippet = &snippet
		}
		if participant, err := h.registry.GetByID(c.Request.Context(), response.ParticipantID); err == nil {
			item.Participant = &participant
		}
		expanded = append(expanded, item)
	}
	c.JSON(http.StatusOK, expanded)
}

func (h *httpHandler) handleDeleteResponses(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_date"})
		return
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}

	deleted, err := h.ledger.DeleteByDate(c.Request.Context(), date)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *httpHandler) handleStats(c *gin.Context) {
	perSnippet, err := h.ledger.StatsForAllSnippets(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	overall, err := h.ledger.Overall(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snippets": perSnippet, "overall": overall})
}
