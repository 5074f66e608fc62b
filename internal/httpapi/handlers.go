package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"memestats-backend/internal/observability"
	"memestats-backend/internal/stats"
	"memestats-backend/internal/storage"
	"memestats-backend/internal/upload"
)

type handlers struct {
	stats          StatsProvider
	memes          storage.MemeStore
	objects        upload.ObjectStore
	maxUploadBytes int64
	log            logrus.FieldLogger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) tokenStats(c *gin.Context) {
	snapshot, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		if errors.Is(err, stats.ErrAllSourcesUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "all_sources_unavailable"})
			return
		}
		h.log.WithError(err).Error("token stats request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *handlers) uploadMeme(c *gin.Context) {
	file, header, err := c.Request.FormFile("meme")
	if err != nil {
		observability.RecordUploadRejected("missing_file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file", "message": "multipart field 'meme' is required"})
		return
	}
	defer file.Close()

	// Read one byte past the limit so oversized payloads are caught without
	// buffering the whole body.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.log.WithError(err).Error("reading upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	contentType, err := upload.Validate(data, h.maxUploadBytes)
	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			observability.RecordUploadRejected(verr.Code)
			status := http.StatusBadRequest
			if verr.Code == "too_large" {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, gin.H{"error": verr.Code, "message": verr.Message})
			return
		}
		h.log.WithError(err).Error("upload validation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	url, err := h.objects.Store(c.Request.Context(), data, contentType)
	if err != nil {
		h.log.WithError(err).Error("storing upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	meme := &storage.Meme{
		ID:          uuid.NewString(),
		FileName:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		URL:         url,
		UploadedAt:  time.Now().UTC(),
	}
	if err := h.memes.Insert(c.Request.Context(), meme); err != nil {
		h.log.WithError(err).Error("inserting meme record failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	observability.RecordUploadAccepted()
	c.JSON(http.StatusCreated, meme)
}

func (h *handlers) listMemes(c *gin.Context) {
	memes, err := h.memes.List(c.Request.Context(), 0)
	if err != nil {
		h.log.WithError(err).Error("listing memes failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	if memes == nil {
		memes = []*storage.Meme{}
	}
	c.JSON(http.StatusOK, memes)
}
