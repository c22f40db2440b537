package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/braintumor-api/internal/metrics"
	"github.com/Brownie44l1/braintumor-api/internal/middleware"
	"github.com/Brownie44l1/braintumor-api/internal/model"
)

const PingMessage = "Hello, I am alive"

const stageUpload = "upload"

// Classifier is the prediction pipeline the handler drives.
type Classifier interface {
	Classify(ctx context.Context, data []byte) (*model.Prediction, error)
}

type Handler struct {
	classifier     Classifier
	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandler(classifier Classifier, m *metrics.Metrics, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		classifier:     classifier,
		metrics:        m,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, PingMessage)
}

// Predict classifies the image uploaded in the multipart field "file".
// Pipeline failures are answered with status 200 and {"error": ...}.
func (h *Handler) Predict(c *gin.Context) {
	log := h.logger.With("request_id", c.GetString(middleware.RequestIDKey))

	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes)})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		log.Warn("No file in upload", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": `multipart field "file" is required`})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, log, stageUpload, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, log, stageUpload, fmt.Errorf("read upload: %w", err))
		return
	}

	log.Info("Received file", "filename", fileHeader.Filename, "size", len(data))

	result, err := h.classifier.Classify(c.Request.Context(), data)
	if err != nil {
		h.fail(c, log, model.ErrorStage(err), err)
		return
	}

	h.metrics.ObservePrediction(result.Class)
	log.Info("Prediction", "class", result.Class, "confidence", result.Confidence)

	c.JSON(http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, log *slog.Logger, stage string, err error) {
	h.metrics.ObserveFailure(stage)
	log.Error("Prediction error", "stage", stage, "error", err)
	c.JSON(http.StatusOK, gin.H{"error": err.Error()})
}
