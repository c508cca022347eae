package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"docanalyzer/internal/apperr"
	"docanalyzer/internal/models"
	"docanalyzer/internal/services"
)

type AnalyzeHandler struct {
	analyzerService services.AnalyzerService
}

func NewAnalyzeHandler(analyzerService services.AnalyzerService) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzerService: analyzerService,
	}
}

// HandleAnalyze handles POST /v1/analyzer/document. The multipart form
// carries `file` (required), `filename` (string field driving format
// dispatch; the upload's own filename is the fallback) and `criteria`
// (optional JSON object of name to instruction).
func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, &apperr.Error{Code: 400, Message: "file is required"})
	}

	filename := c.FormValue("filename")
	if filename == "" {
		filename = fileHeader.Filename
	}
	if filename == "" {
		return respondError(c, &apperr.Error{Code: 400, Message: "filename is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, &apperr.Error{Code: 500, Message: "failed to read uploaded file"})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return respondError(c, &apperr.Error{Code: 500, Message: "failed to read uploaded file"})
	}

	criteriaJSON := c.FormValue("criteria")

	result, err := h.analyzerService.AnalyzeDocument(c.UserContext(), data, filename, criteriaJSON)
	if err != nil {
		// A cancelled caller has nobody left to read an envelope.
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return respondError(c, apperr.From(err))
	}

	return c.Status(fiber.StatusOK).JSON(models.SuccessEnvelope(result))
}

// respondError keeps the envelope shape stable on failure: the taxonomy code
// becomes both the HTTP status and the envelope code, data stays empty.
func respondError(c *fiber.Ctx, appErr *apperr.Error) error {
	status := appErr.Code
	if status < 400 || status > 599 {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(models.ErrorEnvelope(appErr.Code, appErr.Message))
}
