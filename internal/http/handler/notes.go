package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"relnotes.app/relnotes/internal/http/dto"
	"relnotes.app/relnotes/internal/pipeline"
)

// PipelineRunner is the single operation the service layer invokes.
type PipelineRunner interface {
	HandleRequest(ctx context.Context, utterance string) (pipeline.Result, error)
}

type NotesHandler struct {
	pipeline PipelineRunner
}

func NewNotesHandler(runner PipelineRunner) *NotesHandler {
	return &NotesHandler{pipeline: runner}
}

func (h *NotesHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid generate request", "error", err)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Status: "error",
			Detail: "message is required",
		})
		return
	}

	result, err := h.pipeline.HandleRequest(ctx, req.Message)
	if err != nil {
		var pipeErr *pipeline.Error
		if errors.As(err, &pipeErr) {
			c.JSON(statusForKind(pipeErr.Kind), dto.ErrorResponse{
				Status: "error",
				Kind:   string(pipeErr.Kind),
				Detail: pipeErr.Detail,
			})
			return
		}
		slog.ErrorContext(ctx, "pipeline failed without structured error", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Status: "error",
			Detail: "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, dto.GenerateNotesResponse{
		Status:       "ok",
		Message:      result.Message,
		ArtifactName: result.Artifact.Name,
		ArtifactRef:  "/artifacts/" + result.Artifact.Ref,
	})
}

func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindModerationRejected:
		return http.StatusBadRequest
	case pipeline.KindClassificationAmbiguous, pipeline.KindClassificationMissingParameter:
		return http.StatusUnprocessableEntity
	case pipeline.KindFetchNotFound:
		return http.StatusNotFound
	case pipeline.KindFetchRateLimited:
		return http.StatusTooManyRequests
	case pipeline.KindFetchUnavailable:
		return http.StatusBadGateway
	case pipeline.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
