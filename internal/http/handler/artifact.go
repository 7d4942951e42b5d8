package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"relnotes.app/relnotes/internal/http/dto"
	"relnotes.app/relnotes/internal/store"
)

type ArtifactHandler struct {
	artifacts store.ArtifactStore
}

func NewArtifactHandler(artifacts store.ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts}
}

// Download serves a previously rendered document by artifact name.
func (h *ArtifactHandler) Download(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	content, err := h.artifacts.Read(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrArtifactNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Status: "error", Detail: "artifact not found"})
		case errors.Is(err, store.ErrInvalidArtifact), errors.Is(err, store.ErrArtifactTraversal):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Status: "error", Detail: "invalid artifact name"})
		default:
			slog.ErrorContext(ctx, "failed to read artifact", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Status: "error", Detail: "failed to read artifact"})
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", content)
}
