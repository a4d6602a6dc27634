package controller

import (
	"context"

	"github.com/gin-gonic/gin"

	"ojcore/internal/judge/model"
	"ojcore/pkg/utils/response"
)

// StatusReader loads cached judge status.
type StatusReader interface {
	Get(ctx context.Context, submissionID string) (model.JudgeStatus, error)
}

// JudgeController handles judge status requests.
type JudgeController struct {
	repo StatusReader
}

// NewJudgeController creates a new controller.
func NewJudgeController(repo StatusReader) *JudgeController {
	return &JudgeController{repo: repo}
}

// Register mounts the routes on r.
func (h *JudgeController) Register(r gin.IRouter) {
	r.GET("/judge/status/:id", h.GetStatus)
}

// GetStatus returns status for one submission.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.repo.Get(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}
