package controller

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"ojcore/internal/judge/verdict"
	"ojcore/internal/submit/repository"
	"ojcore/internal/submit/service"
	"ojcore/pkg/utils/response"
)

// SubmissionService is the part of the submit service the HTTP layer uses.
type SubmissionService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResponse, error)
	Rejudge(ctx context.Context, submissionID string) (service.SubmitResponse, error)
	GetSubmission(ctx context.Context, submissionID string) (*repository.Submission, error)
}

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService SubmissionService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService SubmissionService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Register mounts the routes on r.
func (h *SubmitController) Register(r gin.IRouter) {
	r.POST("/submissions", h.Create)
	r.GET("/submissions/:id", h.Get)
	r.POST("/submissions/:id/rejudge", h.Rejudge)
}

// Create handles submission requests.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	resp, err := h.submitService.Submit(c.Request.Context(), service.SubmitRequest{
		ProblemID:      req.ProblemID,
		UserID:         req.UserID,
		Language:       req.Language,
		SourceCode:     req.SourceCode,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// Get returns one submission with its latest verdict.
func (h *SubmitController) Get(c *gin.Context) {
	submission, err := h.submitService.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newSubmissionView(submission))
}

// Rejudge dispatches a new judge attempt.
func (h *SubmitController) Rejudge(c *gin.Context) {
	resp, err := h.submitService.Rejudge(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// SubmitRequest defines submission payload.
type SubmitRequest struct {
	ProblemID  int64  `json:"problem_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

// SubmissionView is a submission without its source code.
type SubmissionView struct {
	SubmissionID string               `json:"submission_id"`
	ProblemID    int64                `json:"problem_id"`
	UserID       int64                `json:"user_id"`
	Language     string               `json:"language"`
	Verdict      verdict.Verdict      `json:"verdict"`
	Score        int                  `json:"score"`
	TimeMs       int64                `json:"time_ms"`
	MemoryKB     int64                `json:"memory_kb"`
	CompileInfo  string               `json:"compile_info,omitempty"`
	JudgeInfo    string               `json:"judge_info,omitempty"`
	ErrorRef     *verdict.ErrorRef    `json:"error_ref,omitempty"`
	Tests        []verdict.TestResult `json:"tests,omitempty"`
	Attempt      int64                `json:"attempt"`
	CreatedAt    string               `json:"created_at"`
}

func newSubmissionView(s *repository.Submission) SubmissionView {
	return SubmissionView{
		SubmissionID: s.SubmissionID,
		ProblemID:    s.ProblemID,
		UserID:       s.UserID,
		Language:     s.Language,
		Verdict:      s.Verdict,
		Score:        s.Score,
		TimeMs:       s.TimeMs,
		MemoryKB:     s.MemoryKB,
		CompileInfo:  s.CompileInfo,
		JudgeInfo:    s.JudgeInfo,
		ErrorRef:     s.ErrorRef,
		Tests:        s.Tests,
		Attempt:      s.JudgeAttempt,
		CreatedAt:    s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
