package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kalorin/webseek/internal/pkg/errcode"
	"github.com/kalorin/webseek/internal/pkg/response"
	"github.com/kalorin/webseek/internal/service"
)

type AnswerHandler struct {
	svc *service.AnswerService
}

func NewAnswerHandler(svc *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{svc: svc}
}

type answerRequest struct {
	Query        string `json:"query"`
	MaxResults   *int   `json:"max_results"`
	MaxChunks    *int   `json:"max_chunks"`
	SystemPrompt string `json:"system_prompt"`
	TargetDomain string `json:"target_domain"`
	Model        string `json:"model"`
	ChunkSize    *int   `json:"chunk_size"`
	ChunkOverlap *int   `json:"chunk_overlap"`
}

// validate enforces the public API bounds. Optional knobs are pointers so an
// absent field and an explicit zero can be told apart.
func (r *answerRequest) validate() string {
	if strings.TrimSpace(r.Query) == "" {
		return "missing required parameter: query"
	}
	if r.MaxResults != nil && (*r.MaxResults < 1 || *r.MaxResults > 20) {
		return "max_results must be an integer between 1 and 20"
	}
	if r.MaxChunks != nil && (*r.MaxChunks < 1 || *r.MaxChunks > 50) {
		return "max_chunks must be an integer between 1 and 50"
	}
	if r.SystemPrompt != "" {
		if !strings.Contains(r.SystemPrompt, "{query}") || !strings.Contains(r.SystemPrompt, "{context}") {
			return "system_prompt must include {query} and {context} placeholders"
		}
	}
	if r.ChunkSize != nil && (*r.ChunkSize < 100 || *r.ChunkSize > 10000) {
		return "chunk_size must be an integer between 100 and 10000"
	}
	if r.ChunkOverlap != nil && (*r.ChunkOverlap < 0 || *r.ChunkOverlap > 1000) {
		return "chunk_overlap must be an integer between 0 and 1000"
	}
	if r.ChunkSize != nil && r.ChunkOverlap != nil && *r.ChunkOverlap >= *r.ChunkSize {
		return "chunk_overlap must be less than chunk_size"
	}
	return ""
}

func (h *AnswerHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		response.Error(c, errcode.ErrInvalid, msg)
		return
	}

	svcReq := &service.Request{
		Query:        req.Query,
		SystemPrompt: req.SystemPrompt,
		TargetDomain: strings.TrimSpace(req.TargetDomain),
		Model:        strings.TrimSpace(req.Model),
	}
	if req.MaxResults != nil {
		svcReq.MaxResults = *req.MaxResults
	}
	if req.MaxChunks != nil {
		svcReq.MaxChunks = *req.MaxChunks
	}
	if req.ChunkSize != nil {
		svcReq.ChunkSize = *req.ChunkSize
	}
	if req.ChunkOverlap != nil {
		svcReq.ChunkOverlap = *req.ChunkOverlap
	}

	ans, err := h.svc.Answer(c.Request.Context(), svcReq)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ans)
}
