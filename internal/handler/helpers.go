package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/pkg/errcode"
	appErr "github.com/kalorin/webseek/internal/pkg/errors"
	"github.com/kalorin/webseek/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrNoSearchResults):
		response.Error(c, errcode.ErrNoSearchResults, "no search results")
	case errors.Is(err, appErr.ErrNoContent):
		response.Error(c, errcode.ErrNoContent, "no scraped content")
	case errors.Is(err, appErr.ErrTimeout):
		response.Error(c, errcode.ErrProviderUnavailable, "answer generation timed out")
	case errors.Is(err, appErr.ErrProvider):
		response.Error(c, errcode.ErrProviderUnavailable, "model provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
