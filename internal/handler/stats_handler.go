package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kalorin/webseek/internal/cache"
	"github.com/kalorin/webseek/internal/pkg/response"
)

type StatsHandler struct {
	respCache *cache.ResponseCache
}

func NewStatsHandler(respCache *cache.ResponseCache) *StatsHandler {
	return &StatsHandler{respCache: respCache}
}

func (h *StatsHandler) CacheStats(c *gin.Context) {
	response.Success(c, h.respCache.Stats())
}
