package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/solrank/internal/apperr"
	"github.com/rawblock/solrank/internal/pipeline"
	"github.com/rawblock/solrank/internal/resultcache"
	"github.com/rawblock/solrank/internal/watchlist"
	"github.com/rawblock/solrank/pkg/models"
)

// requestResultKeyPrefix namespaces an analyze request's stored result in
// job-result keyspace so it can reuse resultcache's existing TTL/storage
// rather than needing a fourth cache shape.
const requestResultKeyPrefix = "request-"

// APIHandler holds every dependency the operator surface calls into.
type APIHandler struct {
	coordinator *pipeline.Coordinator
	cache       *resultcache.Store
	wsHub       *Hub
	watchlist   *watchlist.Store
}

// SetupRouter builds the gin engine: public health/websocket endpoints,
// and bearer-auth + rate-limited endpoints for analysis and the
// watchlist, adapted from internal/api/{routes,auth,ratelimit,websocket}.go.
func SetupRouter(coordinator *pipeline.Coordinator, cache *resultcache.Store, wsHub *Hub, wl *watchlist.Store) *gin.Engine {
	r := gin.Default()

	// CORS — configurable via ALLOWED_ORIGINS (comma-separated), "*" or
	// unset allows any origin.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		coordinator: coordinator,
		cache:       cache,
		wsHub:       wsHub,
		watchlist:   wl,
	}

	pub := r.Group("/")
	{
		pub.GET("/healthz", handler.handleHealthz)
		pub.GET("/api/v1/ws", func(c *gin.Context) { wsHub.Subscribe(c) })
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(DefaultAnalyzeRatePerMinute, DefaultAnalyzeBurst).Middleware())
	{
		auth.POST("/analyze", handler.handleAnalyze)
		auth.GET("/analyze/:requestId", handler.handleGetAnalysis)

		wlGroup := auth.Group("/watchlist/:userId")
		{
			wlGroup.GET("", handler.handleListWatchlist)
			wlGroup.POST("", handler.handleUpsertWatchlist)
			wlGroup.DELETE("/:address", handler.handleRemoveWatchlist)
		}
	}

	return r
}

// handleHealthz reports liveness plus the §6 unsafe-default-credential
// check — a deployment left with no/placeholder API_AUTH_TOKEN must be
// visible to an operator, not silently insecure.
func (h *APIHandler) handleHealthz(c *gin.Context) {
	status := "ok"
	redisErr := ""
	if err := h.cache.HealthCheck(c.Request.Context()); err != nil {
		status = "degraded"
		redisErr = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                status,
		"redisError":            redisErr,
		"unsafeDefaultCredential": UnsafeDefaultCredential(),
	})
}

// handleAnalyze accepts the §6 Analysis request shape, kicks off the
// per-token sub-pipeline graph asynchronously, and returns a request id
// immediately. The caller polls GET /api/v1/analyze/:requestId for the
// assembled result.
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Tokens) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tokens must not be empty"})
		return
	}

	requestID := uuid.NewString()

	go h.runAnalysis(requestID, req)

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

// runAnalysis executes the request against a background context (the HTTP
// request that triggered it may already have returned) and persists the
// result under the same key GET /api/v1/analyze/:requestId reads.
func (h *APIHandler) runAnalysis(requestID string, req models.AnalysisRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), models.DefaultJobTimeout)
	defer cancel()

	h.wsHub.BroadcastEvent(ProgressEvent{RequestID: requestID, Stage: "analyze", Status: "started"})

	result := h.coordinator.AnalyzeRequest(ctx, req)

	payload, err := json.Marshal(result)
	if err != nil {
		h.wsHub.BroadcastEvent(ProgressEvent{RequestID: requestID, Stage: "analyze", Status: "failed", Message: err.Error()})
		_ = h.cache.WriteJobResult(ctx, requestResultKeyPrefix+requestID, false, nil, err.Error())
		return
	}

	status := "finished"
	if !result.Success {
		status = "failed"
	}
	h.wsHub.BroadcastEvent(ProgressEvent{RequestID: requestID, Stage: "analyze", Status: status})
	// Always store the envelope as a successful job-result once it
	// marshals — result.Success (a per-request field inside the payload)
	// is what tells the caller whether the analysis itself succeeded.
	_ = h.cache.WriteJobResult(ctx, requestResultKeyPrefix+requestID, true, payload, "")
}

// handleGetAnalysis polls the result cache for the assembled result,
// returning 202 while it's still in flight.
func (h *APIHandler) handleGetAnalysis(c *gin.Context) {
	requestID := c.Param("requestId")

	res, ok, err := h.cache.GetJobResult(c.Request.Context(), requestResultKeyPrefix+requestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
		return
	}
	if len(res.Payload) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error})
		return
	}

	var out models.AnalysisResult
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt stored result: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) handleListWatchlist(c *gin.Context) {
	if h.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist store not configured"})
		return
	}
	entries, err := h.watchlist.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *APIHandler) handleUpsertWatchlist(c *gin.Context) {
	if h.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist store not configured"})
		return
	}
	var body struct {
		Address string `json:"address"`
		Label   string `json:"label"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	if err := h.watchlist.Upsert(c.Request.Context(), c.Param("userId"), body.Address, body.Label); err != nil {
		if errors.Is(err, apperr.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *APIHandler) handleRemoveWatchlist(c *gin.Context) {
	if h.watchlist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "watchlist store not configured"})
		return
	}
	if err := h.watchlist.Remove(c.Request.Context(), c.Param("userId"), c.Param("address")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
