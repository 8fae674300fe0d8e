package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BuzzLyutic/hoplink/internal/service"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// Метод регистрирует все пути в роутере
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/messages", h.CreateMessage)
	api.GET("/messages/:id/stats", h.MessageStats)
	api.POST("/shares", h.CreateShare)
	api.POST("/shares/:code/forward", h.Forward)
	api.GET("/shares/:code", h.GetShare)
	api.GET("/shares/:code/lineage", h.Lineage)

	r.GET("/s/:code", h.Redirect)
	r.GET("/health", h.Health)
}

// Обрабатывает POST /api/messages: регистрирует сообщение и его корневую шару
func (h *Handler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}

	result, err := h.service.RegisterAndShare(c.Request.Context(), service.MessageInput{
		OriginURL:   req.URL,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toShareResponse(result))
}

// Обрабатывает POST /api/shares
func (h *Handler) CreateShare(c *gin.Context) {
	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}

	result, err := h.service.CreateShare(c.Request.Context(), req.MessageID, req.ParentRefCode)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toShareResponse(result))
}

// Обрабатывает POST /api/shares/:code/forward: новая шара от родителя :code
func (h *Handler) Forward(c *gin.Context) {
	result, err := h.service.CreateShare(c.Request.Context(), "", c.Param("code"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toShareResponse(result))
}

// Обрабатывает GET /api/shares/:code
func (h *Handler) GetShare(c *gin.Context) {
	ctx := c.Request.Context()

	share, err := h.service.ResolveShare(ctx, c.Param("code"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	hits, err := h.service.CountHitsByMessage(ctx, share.MessageID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ShareDetailsResponse{
		ShareID:       share.ShareID,
		RefCode:       share.RefCode,
		MessageID:     share.MessageID,
		ParentShareID: share.ParentShareID,
		TargetURL:     share.TargetURL,
		Title:         share.Title,
		Description:   share.Description,
		Hop:           share.Hop,
		Views:         share.Views,
		MessageHits:   hits,
	})
}

// Обрабатывает GET /api/shares/:code/lineage
func (h *Handler) Lineage(c *gin.Context) {
	code := c.Param("code")

	chain, err := h.service.Lineage(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	resp := LineageResponse{
		RefCode: code,
		Chain:   make([]LineageEntry, 0, len(chain)),
	}
	for _, s := range chain {
		resp.Chain = append(resp.Chain, LineageEntry{
			ShareID:       s.ID,
			RefCode:       s.RefCode,
			ParentShareID: s.ParentShareID,
			Hop:           s.Hop,
			Views:         s.Views,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// Обрабатывает GET /api/messages/:id/stats
func (h *Handler) MessageStats(c *gin.Context) {
	stats, err := h.service.MessageStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageStatsResponse{
		MessageID: stats.MessageID,
		OriginURL: stats.OriginURL,
		Title:     stats.Title,
		Shares:    stats.Shares,
		MaxHop:    stats.MaxHop,
		Hits:      stats.Hits,
	})
}

// Обрабатывает GET /s/:code: учитывает просмотр и перенаправляет на исходную ссылку
func (h *Handler) Redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	share, err := h.service.ResolveShare(ctx, code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	visitor := service.Visitor{
		UserAgent:   c.Request.UserAgent(),
		Fingerprint: fingerprint(c.ClientIP(), c.Request.UserAgent()),
	}
	if _, err := h.service.RecordView(ctx, code, visitor); err != nil {
		// Переход важнее учета: ошибку только логируем
		level := slog.LevelError
		if errors.Is(err, service.ErrHitNotRecorded) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "failed to record view",
			slog.String("ref_code", code),
			slog.Any("error", err),
		)
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, share.TargetURL)
}

// Обрабатывает GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Данный метод отображает ошибки сервиса на HTTP ответы
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL):
		h.writeError(c, http.StatusBadRequest, "empty_url", "URL cannot be empty")
	case errors.Is(err, service.ErrInvalidURL):
		h.writeError(c, http.StatusBadRequest, "invalid_url", "Invalid URL format.")
	case errors.Is(err, service.ErrEmptyMessageID):
		h.writeError(c, http.StatusBadRequest, "empty_message_id", "message_id or parent_ref_code is required")
	case errors.Is(err, service.ErrLineageMismatch):
		h.writeError(c, http.StatusBadRequest, "lineage_mismatch", "Parent share belongs to another message")
	case errors.Is(err, service.ErrValidation):
		h.writeError(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrParentNotFound):
		h.writeError(c, http.StatusNotFound, "parent_not_found", "Parent share not found")
	case errors.Is(err, service.ErrMessageNotFound):
		h.writeError(c, http.StatusNotFound, "message_not_found", "Message not found")
	case errors.Is(err, service.ErrNotFound):
		h.writeError(c, http.StatusNotFound, "not_found", "Share not found")
	case errors.Is(err, service.ErrTooManyCollisions):
		h.logger.Error("ref code space exhausted", slog.Any("error", err))
		h.writeError(c, http.StatusServiceUnavailable, "code_exhausted", "Could not allocate unique code")
	case errors.Is(err, service.ErrConflict):
		h.writeError(c, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error("unexpected error", slog.Any("error", err))
		h.writeError(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// Метод, записывающий сообщение об ошибке
func (h *Handler) writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

func toShareResponse(r *service.ShareResult) ShareResponse {
	return ShareResponse{
		ShareID:       r.ShareID,
		RefCode:       r.RefCode,
		MessageID:     r.MessageID,
		ParentShareID: r.ParentShareID,
		Hop:           r.Hop,
		ShareURL:      r.ShareURL,
	}
}

// fingerprint грубый необратимый отпечаток посетителя
func fingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:8])
}
