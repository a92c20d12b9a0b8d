package dialogue

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/service/dialogue"
	"github.com/zhouzirui/echomind/backend/internal/service/metrics"
	"github.com/zhouzirui/echomind/backend/internal/store"
	"github.com/zhouzirui/echomind/backend/pkg/utils"
)

// Handler 对话管线的HTTP处理器
type Handler struct {
	dialogueSvc *dialogue.Service
	metricsSvc  *metrics.Service
	logger      *zap.Logger
}

// New 创建对话处理器
func New(dialogueSvc *dialogue.Service, metricsSvc *metrics.Service, logger *zap.Logger) *Handler {
	return &Handler{
		dialogueSvc: dialogueSvc,
		metricsSvc:  metricsSvc,
		logger:      logger,
	}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/setup", h.handleSetup)
	r.Post("/voice", h.handleVoiceInput)
	r.Get("/conversations/{sessionID}", h.handleConversation)
	r.Get("/metrics", h.handleMetrics)
}

// handleSetup 写入默认意图与情绪模型
func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.dialogueSvc.InitializeDefaults(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"seeded": seeded})
}

// handleVoiceInput 处理一句最终识别文本
func (h *Handler) handleVoiceInput(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text      string `json:"text"`
		SessionID string `json:"sessionId"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.dialogueSvc.ProcessVoiceInput(r.Context(), payload.Text, payload.SessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleConversation 返回会话历史
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := h.dialogueSvc.GetConversationHistory(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if conv == nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, conv)
}

// handleMetrics 返回性能统计
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.metricsSvc.GetPerformanceMetrics(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
		utils.RespondError(w, status, http.StatusText(status))
		return
	}
	utils.RespondError(w, status, err.Error())
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dialogue.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, dialogue.ErrEmptyInput),
		errors.Is(err, dialogue.ErrSessionRequired):
		return http.StatusBadRequest
	case errors.Is(err, dialogue.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
