package intent

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/config"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
	"github.com/zhouzirui/echomind/backend/internal/store"
	"github.com/zhouzirui/echomind/backend/pkg/utils"
)

// Handler 意图规则的HTTP处理器
type Handler struct {
	store  store.Store
	logger *zap.Logger
}

// New 创建意图规则处理器
func New(st store.Store, logger *zap.Logger) *Handler {
	return &Handler{store: st, logger: logger}
}

// RegisterRoutes 注册意图规则相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/intents", h.handleList)
	r.Post("/intents", h.handleCreate)
	r.Delete("/intents/{category}", h.handleDelete)
}

// handleList 按评估顺序列出所有规则
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListIntents(r.Context())
	if err != nil {
		h.logger.Error("list intents failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list intents")
		return
	}
	utils.RespondJSON(w, http.StatusOK, rules)
}

// handleCreate 追加一条规则到末尾
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rule intent.Rule
	if err := utils.DecodeJSON(r, &rule); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule.ID = ""

	if err := config.ValidateRule(rule); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.InsertIntent(r.Context(), rule)
	if errors.Is(err, store.ErrDuplicate) {
		utils.RespondError(w, http.StatusConflict, "category already exists")
		return
	}
	if err != nil {
		h.logger.Error("insert intent failed", zap.String("category", rule.Category), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to create intent")
		return
	}

	rule.ID = id
	h.logger.Info("intent created", zap.String("category", rule.Category))
	utils.RespondJSON(w, http.StatusCreated, rule)
}

// handleDelete 删除指定类别的规则
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	err := h.store.DeleteIntent(r.Context(), category)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "intent not found")
		return
	}
	if err != nil {
		h.logger.Error("delete intent failed", zap.String("category", category), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete intent")
		return
	}

	h.logger.Info("intent deleted", zap.String("category", category))
	w.WriteHeader(http.StatusNoContent)
}
