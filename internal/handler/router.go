package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/handler/dialogue"
	"github.com/zhouzirui/echomind/backend/internal/handler/intent"
	"github.com/zhouzirui/echomind/backend/internal/handler/voice"
	middlewarePkg "github.com/zhouzirui/echomind/backend/internal/middleware"
	dialogueService "github.com/zhouzirui/echomind/backend/internal/service/dialogue"
	metricsService "github.com/zhouzirui/echomind/backend/internal/service/metrics"
	"github.com/zhouzirui/echomind/backend/internal/store"
	"github.com/zhouzirui/echomind/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. userHeader names the request
// header carrying the caller id.
func NewRouter(st store.Store, dialogueSvc *dialogueService.Service, metricsSvc *metricsService.Service, userHeader string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(userHeader))
	r.Use(auth.HeaderMiddleware(userHeader))

	// Create handlers
	dialogueHandler := dialogue.New(dialogueSvc, metricsSvc, logger.Named("http"))
	intentHandler := intent.New(st, logger.Named("http"))
	voiceHandler := voice.New(dialogueSvc, logger.Named("voice"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		dialogueHandler.RegisterRoutes(api)
		intentHandler.RegisterRoutes(api)
		voiceHandler.RegisterRoutes(api)
	})

	return r
}
