package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/service/dialogue"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Frame types.
const (
	TypeTranscript = "transcript"
	TypePing       = "ping"
	TypePong       = "pong"
	TypePartial    = "partial"
	TypeResponse   = "response"
	TypeError      = "error"
	TypeConnected  = "connected"
)

// Handler WebSocket语音前端处理器。语音识别与合成由前端完成，这里只接收最终文本。
type Handler struct {
	dialogueSvc *dialogue.Service
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// New 创建WebSocket处理器
func New(dialogueSvc *dialogue.Service, logger *zap.Logger) *Handler {
	return &Handler{
		dialogueSvc: dialogueSvc,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws/{sessionID}", h.handleWebSocket)
}

// InboundMessage is a client frame.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TranscriptMessage 语音识别结果
type TranscriptMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// OutgoingMessage is a server frame.
type OutgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session", sessionID), zap.String("user", userID))
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	h.send(conn, logger, OutgoingMessage{Type: TypeConnected, SessionID: sessionID})

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, logger, sessionID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, logger *zap.Logger, sessionID string, msg *InboundMessage) {
	switch msg.Type {
	case TypePing:
		h.send(conn, logger, OutgoingMessage{Type: TypePong, SessionID: sessionID})
	case TypeTranscript:
		var transcript TranscriptMessage
		if err := json.Unmarshal(msg.Data, &transcript); err != nil {
			h.sendError(conn, logger, sessionID, "invalid transcript payload")
			return
		}
		if !transcript.IsFinal {
			h.send(conn, logger, OutgoingMessage{Type: TypePartial, SessionID: sessionID})
			return
		}

		result, err := h.dialogueSvc.ProcessVoiceInput(ctx, transcript.Text, sessionID)
		if err != nil {
			logger.Warn("process transcript failed", zap.Error(err))
			h.sendError(conn, logger, sessionID, errorMessage(err))
			return
		}
		h.send(conn, logger, OutgoingMessage{Type: TypeResponse, SessionID: sessionID, Data: result})
	default:
		h.sendError(conn, logger, sessionID, "unsupported message type: "+msg.Type)
	}
}

// errorMessage hides internal failures from the client.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, dialogue.ErrUnauthenticated),
		errors.Is(err, dialogue.ErrEmptyInput),
		errors.Is(err, dialogue.ErrSessionRequired),
		errors.Is(err, dialogue.ErrConfigurationMissing):
		return err.Error()
	default:
		return "failed to process transcript"
	}
}

func (h *Handler) send(conn *websocket.Conn, logger *zap.Logger, msg OutgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		logger.Warn("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *Handler) sendError(conn *websocket.Conn, logger *zap.Logger, sessionID, message string) {
	h.send(conn, logger, OutgoingMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
	})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
