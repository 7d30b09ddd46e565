package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/metrics"
	"pixelCV/internal/tasks"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

var errWsAuthRequired = errors.New("auth required")

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// newUpgrader 未配置白名单时只允许同源连接。
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// authenticateWS 要求客户端的第一条消息为 {"type":"auth","token":...}。
// 失败时已向客户端发送关闭帧。
func authenticateWS(conn *websocket.Conn, verifier middleware.TokenVerifier) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read auth message: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var authMsg wsAuthMessage
	if err := json.Unmarshal(message, &authMsg); err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return "", fmt.Errorf("decode auth payload: %w", err)
	}
	if authMsg.Type != "auth" || authMsg.Token == "" {
		writeClose(conn, websocket.ClosePolicyViolation, "auth required")
		return "", errWsAuthRequired
	}

	ownerID, _, err := verifier.Verify(authMsg.Token)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return "", fmt.Errorf("validate token: %w", err)
	}
	return ownerID, nil
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// WsHandler 把 worker 发布在 Redis 上的通知转发给已鉴权的客户端。
type WsHandler struct {
	redisClient *redis.Client
	verifier    middleware.TokenVerifier
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(redisClient *redis.Client, verifier middleware.TokenVerifier, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		redisClient: redisClient,
		verifier:    verifier,
		logger:      logger,
		upgrader:    newUpgrader(allowedOrigins),
	}
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	baseLog := h.logger.With(slog.String("client_ip", c.ClientIP()))

	ownerID, err := authenticateWS(conn, h.verifier)
	if err != nil {
		baseLog.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := baseLog.With(slog.String("owner_id", ownerID))
	log.Info("websocket authenticated")
	defer metrics.WSOpened("notify")()

	errCh := make(chan error, 2)
	go h.readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, ownerID, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Info("websocket connection closed", slog.Any("error", err))
	}
}

// readLoop 只用于检测客户端断开，鉴权之后的消息被丢弃。
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case errCh <- fmt.Errorf("read message: %w", err):
			case <-ctx.Done():
			}
			cancel()
			return
		}
	}
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	ownerID string,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := tasks.NotifyChannel(ownerID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				fail(errors.New("pubsub channel closed"))
				return
			}
			log.Debug("forwarding message to client", slog.String("channel", channel))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				fail(fmt.Errorf("write message: %w", err))
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				fail(fmt.Errorf("write ping: %w", err))
				return
			}
		}
	}
}
