package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pixelCV/internal/api/middleware"
	"pixelCV/internal/database"
	"pixelCV/internal/editor"
	"pixelCV/internal/metrics"
	"pixelCV/internal/template"
)

// EditorHandler 通过 HTTP 与 WebSocket 暴露编辑会话。
type EditorHandler struct {
	sessions  *SessionStore
	templates TemplateStore
	queue     TaskEnqueuer
	scanner   VirusScanner
	settings  editor.Settings
	maxUpload int64
	verifier  middleware.TokenVerifier
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// EditorHandlerOptions 汇总 EditorHandler 的依赖。
type EditorHandlerOptions struct {
	Sessions       *SessionStore
	Templates      TemplateStore
	Queue          TaskEnqueuer
	Scanner        VirusScanner
	Settings       editor.Settings
	MaxUploadBytes int64
	Verifier       middleware.TokenVerifier
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewEditorHandler(opts EditorHandlerOptions) *EditorHandler {
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewSessionStore(DefaultSessionTTL)
	}
	return &EditorHandler{
		sessions:  sessions,
		templates: opts.Templates,
		queue:     opts.Queue,
		scanner:   opts.Scanner,
		settings:  opts.Settings,
		maxUpload: opts.MaxUploadBytes,
		verifier:  opts.Verifier,
		upgrader:  newUpgrader(opts.AllowedOrigins),
		logger:    opts.Logger,
	}
}

type openSessionRequest struct {
	TemplateID string `json:"templateId"`
}

type addFieldRequest struct {
	CatalogKey string              `json:"catalogKey"`
	Field      *template.FieldSpec `json:"field"`
}

// POST /v1/editor/sessions
// templateId 为空时从空白模板开始，否则打开已保存模板的副本。
func (h *EditorHandler) OpenSession(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req openSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}

	var ed *editor.Editor
	if req.TemplateID == "" {
		ed = editor.New(h.settings)
	} else {
		tpl, err := h.templates.Get(c.Request.Context(), ownerID, req.TemplateID)
		if err != nil {
			if errors.Is(err, database.ErrTemplateNotFound) {
				NotFound(c, "template not found")
				return
			}
			middleware.LoggerFromContext(c).Error("query template failed", slog.Any("error", err))
			Internal(c, "failed to query template")
			return
		}
		ed = editor.Open(tpl, h.settings)
	}

	sess := h.sessions.Create(ownerID, ed)
	c.JSON(http.StatusCreated, gin.H{"sessionId": sess.ID, "view": ed.View()})
}

// GET /v1/editor/sessions/:sid
func (h *EditorHandler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "view": sess.Editor.View()})
}

// DELETE /v1/editor/sessions/:sid
func (h *EditorHandler) CloseSession(c *gin.Context) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if !h.sessions.Delete(ownerID, c.Param("sid")) {
		NotFound(c, errSessionNotFound.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/editor/sessions/:sid/pages
// 上传一页背景图（multipart 字段 file），追加为新页面。
func (h *EditorHandler) ImportPage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	upload, err := readImageUpload(c, "file", h.maxUpload, h.scanner)
	if err != nil {
		writeUploadError(c, err)
		return
	}

	page := sess.Editor.ImportPage(upload.DataURI())
	middleware.LoggerFromContext(c).Info("page imported",
		slog.String("session_id", sess.ID),
		slog.Int("page", page),
		slog.String("format", string(upload.Format)),
	)
	c.JSON(http.StatusCreated, gin.H{"page": page, "view": sess.Editor.View()})
}

// POST /v1/editor/sessions/:sid/fields
func (h *EditorHandler) AddField(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req addFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	f, err := addField(sess.Editor, req.CatalogKey, req.Field)
	if err != nil {
		writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commandResult{Field: &f, Frame: sess.Editor.Frame()})
}

// POST /v1/editor/sessions/:sid/commands
func (h *EditorHandler) Command(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var cmd editorCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		BadRequest(c, err.Error())
		return
	}

	res, err := applyCommand(sess.Editor, cmd)
	if err != nil {
		writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/editor/sessions/:sid/palette?search=
func (h *EditorHandler) Palette(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": sess.Editor.Palette(c.Query("search"))})
}

// POST /v1/editor/sessions/:sid/save
// 保存当前快照并投递缩略图任务；会话保持打开，后续保存覆盖同一模板。
func (h *EditorHandler) Save(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	snapshot, err := sess.Editor.Save()
	if err != nil {
		writeCommandError(c, err)
		return
	}

	saved, err := h.templates.Save(c.Request.Context(), sess.OwnerID, snapshot)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrTemplateNotFound):
			NotFound(c, "template not found")
		case errors.Is(err, template.ErrInvalidTemplate), errors.Is(err, template.ErrInvalidField):
			BadRequest(c, err.Error())
		default:
			middleware.LoggerFromContext(c).Error("save template failed", slog.Any("error", err))
			Internal(c, "failed to save template")
		}
		return
	}

	enqueuePreview(c, h.queue, saved.ID, sess.OwnerID)
	c.JSON(http.StatusOK, saved)
}

// GET /v1/editor/sessions/:sid/ws
// 浏览器无法为 WebSocket 设置 Authorization 头，因此沿用首条消息鉴权。
// 之后每条消息都是一个 editorCommand，逐条返回结果。
func (h *EditorHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("session_id", c.Param("sid")),
	)

	ownerID, err := authenticateWS(conn, h.verifier)
	if err != nil {
		log.Warn("editor websocket authentication failed", slog.Any("error", err))
		return
	}
	sess, err := h.sessions.Get(ownerID, c.Param("sid"))
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}
	log = log.With(slog.String("owner_id", ownerID))
	defer metrics.WSOpened("editor")()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// 连接中断等同于指针离开画布
			sess.Editor.PointerUp()
			log.Info("editor websocket closed", slog.Any("error", err))
			return
		}

		reply := h.handleStreamMessage(ownerID, sess.ID, message)
		if err := conn.WriteJSON(reply); err != nil {
			sess.Editor.PointerUp()
			log.Info("write editor reply failed", slog.Any("error", err))
			return
		}
	}
}

type streamReply struct {
	OK     bool            `json:"ok"`
	Status int             `json:"status"`
	Error  string          `json:"error,omitempty"`
	Field  *template.Field `json:"field,omitempty"`
	Frame  *editor.Frame   `json:"frame,omitempty"`
}

func (h *EditorHandler) handleStreamMessage(ownerID, sessionID string, message []byte) streamReply {
	var cmd editorCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return streamReply{Status: http.StatusBadRequest, Error: "invalid command payload"}
	}
	// 每条消息重新取会话，以刷新空闲计时并感知会话被关闭
	sess, err := h.sessions.Get(ownerID, sessionID)
	if err != nil {
		return streamReply{Status: http.StatusNotFound, Error: err.Error()}
	}
	res, err := applyCommand(sess.Editor, cmd)
	if err != nil {
		return streamReply{Status: commandStatus(err), Error: err.Error()}
	}
	return streamReply{OK: true, Status: http.StatusOK, Field: res.Field, Frame: &res.Frame}
}

func (h *EditorHandler) session(c *gin.Context) (*editorSession, bool) {
	ownerID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	sess, err := h.sessions.Get(ownerID, c.Param("sid"))
	if err != nil {
		NotFound(c, err.Error())
		return nil, false
	}
	return sess, true
}

func writeCommandError(c *gin.Context, err error) {
	status := commandStatus(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFromContext(c).Error("editor command failed", slog.Any("error", err))
		Internal(c, "editor command failed")
		return
	}
	Error(c, status, err.Error())
}
