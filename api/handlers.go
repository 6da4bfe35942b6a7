package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/qianlnk/mafia/archive"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/services"
)

// Handler serves the session command surface.
type Handler struct {
	rooms    *services.RoomManager
	sockets  *services.WebSocketManager
	results  archive.Repository
	tokens   *TokenIssuer
	upgrader websocket.Upgrader
}

type HandlerOptions struct {
	Rooms          *services.RoomManager
	Sockets        *services.WebSocketManager
	Results        archive.Repository
	Tokens         *TokenIssuer
	AllowedOrigins []string
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		rooms:   opts.Rooms,
		sockets: opts.Sockets,
		results: opts.Results,
		tokens:  opts.Tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

type createSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

type joinSessionRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type addBotsRequest struct {
	Count int `json:"count" binding:"required"`
}

type actionRequest struct {
	Target string `json:"target" binding:"required"`
}

type membershipResponse struct {
	*services.Membership
	Token string `json:"token"`
}

func badRequest(c *gin.Context, err error) {
	respondError(c, fmt.Errorf("%w: %v", services.ErrValidation, err))
}

func (h *Handler) respondMembership(c *gin.Context, status int, m *services.Membership) {
	token, err := h.tokens.Issue(m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, membershipResponse{Membership: m, Token: token})
}

// CreateSession POST /api/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.rooms.CreateSession(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondMembership(c, http.StatusCreated, m)
}

// JoinSession POST /api/sessions/join
func (h *Handler) JoinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.rooms.JoinSession(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondMembership(c, http.StatusOK, m)
}

// sessionClaims returns the caller's claims when the token belongs to the session in the path.
func sessionClaims(c *gin.Context) (*Claims, bool) {
	claims := claimsFrom(c)
	if claims == nil || claims.SessionID != c.Param("id") {
		respondError(c, fmt.Errorf("%w: 令牌不属于该会话", services.ErrUnauthorized))
		return nil, false
	}
	return claims, true
}

func (h *Handler) respondView(c *gin.Context, claims *Claims) {
	view, err := h.rooms.View(c.Request.Context(), claims.SessionID, claims.PlayerID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSession GET /api/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	h.respondView(c, claims)
}

// AddBots POST /api/sessions/:id/bots
func (h *Handler) AddBots(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	var req addBotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	added, err := h.rooms.AddBots(c.Request.Context(), claims.SessionID, claims.PlayerID(), req.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// StartGame POST /api/sessions/:id/start
func (h *Handler) StartGame(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	if _, err := h.rooms.StartGame(c.Request.Context(), claims.SessionID, claims.PlayerID()); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, claims)
}

// SubmitAction POST /api/sessions/:id/actions
func (h *Handler) SubmitAction(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.rooms.SubmitAction(c.Request.Context(), claims.SessionID, claims.PlayerID(), req.Target); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolvePhase POST /api/sessions/:id/resolve
func (h *Handler) ResolvePhase(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	if _, err := h.rooms.ResolvePhase(c.Request.Context(), claims.SessionID, claims.PlayerID()); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, claims)
}

// LeaveSession POST /api/sessions/:id/leave
func (h *Handler) LeaveSession(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	if err := h.rooms.LeaveSession(c.Request.Context(), claims.SessionID, claims.PlayerID()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Presence GET /api/sessions/:id/presence
func (h *Handler) Presence(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": h.sockets.Online(claims.SessionID)})
}

// ListResults GET /api/results?limit=n
func (h *Handler) ListResults(c *gin.Context) {
	limit := archive.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			badRequest(c, fmt.Errorf("limit 必须在1到100之间"))
			return
		}
		limit = n
	}

	results, err := h.results.ListResults(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Stream GET /ws?token=...
func (h *Handler) Stream(c *gin.Context) {
	claims, err := h.tokens.Parse(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "令牌无效"})
		return
	}
	member, err := h.rooms.IsMember(c.Request.Context(), claims.SessionID, claims.PlayerID())
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		respondError(c, fmt.Errorf("%w: 不是会话中的玩家", services.ErrUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("升级WebSocket连接失败: %v", err)
		return
	}
	h.sockets.Serve(c.Request.Context(), conn, claims.SessionID, claims.PlayerID())
}
