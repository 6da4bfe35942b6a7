package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 15 * time.Second
	sendBuffer   = 8
)

// Message WebSocket消息结构
type Message struct {
	Type   string             `json:"type"`
	Target string             `json:"target,omitempty"`
	Game   *models.GameRecord `json:"game,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// 消息类型
const (
	MessageState   = "state"
	MessageAction  = "action"
	MessageError   = "error"
	MessageDeleted = "deleted"
)

type wsClient struct {
	conn   *websocket.Conn
	send   chan Message
	cancel context.CancelFunc
}

// WebSocketManager 推送玩家视角的会话状态，并维护在线状态
type WebSocketManager struct {
	rooms       *RoomManager
	connections map[string]map[string]*wsClient // sessionID -> playerID -> client
	mutex       sync.RWMutex
}

// NewWebSocketManager 创建WebSocket管理器实例
func NewWebSocketManager(rm *RoomManager) *WebSocketManager {
	return &WebSocketManager{
		rooms:       rm,
		connections: make(map[string]map[string]*wsClient),
	}
}

// Serve 接管玩家连接，阻塞直到连接关闭
// 连接期间玩家标记为在线，断开后标记为离线
func (wm *WebSocketManager) Serve(ctx context.Context, conn *websocket.Conn, sessionID, playerID string) {
	ctx, cancel := context.WithCancel(ctx)
	c := &wsClient{conn: conn, send: make(chan Message, sendBuffer), cancel: cancel}
	defer conn.Close()
	defer cancel()

	updates, err := wm.rooms.Subscribe(ctx, sessionID)
	if err != nil {
		logger.Warn("[WebSocket] 会话 %s 订阅失败: %v", sessionID, err)
		wm.writeClose(conn, err.Error())
		return
	}

	wm.register(sessionID, playerID, c)
	if err := wm.rooms.SetConnected(ctx, sessionID, playerID, true); err != nil {
		logger.Warn("[WebSocket] 会话 %s 更新在线状态失败: %v", sessionID, err)
	}
	logger.Info("[WebSocket] 玩家 %s 连接到会话 %s", playerID, sessionID)

	go wm.writePump(ctx, c, updates, playerID)
	wm.readPump(ctx, c, sessionID, playerID)

	cancel()
	if wm.unregister(sessionID, playerID, c) {
		// 用独立的 ctx，请求 ctx 此时已取消
		if err := wm.rooms.SetConnected(context.Background(), sessionID, playerID, false); err != nil && !errors.Is(err, ErrNotFound) {
			logger.Warn("[WebSocket] 会话 %s 更新在线状态失败: %v", sessionID, err)
		}
	}
	logger.Info("[WebSocket] 玩家 %s 断开会话 %s", playerID, sessionID)
}

// register 同一玩家的旧连接会被关闭
func (wm *WebSocketManager) register(sessionID, playerID string, c *wsClient) {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	if wm.connections[sessionID] == nil {
		wm.connections[sessionID] = make(map[string]*wsClient)
	}
	if old, ok := wm.connections[sessionID][playerID]; ok {
		old.cancel()
		old.conn.Close()
	}
	wm.connections[sessionID][playerID] = c
}

// unregister 返回连接是否仍是该玩家的当前连接
func (wm *WebSocketManager) unregister(sessionID, playerID string, c *wsClient) bool {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	if wm.connections[sessionID][playerID] != c {
		return false
	}
	delete(wm.connections[sessionID], playerID)
	if len(wm.connections[sessionID]) == 0 {
		delete(wm.connections, sessionID)
	}
	return true
}

// Online 返回会话中在线的玩家，按ID排序
func (wm *WebSocketManager) Online(sessionID string) []string {
	wm.mutex.RLock()
	defer wm.mutex.RUnlock()

	ids := make([]string, 0, len(wm.connections[sessionID]))
	for id := range wm.connections[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (wm *WebSocketManager) readPump(ctx context.Context, c *wsClient, sessionID, playerID string) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("[WebSocket] 读取玩家 %s 消息失败: %v", playerID, err)
			}
			return
		}

		switch msg.Type {
		case MessageAction:
			if err := wm.rooms.SubmitAction(ctx, sessionID, playerID, msg.Target); err != nil {
				wm.enqueue(ctx, c, Message{Type: MessageError, Error: err.Error()})
			}
		default:
			wm.enqueue(ctx, c, Message{Type: MessageError, Error: "未知的消息类型: " + msg.Type})
		}
	}
}

func (wm *WebSocketManager) enqueue(ctx context.Context, c *wsClient, msg Message) {
	select {
	case c.send <- msg:
	case <-ctx.Done():
	}
}

func (wm *WebSocketManager) writePump(ctx context.Context, c *wsClient, updates <-chan *models.GameRecord, playerID string) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-updates:
			if !ok {
				// 会话已删除
				wm.write(c.conn, Message{Type: MessageDeleted})
				return
			}
			if err := wm.write(c.conn, Message{Type: MessageState, Game: rec.ViewFor(playerID)}); err != nil {
				return
			}
		case msg := <-c.send:
			if err := wm.write(c.conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("[WebSocket] 玩家 %s 心跳失败: %v", playerID, err)
				return
			}
		}
	}
}

func (wm *WebSocketManager) write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(msg)
	conn.SetWriteDeadline(time.Time{})
	if err != nil {
		logger.Debug("[WebSocket] 发送消息失败: %v", err)
	}
	return err
}

func (wm *WebSocketManager) writeClose(conn *websocket.Conn, reason string) {
	wm.write(conn, Message{Type: MessageError, Error: reason})
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}
