package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"ObfuDev/pkg/experiment"

	"github.com/gorilla/websocket"
)

/*
该文件实现训练指标的WebSocket广播中心
客户端按实验ID订阅，每轮训练结束后推送一条指标消息
*/

// subscription 一个连接及其订阅的实验ID
type subscription struct {
	conn  *websocket.Conn
	runID string
}

// Hub WebSocket广播中心
type Hub struct {
	clients    map[*websocket.Conn]string // 连接 -> 订阅的实验ID
	register   chan subscription
	unregister chan *websocket.Conn
	events     chan experiment.MetricEvent
	mu         sync.RWMutex
}

// NewHub 创建新的广播中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		events:     make(chan experiment.MetricEvent, 64),
	}
}

// Run 事件循环，应在单独的goroutine中运行
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.clients[sub.conn] = sub.runID
			h.mu.Unlock()
			fmt.Printf("客户端订阅实验 %s，当前连接数: %d\n", sub.runID, len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case event := <-h.events:
			message, err := json.Marshal(event)
			if err != nil {
				fmt.Printf("指标事件序列化失败: %v\n", err)
				continue
			}
			h.mu.Lock()
			for conn, runID := range h.clients {
				if runID != event.RunID {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					fmt.Printf("推送指标失败: %v\n", err)
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register 注册一个订阅指定实验的连接
func (h *Hub) Register(conn *websocket.Conn, runID string) {
	h.register <- subscription{conn: conn, runID: runID}
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// Publish 发布一条指标事件
func (h *Hub) Publish(event experiment.MetricEvent) {
	h.events <- event
}
