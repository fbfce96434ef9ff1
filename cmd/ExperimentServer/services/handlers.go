package services

import (
	"fmt"
	"net/http"

	"ObfuDev/pkg/experiment"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

/*
该文件包含实验服务器的HTTP处理器
*/

// upgrader WebSocket升级器
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// KeyRequest 密钥生成请求体
type KeyRequest struct {
	DatasetSize int   `json:"dataset_size"`
	Rows        int   `json:"rows"`
	Cols        int   `json:"cols"`
	Seed        int64 `json:"seed"`
}

// startExperimentHandler 启动对照实验处理器
func (s *Server) startExperimentHandler(ctx *gin.Context) {
	cfg := experiment.NewConfig()
	if err := ctx.ShouldBindJSON(cfg); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	runID, err := s.Manager.StartRun(cfg)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"run_id": runID, "status": experiment.StatusPending})
}

// listExperimentsHandler 列出所有实验处理器
func (s *Server) listExperimentsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"runs": s.Manager.ListRuns()})
}

// getExperimentHandler 查询单个实验处理器
func (s *Server) getExperimentHandler(ctx *gin.Context) {
	run, ok := s.Manager.GetRun(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	ctx.JSON(http.StatusOK, run)
}

// generateKeyHandler 生成置换密钥处理器
func (s *Server) generateKeyHandler(ctx *gin.Context) {
	var req KeyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id, key, err := s.Manager.GenerateKey(req.DatasetSize, req.Rows, req.Cols, req.Seed)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"key_id": id, "key": key}
	if !key.Seeded {
		resp["warning"] = "未指定种子，该密钥不可复现"
	}
	ctx.JSON(http.StatusOK, resp)
}

// getKeyHandler 查询密钥处理器
func (s *Server) getKeyHandler(ctx *gin.Context) {
	key, ok := s.Manager.GetKey(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	ctx.JSON(http.StatusOK, key)
}

// metricsWebsocketHandler 训练指标WebSocket订阅处理器
func (s *Server) metricsWebsocketHandler(ctx *gin.Context) {
	runID := ctx.Param("id")
	if _, ok := s.Manager.GetRun(runID); !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		fmt.Printf("WebSocket升级失败: %v\n", err)
		return
	}

	s.Hub.Register(conn, runID)

	// 读循环只用于感知连接关闭
	go func() {
		defer s.Hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
