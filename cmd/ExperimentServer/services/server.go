package services

import (
	"ObfuDev/cmd/ExperimentServer/server"
	"ObfuDev/pkg/dataProcess"
	"ObfuDev/pkg/experiment"
)

// Server 实验服务器主结构体
type Server struct {
	// 实验管理
	Manager *experiment.Manager

	// 指标广播
	Hub *Hub

	// HTTP服务器
	HTTPServer *server.HTTPServer
}

// NewServer 创建新的实验服务器实例
func NewServer(trainData, testData *dataProcess.Dataset, port string) *Server {
	hub := NewHub()
	manager := experiment.NewManager(trainData, testData, hub.Publish)

	s := &Server{
		Manager:    manager,
		Hub:        hub,
		HTTPServer: server.NewHTTPServer(port),
	}
	s.setupRoutes()
	return s
}

// setupRoutes 设置HTTP路由
func (s *Server) setupRoutes() {
	router := s.HTTPServer.GetRouter()

	// 实验管理接口
	router.POST("/experiments", s.startExperimentHandler)
	router.GET("/experiments", s.listExperimentsHandler)
	router.GET("/experiments/:id", s.getExperimentHandler)

	// 密钥管理接口
	router.POST("/keys", s.generateKeyHandler)
	router.GET("/keys/:id", s.getKeyHandler)

	// 训练指标实时推送
	router.GET("/ws/experiments/:id", s.metricsWebsocketHandler)
}

// Start 启动服务器
func (s *Server) Start() error {
	go s.Hub.Run()
	return s.HTTPServer.Start()
}
