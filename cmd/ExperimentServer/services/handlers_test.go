package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ObfuDev/pkg/dataProcess"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 用小合成数据集创建测试服务器
func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trainCfg := dataProcess.NewSyntheticConfig()
	trainCfg.NumSamples = 40
	trainCfg.Rows = 8
	trainCfg.Cols = 8
	trainCfg.NumClasses = 3
	train, err := dataProcess.GenerateSynthetic(trainCfg)
	require.NoError(t, err)

	testCfg := dataProcess.NewSyntheticConfig()
	testCfg.NumSamples = 10
	testCfg.Rows = 8
	testCfg.Cols = 8
	testCfg.NumClasses = 3
	testCfg.Seed = trainCfg.Seed + 1
	test, err := dataProcess.GenerateSynthetic(testCfg)
	require.NoError(t, err)

	return NewServer(train, test, "0")
}

// TestGenerateKeyEndpoint 密钥生成和查询接口
func TestGenerateKeyEndpoint(t *testing.T) {
	s := newTestServer(t)
	router := s.HTTPServer.GetRouter()

	body, _ := json.Marshal(KeyRequest{DatasetSize: 50, Rows: 8, Cols: 8, Seed: 42})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		KeyID string `json:"key_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.KeyID)

	// 查询刚生成的密钥
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/keys/"+resp.KeyID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 不存在的密钥
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/keys/missing", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestGenerateKeyEndpointUnseeded 未指定种子时响应带有警告
func TestGenerateKeyEndpointUnseeded(t *testing.T) {
	s := newTestServer(t)
	router := s.HTTPServer.GetRouter()

	body, _ := json.Marshal(KeyRequest{DatasetSize: 10, Rows: 4, Cols: 4})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "warning")
}

// TestGenerateKeyEndpointInvalid 非法维度返回400
func TestGenerateKeyEndpointInvalid(t *testing.T) {
	s := newTestServer(t)
	router := s.HTTPServer.GetRouter()

	body, _ := json.Marshal(KeyRequest{DatasetSize: -1, Rows: 8, Cols: 8, Seed: 1})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestExperimentEndpoints 实验的启动和查询接口
func TestExperimentEndpoints(t *testing.T) {
	s := newTestServer(t)
	router := s.HTTPServer.GetRouter()

	// 不存在的实验
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/experiments/missing", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 启动实验
	body := []byte(`{"seed":42,"epochs":1,"batch_size":16,"learning_rate":0.1,"validation_ratio":0,"num_classes":3,"model":"dense"}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/experiments", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	// 查询实验状态
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/experiments/"+resp.RunID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 列出实验
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/experiments", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 非法模型类型
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/experiments",
		bytes.NewReader([]byte(`{"epochs":1,"batch_size":8,"model":"transformer"}`)))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 类别数量小于数据集的标签范围
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/experiments",
		bytes.NewReader([]byte(`{"seed":1,"epochs":1,"batch_size":8,"model":"dense","num_classes":2}`)))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
