package experiment

import (
	"sync"
	"testing"
	"time"

	"ObfuDev/pkg/dataProcess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestManager 用小合成数据集创建管理器
func newTestManager(t *testing.T, publish func(MetricEvent)) *Manager {
	t.Helper()
	trainCfg := dataProcess.NewSyntheticConfig()
	trainCfg.NumSamples = 60
	trainCfg.Rows = 8
	trainCfg.Cols = 8
	trainCfg.NumClasses = 3
	train, err := dataProcess.GenerateSynthetic(trainCfg)
	require.NoError(t, err)

	testCfg := dataProcess.NewSyntheticConfig()
	testCfg.NumSamples = 20
	testCfg.Rows = 8
	testCfg.Cols = 8
	testCfg.NumClasses = 3
	testCfg.Seed = trainCfg.Seed + 1
	test, err := dataProcess.GenerateSynthetic(testCfg)
	require.NoError(t, err)

	return NewManager(train, test, publish)
}

// waitForRun 轮询等待实验结束
func waitForRun(t *testing.T, m *Manager, id string) *Run {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := m.GetRun(id)
		require.True(t, ok)
		if run.Status == StatusDone || run.Status == StatusFailed {
			return run
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("实验超时未结束")
	return nil
}

// TestStartRunLifecycle 完整的实验生命周期
func TestStartRunLifecycle(t *testing.T) {
	var mu sync.Mutex
	var events []MetricEvent
	m := newTestManager(t, func(e MetricEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	cfg := NewConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 16
	cfg.Model = "dense"
	cfg.NumClasses = 3
	cfg.ValidationRatio = 0.1

	id, err := m.StartRun(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run := waitForRun(t, m, id)
	require.Equal(t, StatusDone, run.Status, "实验失败: %s", run.Error)
	require.NotNil(t, run.Comparison)
	require.NotNil(t, run.Comparison.Control)
	require.NotNil(t, run.Comparison.Obfuscated)
	assert.Len(t, run.Comparison.Control.History, 2)
	assert.Len(t, run.Comparison.Obfuscated.History, 2)
	assert.Empty(t, run.Warning)

	// 两个对照组各发布每轮一条指标事件
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, events, 4)
	arms := map[string]int{}
	for _, e := range events {
		assert.Equal(t, id, e.RunID)
		arms[e.Arm]++
	}
	assert.Equal(t, 2, arms["control"])
	assert.Equal(t, 2, arms["obfuscated"])
}

// TestStartRunUnseededWarning 种子为0时带有可复现性警告
func TestStartRunUnseededWarning(t *testing.T) {
	m := newTestManager(t, nil)

	cfg := NewConfig()
	cfg.Seed = 0
	cfg.Epochs = 1
	cfg.BatchSize = 16
	cfg.Model = "dense"
	cfg.NumClasses = 3
	cfg.ValidationRatio = 0

	id, err := m.StartRun(cfg)
	require.NoError(t, err)

	run, ok := m.GetRun(id)
	require.True(t, ok)
	assert.NotEmpty(t, run.Warning)

	run = waitForRun(t, m, id)
	assert.Equal(t, StatusDone, run.Status)
}

// TestStartRunValidation 非法配置被拒绝
func TestStartRunValidation(t *testing.T) {
	m := newTestManager(t, nil)

	cfg := NewConfig()
	cfg.Epochs = 0
	_, err := m.StartRun(cfg)
	assert.Error(t, err)

	cfg = NewConfig()
	cfg.Model = "transformer"
	_, err = m.StartRun(cfg)
	assert.Error(t, err)
}

// TestStartRunRejectsSmallNumClasses 类别数量小于数据集的标签范围时启动即失败
// 不做这个检查的话one-hot编码会越界panic
func TestStartRunRejectsSmallNumClasses(t *testing.T) {
	m := newTestManager(t, nil) // 数据集包含标签0-2

	cfg := NewConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 16
	cfg.Model = "dense"
	cfg.NumClasses = 2
	_, err := m.StartRun(cfg)
	require.Error(t, err)

	cfg.NumClasses = 0
	_, err = m.StartRun(cfg)
	assert.Error(t, err)

	// 所有实验都未启动
	assert.Empty(t, m.ListRuns())
}

// TestExecutePanicMarksRunFailed 训练过程中的panic使实验失败而不是杀死进程
func TestExecutePanicMarksRunFailed(t *testing.T) {
	// 图像长度与声明的形状不一致，前向传播时会触发维度panic
	corrupt := &dataProcess.Dataset{
		Images: [][]float64{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
		Labels: []int{0, 1},
		Rows:   2,
		Cols:   2,
	}
	m := NewManager(corrupt, corrupt, nil)

	cfg := NewConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 2
	cfg.Model = "dense"
	cfg.NumClasses = 2
	cfg.ValidationRatio = 0

	id, err := m.StartRun(cfg)
	require.NoError(t, err)

	run := waitForRun(t, m, id)
	assert.Equal(t, StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

// TestManagerKeys 密钥的生成和查询
func TestManagerKeys(t *testing.T) {
	m := newTestManager(t, nil)

	id, key, err := m.GenerateKey(100, 28, 28, 42)
	require.NoError(t, err)
	assert.True(t, key.Seeded)

	got, ok := m.GetKey(id)
	require.True(t, ok)
	assert.Equal(t, key.SampleOrder, got.SampleOrder)

	// 种子为0时生成不可复现的密钥
	_, key, err = m.GenerateKey(10, 4, 4, 0)
	require.NoError(t, err)
	assert.False(t, key.Seeded)

	_, ok = m.GetKey("不存在的ID")
	assert.False(t, ok)

	// 非法维度
	_, _, err = m.GenerateKey(-1, 4, 4, 1)
	assert.Error(t, err)
}

// TestListRuns 实验列表
func TestListRuns(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Empty(t, m.ListRuns())

	cfg := NewConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 16
	cfg.Model = "dense"
	cfg.NumClasses = 3
	cfg.ValidationRatio = 0

	id, err := m.StartRun(cfg)
	require.NoError(t, err)
	assert.Len(t, m.ListRuns(), 1)

	waitForRun(t, m, id)
}
