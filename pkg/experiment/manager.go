package experiment

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ObfuDev/pkg/dataProcess"
	"ObfuDev/pkg/network"
	"ObfuDev/pkg/obfuscate"
	"ObfuDev/pkg/training"

	"github.com/google/uuid"
)

/*
该文件实现对照实验的管理器
每次实验：生成置换密钥，混淆训练和测试数据，
用完全相同的拓扑和初始权重训练原始模型与混淆模型，记录两者的指标
*/

// 实验状态
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Config 一次对照实验的配置
type Config struct {
	Seed            int64   `json:"seed"`             // 密钥和权重初始化种子，0表示不指定
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	LearningRate    float64 `json:"learning_rate"`
	ValidationRatio float64 `json:"validation_ratio"` // 从训练集中划出的验证集比例
	NumClasses      int     `json:"num_classes"`
	Model           string  `json:"model"` // conv 或 dense
}

// NewConfig 创建默认实验配置
func NewConfig() *Config {
	return &Config{
		Seed:            42,
		Epochs:          5,
		BatchSize:       64,
		LearningRate:    0.05,
		ValidationRatio: 0.1,
		NumClasses:      10,
		Model:           "conv",
	}
}

// MetricEvent 训练过程中发布的每轮指标事件
type MetricEvent struct {
	RunID   string               `json:"run_id"`
	Arm     string               `json:"arm"` // control 或 obfuscated
	Metrics network.EpochMetrics `json:"metrics"`
}

// Run 一次对照实验及其结果
type Run struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	Config     *Config              `json:"config"`
	Warning    string               `json:"warning,omitempty"` // 可复现性警告等非致命问题
	Error      string               `json:"error,omitempty"`
	Comparison *training.Comparison `json:"comparison,omitempty"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    time.Time            `json:"end_time"`
}

// Manager 实验管理器
type Manager struct {
	trainData *dataProcess.Dataset
	testData  *dataProcess.Dataset

	runs map[string]*Run
	keys map[string]*obfuscate.PermutationKey
	mu   sync.RWMutex

	// 每轮指标的发布回调，可为nil
	publish func(MetricEvent)
}

// NewManager 创建新的实验管理器
func NewManager(trainData, testData *dataProcess.Dataset, publish func(MetricEvent)) *Manager {
	return &Manager{
		trainData: trainData,
		testData:  testData,
		runs:      make(map[string]*Run),
		keys:      make(map[string]*obfuscate.PermutationKey),
		publish:   publish,
	}
}

// GenerateKey 生成并保存一个置换密钥，返回密钥ID
func (m *Manager) GenerateKey(datasetSize, rows, cols int, seed int64) (string, *obfuscate.PermutationKey, error) {
	var key *obfuscate.PermutationKey
	var err error
	if seed != 0 {
		key, err = obfuscate.GenerateKeyFromSeed(datasetSize, rows, cols, seed)
	} else {
		key, err = obfuscate.GenerateKeyUnseeded(datasetSize, rows, cols)
	}
	if err != nil {
		return "", nil, err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.keys[id] = key
	m.mu.Unlock()
	return id, key, nil
}

// GetKey 按ID获取密钥
func (m *Manager) GetKey(id string) (*obfuscate.PermutationKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[id]
	return key, ok
}

// StartRun 异步启动一次对照实验，立即返回实验ID
func (m *Manager) StartRun(cfg *Config) (string, error) {
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return "", fmt.Errorf("训练轮数 %d 和批次大小 %d 必须为正整数", cfg.Epochs, cfg.BatchSize)
	}
	if cfg.Model != "conv" && cfg.Model != "dense" {
		return "", fmt.Errorf("未知的模型类型: %s", cfg.Model)
	}
	if cfg.NumClasses <= 0 {
		return "", fmt.Errorf("类别数量 %d 必须为正整数", cfg.NumClasses)
	}
	// 类别数量必须覆盖数据集中的所有标签，否则one-hot编码时会越界
	if max := m.trainData.MaxLabel(); cfg.NumClasses <= max {
		return "", fmt.Errorf("类别数量 %d 小于训练集中的最大标签 %d", cfg.NumClasses, max)
	}
	if max := m.testData.MaxLabel(); cfg.NumClasses <= max {
		return "", fmt.Errorf("类别数量 %d 小于测试集中的最大标签 %d", cfg.NumClasses, max)
	}

	run := &Run{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Config:    cfg,
		StartTime: time.Now(),
	}
	if cfg.Seed == 0 {
		run.Warning = "未指定种子，本次实验结果不可复现"
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	go m.execute(run)
	return run.ID, nil
}

// GetRun 按ID获取实验的当前快照
func (m *Manager) GetRun(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	snapshot := *run
	return &snapshot, true
}

// ListRuns 列出所有实验的当前快照
func (m *Manager) ListRuns() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		snapshot := *run
		runs = append(runs, &snapshot)
	}
	return runs
}

// setStatus 更新实验状态
func (m *Manager) setStatus(run *Run, status string) {
	m.mu.Lock()
	run.Status = status
	m.mu.Unlock()
}

// fail 将实验标记为失败
func (m *Manager) fail(run *Run, err error) {
	m.mu.Lock()
	run.Status = StatusFailed
	run.Error = err.Error()
	run.EndTime = time.Now()
	m.mu.Unlock()
	fmt.Printf("实验 %s 失败: %v\n", run.ID, err)
}

// buildNetwork 按配置和种子构建网络，两个对照组必须得到完全相同的初始权重
func (m *Manager) buildNetwork(cfg *Config, initSeed int64) (*network.NeuronNetwork, error) {
	rng := rand.New(rand.NewSource(initSeed))
	if cfg.Model == "dense" {
		inputSize := m.trainData.Rows * m.trainData.Cols
		return network.NewDenseNetwork([]int{inputSize, 64, 64, cfg.NumClasses}, rng)
	}
	topology := network.NewTopologyConfig()
	topology.InputRows = m.trainData.Rows
	topology.InputCols = m.trainData.Cols
	topology.NumClasses = cfg.NumClasses
	return network.NewConvNetwork(topology, rng)
}

// execute 执行一次对照实验
func (m *Manager) execute(run *Run) {
	// 训练过程的panic只使本次实验失败，不能拖垮整个服务进程
	defer func() {
		if r := recover(); r != nil {
			m.fail(run, fmt.Errorf("实验执行发生panic: %v", r))
		}
	}()

	m.setStatus(run, StatusRunning)
	cfg := run.Config

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// 生成训练集密钥，并为测试集派生共享行列置换的密钥
	trainKey, err := obfuscate.GenerateKeyFromSeed(
		m.trainData.NumSamples(), m.trainData.Rows, m.trainData.Cols, seed)
	if err != nil {
		m.fail(run, err)
		return
	}
	testKey, err := obfuscate.DeriveKey(trainKey, m.testData.NumSamples(), seed+1)
	if err != nil {
		m.fail(run, err)
		return
	}

	// 混淆训练集和测试集
	obfTrain, err := obfuscate.Apply(m.trainData, trainKey)
	if err != nil {
		m.fail(run, err)
		return
	}
	obfTest, err := obfuscate.Apply(m.testData, testKey)
	if err != nil {
		m.fail(run, err)
		return
	}

	trainCfg := &network.TrainConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		ShuffleSeed:  seed,
		Verbose:      false,
	}

	comparison := &training.Comparison{}
	arms := []struct {
		name   string
		train  *dataProcess.Dataset
		test   *dataProcess.Dataset
		result **training.Result
	}{
		{"control", m.trainData, m.testData, &comparison.Control},
		{"obfuscated", obfTrain, obfTest, &comparison.Obfuscated},
	}

	for _, arm := range arms {
		// 两个对照组用同一个初始化种子，保证拓扑和初始权重完全一致
		nn, err := m.buildNetwork(cfg, seed)
		if err != nil {
			m.fail(run, err)
			return
		}

		trainSet, valSet := arm.train, (*dataProcess.Dataset)(nil)
		if cfg.ValidationRatio > 0 {
			trainSet, valSet, err = arm.train.Split(cfg.ValidationRatio)
			if err != nil {
				m.fail(run, err)
				return
			}
		}

		armName := arm.name
		observer := func(metrics network.EpochMetrics) {
			if m.publish != nil {
				m.publish(MetricEvent{RunID: run.ID, Arm: armName, Metrics: metrics})
			}
		}
		*arm.result = training.TrainModel(nn, trainSet, valSet, arm.test, trainCfg, cfg.NumClasses, observer)
	}

	m.mu.Lock()
	run.Comparison = comparison
	run.Status = StatusDone
	run.EndTime = time.Now()
	m.mu.Unlock()

	fmt.Printf("实验 %s 完成 - 原始准确率: %.2f%%, 混淆准确率: %.2f%%\n",
		run.ID, comparison.Control.TestAccuracy*100, comparison.Obfuscated.TestAccuracy*100)
}
