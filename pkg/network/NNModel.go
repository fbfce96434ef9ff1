package network

import (
	"fmt"
	"math/rand"
)

/*
该文件包含整个神经网络的初始化方法
基准对照实验要求两个模型拓扑和初始权重完全一致
因此所有构造函数都接收显式的随机数生成器
*/

// NeuronNetwork 由若干层组成的神经网络
type NeuronNetwork struct {
	Layers []Layer
}

// TopologyConfig 固定的卷积网络拓扑配置
// 两层卷积、一层池化、Dropout、一个全连接隐藏层和softmax输出层
type TopologyConfig struct {
	InputRows    int
	InputCols    int
	NumClasses   int
	ConvFilters1 int
	ConvFilters2 int
	KernelSize   int
	PoolSize     int
	DropoutRate  float64
	HiddenSize   int
}

// NewTopologyConfig 创建默认拓扑配置（适用于28x28的10分类数据集）
func NewTopologyConfig() *TopologyConfig {
	return &TopologyConfig{
		InputRows:    28,
		InputCols:    28,
		NumClasses:   10,
		ConvFilters1: 8,
		ConvFilters2: 16,
		KernelSize:   3,
		PoolSize:     2,
		DropoutRate:  0.25,
		HiddenSize:   128,
	}
}

// NewConvNetwork 按拓扑配置创建卷积神经网络
func NewConvNetwork(cfg *TopologyConfig, rng *rand.Rand) (*NeuronNetwork, error) {
	conv1OutRows := cfg.InputRows - cfg.KernelSize + 1
	conv1OutCols := cfg.InputCols - cfg.KernelSize + 1
	conv2OutRows := conv1OutRows - cfg.KernelSize + 1
	conv2OutCols := conv1OutCols - cfg.KernelSize + 1
	if conv2OutRows < cfg.PoolSize || conv2OutCols < cfg.PoolSize {
		return nil, fmt.Errorf("图像形状 %dx%d 对该拓扑来说太小", cfg.InputRows, cfg.InputCols)
	}
	poolOutRows := conv2OutRows / cfg.PoolSize
	poolOutCols := conv2OutCols / cfg.PoolSize
	flatSize := cfg.ConvFilters2 * poolOutRows * poolOutCols

	layers := []Layer{
		NewConvLayer(1, cfg.ConvFilters1, cfg.InputRows, cfg.InputCols, cfg.KernelSize, ReLU, ReLUDerivative, rng),
		NewConvLayer(cfg.ConvFilters1, cfg.ConvFilters2, conv1OutRows, conv1OutCols, cfg.KernelSize, ReLU, ReLUDerivative, rng),
		NewMaxPoolLayer(cfg.ConvFilters2, conv2OutRows, conv2OutCols, cfg.PoolSize),
		NewDropoutLayer(cfg.DropoutRate, rng),
		NewDenseLayer(flatSize, cfg.HiddenSize, ReLU, ReLUDerivative, rng),
		// 输出层用softmax，导数为nil表示配合交叉熵损失使用输出减目标的捷径
		NewDenseLayer(cfg.HiddenSize, cfg.NumClasses, Softmax, nil, rng),
	}
	return &NeuronNetwork{Layers: layers}, nil
}

// NewDenseNetwork 创建纯全连接网络
// layerSize 为每一层的节点数，首尾分别是输入和输出大小
func NewDenseNetwork(layerSize []int, rng *rand.Rand) (*NeuronNetwork, error) {
	if len(layerSize) < 2 {
		return nil, fmt.Errorf("网络至少需要输入层和输出层")
	}
	layers := make([]Layer, len(layerSize)-1)
	for i := range layers {
		if i == len(layers)-1 {
			layers[i] = NewDenseLayer(layerSize[i], layerSize[i+1], Softmax, nil, rng)
		} else {
			layers[i] = NewDenseLayer(layerSize[i], layerSize[i+1], ReLU, ReLUDerivative, rng)
		}
	}
	return &NeuronNetwork{Layers: layers}, nil
}

// SetTraining 切换整个网络的训练/推理模式
func (nn *NeuronNetwork) SetTraining(training bool) {
	for _, layer := range nn.Layers {
		layer.SetTraining(training)
	}
}
