package network

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

/*
该文件包含了网络的前向传播、反向传播和Mini-batch SGD训练
此外还有一些辅助函数，例如准确度计算，预测，损失计算等
*/

// FeedForward 整个网络的前向传播
func (nn *NeuronNetwork) FeedForward(input *mat.VecDense) *mat.VecDense {
	a := input
	for _, layer := range nn.Layers {
		a = layer.Forward(a)
	}
	return a
}

// backward 从输出层误差开始反向传播，各层内部累积梯度
func (nn *NeuronNetwork) backward(outputDelta *mat.VecDense) {
	delta := outputDelta
	for i := len(nn.Layers) - 1; i >= 0; i-- {
		delta = nn.Layers[i].Backward(delta)
	}
}

// zeroGrads 清空所有层的累积梯度
func (nn *NeuronNetwork) zeroGrads() {
	for _, layer := range nn.Layers {
		layer.ZeroGrads()
	}
}

// updateParameters 用累积梯度更新所有层的参数
func (nn *NeuronNetwork) updateParameters(learningRate float64, batchSize int) {
	for _, layer := range nn.Layers {
		layer.Update(learningRate, batchSize)
	}
}

// CalculateBatchLoss 计算一个批次的平均交叉熵损失
func (nn *NeuronNetwork) CalculateBatchLoss(inputs []*mat.VecDense, targets []*mat.VecDense) float64 {
	totalLoss := 0.0
	for i := 0; i < len(inputs); i++ {
		output := nn.FeedForward(inputs[i])
		target := targets[i]
		// 交叉熵损失
		loss := 0.0
		for j := 0; j < output.Len(); j++ {
			// 防止log(0)
			outputVal := output.AtVec(j)
			if outputVal < 1e-10 {
				outputVal = 1e-10
			}
			loss -= target.AtVec(j) * math.Log(outputVal)
		}
		totalLoss += loss
	}
	return totalLoss / float64(len(inputs))
}

// CalculateLoss 计算整个数据集的交叉熵损失
func (nn *NeuronNetwork) CalculateLoss(inputs []*mat.VecDense, targets []*mat.VecDense) float64 {
	return nn.CalculateBatchLoss(inputs, targets)
}

// Predict 预测样本的类别
func (nn *NeuronNetwork) Predict(input *mat.VecDense) int {
	output := nn.FeedForward(input)

	// 找出概率最大的类别
	maxProb := output.AtVec(0)
	maxIdx := 0
	for i := 1; i < output.Len(); i++ {
		if output.AtVec(i) > maxProb {
			maxProb = output.AtVec(i)
			maxIdx = i
		}
	}
	return maxIdx
}

// Evaluate 评估模型在给定数据上的准确率
func (nn *NeuronNetwork) Evaluate(inputs []*mat.VecDense, targets []*mat.VecDense) float64 {
	correct := 0
	for i := 0; i < len(inputs); i++ {
		pred := nn.Predict(inputs[i])

		// 找出目标one-hot向量中的1所在位置
		actual := 0
		for j := 0; j < targets[i].Len(); j++ {
			if targets[i].AtVec(j) > 0.5 {
				actual = j
				break
			}
		}
		if pred == actual {
			correct++
		}
	}
	return float64(correct) / float64(len(inputs))
}

// EpochMetrics 每轮训练的指标
type EpochMetrics struct {
	Epoch         int     `json:"epoch"`
	TrainLoss     float64 `json:"train_loss"`
	TrainAccuracy float64 `json:"train_accuracy"`
	ValLoss       float64 `json:"val_loss"`
	ValAccuracy   float64 `json:"val_accuracy"`
}

// TrainConfig Mini-batch SGD训练配置
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	ShuffleSeed  int64 // 批次洗牌的随机数种子
	Verbose      bool  // 是否打印每轮进度
}

// NewTrainConfig 创建默认训练配置
func NewTrainConfig() *TrainConfig {
	return &TrainConfig{
		Epochs:       10,
		BatchSize:    64,
		LearningRate: 0.05,
		ShuffleSeed:  42,
		Verbose:      true,
	}
}

// Train 使用Mini-batch SGD训练神经网络，返回每轮的训练和验证指标
// observer 不为nil时每轮结束后回调一次，用于指标的实时订阅
func (nn *NeuronNetwork) Train(inputs, targets, valInputs, valTargets []*mat.VecDense,
	cfg *TrainConfig, observer func(EpochMetrics)) []EpochMetrics {

	numSamples := len(inputs)
	rng := rand.New(rand.NewSource(cfg.ShuffleSeed))
	history := make([]EpochMetrics, 0, cfg.Epochs)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		nn.SetTraining(true)
		totalLoss := 0.0

		// 随机打乱数据
		shuffled := shuffleIndices(numSamples, rng)

		// 遍历每个mini-batch
		for i := 0; i < numSamples; i += cfg.BatchSize {
			end := i + cfg.BatchSize
			if end > numSamples {
				end = numSamples
			}
			batchSize := end - i

			nn.zeroGrads()
			batchLoss := 0.0
			for _, idx := range shuffled[i:end] {
				output := nn.FeedForward(inputs[idx])

				// softmax配合交叉熵损失，输出层误差为 output - target
				delta := mat.NewVecDense(output.Len(), nil)
				delta.SubVec(output, targets[idx])
				nn.backward(delta)

				for j := 0; j < output.Len(); j++ {
					outputVal := output.AtVec(j)
					if outputVal < 1e-10 {
						outputVal = 1e-10
					}
					batchLoss -= targets[idx].AtVec(j) * math.Log(outputVal)
				}
			}

			// 使用累积梯度一次性更新模型参数
			nn.updateParameters(cfg.LearningRate, batchSize)
			totalLoss += batchLoss
		}

		// 每轮结束后在推理模式下计算指标
		nn.SetTraining(false)
		metrics := EpochMetrics{
			Epoch:         epoch + 1,
			TrainLoss:     totalLoss / float64(numSamples),
			TrainAccuracy: nn.Evaluate(inputs, targets),
		}
		if len(valInputs) > 0 {
			metrics.ValLoss = nn.CalculateLoss(valInputs, valTargets)
			metrics.ValAccuracy = nn.Evaluate(valInputs, valTargets)
		}
		history = append(history, metrics)

		if cfg.Verbose {
			fmt.Printf("第 %d 轮训练 - 平均损失: %.4f, 训练准确率: %.2f%%, 验证准确率: %.2f%%\n",
				metrics.Epoch, metrics.TrainLoss, metrics.TrainAccuracy*100, metrics.ValAccuracy*100)
		}
		if observer != nil {
			observer(metrics)
		}
	}

	return history
}

// shuffleIndices 用Fisher-Yates洗牌算法打乱索引顺序
func shuffleIndices(length int, rng *rand.Rand) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = i
	}
	for i := length - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}
	return indices
}
