package network

import (
	"fmt"
	"math"
	"math/rand"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
该文件实现差分隐私SGD训练
每个样本的梯度先按L2范数裁剪，批次累积后再加入高斯噪声
噪声源使用显式种子，保证实验可复现
*/

// DPSGDConfig 差分隐私SGD配置
type DPSGDConfig struct {
	// L2范数裁剪阈值
	L2NormClip float64
	// 噪声乘数
	NoiseMultiplier float64
	// 批次大小
	BatchSize int
	// 学习率
	LearningRate float64
	// 隐私预算目标
	Delta float64
	// 随机数种子
	Seed int64
}

// NewDPSGDConfig 创建一个默认的DPSGD配置
func NewDPSGDConfig() *DPSGDConfig {
	return &DPSGDConfig{
		L2NormClip:      1.0,
		NoiseMultiplier: 1.0,
		BatchSize:       64,
		LearningRate:    0.01,
		Delta:           1e-5,
		Seed:            42,
	}
}

// ClipGradientsByL2Norm 对每一层的累积梯度按L2范数裁剪，返回各层裁剪后的范数
func ClipGradientsByL2Norm(nn *NeuronNetwork, maxNorm float64) []float64 {
	layerNorms := make([]float64, 0, len(nn.Layers))
	for _, layer := range nn.Layers {
		grads := layer.Grads()
		if grads == nil {
			continue
		}

		// 计算该层所有参数梯度的L2范数
		sumSq := 0.0
		for _, g := range grads {
			for _, v := range g {
				sumSq += v * v
			}
		}
		norm := math.Sqrt(sumSq)

		// 如果范数超过阈值，进行裁剪
		if norm > maxNorm {
			scale := maxNorm / norm
			for _, g := range grads {
				for i := range g {
					g[i] *= scale
				}
			}
			norm = maxNorm
		}
		layerNorms = append(layerNorms, norm)
	}
	return layerNorms
}

// AddGaussianNoise 向所有层的累积梯度添加高斯噪声
func AddGaussianNoise(nn *NeuronNetwork, normal *distuv.Normal) {
	for _, layer := range nn.Layers {
		for _, g := range layer.Grads() {
			for i := range g {
				g[i] += normal.Rand()
			}
		}
	}
}

// newGradAccum 为每个有参数的层创建梯度累积缓冲
func (nn *NeuronNetwork) newGradAccum() [][][]float64 {
	accum := make([][][]float64, len(nn.Layers))
	for i, layer := range nn.Layers {
		grads := layer.Grads()
		if grads == nil {
			continue
		}
		accum[i] = make([][]float64, len(grads))
		for j, g := range grads {
			accum[i][j] = make([]float64, len(g))
		}
	}
	return accum
}

// addGradsTo 将当前各层梯度加入累积缓冲
func (nn *NeuronNetwork) addGradsTo(accum [][][]float64) {
	for i, layer := range nn.Layers {
		for j, g := range layer.Grads() {
			for k, v := range g {
				accum[i][j][k] += v
			}
		}
	}
}

// setGradsFrom 用累积缓冲覆盖各层梯度
func (nn *NeuronNetwork) setGradsFrom(accum [][][]float64) {
	for i, layer := range nn.Layers {
		for j, g := range layer.Grads() {
			copy(g, accum[i][j])
		}
	}
}

// TrainWithDP 使用差分隐私SGD训练神经网络，返回每轮的平均损失
func (nn *NeuronNetwork) TrainWithDP(inputs, targets []*mat.VecDense, dpConfig *DPSGDConfig, epochs int) []float64 {
	numSamples := len(inputs)
	rng := rand.New(rand.NewSource(dpConfig.Seed))

	// 标准差 = 噪声乘数 * 裁剪阈值
	normal := &distuv.Normal{
		Mu:    0,
		Sigma: dpConfig.NoiseMultiplier * dpConfig.L2NormClip,
		Src:   exprand.NewSource(uint64(dpConfig.Seed)),
	}

	lossHistory := make([]float64, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		nn.SetTraining(true)
		totalLoss := 0.0

		// 随机打乱数据
		shuffled := shuffleIndices(numSamples, rng)

		// 遍历每个mini-batch
		for i := 0; i < numSamples; i += dpConfig.BatchSize {
			end := i + dpConfig.BatchSize
			if end > numSamples {
				end = numSamples
			}
			batchSize := end - i

			// 为每个样本计算梯度、裁剪后累加
			accum := nn.newGradAccum()
			batchLoss := 0.0
			for _, idx := range shuffled[i:end] {
				nn.zeroGrads()

				output := nn.FeedForward(inputs[idx])
				delta := mat.NewVecDense(output.Len(), nil)
				delta.SubVec(output, targets[idx])
				nn.backward(delta)

				// 裁剪单个样本的梯度
				ClipGradientsByL2Norm(nn, dpConfig.L2NormClip)
				nn.addGradsTo(accum)

				for j := 0; j < output.Len(); j++ {
					outputVal := output.AtVec(j)
					if outputVal < 1e-10 {
						outputVal = 1e-10
					}
					batchLoss -= targets[idx].AtVec(j) * math.Log(outputVal)
				}
			}

			// 添加噪声到累加的梯度并更新参数
			nn.setGradsFrom(accum)
			AddGaussianNoise(nn, normal)
			nn.updateParameters(dpConfig.LearningRate, batchSize)

			totalLoss += batchLoss
		}

		avgLoss := totalLoss / float64(numSamples)
		lossHistory[epoch] = avgLoss
		fmt.Printf("第 %d 轮训练 - 平均损失: %.4f\n", epoch+1, avgLoss)
	}
	nn.SetTraining(false)

	return lossHistory
}
