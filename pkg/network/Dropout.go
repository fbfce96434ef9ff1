package network

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

/*
该文件实现Dropout层
采用inverted dropout：训练时按保留概率缩放，推理时为恒等映射
*/

// DropoutLayer Dropout层
type DropoutLayer struct {
	Rate float64 // 丢弃概率

	rng      *rand.Rand
	training bool
	mask     []float64 // 上一次前向传播使用的掩码（已含缩放因子）
}

// NewDropoutLayer 创建Dropout层，随机数生成器由调用方显式传入
func NewDropoutLayer(rate float64, rng *rand.Rand) *DropoutLayer {
	return &DropoutLayer{
		Rate: rate,
		rng:  rng,
	}
}

// Forward 训练模式下随机丢弃，推理模式下原样通过
func (l *DropoutLayer) Forward(x *mat.VecDense) *mat.VecDense {
	if !l.training || l.Rate <= 0 {
		l.mask = nil
		return x
	}

	keep := 1 - l.Rate
	out := mat.NewVecDense(x.Len(), nil)
	l.mask = make([]float64, x.Len())
	for i := 0; i < x.Len(); i++ {
		if l.rng.Float64() < keep {
			l.mask[i] = 1 / keep
			out.SetVec(i, x.AtVec(i)*l.mask[i])
		}
	}
	return out
}

// Backward 误差按同一掩码回传
func (l *DropoutLayer) Backward(delta *mat.VecDense) *mat.VecDense {
	if l.mask == nil {
		return delta
	}
	prevDelta := mat.NewVecDense(delta.Len(), nil)
	for i := 0; i < delta.Len(); i++ {
		prevDelta.SetVec(i, delta.AtVec(i)*l.mask[i])
	}
	return prevDelta
}

// Update Dropout层无参数
func (l *DropoutLayer) Update(learningRate float64, batchSize int) {}

// ZeroGrads Dropout层无梯度
func (l *DropoutLayer) ZeroGrads() {}

// Grads Dropout层无参数梯度
func (l *DropoutLayer) Grads() [][]float64 { return nil }

// SetTraining 切换训练/推理模式
func (l *DropoutLayer) SetTraining(training bool) {
	l.training = training
}
