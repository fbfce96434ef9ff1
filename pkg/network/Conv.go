package network

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

/*
该文件实现卷积层和最大池化层
输入输出向量均按通道主序展平：索引为 ch*rows*cols + r*cols + c
卷积为valid方式（无填充），步长固定为1；池化窗口不重叠
*/

// ConvLayer 二维卷积层
type ConvLayer struct {
	InChannels  int
	OutChannels int
	InRows      int
	InCols      int
	KernelSize  int
	OutRows     int
	OutCols     int

	Weights *mat.Dense    // 每行对应一个输出通道，长度为 InChannels*K*K
	Biases  *mat.VecDense // 每个输出通道一个偏置

	Activation           func(*mat.VecDense) *mat.VecDense
	ActivationDerivative func(*mat.VecDense) *mat.VecDense

	WeightGrads *mat.Dense
	BiasGrads   *mat.VecDense

	lastInput  *mat.VecDense
	lastOutput *mat.VecDense
}

// NewConvLayer 创建卷积层，权重用He初始化
func NewConvLayer(inChannels, outChannels, inRows, inCols, kernelSize int,
	activation func(*mat.VecDense) *mat.VecDense,
	activationDeriv func(*mat.VecDense) *mat.VecDense,
	rng *rand.Rand) *ConvLayer {

	fanIn := inChannels * kernelSize * kernelSize
	weights := mat.NewDense(outChannels, fanIn, nil)
	scale := math.Sqrt(2.0 / float64(fanIn))
	for i := 0; i < outChannels; i++ {
		for j := 0; j < fanIn; j++ {
			weights.Set(i, j, rng.NormFloat64()*scale)
		}
	}

	return &ConvLayer{
		InChannels:           inChannels,
		OutChannels:          outChannels,
		InRows:               inRows,
		InCols:               inCols,
		KernelSize:           kernelSize,
		OutRows:              inRows - kernelSize + 1,
		OutCols:              inCols - kernelSize + 1,
		Weights:              weights,
		Biases:               mat.NewVecDense(outChannels, nil),
		Activation:           activation,
		ActivationDerivative: activationDeriv,
		WeightGrads:          mat.NewDense(outChannels, fanIn, nil),
		BiasGrads:            mat.NewVecDense(outChannels, nil),
	}
}

// Forward 对输入做卷积并应用激活函数
func (l *ConvLayer) Forward(x *mat.VecDense) *mat.VecDense {
	k := l.KernelSize
	z := mat.NewVecDense(l.OutChannels*l.OutRows*l.OutCols, nil)
	for oc := 0; oc < l.OutChannels; oc++ {
		for or := 0; or < l.OutRows; or++ {
			for occ := 0; occ < l.OutCols; occ++ {
				sum := l.Biases.AtVec(oc)
				for ic := 0; ic < l.InChannels; ic++ {
					for kr := 0; kr < k; kr++ {
						for kc := 0; kc < k; kc++ {
							w := l.Weights.At(oc, ic*k*k+kr*k+kc)
							v := x.AtVec(ic*l.InRows*l.InCols + (or+kr)*l.InCols + (occ + kc))
							sum += w * v
						}
					}
				}
				z.SetVec(oc*l.OutRows*l.OutCols+or*l.OutCols+occ, sum)
			}
		}
	}
	l.lastInput = x
	l.lastOutput = l.Activation(z)
	return l.lastOutput
}

// Backward 反向传播，累积卷积核梯度并返回传给前一层的误差
func (l *ConvLayer) Backward(delta *mat.VecDense) *mat.VecDense {
	deltaZ := delta
	if l.ActivationDerivative != nil {
		deriv := l.ActivationDerivative(l.lastOutput)
		deltaZ = mat.NewVecDense(delta.Len(), nil)
		for i := 0; i < delta.Len(); i++ {
			deltaZ.SetVec(i, delta.AtVec(i)*deriv.AtVec(i))
		}
	}

	k := l.KernelSize
	prevDelta := mat.NewVecDense(l.InChannels*l.InRows*l.InCols, nil)
	for oc := 0; oc < l.OutChannels; oc++ {
		for or := 0; or < l.OutRows; or++ {
			for occ := 0; occ < l.OutCols; occ++ {
				d := deltaZ.AtVec(oc*l.OutRows*l.OutCols + or*l.OutCols + occ)
				l.BiasGrads.SetVec(oc, l.BiasGrads.AtVec(oc)+d)
				for ic := 0; ic < l.InChannels; ic++ {
					for kr := 0; kr < k; kr++ {
						for kc := 0; kc < k; kc++ {
							wIdx := ic*k*k + kr*k + kc
							xIdx := ic*l.InRows*l.InCols + (or+kr)*l.InCols + (occ + kc)
							l.WeightGrads.Set(oc, wIdx, l.WeightGrads.At(oc, wIdx)+d*l.lastInput.AtVec(xIdx))
							prevDelta.SetVec(xIdx, prevDelta.AtVec(xIdx)+l.Weights.At(oc, wIdx)*d)
						}
					}
				}
			}
		}
	}
	return prevDelta
}

// Update 用累积梯度的平均值更新参数
func (l *ConvLayer) Update(learningRate float64, batchSize int) {
	rows, cols := l.WeightGrads.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			avgGrad := l.WeightGrads.At(i, j) / float64(batchSize)
			l.Weights.Set(i, j, l.Weights.At(i, j)-learningRate*avgGrad)
		}
	}
	for i := 0; i < l.OutChannels; i++ {
		avgGrad := l.BiasGrads.AtVec(i) / float64(batchSize)
		l.Biases.SetVec(i, l.Biases.AtVec(i)-learningRate*avgGrad)
	}
}

// ZeroGrads 清空累积梯度
func (l *ConvLayer) ZeroGrads() {
	l.WeightGrads.Zero()
	l.BiasGrads.Zero()
}

// Grads 返回卷积核梯度和偏置梯度的原始切片
func (l *ConvLayer) Grads() [][]float64 {
	return [][]float64{l.WeightGrads.RawMatrix().Data, l.BiasGrads.RawVector().Data}
}

// SetTraining 卷积层在训练和推理模式下行为一致
func (l *ConvLayer) SetTraining(training bool) {}

// MaxPoolLayer 最大池化层，窗口不重叠
type MaxPoolLayer struct {
	Channels int
	InRows   int
	InCols   int
	PoolSize int
	OutRows  int
	OutCols  int

	// 每个输出位置对应的输入最大值索引，Backward时误差只回传到该位置
	argmax []int
}

// NewMaxPoolLayer 创建最大池化层
func NewMaxPoolLayer(channels, inRows, inCols, poolSize int) *MaxPoolLayer {
	return &MaxPoolLayer{
		Channels: channels,
		InRows:   inRows,
		InCols:   inCols,
		PoolSize: poolSize,
		OutRows:  inRows / poolSize,
		OutCols:  inCols / poolSize,
	}
}

// Forward 取每个池化窗口内的最大值
func (l *MaxPoolLayer) Forward(x *mat.VecDense) *mat.VecDense {
	p := l.PoolSize
	out := mat.NewVecDense(l.Channels*l.OutRows*l.OutCols, nil)
	l.argmax = make([]int, out.Len())
	for ch := 0; ch < l.Channels; ch++ {
		for or := 0; or < l.OutRows; or++ {
			for oc := 0; oc < l.OutCols; oc++ {
				maxIdx := ch*l.InRows*l.InCols + (or*p)*l.InCols + oc*p
				maxVal := x.AtVec(maxIdx)
				for pr := 0; pr < p; pr++ {
					for pc := 0; pc < p; pc++ {
						idx := ch*l.InRows*l.InCols + (or*p+pr)*l.InCols + (oc*p + pc)
						if x.AtVec(idx) > maxVal {
							maxVal = x.AtVec(idx)
							maxIdx = idx
						}
					}
				}
				outIdx := ch*l.OutRows*l.OutCols + or*l.OutCols + oc
				out.SetVec(outIdx, maxVal)
				l.argmax[outIdx] = maxIdx
			}
		}
	}
	return out
}

// Backward 误差只回传到每个窗口的最大值位置
func (l *MaxPoolLayer) Backward(delta *mat.VecDense) *mat.VecDense {
	prevDelta := mat.NewVecDense(l.Channels*l.InRows*l.InCols, nil)
	for i := 0; i < delta.Len(); i++ {
		prevDelta.SetVec(l.argmax[i], prevDelta.AtVec(l.argmax[i])+delta.AtVec(i))
	}
	return prevDelta
}

// Update 池化层无参数
func (l *MaxPoolLayer) Update(learningRate float64, batchSize int) {}

// ZeroGrads 池化层无梯度
func (l *MaxPoolLayer) ZeroGrads() {}

// Grads 池化层无参数梯度
func (l *MaxPoolLayer) Grads() [][]float64 { return nil }

// SetTraining 池化层在训练和推理模式下行为一致
func (l *MaxPoolLayer) SetTraining(training bool) {}
