package network

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

/*
该文件定义网络层的统一接口和全连接层的实现
每一层在Forward时缓存必要的中间结果供Backward使用
因此单个网络实例的训练过程是串行的，不支持并发调用
*/

// Layer 网络层的统一接口
type Layer interface {
	// Forward 前向传播，缓存中间结果
	Forward(x *mat.VecDense) *mat.VecDense
	// Backward 接收上游误差，累积本层参数梯度，返回传给前一层的误差
	Backward(delta *mat.VecDense) *mat.VecDense
	// Update 用累积梯度的平均值更新本层参数
	Update(learningRate float64, batchSize int)
	// ZeroGrads 清空累积梯度
	ZeroGrads()
	// Grads 返回本层累积梯度的原始切片视图，无参数层返回nil
	Grads() [][]float64
	// SetTraining 切换训练/推理模式
	SetTraining(training bool)
}

// DenseLayer 全连接层
type DenseLayer struct {
	InputSize  int
	OutputSize int
	Weights    *mat.Dense    // 权重矩阵大小为 OutputSize*InputSize
	Biases     *mat.VecDense // 偏置向量
	Activation func(*mat.VecDense) *mat.VecDense
	// 激活函数的导数。为nil时表示Backward接收的误差已经是关于
	// 前激活值z的梯度（softmax输出层配合交叉熵损失时就是这种情况）
	ActivationDerivative func(*mat.VecDense) *mat.VecDense

	WeightGrads *mat.Dense
	BiasGrads   *mat.VecDense

	lastInput  *mat.VecDense
	lastOutput *mat.VecDense
}

// NewDenseLayer 创建全连接层，权重用He初始化
// 随机数生成器由调用方显式传入，保证两次构建可以得到完全相同的初始权重
func NewDenseLayer(inputSize, outputSize int,
	activation func(*mat.VecDense) *mat.VecDense,
	activationDeriv func(*mat.VecDense) *mat.VecDense,
	rng *rand.Rand) *DenseLayer {

	weights := mat.NewDense(outputSize, inputSize, nil)
	scale := math.Sqrt(2.0 / float64(inputSize)) // ReLU激活函数利用He初始化
	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			weights.Set(i, j, rng.NormFloat64()*scale)
		}
	}
	return &DenseLayer{
		InputSize:            inputSize,
		OutputSize:           outputSize,
		Weights:              weights,
		Biases:               mat.NewVecDense(outputSize, nil),
		Activation:           activation,
		ActivationDerivative: activationDeriv,
		WeightGrads:          mat.NewDense(outputSize, inputSize, nil),
		BiasGrads:            mat.NewVecDense(outputSize, nil),
	}
}

// Forward 计算 a = activation(Wx + b)
func (l *DenseLayer) Forward(x *mat.VecDense) *mat.VecDense {
	var z mat.VecDense
	z.MulVec(l.Weights, x)
	z.AddVec(&z, l.Biases)
	l.lastInput = x
	l.lastOutput = l.Activation(&z)
	return l.lastOutput
}

// Backward 反向传播并累积梯度
func (l *DenseLayer) Backward(delta *mat.VecDense) *mat.VecDense {
	// 把关于激活值的误差换算为关于前激活值的误差
	deltaZ := delta
	if l.ActivationDerivative != nil {
		deriv := l.ActivationDerivative(l.lastOutput)
		deltaZ = mat.NewVecDense(delta.Len(), nil)
		for i := 0; i < delta.Len(); i++ {
			deltaZ.SetVec(i, delta.AtVec(i)*deriv.AtVec(i))
		}
	}

	// 累积权重梯度 dW += deltaZ * x^T 和偏置梯度 db += deltaZ
	for i := 0; i < l.OutputSize; i++ {
		for j := 0; j < l.InputSize; j++ {
			l.WeightGrads.Set(i, j, l.WeightGrads.At(i, j)+deltaZ.AtVec(i)*l.lastInput.AtVec(j))
		}
		l.BiasGrads.SetVec(i, l.BiasGrads.AtVec(i)+deltaZ.AtVec(i))
	}

	// 传给前一层的误差 W^T * deltaZ
	prevDelta := mat.NewVecDense(l.InputSize, nil)
	for j := 0; j < l.InputSize; j++ {
		sum := 0.0
		for i := 0; i < l.OutputSize; i++ {
			sum += l.Weights.At(i, j) * deltaZ.AtVec(i)
		}
		prevDelta.SetVec(j, sum)
	}
	return prevDelta
}

// Update 用累积梯度的平均值更新参数
func (l *DenseLayer) Update(learningRate float64, batchSize int) {
	for i := 0; i < l.OutputSize; i++ {
		for j := 0; j < l.InputSize; j++ {
			avgGrad := l.WeightGrads.At(i, j) / float64(batchSize)
			l.Weights.Set(i, j, l.Weights.At(i, j)-learningRate*avgGrad)
		}
		avgGrad := l.BiasGrads.AtVec(i) / float64(batchSize)
		l.Biases.SetVec(i, l.Biases.AtVec(i)-learningRate*avgGrad)
	}
}

// ZeroGrads 清空累积梯度
func (l *DenseLayer) ZeroGrads() {
	l.WeightGrads.Zero()
	l.BiasGrads.Zero()
}

// Grads 返回权重梯度和偏置梯度的原始切片
func (l *DenseLayer) Grads() [][]float64 {
	return [][]float64{l.WeightGrads.RawMatrix().Data, l.BiasGrads.RawVector().Data}
}

// SetTraining 全连接层在训练和推理模式下行为一致
func (l *DenseLayer) SetTraining(training bool) {}
