package training

import (
	"fmt"
	"time"

	"ObfuDev/pkg/dataProcess"
	"ObfuDev/pkg/network"

	"gonum.org/v1/gonum/mat"
)

/*
该文件实现训练和评估的驱动逻辑
对照实验的两个模型必须使用完全相同的拓扑和超参数，这里只负责喂入不同的数据集
*/

// OneHotEncode 将标签转换为one-hot编码
func OneHotEncode(label int, numClasses int) *mat.VecDense {
	oneHot := mat.NewVecDense(numClasses, nil)
	oneHot.SetVec(label, 1.0)
	return oneHot
}

// PrepareData 将数据集转换为网络的输入和目标向量
func PrepareData(dataset *dataProcess.Dataset, numClasses int) ([]*mat.VecDense, []*mat.VecDense) {
	inputs := make([]*mat.VecDense, len(dataset.Images))
	targets := make([]*mat.VecDense, len(dataset.Labels))

	for i := 0; i < len(dataset.Images); i++ {
		// 像素值在加载时已归一化，这里直接拷贝
		img := make([]float64, len(dataset.Images[i]))
		copy(img, dataset.Images[i])
		inputs[i] = mat.NewVecDense(len(img), img)

		// 准备目标输出（one-hot编码）
		targets[i] = OneHotEncode(dataset.Labels[i], numClasses)
	}

	return inputs, targets
}

// Result 一次完整训练加最终评估的结果
type Result struct {
	History      []network.EpochMetrics `json:"history"`
	TestLoss     float64                `json:"test_loss"`
	TestAccuracy float64                `json:"test_accuracy"`
	TrainSeconds float64                `json:"train_seconds"`
	InferSeconds float64                `json:"infer_seconds"`
}

// TrainModel 训练模型并在测试集上做最终评估
// observer 不为nil时每轮回调一次
func TrainModel(nn *network.NeuronNetwork,
	trainDataset, valDataset, testDataset *dataProcess.Dataset,
	cfg *network.TrainConfig, numClasses int,
	observer func(network.EpochMetrics)) *Result {

	// 准备训练数据
	trainInputs, trainTargets := PrepareData(trainDataset, numClasses)

	var valInputs, valTargets []*mat.VecDense
	if valDataset != nil {
		valInputs, valTargets = PrepareData(valDataset, numClasses)
	}

	// 准备测试数据
	testInputs, testTargets := PrepareData(testDataset, numClasses)

	// 训练模型
	startTrain := time.Now()
	history := nn.Train(trainInputs, trainTargets, valInputs, valTargets, cfg, observer)
	elapsed := time.Since(startTrain)
	if cfg.Verbose {
		fmt.Printf("训练耗时: %v\n", elapsed)
	}

	// 训练后在测试集上评估
	startInference := time.Now()
	testAccuracy := nn.Evaluate(testInputs, testTargets)
	testLoss := nn.CalculateLoss(testInputs, testTargets)
	elapsedInference := time.Since(startInference)
	if cfg.Verbose {
		fmt.Printf("推理耗时: %v\n", elapsedInference)
		fmt.Printf("训练后 - 测试损失: %.4f, 测试准确率: %.2f%%\n", testLoss, testAccuracy*100)
	}

	return &Result{
		History:      history,
		TestLoss:     testLoss,
		TestAccuracy: testAccuracy,
		TrainSeconds: elapsed.Seconds(),
		InferSeconds: elapsedInference.Seconds(),
	}
}

// TrainModelWithDP 使用差分隐私训练模型并在测试集上做最终评估
func TrainModelWithDP(nn *network.NeuronNetwork,
	trainDataset, testDataset *dataProcess.Dataset,
	dpConfig *network.DPSGDConfig, epochs int, numClasses int) *Result {

	trainInputs, trainTargets := PrepareData(trainDataset, numClasses)
	testInputs, testTargets := PrepareData(testDataset, numClasses)

	fmt.Printf("差分隐私参数 - 噪声乘数: %.2f, 裁剪阈值: %.2f, 批次大小: %d, δ=%.0e\n",
		dpConfig.NoiseMultiplier, dpConfig.L2NormClip, dpConfig.BatchSize, dpConfig.Delta)

	startTrain := time.Now()
	lossHistory := nn.TrainWithDP(trainInputs, trainTargets, dpConfig, epochs)
	elapsed := time.Since(startTrain)
	fmt.Printf("训练耗时: %v\n", elapsed)

	startInference := time.Now()
	testAccuracy := nn.Evaluate(testInputs, testTargets)
	testLoss := nn.CalculateLoss(testInputs, testTargets)
	elapsedInference := time.Since(startInference)
	fmt.Printf("推理耗时: %v\n", elapsedInference)
	fmt.Printf("训练后 - 测试损失: %.4f, 测试准确率: %.2f%%\n", testLoss, testAccuracy*100)

	history := make([]network.EpochMetrics, len(lossHistory))
	for i, loss := range lossHistory {
		history[i] = network.EpochMetrics{Epoch: i + 1, TrainLoss: loss}
	}

	return &Result{
		History:      history,
		TestLoss:     testLoss,
		TestAccuracy: testAccuracy,
		TrainSeconds: elapsed.Seconds(),
		InferSeconds: elapsedInference.Seconds(),
	}
}

// Comparison 对照实验结果：原始数据模型 vs 混淆数据模型
type Comparison struct {
	Control    *Result `json:"control"`
	Obfuscated *Result `json:"obfuscated"`
}

// AccuracyGap 原始模型与混淆模型的测试准确率差值
func (c *Comparison) AccuracyGap() float64 {
	return c.Control.TestAccuracy - c.Obfuscated.TestAccuracy
}

// Print 打印对照实验的汇总结果
func (c *Comparison) Print() {
	fmt.Println("======================================================")
	fmt.Println("               对照实验结果汇总")
	fmt.Println("======================================================")
	fmt.Printf("原始数据模型 - 测试损失: %.4f, 测试准确率: %.2f%%\n",
		c.Control.TestLoss, c.Control.TestAccuracy*100)
	fmt.Printf("混淆数据模型 - 测试损失: %.4f, 测试准确率: %.2f%%\n",
		c.Obfuscated.TestLoss, c.Obfuscated.TestAccuracy*100)
	fmt.Printf("准确率差值: %.2f%%\n", c.AccuracyGap()*100)
}
