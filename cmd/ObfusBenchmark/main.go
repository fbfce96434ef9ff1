package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"ObfuDev/pkg/dataProcess"
	"ObfuDev/pkg/network"
	"ObfuDev/pkg/obfuscate"
	"ObfuDev/pkg/training"
)

/*
置换混淆对照基准测试入口
流程：加载数据 -> 生成置换密钥 -> 混淆数据 ->
用完全相同的拓扑和初始权重分别在原始数据和混淆数据上训练 -> 比较准确率
*/

func main() {
	dataDir := flag.String("data", "", "MNIST数据目录，为空时使用合成数据集")
	seed := flag.Int64("seed", 42, "密钥和权重初始化种子")
	epochs := flag.Int("epochs", 5, "训练轮数")
	batchSize := flag.Int("batch", 64, "批次大小")
	learningRate := flag.Float64("lr", 0.05, "学习率")
	model := flag.String("model", "conv", "模型类型: conv 或 dense")
	useDP := flag.Bool("dp", false, "是否使用差分隐私SGD训练")
	keyFile := flag.String("keyfile", "", "密钥保存路径，为空时不保存")
	exportPrefix := flag.String("export", "", "混淆数据集CSV导出路径前缀，为空时不导出")
	flag.Parse()

	fmt.Println("======================================================")
	fmt.Println("        置换混淆对照基准测试")
	fmt.Println("======================================================")

	// 加载数据集
	trainData, testData, err := loadDatasets(*dataDir)
	if err != nil {
		log.Fatalf("加载数据集失败: %v", err)
	}
	fmt.Printf("训练数据集包含 %d 个样本\n", trainData.NumSamples())
	fmt.Printf("测试数据集包含 %d 个样本\n", testData.NumSamples())

	// 种子为0表示未指定：密钥不可复现，其余环节退回到时间种子
	initSeed := *seed
	if initSeed == 0 {
		initSeed = time.Now().UnixNano()
	}

	// 生成置换密钥
	trainKey, err := generateTrainKey(
		trainData.NumSamples(), trainData.Rows, trainData.Cols, *seed)
	if err != nil {
		log.Fatalf("生成密钥失败: %v", err)
	}
	// 测试集密钥共享同一对行列置换
	testKey, err := obfuscate.DeriveKey(trainKey, testData.NumSamples(), initSeed+1)
	if err != nil {
		log.Fatalf("派生测试集密钥失败: %v", err)
	}
	if *keyFile != "" {
		if err := obfuscate.SaveKey(trainKey, *keyFile); err != nil {
			log.Fatalf("保存密钥失败: %v", err)
		}
		fmt.Printf("密钥已保存到 %s\n", *keyFile)
	}

	// 混淆数据集
	obfTrain, err := obfuscate.Apply(trainData, trainKey)
	if err != nil {
		log.Fatalf("混淆训练集失败: %v", err)
	}
	obfTest, err := obfuscate.Apply(testData, testKey)
	if err != nil {
		log.Fatalf("混淆测试集失败: %v", err)
	}

	// 验证边缘分布保持不变
	if err := obfuscate.CheckMarginalsPreserved(trainData, obfTrain, trainKey); err != nil {
		log.Fatalf("边缘分布校验失败: %v", err)
	}
	fmt.Println("✓ 边缘分布校验通过：混淆只重排像素寻址，不改变像素值分布")

	if *exportPrefix != "" {
		err := dataProcess.SaveCSVDataset(obfTrain,
			*exportPrefix+"_images.csv", *exportPrefix+"_labels.csv")
		if err != nil {
			log.Fatalf("导出混淆数据集失败: %v", err)
		}
		fmt.Printf("混淆训练集已导出到 %s_*.csv\n", *exportPrefix)
	}

	// 两个对照组分别训练，拓扑和初始权重完全一致
	comparison := &training.Comparison{}
	numClasses := 10
	arms := []struct {
		name   string
		train  *dataProcess.Dataset
		test   *dataProcess.Dataset
		result **training.Result
	}{
		{"原始数据", trainData, testData, &comparison.Control},
		{"混淆数据", obfTrain, obfTest, &comparison.Obfuscated},
	}

	for _, arm := range arms {
		fmt.Printf("\n开始训练%s模型...\n", arm.name)
		nn, err := buildNetwork(*model, trainData.Rows, trainData.Cols, numClasses, initSeed)
		if err != nil {
			log.Fatalf("创建网络失败: %v", err)
		}

		if *useDP {
			dpConfig := network.NewDPSGDConfig()
			dpConfig.BatchSize = *batchSize
			dpConfig.LearningRate = *learningRate
			dpConfig.Seed = initSeed
			*arm.result = training.TrainModelWithDP(nn, arm.train, arm.test, dpConfig, *epochs, numClasses)
			continue
		}

		trainSet, valSet, err := arm.train.Split(0.1)
		if err != nil {
			log.Fatalf("划分验证集失败: %v", err)
		}
		cfg := &network.TrainConfig{
			Epochs:       *epochs,
			BatchSize:    *batchSize,
			LearningRate: *learningRate,
			ShuffleSeed:  initSeed,
			Verbose:      true,
		}
		*arm.result = training.TrainModel(nn, trainSet, valSet, arm.test, cfg, numClasses, nil)
	}

	fmt.Println()
	comparison.Print()
}

// generateTrainKey 生成训练集密钥，种子为0时生成不可复现的密钥并发出警告
func generateTrainKey(datasetSize, rows, cols int, seed int64) (*obfuscate.PermutationKey, error) {
	if seed != 0 {
		return obfuscate.GenerateKeyFromSeed(datasetSize, rows, cols, seed)
	}
	fmt.Println("警告: 未指定种子，生成的密钥不可复现")
	return obfuscate.GenerateKeyUnseeded(datasetSize, rows, cols)
}

// loadDatasets 加载真实MNIST数据或生成合成数据集
func loadDatasets(dataDir string) (*dataProcess.Dataset, *dataProcess.Dataset, error) {
	if dataDir != "" {
		return dataProcess.LoadDataset(dataDir)
	}

	trainCfg := dataProcess.NewSyntheticConfig()
	trainCfg.NumSamples = 2000
	train, err := dataProcess.GenerateSynthetic(trainCfg)
	if err != nil {
		return nil, nil, err
	}

	testCfg := dataProcess.NewSyntheticConfig()
	testCfg.NumSamples = 400
	testCfg.Seed = trainCfg.Seed + 1
	test, err := dataProcess.GenerateSynthetic(testCfg)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// buildNetwork 按类型和种子构建网络
func buildNetwork(model string, rows, cols, numClasses int, seed int64) (*network.NeuronNetwork, error) {
	rng := rand.New(rand.NewSource(seed))
	if model == "dense" {
		return network.NewDenseNetwork([]int{rows * cols, 64, 64, numClasses}, rng)
	}
	topology := network.NewTopologyConfig()
	topology.InputRows = rows
	topology.InputCols = cols
	topology.NumClasses = numClasses
	return network.NewConvNetwork(topology, rng)
}
