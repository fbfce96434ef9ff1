package main

import (
	"fmt"
	"log"
	"os"

	"ObfuDev/cmd/ExperimentServer/services"
	"ObfuDev/pkg/dataProcess"

	"github.com/joho/godotenv"
)

/*
实验服务器入口
通过HTTP接口启动置换混淆对照实验，训练指标通过WebSocket实时推送
配置从.env文件或环境变量读取
*/

// loadDatasets 优先加载真实MNIST数据，失败则退回到合成数据集
func loadDatasets() (*dataProcess.Dataset, *dataProcess.Dataset, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir != "" {
		train, test, err := dataProcess.LoadDataset(dataDir)
		if err == nil {
			return train, test, nil
		}
		fmt.Printf("加载MNIST数据失败，改用合成数据集: %v\n", err)
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

func main() {
	fmt.Println("======================================================")
	fmt.Println("        置换混淆对照实验服务器")
	fmt.Println("======================================================")

	// 读取.env配置，文件不存在时使用环境变量
	if err := godotenv.Load(); err != nil {
		fmt.Println("未找到.env文件，使用环境变量配置")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	trainData, testData, err := loadDatasets()
	if err != nil {
		log.Fatalf("数据集初始化失败: %v", err)
	}
	fmt.Printf("训练数据集包含 %d 个样本\n", trainData.NumSamples())
	fmt.Printf("测试数据集包含 %d 个样本\n", testData.NumSamples())

	srv := services.NewServer(trainData, testData, port)
	if err := srv.Start(); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
