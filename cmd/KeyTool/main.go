package main

import (
	"flag"
	"fmt"
	"log"

	"ObfuDev/pkg/obfuscate"
)

/*
置换密钥工具入口
生成可复现的置换密钥并持久化，或检查已有密钥文件
*/

func main() {
	datasetSize := flag.Int("n", 60000, "数据集大小")
	rows := flag.Int("rows", 28, "图像高度")
	cols := flag.Int("cols", 28, "图像宽度")
	seed := flag.Int64("seed", 0, "随机数种子，0表示不指定（不可复现）")
	out := flag.String("out", "", "密钥输出路径")
	inspect := flag.String("inspect", "", "检查已有密钥文件")
	flag.Parse()

	if *inspect != "" {
		key, err := obfuscate.LoadKey(*inspect)
		if err != nil {
			log.Fatalf("密钥文件检查失败: %v", err)
		}
		fmt.Printf("密钥合法 - 数据集大小: %d, 图像形状: %dx%d\n",
			len(key.SampleOrder), len(key.RowOrder), len(key.ColOrder))
		if key.Seeded {
			fmt.Printf("种子: %d（可复现）\n", key.Seed)
		} else {
			fmt.Println("警告: 该密钥未使用显式种子生成，不可复现")
		}
		return
	}

	if *out == "" {
		log.Fatal("必须指定 -out 或 -inspect")
	}

	var key *obfuscate.PermutationKey
	var err error
	if *seed != 0 {
		key, err = obfuscate.GenerateKeyFromSeed(*datasetSize, *rows, *cols, *seed)
	} else {
		key, err = obfuscate.GenerateKeyUnseeded(*datasetSize, *rows, *cols)
		fmt.Println("警告: 未指定种子，生成的密钥不可复现")
	}
	if err != nil {
		log.Fatalf("生成密钥失败: %v", err)
	}

	if err := obfuscate.SaveKey(key, *out); err != nil {
		log.Fatalf("保存密钥失败: %v", err)
	}
	fmt.Printf("密钥已保存到 %s\n", *out)
}
