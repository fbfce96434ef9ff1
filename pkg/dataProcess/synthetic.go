package dataProcess

import (
	"fmt"
	"math"
	"math/rand"
)

/*
该文件实现合成数据集的生成
在没有真实MNIST文件的环境下也可以运行基准测试和单元测试
*/

// SyntheticConfig 合成数据集的生成参数
type SyntheticConfig struct {
	NumSamples int
	Rows       int
	Cols       int
	NumClasses int
	Seed       int64 // 随机数种子，保证可复现
}

// NewSyntheticConfig 创建默认的合成数据集参数（MNIST形状）
func NewSyntheticConfig() *SyntheticConfig {
	return &SyntheticConfig{
		NumSamples: 1000,
		Rows:       28,
		Cols:       28,
		NumClasses: 10,
		Seed:       42,
	}
}

// GenerateSynthetic 生成带类别结构的合成图像数据集
// 每个类别对应一种固定的几何图案，加入少量噪声，保证分类器可以学习
func GenerateSynthetic(cfg *SyntheticConfig) (*Dataset, error) {
	if cfg.NumSamples <= 0 || cfg.Rows <= 0 || cfg.Cols <= 0 || cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("合成数据集参数不合法: %+v", cfg)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	images := make([][]float64, cfg.NumSamples)
	labels := make([]int, cfg.NumSamples)
	for i := 0; i < cfg.NumSamples; i++ {
		label := rng.Intn(cfg.NumClasses)
		labels[i] = label
		images[i] = generateClassImage(label, cfg.Rows, cfg.Cols, rng)
	}

	return &Dataset{
		Images: images,
		Labels: labels,
		Rows:   cfg.Rows,
		Cols:   cfg.Cols,
	}, nil
}

// generateClassImage 生成某个类别的单张图像
func generateClassImage(label, rows, cols int, rng *rand.Rand) []float64 {
	img := make([]float64, rows*cols)
	centerY, centerX := rows/2, cols/2

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			// 与图像中心的距离
			dx := float64(x - centerX)
			dy := float64(y - centerY)
			dist := math.Sqrt(dx*dx + dy*dy)

			intensity := 0.0
			switch label % 5 {
			case 0: // 圆环图案
				if dist > float64(rows)/5 && dist < float64(rows)/3 {
					intensity = 0.9
				}
			case 1: // 竖线图案
				if x >= centerX-1 && x <= centerX+1 {
					intensity = 0.8
				}
			case 2: // 横线图案
				if y >= centerY-1 && y <= centerY+1 {
					intensity = 0.8
				}
			case 3: // 对角线图案
				if x-y >= -1 && x-y <= 1 {
					intensity = 0.85
				}
			case 4: // 实心方块图案
				if dist < float64(rows)/4 {
					intensity = 0.7
				}
			}
			// 类别5-9在基础图案上整体加一个和类别相关的偏移
			if label >= 5 {
				intensity += 0.1 * float64(label-4)
			}

			// 加入噪声
			intensity += (rng.Float64() - 0.5) * 0.1
			if intensity < 0 {
				intensity = 0
			} else if intensity > 1 {
				intensity = 1
			}

			img[y*cols+x] = intensity
		}
	}

	return img
}
