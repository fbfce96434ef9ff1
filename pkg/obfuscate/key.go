package obfuscate

import (
	"fmt"
	"math/rand"
	"time"
)

/*
该文件实现置换密钥的定义和生成
密钥由三个独立的均匀随机置换组成：样本置换、行置换和列置换
只有持有密钥的人才能还原被混淆的数据
*/

// PermutationKey 置换密钥
type PermutationKey struct {
	SampleOrder []int `json:"sample_order"` // 样本索引的置换，长度等于数据集大小
	RowOrder    []int `json:"row_order"`    // 行索引的置换，长度等于图像高度
	ColOrder    []int `json:"col_order"`    // 列索引的置换，长度等于图像宽度
	Seed        int64 `json:"seed"`
	Seeded      bool  `json:"seeded"` // 是否使用显式种子生成（可复现）
}

// randomPermutation 用Fisher-Yates洗牌算法生成一个均匀随机置换
func randomPermutation(n int, rng *rand.Rand) []int {
	perm := make([]int, n)
	for i := 0; i < n; i++ {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// GenerateKey 用显式传入的随机数生成器生成置换密钥
// 三个置换相互独立，给定相同的生成器状态结果完全一致
func GenerateKey(datasetSize, imageHeight, imageWidth int, rng *rand.Rand) (*PermutationKey, error) {
	if datasetSize <= 0 {
		return nil, fmt.Errorf("数据集大小 %d 必须为正整数", datasetSize)
	}
	if imageHeight <= 0 || imageWidth <= 0 {
		return nil, fmt.Errorf("图像形状 %dx%d 必须为正整数", imageHeight, imageWidth)
	}
	if rng == nil {
		return nil, fmt.Errorf("随机数生成器不能为空")
	}

	return &PermutationKey{
		SampleOrder: randomPermutation(datasetSize, rng),
		RowOrder:    randomPermutation(imageHeight, rng),
		ColOrder:    randomPermutation(imageWidth, rng),
	}, nil
}

// GenerateKeyFromSeed 用显式种子生成置换密钥，保证跨运行可复现
func GenerateKeyFromSeed(datasetSize, imageHeight, imageWidth int, seed int64) (*PermutationKey, error) {
	key, err := GenerateKey(datasetSize, imageHeight, imageWidth, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	key.Seed = seed
	key.Seeded = true
	return key, nil
}

// GenerateKeyUnseeded 不指定种子生成置换密钥
// 生成的密钥不可复现，调用方应检查Seeded标志并向使用者发出警告
func GenerateKeyUnseeded(datasetSize, imageHeight, imageWidth int) (*PermutationKey, error) {
	key, err := GenerateKey(datasetSize, imageHeight, imageWidth, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}
	key.Seeded = false
	return key, nil
}

// DeriveKey 为另一个数据集派生密钥：样本置换重新生成，行列置换沿用原密钥
// 训练集和测试集必须共享同一对空间置换，训练出的模型才能在测试集上评估
func DeriveKey(key *PermutationKey, datasetSize int, seed int64) (*PermutationKey, error) {
	derived, err := GenerateKeyFromSeed(datasetSize, len(key.RowOrder), len(key.ColOrder), seed)
	if err != nil {
		return nil, err
	}
	derived.RowOrder = append([]int(nil), key.RowOrder...)
	derived.ColOrder = append([]int(nil), key.ColOrder...)
	derived.Seeded = key.Seeded && derived.Seeded
	return derived, nil
}

// isPermutation 检查切片是否为 0..n-1 上的双射
func isPermutation(perm []int) bool {
	seen := make([]bool, len(perm))
	for _, v := range perm {
		if v < 0 || v >= len(perm) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Validate 检查密钥本身的合法性
func (k *PermutationKey) Validate() error {
	if !isPermutation(k.SampleOrder) {
		return fmt.Errorf("样本置换不是合法的双射")
	}
	if !isPermutation(k.RowOrder) {
		return fmt.Errorf("行置换不是合法的双射")
	}
	if !isPermutation(k.ColOrder) {
		return fmt.Errorf("列置换不是合法的双射")
	}
	return nil
}

// invertPermutation 计算置换的逆置换
func invertPermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, v := range perm {
		inv[v] = i
	}
	return inv
}
