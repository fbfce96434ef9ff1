package obfuscate

import (
	"math/rand"
	"sort"
	"testing"

	"ObfuDev/pkg/dataProcess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomDataset 生成一个随机内容的测试数据集
func randomDataset(n, rows, cols int, seed int64) *dataProcess.Dataset {
	rng := rand.New(rand.NewSource(seed))
	images := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		img := make([]float64, rows*cols)
		for j := range img {
			img[j] = rng.Float64()
		}
		images[i] = img
		labels[i] = rng.Intn(10)
	}
	return &dataProcess.Dataset{Images: images, Labels: labels, Rows: rows, Cols: cols}
}

// TestApplyDeterminism 相同种子下两次变换结果完全一致
func TestApplyDeterminism(t *testing.T) {
	ds := randomDataset(30, 8, 8, 1)

	key1, err := GenerateKeyFromSeed(30, 8, 8, 42)
	require.NoError(t, err)
	key2, err := GenerateKeyFromSeed(30, 8, 8, 42)
	require.NoError(t, err)

	obf1, err := Apply(ds, key1)
	require.NoError(t, err)
	obf2, err := Apply(ds, key2)
	require.NoError(t, err)

	assert.True(t, obf1.Equal(obf2))
}

// TestRoundTrip 逆变换精确还原原始数据集
func TestRoundTrip(t *testing.T) {
	ds := randomDataset(50, 12, 9, 2)

	key, err := GenerateKeyFromSeed(50, 12, 9, 7)
	require.NoError(t, err)

	obf, err := Apply(ds, key)
	require.NoError(t, err)
	restored, err := Invert(obf, key)
	require.NoError(t, err)

	assert.True(t, restored.Equal(ds))
	// 混淆结果本身应与原始数据不同
	assert.False(t, obf.Equal(ds))
}

// TestLabelAlignment 标签随样本置换移动
func TestLabelAlignment(t *testing.T) {
	ds := randomDataset(40, 4, 4, 3)

	key, err := GenerateKeyFromSeed(40, 4, 4, 11)
	require.NoError(t, err)

	obf, err := Apply(ds, key)
	require.NoError(t, err)

	for i := range obf.Labels {
		assert.Equal(t, ds.Labels[key.SampleOrder[i]], obf.Labels[i])
	}
}

// TestMarginalPreservation 固定位置上的像素值多重集在变换前后不变
func TestMarginalPreservation(t *testing.T) {
	ds := randomDataset(60, 6, 6, 4)

	key, err := GenerateKeyFromSeed(60, 6, 6, 13)
	require.NoError(t, err)

	obf, err := Apply(ds, key)
	require.NoError(t, err)

	require.NoError(t, CheckMarginalsPreserved(ds, obf, key))

	// 手动验证一个位置
	r, c := 2, 3
	obfCol := make([]float64, ds.NumSamples())
	origCol := make([]float64, ds.NumSamples())
	for i := 0; i < ds.NumSamples(); i++ {
		obfCol[i] = obf.At(i, r, c)
		origCol[i] = ds.At(i, key.RowOrder[r], key.ColOrder[c])
	}
	sort.Float64s(obfCol)
	sort.Float64s(origCol)
	assert.Equal(t, origCol, obfCol)
}

// TestHandComputedScenario 4个2x2样本的手工计算场景
// 行置换[1,0]和列置换[1,0]相当于180度旋转，样本置换为[2,0,3,1]
func TestHandComputedScenario(t *testing.T) {
	ds := &dataProcess.Dataset{
		Images: [][]float64{
			{1, 2, 3, 4},     // 样本A
			{5, 6, 7, 8},     // 样本B
			{9, 10, 11, 12},  // 样本C
			{13, 14, 15, 16}, // 样本D
		},
		Labels: []int{0, 1, 2, 3},
		Rows:   2,
		Cols:   2,
	}
	key := &PermutationKey{
		SampleOrder: []int{2, 0, 3, 1},
		RowOrder:    []int{1, 0},
		ColOrder:    []int{1, 0},
	}

	obf, err := Apply(ds, key)
	require.NoError(t, err)

	// 2x2图像[a,b;c,d]经过180度旋转得到[d,c;b,a]
	expectedImages := [][]float64{
		{12, 11, 10, 9},  // 旋转后的C
		{4, 3, 2, 1},     // 旋转后的A
		{16, 15, 14, 13}, // 旋转后的D
		{8, 7, 6, 5},     // 旋转后的B
	}
	expectedLabels := []int{2, 0, 3, 1}

	assert.Equal(t, expectedImages, obf.Images)
	assert.Equal(t, expectedLabels, obf.Labels)

	restored, err := Invert(obf, key)
	require.NoError(t, err)
	assert.True(t, restored.Equal(ds))
}

// TestEmptyDataset 空数据集的变换不报错并返回空结果
func TestEmptyDataset(t *testing.T) {
	ds := &dataProcess.Dataset{
		Images: [][]float64{},
		Labels: []int{},
		Rows:   2,
		Cols:   2,
	}
	key := &PermutationKey{
		SampleOrder: []int{},
		RowOrder:    []int{1, 0},
		ColOrder:    []int{0, 1},
	}

	obf, err := Apply(ds, key)
	require.NoError(t, err)
	assert.Equal(t, 0, obf.NumSamples())

	restored, err := Invert(obf, key)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.NumSamples())
}

// TestTrivialImageShape 1x1图像的变换不报错且内容不变（仅样本顺序改变）
func TestTrivialImageShape(t *testing.T) {
	ds := &dataProcess.Dataset{
		Images: [][]float64{{0.1}, {0.2}, {0.3}},
		Labels: []int{1, 2, 3},
		Rows:   1,
		Cols:   1,
	}

	key, err := GenerateKeyFromSeed(3, 1, 1, 5)
	require.NoError(t, err)

	obf, err := Apply(ds, key)
	require.NoError(t, err)
	for i := range obf.Images {
		assert.Equal(t, ds.Images[key.SampleOrder[i]][0], obf.Images[i][0])
	}

	restored, err := Invert(obf, key)
	require.NoError(t, err)
	assert.True(t, restored.Equal(ds))
}

// TestDimensionMismatch 密钥与数据集维度不匹配时快速失败
func TestDimensionMismatch(t *testing.T) {
	ds := randomDataset(10, 4, 4, 6)

	// 样本置换长度不匹配
	key, err := GenerateKeyFromSeed(12, 4, 4, 1)
	require.NoError(t, err)
	_, err = Apply(ds, key)
	assert.Error(t, err)

	// 行置换长度不匹配
	key, err = GenerateKeyFromSeed(10, 5, 4, 1)
	require.NoError(t, err)
	_, err = Apply(ds, key)
	assert.Error(t, err)

	// 列置换长度不匹配
	key, err = GenerateKeyFromSeed(10, 4, 3, 1)
	require.NoError(t, err)
	_, err = Apply(ds, key)
	assert.Error(t, err)

	// 逆变换同样校验维度
	_, err = Invert(ds, key)
	assert.Error(t, err)
}

// TestMarginalStats 均值和标准差的整体多重集在变换前后一致
func TestMarginalStats(t *testing.T) {
	ds := randomDataset(80, 5, 5, 8)

	key, err := GenerateKeyFromSeed(80, 5, 5, 21)
	require.NoError(t, err)
	obf, err := Apply(ds, key)
	require.NoError(t, err)

	origMeans, _ := MarginalStats(ds)
	obfMeans, _ := MarginalStats(obf)

	// 每个混淆位置的均值等于对应原位置的均值
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.InDelta(t,
				origMeans[key.RowOrder[r]*5+key.ColOrder[c]],
				obfMeans[r*5+c], 1e-12)
		}
	}
}
