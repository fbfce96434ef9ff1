package obfuscate

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateKeyFromSeed 相同种子生成的密钥完全一致
func TestGenerateKeyFromSeed(t *testing.T) {
	key1, err := GenerateKeyFromSeed(100, 28, 28, 42)
	require.NoError(t, err)
	key2, err := GenerateKeyFromSeed(100, 28, 28, 42)
	require.NoError(t, err)

	assert.Equal(t, key1.SampleOrder, key2.SampleOrder)
	assert.Equal(t, key1.RowOrder, key2.RowOrder)
	assert.Equal(t, key1.ColOrder, key2.ColOrder)
	assert.True(t, key1.Seeded)
	assert.EqualValues(t, 42, key1.Seed)
}

// TestGenerateKeyDifferentSeeds 不同种子生成的密钥不同
func TestGenerateKeyDifferentSeeds(t *testing.T) {
	key1, err := GenerateKeyFromSeed(100, 28, 28, 1)
	require.NoError(t, err)
	key2, err := GenerateKeyFromSeed(100, 28, 28, 2)
	require.NoError(t, err)

	// 100个元素的置换种子不同时相同的概率可以忽略
	assert.NotEqual(t, key1.SampleOrder, key2.SampleOrder)
}

// TestGenerateKeyValidation 非法参数被拒绝
func TestGenerateKeyValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := GenerateKey(0, 28, 28, rng)
	assert.Error(t, err)
	_, err = GenerateKey(-5, 28, 28, rng)
	assert.Error(t, err)
	_, err = GenerateKey(10, 0, 28, rng)
	assert.Error(t, err)
	_, err = GenerateKey(10, 28, -1, rng)
	assert.Error(t, err)
	_, err = GenerateKey(10, 28, 28, nil)
	assert.Error(t, err)
}

// TestGenerateKeyBijection 生成的三个置换都是合法双射
func TestGenerateKeyBijection(t *testing.T) {
	key, err := GenerateKeyFromSeed(50, 14, 7, 9)
	require.NoError(t, err)
	require.NoError(t, key.Validate())
	assert.Len(t, key.SampleOrder, 50)
	assert.Len(t, key.RowOrder, 14)
	assert.Len(t, key.ColOrder, 7)
}

// TestGenerateKeyUnseeded 未指定种子的密钥带有不可复现标志
func TestGenerateKeyUnseeded(t *testing.T) {
	key, err := GenerateKeyUnseeded(10, 4, 4)
	require.NoError(t, err)
	assert.False(t, key.Seeded)
	require.NoError(t, key.Validate())
}

// TestValidateRejectsNonBijection 非双射被校验拒绝
func TestValidateRejectsNonBijection(t *testing.T) {
	key := &PermutationKey{
		SampleOrder: []int{0, 0, 1}, // 重复索引
		RowOrder:    []int{0, 1},
		ColOrder:    []int{1, 0},
	}
	assert.Error(t, key.Validate())

	key.SampleOrder = []int{0, 1, 3} // 越界索引
	assert.Error(t, key.Validate())
}

// TestDeriveKey 派生密钥沿用行列置换，样本置换重新生成
func TestDeriveKey(t *testing.T) {
	key, err := GenerateKeyFromSeed(100, 8, 8, 42)
	require.NoError(t, err)

	derived, err := DeriveKey(key, 30, 43)
	require.NoError(t, err)
	assert.Equal(t, key.RowOrder, derived.RowOrder)
	assert.Equal(t, key.ColOrder, derived.ColOrder)
	assert.Len(t, derived.SampleOrder, 30)
	assert.True(t, derived.Seeded)
	require.NoError(t, derived.Validate())
}

// TestKeySerializationRoundTrip 密钥保存后读取内容一致
func TestKeySerializationRoundTrip(t *testing.T) {
	key, err := GenerateKeyFromSeed(20, 6, 6, 7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, SaveKey(key, path))

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, key.SampleOrder, loaded.SampleOrder)
	assert.Equal(t, key.RowOrder, loaded.RowOrder)
	assert.Equal(t, key.ColOrder, loaded.ColOrder)
	assert.Equal(t, key.Seed, loaded.Seed)
	assert.Equal(t, key.Seeded, loaded.Seeded)
}

// TestUnmarshalRejectsInvalidKey 内容非法的密钥文件被拒绝
func TestUnmarshalRejectsInvalidKey(t *testing.T) {
	_, err := UnmarshalKey([]byte(`{"sample_order":[0,0],"row_order":[0],"col_order":[0]}`))
	assert.Error(t, err)

	_, err = UnmarshalKey([]byte(`not json`))
	assert.Error(t, err)
}

// TestInvertPermutation 逆置换复合原置换得到恒等映射
func TestInvertPermutation(t *testing.T) {
	perm := []int{2, 0, 3, 1}
	inv := invertPermutation(perm)
	for i, v := range perm {
		assert.Equal(t, i, inv[v])
	}
}
