package obfuscate

import (
	"fmt"
	"sort"

	"ObfuDev/pkg/dataProcess"

	"gonum.org/v1/gonum/stat"
)

/*
该文件实现混淆前后数据集的边缘分布统计
用于验证变换只重排像素寻址而不改变单个位置上的像素值分布
*/

// MarginalStats 计算每个像素位置在全体样本上的均值和标准差
func MarginalStats(d *dataProcess.Dataset) (means, stddevs []float64) {
	size := d.Rows * d.Cols
	means = make([]float64, size)
	stddevs = make([]float64, size)

	column := make([]float64, d.NumSamples())
	for j := 0; j < size; j++ {
		for i := range d.Images {
			column[i] = d.Images[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		means[j] = mean
		stddevs[j] = std
	}
	return means, stddevs
}

// pixelColumn 取出固定(r,c)位置在全体样本上的像素值并排序
func pixelColumn(d *dataProcess.Dataset, r, c int) []float64 {
	column := make([]float64, d.NumSamples())
	for i := range d.Images {
		column[i] = d.At(i, r, c)
	}
	sort.Float64s(column)
	return column
}

// CheckMarginalsPreserved 验证边缘分布保持不变
// 混淆数据集 (r,c) 位置上的像素值多重集应等于
// 原数据集 (RowOrder[r], ColOrder[c]) 位置上的像素值多重集
func CheckMarginalsPreserved(original, obfuscated *dataProcess.Dataset, key *PermutationKey) error {
	if original.NumSamples() != obfuscated.NumSamples() {
		return fmt.Errorf("样本数量不一致: %d vs %d", original.NumSamples(), obfuscated.NumSamples())
	}

	for r := 0; r < obfuscated.Rows; r++ {
		for c := 0; c < obfuscated.Cols; c++ {
			obfCol := pixelColumn(obfuscated, r, c)
			origCol := pixelColumn(original, key.RowOrder[r], key.ColOrder[c])
			for i := range obfCol {
				if obfCol[i] != origCol[i] {
					return fmt.Errorf("位置 (%d,%d) 的边缘分布发生变化", r, c)
				}
			}
		}
	}
	return nil
}
