package obfuscate

import (
	"fmt"

	"ObfuDev/pkg/dataProcess"
)

/*
该文件实现置换混淆变换及其逆变换
所有图像共享同一对行列置换，这是保持跨图像结构可学习性的关键
像素值本身不变，只改变其样本和空间上的寻址
*/

// validateShapes 检查密钥维度与数据集维度是否一致
func validateShapes(d *dataProcess.Dataset, key *PermutationKey) error {
	if len(key.SampleOrder) != d.NumSamples() {
		return fmt.Errorf("样本置换长度 %d 与数据集大小 %d 不匹配", len(key.SampleOrder), d.NumSamples())
	}
	if len(key.RowOrder) != d.Rows {
		return fmt.Errorf("行置换长度 %d 与图像高度 %d 不匹配", len(key.RowOrder), d.Rows)
	}
	if len(key.ColOrder) != d.Cols {
		return fmt.Errorf("列置换长度 %d 与图像宽度 %d 不匹配", len(key.ColOrder), d.Cols)
	}
	return key.Validate()
}

// permuteImage 对单张图像应用行列置换
// 输出图像 (r,c) 位置的值取自原图像 (RowOrder[r], ColOrder[c]) 位置
func permuteImage(img []float64, rows, cols int, rowOrder, colOrder []int) []float64 {
	out := make([]float64, len(img))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = img[rowOrder[r]*cols+colOrder[c]]
		}
	}
	return out
}

// Apply 对数据集应用置换混淆变换
// 先按样本置换重排样本顺序，再对每张图像应用同一对行列置换
// 标签随样本置换一起移动：变换后第i个标签等于原第SampleOrder[i]个标签
func Apply(d *dataProcess.Dataset, key *PermutationKey) (*dataProcess.Dataset, error) {
	if err := validateShapes(d, key); err != nil {
		return nil, fmt.Errorf("密钥与数据集维度不匹配: %v", err)
	}

	images := make([][]float64, d.NumSamples())
	labels := make([]int, d.NumSamples())
	for i := 0; i < d.NumSamples(); i++ {
		src := d.Images[key.SampleOrder[i]]
		images[i] = permuteImage(src, d.Rows, d.Cols, key.RowOrder, key.ColOrder)
		labels[i] = d.Labels[key.SampleOrder[i]]
	}

	return &dataProcess.Dataset{
		Images: images,
		Labels: labels,
		Rows:   d.Rows,
		Cols:   d.Cols,
	}, nil
}

// Invert 用密钥还原被混淆的数据集
// 按与正向变换相反的顺序应用逆置换：先还原每张图像的行列，再还原样本顺序
func Invert(d *dataProcess.Dataset, key *PermutationKey) (*dataProcess.Dataset, error) {
	if err := validateShapes(d, key); err != nil {
		return nil, fmt.Errorf("密钥与数据集维度不匹配: %v", err)
	}

	invRow := invertPermutation(key.RowOrder)
	invCol := invertPermutation(key.ColOrder)

	images := make([][]float64, d.NumSamples())
	labels := make([]int, d.NumSamples())
	for i := 0; i < d.NumSamples(); i++ {
		restored := permuteImage(d.Images[i], d.Rows, d.Cols, invRow, invCol)
		// 混淆时第i个位置存放的是原第SampleOrder[i]个样本，这里放回去
		images[key.SampleOrder[i]] = restored
		labels[key.SampleOrder[i]] = d.Labels[i]
	}

	return &dataProcess.Dataset{
		Images: images,
		Labels: labels,
		Rows:   d.Rows,
		Cols:   d.Cols,
	}, nil
}
