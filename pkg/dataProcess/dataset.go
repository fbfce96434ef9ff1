package dataProcess

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

/*
该文件实现数据集的定义和IDX格式文件的加载
*/

// Dataset 图像数据集，图像按行主序展平，像素值归一化到0-1之间
type Dataset struct {
	Images [][]float64 // 每张图像长度为 Rows*Cols
	Labels []int
	Rows   int
	Cols   int
}

// NumSamples 样本数量
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// At 读取第i个样本在(r,c)位置的像素值
func (d *Dataset) At(i, r, c int) float64 {
	return d.Images[i][r*d.Cols+c]
}

// MaxLabel 数据集中的最大标签值
func (d *Dataset) MaxLabel() int {
	max := 0
	for _, label := range d.Labels {
		if label > max {
			max = label
		}
	}
	return max
}

// Equal 判断两个数据集是否完全一致（用于验证逆变换）
func (d *Dataset) Equal(other *Dataset) bool {
	if d.Rows != other.Rows || d.Cols != other.Cols {
		return false
	}
	if len(d.Images) != len(other.Images) || len(d.Labels) != len(other.Labels) {
		return false
	}
	for i := range d.Images {
		if d.Labels[i] != other.Labels[i] {
			return false
		}
		for j := range d.Images[i] {
			if d.Images[i][j] != other.Images[i][j] {
				return false
			}
		}
	}
	return true
}

// LoadImages 从IDX格式的gzip文件加载原始图像数据
func LoadImages(filename string) ([][]byte, int, int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("无法打开图像文件: %v", err)
	}
	defer file.Close()

	// 解压缩文件
	reader, err := gzip.NewReader(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("无法解压缩文件: %v", err)
	}
	defer reader.Close()

	// 读取 IDX 头信息（魔数、维度等）
	var magicNumber, numImages, numRows, numCols int32
	err = binary.Read(reader, binary.BigEndian, &magicNumber)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("读取魔数失败: %v", err)
	}
	if magicNumber != 2051 {
		return nil, 0, 0, fmt.Errorf("文件格式不正确（魔数不匹配）")
	}
	err = binary.Read(reader, binary.BigEndian, &numImages)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("读取图像数量失败: %v", err)
	}
	err = binary.Read(reader, binary.BigEndian, &numRows)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("读取行数失败: %v", err)
	}
	err = binary.Read(reader, binary.BigEndian, &numCols)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("读取列数失败: %v", err)
	}

	// 读取图像数据
	images := make([][]byte, numImages)
	for i := 0; i < int(numImages); i++ {
		img := make([]byte, numRows*numCols)
		_, err := io.ReadFull(reader, img)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("读取图像数据失败: %v", err)
		}
		images[i] = img
	}

	return images, int(numRows), int(numCols), nil
}

// LoadLabels 从IDX格式的gzip文件加载标签数据
func LoadLabels(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("无法打开标签文件: %v", err)
	}
	defer file.Close()

	// 解压缩文件
	reader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("无法解压缩文件: %v", err)
	}
	defer reader.Close()

	// 读取 IDX 头信息（魔数和标签数量）
	var magicNumber, numItems int32
	err = binary.Read(reader, binary.BigEndian, &magicNumber)
	if err != nil {
		return nil, fmt.Errorf("读取魔数失败: %v", err)
	}
	if magicNumber != 2049 {
		return nil, fmt.Errorf("文件格式不正确（魔数不匹配）")
	}
	err = binary.Read(reader, binary.BigEndian, &numItems)
	if err != nil {
		return nil, fmt.Errorf("读取标签数量失败: %v", err)
	}

	// 读取标签数据
	labels := make([]byte, numItems)
	_, err = io.ReadFull(reader, labels)
	if err != nil {
		return nil, fmt.Errorf("读取标签数据失败: %v", err)
	}

	return labels, nil
}

// LoadIDXDataset 加载一对IDX文件并构建归一化后的数据集
func LoadIDXDataset(imagesPath, labelsPath string) (*Dataset, error) {
	rawImages, rows, cols, err := LoadImages(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("加载图像数据失败: %v", err)
	}
	rawLabels, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("加载标签数据失败: %v", err)
	}
	if len(rawImages) != len(rawLabels) {
		return nil, fmt.Errorf("图像数量 %d 与标签数量 %d 不一致", len(rawImages), len(rawLabels))
	}

	images := make([][]float64, len(rawImages))
	labels := make([]int, len(rawLabels))
	for i := range rawImages {
		img := make([]float64, len(rawImages[i]))
		for j, v := range rawImages[i] {
			// 归一化像素值到0-1之间
			img[j] = float64(v) / 255.0
		}
		images[i] = img
		labels[i] = int(rawLabels[i])
	}

	return &Dataset{
		Images: images,
		Labels: labels,
		Rows:   rows,
		Cols:   cols,
	}, nil
}

// LoadDataset 加载训练和测试数据集
func LoadDataset(dataDir string) (*Dataset, *Dataset, error) {
	trainDataset, err := LoadIDXDataset(
		dataDir+"/train-images-idx3-ubyte.gz",
		dataDir+"/train-labels-idx1-ubyte.gz",
	)
	if err != nil {
		return nil, nil, fmt.Errorf("加载训练数据集失败: %v", err)
	}
	testDataset, err := LoadIDXDataset(
		dataDir+"/t10k-images-idx3-ubyte.gz",
		dataDir+"/t10k-labels-idx1-ubyte.gz",
	)
	if err != nil {
		return nil, nil, fmt.Errorf("加载测试数据集失败: %v", err)
	}
	return trainDataset, testDataset, nil
}

// Split 按比例划分数据集，前一部分作为训练集，后一部分作为验证集
func (d *Dataset) Split(validationRatio float64) (*Dataset, *Dataset, error) {
	if validationRatio < 0 || validationRatio >= 1 {
		return nil, nil, fmt.Errorf("验证集比例 %v 不合法", validationRatio)
	}
	n := d.NumSamples()
	cut := n - int(float64(n)*validationRatio)

	train := &Dataset{
		Images: d.Images[:cut],
		Labels: d.Labels[:cut],
		Rows:   d.Rows,
		Cols:   d.Cols,
	}
	validation := &Dataset{
		Images: d.Images[cut:],
		Labels: d.Labels[cut:],
		Rows:   d.Rows,
		Cols:   d.Cols,
	}
	return train, validation, nil
}
