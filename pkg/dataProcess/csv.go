package dataProcess

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

/*
该文件实现CSV格式数据集的导入和导出
图像文件每行一个样本（按行主序展平），标签文件每行一个标签
*/

// SaveImagesCSV 将图像数据导出为CSV文件
func SaveImagesCSV(d *Dataset, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("无法创建图像文件: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	record := make([]string, d.Rows*d.Cols)
	for _, img := range d.Images {
		for j, v := range img {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入图像数据失败: %v", err)
		}
	}
	return nil
}

// SaveLabelsCSV 将标签数据导出为CSV文件
func SaveLabelsCSV(d *Dataset, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("无法创建标签文件: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	for _, label := range d.Labels {
		if err := writer.Write([]string{strconv.Itoa(label)}); err != nil {
			return fmt.Errorf("写入标签数据失败: %v", err)
		}
	}
	return nil
}

// LoadImagesCSV 载入CSV格式的图像数据
func LoadImagesCSV(filepath string) ([][]float64, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	images := make([][]float64, len(records))
	for i, record := range records {
		images[i] = make([]float64, len(record))
		for j, val := range record {
			images[i][j], err = strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, err
			}
		}
	}

	return images, nil
}

// LoadLabelsCSV 载入CSV格式的标签数据
func LoadLabelsCSV(filepath string) ([]int, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(records))
	for i, record := range records {
		if len(record) == 0 {
			return nil, fmt.Errorf("标签文件第 %d 行为空", i+1)
		}
		labels[i], err = strconv.Atoi(record[0])
		if err != nil {
			return nil, err
		}
	}

	return labels, nil
}

// SaveCSVDataset 将数据集导出为一对CSV文件
func SaveCSVDataset(d *Dataset, imagesPath, labelsPath string) error {
	if err := SaveImagesCSV(d, imagesPath); err != nil {
		return fmt.Errorf("导出图像数据失败: %v", err)
	}
	if err := SaveLabelsCSV(d, labelsPath); err != nil {
		return fmt.Errorf("导出标签数据失败: %v", err)
	}
	return nil
}

// LoadCSVDataset 从一对CSV文件载入数据集
func LoadCSVDataset(imagesPath, labelsPath string, rows, cols int) (*Dataset, error) {
	images, err := LoadImagesCSV(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("载入图像数据失败: %v", err)
	}
	labels, err := LoadLabelsCSV(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("载入标签数据失败: %v", err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("图像数量 %d 与标签数量 %d 不一致", len(images), len(labels))
	}
	for i := range images {
		if len(images[i]) != rows*cols {
			return nil, fmt.Errorf("第 %d 个样本的像素数量 %d 与图像形状 %dx%d 不匹配", i, len(images[i]), rows, cols)
		}
	}

	return &Dataset{
		Images: images,
		Labels: labels,
		Rows:   rows,
		Cols:   cols,
	}, nil
}
