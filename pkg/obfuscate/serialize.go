package obfuscate

import (
	"encoding/json"
	"fmt"
	"os"
)

/*
该文件实现置换密钥的序列化与持久化
需要逆变换的使用者必须保留密钥文件
*/

// MarshalKey 将密钥序列化为JSON字节流
func MarshalKey(key *PermutationKey) ([]byte, error) {
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("密钥序列化失败: %v", err)
	}
	return data, nil
}

// UnmarshalKey 从JSON字节流反序列化密钥并校验合法性
func UnmarshalKey(data []byte) (*PermutationKey, error) {
	var key PermutationKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("密钥反序列化失败: %v", err)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("密钥文件内容不合法: %v", err)
	}
	return &key, nil
}

// SaveKey 将密钥保存到文件
func SaveKey(key *PermutationKey, filepath string) error {
	data, err := MarshalKey(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("写入密钥文件失败: %v", err)
	}
	return nil
}

// LoadKey 从文件读取密钥
func LoadKey(filepath string) (*PermutationKey, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("读取密钥文件失败: %v", err)
	}
	return UnmarshalKey(data)
}
