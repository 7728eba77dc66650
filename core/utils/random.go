package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString 生成指定长度的随机字符串，用作 JS-SDK 签名的 noncestr
func RandomString(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("length must be non-negative")
	}

	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letterBytes))))
		if err != nil {
			return "", fmt.Errorf("generate random int: %w", err)
		}
		b[i] = letterBytes[num.Int64()]
	}
	return string(b), nil
}
