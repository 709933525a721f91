package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const activityCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateActivityCode 生成 6 位大小写敏感的活动码。
// 唯一性由调用方检查，冲突时重新生成。
func GenerateActivityCode() (string, error) {
	code := make([]byte, 6)
	max := big.NewInt(int64(len(activityCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate activity code: %w", err)
		}
		code[i] = activityCodeChars[n.Int64()]
	}
	return string(code), nil
}

// GenerateQRToken 生成 32 字节的 url-safe 扫描令牌。
func GenerateQRToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate qr token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
