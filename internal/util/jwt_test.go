package util

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken(secret, 42, true, time.Hour)
	if err != nil {
		t.Fatalf("生成 token 失败: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("解析 token 失败: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID 应为42，实际%d", claims.UserID)
	}
	if !claims.IsAdmin {
		t.Error("IsAdmin 应为 true")
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		t.Error("过期时间应在未来")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret-a", 1, false, time.Hour)

	if _, err := ParseToken("secret-b", token); err == nil {
		t.Error("错误密钥应解析失败")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := GenerateToken("secret", 1, false, -time.Minute)

	if _, err := ParseToken("secret", token); err == nil {
		t.Error("过期 token 应解析失败")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-jwt"); err == nil {
		t.Error("非法 token 应解析失败")
	}
}
