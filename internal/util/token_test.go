package util

import (
	"strings"
	"testing"
)

// ============ 活动码 ============

func TestGenerateActivityCode(t *testing.T) {
	code, err := GenerateActivityCode()
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("长度错误: 期望6，实际%d", len(code))
	}
	for _, ch := range code {
		if !strings.ContainsRune(activityCodeChars, ch) {
			t.Errorf("包含非法字符: %c", ch)
		}
	}

	// 测试唯一性（概率意义上）
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := GenerateActivityCode()
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		seen[c] = true
	}
	if len(seen) < 99 {
		t.Errorf("100次生成应几乎全部不同，实际%d种", len(seen))
	}
}

// ============ 扫描令牌 ============

func TestGenerateQRToken(t *testing.T) {
	token, err := GenerateQRToken()
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	// 32 字节 base64url 无填充编码为 43 字符
	if len(token) != 43 {
		t.Errorf("长度错误: 期望43，实际%d", len(token))
	}
	// url-safe，不应包含需要转义的字符
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("令牌应为 url-safe: %s", token)
	}

	token2, _ := GenerateQRToken()
	if token == token2 {
		t.Error("应生成不同的令牌")
	}
}
