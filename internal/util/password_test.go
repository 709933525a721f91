package util

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "MyPassword123"

	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("哈希失败: %v", err)
	}
	if !strings.HasPrefix(hashed, "$2") {
		t.Error("应为 bcrypt 哈希格式")
	}

	// 空密码
	if _, err := HashPassword(""); err == nil {
		t.Error("空密码应返回错误")
	}

	// 相同密码生成不同哈希（随机 salt）
	hashed2, _ := HashPassword(password)
	if hashed == hashed2 {
		t.Error("相同密码应生成不同哈希")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "TestPass456"
	hashed, _ := HashPassword(password)

	if !CheckPassword(password, hashed) {
		t.Error("正确密码验证失败")
	}
	if CheckPassword("WrongPass", hashed) {
		t.Error("错误密码不应通过验证")
	}
	if CheckPassword("", hashed) {
		t.Error("空密码不应通过验证")
	}
	if CheckPassword(password, "") {
		t.Error("空哈希不应通过验证")
	}
	if CheckPassword(password, "invalid-format") {
		t.Error("无效格式不应通过验证")
	}
}
