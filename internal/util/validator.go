package util

import (
	"fmt"
	"regexp"
)

var studentIDRe = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// ValidateStudentID 验证学工号格式（3-50 位字母、数字、连字符、下划线）
func ValidateStudentID(studentID string) error {
	if studentID == "" {
		return fmt.Errorf("student id is empty")
	}
	if len(studentID) < 3 || len(studentID) > 50 {
		return fmt.Errorf("student id length must be 3-50, got %d", len(studentID))
	}
	if !studentIDRe.MatchString(studentID) {
		return fmt.Errorf("student id contains invalid characters")
	}
	return nil
}

// ValidateNewPassword 验证新密码规则（至少 6 位，不能与旧密码或学工号相同）
func ValidateNewPassword(newPassword, oldPassword, studentID string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("password too short, min 6 characters")
	}
	if len(newPassword) > 128 {
		return fmt.Errorf("password too long, max 128 characters")
	}
	if newPassword == oldPassword {
		return fmt.Errorf("new password must differ from old password")
	}
	if newPassword == studentID {
		return fmt.Errorf("password must differ from student id")
	}
	return nil
}

// ValidatePoints 验证手动积分值（非零且绝对值在合理范围内）
func ValidatePoints(points float64) error {
	if points == 0 {
		return fmt.Errorf("points must be non-zero")
	}
	if points < -1000 || points > 1000 {
		return fmt.Errorf("points out of range, got %f", points)
	}
	return nil
}
