package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
)

// ============ 令牌签发 ============

func TestIssueToken(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)

	session, _, err := svc.CreateSession(admin.ID, false)
	if err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}

	token, interval, err := svc.IssueToken(session.ID)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if token.Token == "" {
		t.Error("令牌不应为空")
	}
	if interval != 15 {
		t.Errorf("默认刷新间隔应为15秒，实际%d", interval)
	}

	// 过期时间 = 刷新间隔 + 宽限
	wantExpiry := time.Now().Add(time.Duration(interval+tokenGraceSeconds) * time.Second)
	if diff := token.ExpiresAt.Sub(wantExpiry); diff > 2*time.Second || diff < -2*time.Second {
		t.Errorf("令牌过期时间偏差过大: %v", diff)
	}

	// 新令牌不作废旧令牌
	token2, _, err := svc.IssueToken(session.ID)
	if err != nil {
		t.Fatalf("第二次签发失败: %v", err)
	}
	if token2.Token == token.Token {
		t.Error("应生成不同的令牌")
	}
	var count int64
	db.Model(&models.QRToken{}).Where("session_id = ?", session.ID).Count(&count)
	if count != 2 {
		t.Errorf("两个令牌应同时存在，实际%d", count)
	}
}

func TestIssueToken_InactiveSession(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)

	session, _, _ := svc.CreateSession(admin.ID, false)
	if _, err := svc.EndSession(session.ID, admin.ID); err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}

	if _, _, err := svc.IssueToken(session.ID); !errors.Is(err, ErrSessionInactive) {
		t.Errorf("已结束会话签发令牌应返回 ErrSessionInactive，实际 %v", err)
	}
}

// ============ 扫码签到 ============

func TestCheckIn_Standalone(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	token, _, _ := svc.IssueToken(session.ID)

	result, err := svc.CheckIn(token.Token, user.ID)
	if err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	if result.AlreadyCheckedIn {
		t.Error("首次签到不应返回已签到")
	}
	// 无配对签退的独立会话立即加分
	if result.PointsAwarded != 1 {
		t.Errorf("签到应加1分，实际%f", result.PointsAwarded)
	}
	if got := userTotal(t, db, user.ID); got != 1 {
		t.Errorf("总分应为1，实际%f", got)
	}

	var record models.AttendanceRecord
	if err := db.Where("session_id = ? AND user_id = ?", session.ID, user.ID).First(&record).Error; err != nil {
		t.Fatalf("查询签到记录失败: %v", err)
	}
	if record.Status != models.StatusPresent {
		t.Errorf("状态应为 present，实际 %s", record.Status)
	}
	if record.CheckedInAt == nil {
		t.Error("签到时间不应为空")
	}
}

func TestCheckIn_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	token, _, _ := svc.IssueToken(session.ID)

	if _, err := svc.CheckIn(token.Token, user.ID); err != nil {
		t.Fatalf("首次签到失败: %v", err)
	}
	result, err := svc.CheckIn(token.Token, user.ID)
	if err != nil {
		t.Fatalf("重复签到失败: %v", err)
	}
	if !result.AlreadyCheckedIn {
		t.Error("重复签到应返回已签到")
	}
	if result.PointsAwarded != 0 {
		t.Error("重复签到不应再加分")
	}
	if got := userTotal(t, db, user.ID); got != 1 {
		t.Errorf("重复签到后总分仍应为1，实际%f", got)
	}
}

func TestCheckIn_ExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	expired := models.QRToken{
		SessionID: session.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("写入过期令牌失败: %v", err)
	}

	if _, err := svc.CheckIn("expired-token", user.ID); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("过期令牌应返回 ErrTokenInvalid，实际 %v", err)
	}
	if _, err := svc.CheckIn("no-such-token", user.ID); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("不存在的令牌应返回 ErrTokenInvalid，实际 %v", err)
	}
}

func TestCheckIn_InactiveSession(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	token, _, _ := svc.IssueToken(session.ID)
	if _, err := svc.EndSession(session.ID, admin.ID); err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}

	// 令牌未过期但会话已结束
	if _, err := svc.CheckIn(token.Token, user.ID); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("已结束会话的令牌应返回 ErrTokenInvalid，实际 %v", err)
	}
}

// ============ 配对签到/签退加分 ============

func TestCheckIn_PairedBonusAtCheckout(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	checkin, checkout, err := svc.CreateSession(admin.ID, true)
	if err != nil {
		t.Fatalf("创建配对会话失败: %v", err)
	}
	if checkout == nil || checkout.PairedSessionID == nil || *checkout.PairedSessionID != checkin.ID {
		t.Fatal("签退会话应指向签到会话")
	}

	// 签到腿：有配对签退，暂不加分
	inToken, _, _ := svc.IssueToken(checkin.ID)
	result, err := svc.CheckIn(inToken.Token, user.ID)
	if err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	if result.PointsAwarded != 0 {
		t.Errorf("配对会话签到腿不应加分，实际加了%f", result.PointsAwarded)
	}
	if got := userTotal(t, db, user.ID); got != 0 {
		t.Errorf("签到后总分应为0，实际%f", got)
	}

	// 签退腿：配对签到为 present，此时加分
	outToken, _, _ := svc.IssueToken(checkout.ID)
	result, err = svc.CheckIn(outToken.Token, user.ID)
	if err != nil {
		t.Fatalf("签退失败: %v", err)
	}
	if result.PointsAwarded != 1 {
		t.Errorf("签退应加1分，实际%f", result.PointsAwarded)
	}
	if got := userTotal(t, db, user.ID); got != 1 {
		t.Errorf("完成两腿后总分应为1，实际%f", got)
	}
}

func TestCheckIn_CheckoutWithoutCheckin_NoBonus(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	_, checkout, _ := svc.CreateSession(admin.ID, true)

	// 没签到直接签退：记录保留但不加分
	outToken, _, _ := svc.IssueToken(checkout.ID)
	result, err := svc.CheckIn(outToken.Token, user.ID)
	if err != nil {
		t.Fatalf("签退失败: %v", err)
	}
	if result.PointsAwarded != 0 {
		t.Errorf("未签到的签退不应加分，实际加了%f", result.PointsAwarded)
	}
	var count int64
	db.Model(&models.AttendanceRecord{}).
		Where("session_id = ? AND user_id = ?", checkout.ID, user.ID).Count(&count)
	if count != 1 {
		t.Error("签退记录应已写入")
	}
}

func TestCreateSession_UniqueActivityCodes(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		session, _, err := svc.CreateSession(admin.ID, false)
		if err != nil {
			t.Fatalf("创建会话失败: %v", err)
		}
		if len(session.ActivityCode) != 6 {
			t.Errorf("活动码长度应为6，实际%d", len(session.ActivityCode))
		}
		if seen[session.ActivityCode] {
			t.Errorf("活动码重复: %s", session.ActivityCode)
		}
		seen[session.ActivityCode] = true
	}
}
