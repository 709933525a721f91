package attendance

import (
	"errors"
	"testing"

	"github.com/xiaoheiCat/pytakeoff/internal/leave"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"

	"gorm.io/gorm"
)

func newTestLeaveService(db *gorm.DB) *leave.Service {
	return leave.NewService(db, settings.NewService(db))
}

// ============ 结束会话与结算 ============

func TestEndSession_MarksAbsent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	zhang := createTestUser(t, db, "20230001", "张三")
	li := createTestUser(t, db, "20230002", "李四")

	session, _, _ := svc.CreateSession(admin.ID, false)
	token, _, _ := svc.IssueToken(session.ID)
	if _, err := svc.CheckIn(token.Token, zhang.ID); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	result, err := svc.EndSession(session.ID, admin.ID)
	if err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}
	if result.AbsentCount != 1 {
		t.Errorf("缺勤人数应为1，实际%d", result.AbsentCount)
	}

	// 已签到 +1，未签到 -2
	if got := userTotal(t, db, zhang.ID); got != 1 {
		t.Errorf("张三总分应为1，实际%f", got)
	}
	if got := userTotal(t, db, li.ID); got != -2 {
		t.Errorf("李四总分应为-2，实际%f", got)
	}

	// 每个用户都必须有记录，不允许无记录的漏网之鱼
	var record models.AttendanceRecord
	if err := db.Where("session_id = ? AND user_id = ?", session.ID, li.ID).First(&record).Error; err != nil {
		t.Fatalf("缺勤记录未写入: %v", err)
	}
	if record.Status != models.StatusAbsent {
		t.Errorf("状态应为 absent，实际 %s", record.Status)
	}

	var points models.PointsRecord
	if err := db.Where("session_id = ? AND user_id = ?", session.ID, li.ID).First(&points).Error; err != nil {
		t.Fatalf("缺勤积分未写入: %v", err)
	}
	if points.Reason != "缺勤" {
		t.Errorf("积分理由应为 缺勤，实际 %s", points.Reason)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	if _, err := svc.EndSession(session.ID, admin.ID); err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}
	totalAfterFirst := userTotal(t, db, user.ID)

	// 重复结束不产生新的扣分
	if _, err := svc.EndSession(session.ID, admin.ID); !errors.Is(err, ErrSessionInactive) {
		t.Errorf("重复结束应返回 ErrSessionInactive，实际 %v", err)
	}
	if got := userTotal(t, db, user.ID); got != totalAfterFirst {
		t.Errorf("重复结束后总分不应变化: %f -> %f", totalAfterFirst, got)
	}
}

func TestEndSession_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)

	if _, err := svc.EndSession(9999, admin.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("不存在的会话应返回 ErrNotFound，实际 %v", err)
	}
}

func TestEndSession_PendingApprovalsBlock(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	lvSvc := newTestLeaveService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	request, err := lvSvc.Submit(user.ID, models.LeaveSick, "感冒发烧")
	if err != nil {
		t.Fatalf("提交请假失败: %v", err)
	}

	if _, err := svc.EndSession(session.ID, admin.ID); !errors.Is(err, ErrPendingApprovals) {
		t.Errorf("存在待审批请假时应返回 ErrPendingApprovals，实际 %v", err)
	}

	// 会话必须保持活跃，结算未发生
	reloaded, _ := svc.GetSession(session.ID)
	if !reloaded.IsActive {
		t.Error("结算被阻止时会话应保持活跃")
	}

	// 审批后可以正常结束
	if _, err := lvSvc.Adjudicate(request.ID, "reject", nil, admin.ID); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if _, err := svc.EndSession(session.ID, admin.ID); err != nil {
		t.Fatalf("审批完成后结束会话失败: %v", err)
	}
}

func TestEndSession_PairNotReady(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)

	checkin, checkout, _ := svc.CreateSession(admin.ID, true)

	if _, err := svc.EndSession(checkout.ID, admin.ID); !errors.Is(err, ErrPairNotReady) {
		t.Errorf("签到未结束时结束签退应返回 ErrPairNotReady，实际 %v", err)
	}

	if _, err := svc.EndSession(checkin.ID, admin.ID); err != nil {
		t.Fatalf("结束签到失败: %v", err)
	}
	if _, err := svc.EndSession(checkout.ID, admin.ID); err != nil {
		t.Fatalf("结束签退失败: %v", err)
	}
}

func TestEndSession_ApprovedLeave_NoDoubleAward(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	lvSvc := newTestLeaveService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)

	request, err := lvSvc.Submit(user.ID, models.LeaveSick, "感冒发烧")
	if err != nil {
		t.Fatalf("提交请假失败: %v", err)
	}
	// 审批时已写入一条病假积分
	if _, err := lvSvc.Adjudicate(request.ID, "approve", &session.ID, admin.ID); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if got := userTotal(t, db, user.ID); got != -0.5 {
		t.Errorf("审批后总分应为-0.5，实际%f", got)
	}

	result, err := svc.EndSession(session.ID, admin.ID)
	if err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}
	if result.UsedLeaveCount != 1 {
		t.Errorf("消耗请假数应为1，实际%d", result.UsedLeaveCount)
	}
	if result.AbsentCount != 0 {
		t.Errorf("持有请假的用户不应记缺勤，实际缺勤%d人", result.AbsentCount)
	}

	// 结算不重复记分
	if got := userTotal(t, db, user.ID); got != -0.5 {
		t.Errorf("结算后总分仍应为-0.5，实际%f", got)
	}

	var reloaded models.LeaveRequest
	if err := db.First(&reloaded, request.ID).Error; err != nil {
		t.Fatalf("查询请假失败: %v", err)
	}
	if reloaded.Status != models.LeaveUsed {
		t.Errorf("请假状态应为 used，实际 %s", reloaded.Status)
	}
	if reloaded.UsedAt == nil {
		t.Error("used_at 应已写入")
	}
}

func TestEndSession_ReclassifyPresentWithLeave(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	lvSvc := newTestLeaveService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	token, _, _ := svc.IssueToken(session.ID)
	if _, err := svc.CheckIn(token.Token, user.ID); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	request, _ := lvSvc.Submit(user.ID, models.LeavePublic, "校队比赛")
	if _, err := lvSvc.Adjudicate(request.ID, "approve", &session.ID, admin.ID); err != nil {
		t.Fatalf("审批失败: %v", err)
	}

	if _, err := svc.EndSession(session.ID, admin.ID); err != nil {
		t.Fatalf("结束会话失败: %v", err)
	}

	// 已签到但持有公假：记录改写为公假状态，签到积分不动
	var record models.AttendanceRecord
	if err := db.Where("session_id = ? AND user_id = ?", session.ID, user.ID).First(&record).Error; err != nil {
		t.Fatalf("查询记录失败: %v", err)
	}
	if record.Status != models.StatusPublicLeave {
		t.Errorf("状态应改写为 public_leave，实际 %s", record.Status)
	}
	if got := userTotal(t, db, user.ID); got != 1 {
		t.Errorf("签到积分应保留，总分应为1，实际%f", got)
	}
}

func TestEndSession_CheckoutLeg(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	zhang := createTestUser(t, db, "20230001", "张三") // 只签到不签退
	li := createTestUser(t, db, "20230002", "李四")    // 两腿都缺席

	checkin, checkout, _ := svc.CreateSession(admin.ID, true)
	token, _, _ := svc.IssueToken(checkin.ID)
	if _, err := svc.CheckIn(token.Token, zhang.ID); err != nil {
		t.Fatalf("签到失败: %v", err)
	}

	// 签到腿：李四缺勤 -2
	if _, err := svc.EndSession(checkin.ID, admin.ID); err != nil {
		t.Fatalf("结束签到失败: %v", err)
	}
	if got := userTotal(t, db, li.ID); got != -2 {
		t.Errorf("签到腿后李四总分应为-2，实际%f", got)
	}

	// 签退腿：张三未签退记缺勤；李四已在签到腿扣过，不再扣
	result, err := svc.EndSession(checkout.ID, admin.ID)
	if err != nil {
		t.Fatalf("结束签退失败: %v", err)
	}
	if result.AbsentCount != 1 {
		t.Errorf("签退腿缺勤人数应为1（只有张三），实际%d", result.AbsentCount)
	}

	// 张三：签到未加分（等签退），未签退 -2
	if got := userTotal(t, db, zhang.ID); got != -2 {
		t.Errorf("张三总分应为-2，实际%f", got)
	}
	// 李四：只扣一次
	if got := userTotal(t, db, li.ID); got != -2 {
		t.Errorf("李四总分仍应为-2，实际%f", got)
	}

	var reasons []string
	db.Model(&models.PointsRecord{}).
		Where("session_id = ? AND user_id = ?", checkout.ID, zhang.ID).
		Pluck("reason", &reasons)
	if len(reasons) != 1 || reasons[0] != "未签退缺勤" {
		t.Errorf("积分理由应为 未签退缺勤，实际 %v", reasons)
	}
}

// ============ 级联删除 ============

func TestDeleteSession_Cascade(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	checkin, checkout, _ := svc.CreateSession(admin.ID, true)
	inToken, _, _ := svc.IssueToken(checkin.ID)
	if _, err := svc.CheckIn(inToken.Token, user.ID); err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	outToken, _, _ := svc.IssueToken(checkout.ID)
	if _, err := svc.CheckIn(outToken.Token, user.ID); err != nil {
		t.Fatalf("签退失败: %v", err)
	}
	if got := userTotal(t, db, user.ID); got != 1 {
		t.Fatalf("删除前总分应为1，实际%f", got)
	}

	// 从签到一侧删除，配对签退一并删除
	codes, err := svc.DeleteSession(checkin.ID)
	if err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("应删除2个会话，实际%d", len(codes))
	}

	var sessionCount, recordCount, tokenCount int64
	db.Model(&models.AttendanceSession{}).Count(&sessionCount)
	db.Model(&models.AttendanceRecord{}).Count(&recordCount)
	db.Model(&models.QRToken{}).Count(&tokenCount)
	if sessionCount != 0 || recordCount != 0 || tokenCount != 0 {
		t.Errorf("会话/记录/令牌应全部删除: %d/%d/%d", sessionCount, recordCount, tokenCount)
	}

	// 积分软删除，总分回到0，但流水仍在
	if got := userTotal(t, db, user.ID); got != 0 {
		t.Errorf("删除后总分应为0，实际%f", got)
	}
	var pointsCount int64
	db.Model(&models.PointsRecord{}).Count(&pointsCount)
	if pointsCount == 0 {
		t.Error("积分流水应保留（软删除）")
	}
}

func TestDeleteSession_DetachesLeaveRefs(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	svc := newTestService(db)
	lvSvc := newTestLeaveService(db)
	admin := createTestAdmin(t, db)
	user := createTestUser(t, db, "20230001", "张三")

	session, _, _ := svc.CreateSession(admin.ID, false)
	request, _ := lvSvc.Submit(user.ID, models.LeavePersonal, "家中有事")
	if _, err := lvSvc.Adjudicate(request.ID, "approve", &session.ID, admin.ID); err != nil {
		t.Fatalf("审批失败: %v", err)
	}

	if _, err := svc.DeleteSession(session.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	var reloaded models.LeaveRequest
	if err := db.First(&reloaded, request.ID).Error; err != nil {
		t.Fatalf("请假申请不应被删除: %v", err)
	}
	if reloaded.SessionID != nil {
		t.Error("请假的会话引用应被解除")
	}
}
