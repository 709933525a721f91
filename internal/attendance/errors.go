package attendance

import "errors"

var (
	// ErrNotFound 会话/记录/用户不存在
	ErrNotFound = errors.New("not found")
	// ErrSessionInactive 会话已结束，拒绝签发令牌、签到和重复结束
	ErrSessionInactive = errors.New("session is not active")
	// ErrPairNotReady 配对的签到活动尚未结束，签退活动不能先结束
	ErrPairNotReady = errors.New("paired checkin session is still active")
	// ErrPendingApprovals 仍有待审批的请假申请，结算前必须全部审批完成
	ErrPendingApprovals = errors.New("pending leave requests must be adjudicated first")
	// ErrTokenInvalid 二维码令牌不存在、已过期或所属会话已结束
	ErrTokenInvalid = errors.New("qr token invalid or expired")
	// ErrRecordExists 该用户在此会话已有签到记录
	ErrRecordExists = errors.New("attendance record already exists")
)
