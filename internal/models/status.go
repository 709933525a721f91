package models

// AttendanceStatus 签到记录状态
type AttendanceStatus string

const (
	StatusPresent       AttendanceStatus = "present"
	StatusAbsent        AttendanceStatus = "absent"
	StatusPublicLeave   AttendanceStatus = "public_leave"
	StatusPersonalLeave AttendanceStatus = "personal_leave"
	StatusSickLeave     AttendanceStatus = "sick_leave"
)

// Valid 判断状态是否合法
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusPublicLeave, StatusPersonalLeave, StatusSickLeave:
		return true
	}
	return false
}

// DisplayName 状态的中文名称
func (s AttendanceStatus) DisplayName() string {
	switch s {
	case StatusPresent:
		return "已签到"
	case StatusAbsent:
		return "缺勤"
	case StatusPublicLeave:
		return "公假"
	case StatusPersonalLeave:
		return "事假"
	case StatusSickLeave:
		return "病假"
	}
	return string(s)
}

// LeaveType 请假类型
type LeaveType string

const (
	LeavePublic   LeaveType = "public"
	LeavePersonal LeaveType = "personal"
	LeaveSick     LeaveType = "sick"
)

func (t LeaveType) Valid() bool {
	switch t {
	case LeavePublic, LeavePersonal, LeaveSick:
		return true
	}
	return false
}

// Status 请假类型对应的签到记录状态
func (t LeaveType) Status() AttendanceStatus {
	switch t {
	case LeavePublic:
		return StatusPublicLeave
	case LeavePersonal:
		return StatusPersonalLeave
	case LeaveSick:
		return StatusSickLeave
	}
	return ""
}

// DisplayName 请假类型的中文名称
func (t LeaveType) DisplayName() string {
	switch t {
	case LeavePublic:
		return "公假"
	case LeavePersonal:
		return "事假"
	case LeaveSick:
		return "病假"
	}
	return string(t)
}

// SettingKey 请假类型对应的积分设置键
func (t LeaveType) SettingKey() string {
	switch t {
	case LeavePublic:
		return "public_leave_points"
	case LeavePersonal:
		return "personal_leave_points"
	case LeaveSick:
		return "sick_leave_points"
	}
	return ""
}

// LeaveStatus 请假申请状态：pending(待审批) -> approved(已批准待使用)/rejected(未通过)，approved -> used(已使用)
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
	LeaveUsed     LeaveStatus = "used"
)

// SessionType 会话类型：签到 / 签退
type SessionType string

const (
	SessionCheckin  SessionType = "checkin"
	SessionCheckout SessionType = "checkout"
)

// RecordType 积分记录分类
type RecordType string

const (
	RecordCheckin     RecordType = "checkin"
	RecordAbsence     RecordType = "absence"
	RecordLeave       RecordType = "leave"
	RecordManual      RecordType = "manual"
	RecordManualLeave RecordType = "manual_leave"
)
