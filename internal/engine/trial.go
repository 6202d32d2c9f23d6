package engine

import (
	"math"
	"time"
)

// 试用策略常量
const (
	TrialGraceDays   = 3 // 到期后的宽限天数
	trialWarningDays = 7 // 提前提醒阈值
	trialUrgentDays  = 3 // 紧急提醒阈值
)

// TrialStatus 试用门禁状态
// 每次检查都即时计算，硬门禁不允许缓存
type TrialStatus struct {
	IsTrialing         bool `json:"is_trialing"`
	DaysRemaining      int  `json:"days_remaining"`
	IsExpired          bool `json:"is_expired"`
	IsGracePeriod      bool `json:"is_grace_period"`
	GraceDaysRemaining int  `json:"grace_days_remaining"`
	ShouldBlockAccess  bool `json:"should_block_access"`
	ShouldShowWarning  bool `json:"should_show_warning"`
	ShouldShowUrgent   bool `json:"should_show_urgent"`
}

// EvaluateTrial 由订阅状态与试用截止时间计算门禁状态
func EvaluateTrial(subscriptionStatus string, trialEndsAt *time.Time, now time.Time) TrialStatus {
	if subscriptionStatus != "trialing" || trialEndsAt == nil {
		return TrialStatus{}
	}

	daysRemaining := ceilDays(trialEndsAt.Sub(now))
	isExpired := daysRemaining <= 0

	graceEnd := trialEndsAt.Add(TrialGraceDays * 24 * time.Hour)
	graceDaysRemaining := ceilDays(graceEnd.Sub(now))
	isGracePeriod := isExpired && graceDaysRemaining > 0

	return TrialStatus{
		IsTrialing:         true,
		DaysRemaining:      daysRemaining,
		IsExpired:          isExpired,
		IsGracePeriod:      isGracePeriod,
		GraceDaysRemaining: graceDaysRemaining,
		ShouldBlockAccess:  isExpired && !isGracePeriod,
		ShouldShowWarning:  !isExpired && daysRemaining <= trialWarningDays,
		ShouldShowUrgent:   (!isExpired && daysRemaining <= trialUrgentDays) || isGracePeriod,
	}
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
