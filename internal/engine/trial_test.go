package engine

import (
	"testing"
	"time"
)

func TestEvaluateTrial(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name   string
		status string
		endsAt *time.Time
		want   TrialStatus
	}{
		{
			name:   "非试用状态不参与门禁",
			status: "active",
			endsAt: at(-30 * 24 * time.Hour),
			want:   TrialStatus{},
		},
		{
			name:   "试用但无截止时间",
			status: "trialing",
			endsAt: nil,
			want:   TrialStatus{},
		},
		{
			name:   "刚好到期：进入宽限期但不阻断",
			status: "trialing",
			endsAt: at(0),
			want: TrialStatus{
				IsTrialing:         true,
				DaysRemaining:      0,
				IsExpired:          true,
				IsGracePeriod:      true,
				GraceDaysRemaining: 3,
				ShouldBlockAccess:  false,
				ShouldShowUrgent:   true,
			},
		},
		{
			name:   "到期4天：宽限期已过，阻断访问",
			status: "trialing",
			endsAt: at(-4 * 24 * time.Hour),
			want: TrialStatus{
				IsTrialing:         true,
				DaysRemaining:      -4,
				IsExpired:          true,
				IsGracePeriod:      false,
				GraceDaysRemaining: -1,
				ShouldBlockAccess:  true,
			},
		},
		{
			name:   "剩余不足一天按一天计",
			status: "trialing",
			endsAt: at(6 * time.Hour),
			want: TrialStatus{
				IsTrialing:         true,
				DaysRemaining:      1,
				GraceDaysRemaining: 4,
				ShouldShowWarning:  true,
				ShouldShowUrgent:   true,
			},
		},
		{
			name:   "剩余5天：提醒但不紧急",
			status: "trialing",
			endsAt: at(5 * 24 * time.Hour),
			want: TrialStatus{
				IsTrialing:         true,
				DaysRemaining:      5,
				GraceDaysRemaining: 8,
				ShouldShowWarning:  true,
			},
		},
		{
			name:   "剩余30天：无提醒",
			status: "trialing",
			endsAt: at(30 * 24 * time.Hour),
			want: TrialStatus{
				IsTrialing:         true,
				DaysRemaining:      30,
				GraceDaysRemaining: 33,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateTrial(tt.status, tt.endsAt, now)
			if got != tt.want {
				t.Fatalf("EvaluateTrial() = %+v\n期望 %+v", got, tt.want)
			}
		})
	}
}

func TestTrialHardGateNotCached(t *testing.T) {
	// 同一截止时间在宽限期前后两次评估必须给出不同结论
	endsAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	inGrace := EvaluateTrial("trialing", &endsAt, endsAt.Add(24*time.Hour))
	if inGrace.ShouldBlockAccess || !inGrace.IsGracePeriod {
		t.Fatalf("宽限期内不应阻断: %+v", inGrace)
	}

	afterGrace := EvaluateTrial("trialing", &endsAt, endsAt.Add(4*24*time.Hour))
	if !afterGrace.ShouldBlockAccess {
		t.Fatalf("宽限期结束后必须阻断: %+v", afterGrace)
	}
}
