package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LocationAssignmentResolver 计算用户在租户内可操作的门店集合
type LocationAssignmentResolver struct {
	assignments AssignmentStore
	log         *logrus.Logger
}

// NewLocationAssignmentResolver 创建门店范围解析器
func NewLocationAssignmentResolver(assignments AssignmentStore, log *logrus.Logger) *LocationAssignmentResolver {
	return &LocationAssignmentResolver{
		assignments: assignments,
		log:         log,
	}
}

// Resolve 解析可操作门店ID集合
// owner不受门店限制，返回租户全部门店；其他角色返回排班记录对应的门店。
// 空集合是合法结果（触发待分配锁定）；存储故障降级为空集合并记录告警，不向上抛出。
func (r *LocationAssignmentResolver) Resolve(ctx context.Context, userID, tenantID uuid.UUID, role Role) ([]uuid.UUID, error) {
	if role == RoleOwner {
		locations, err := r.assignments.TenantLocations(ctx, tenantID)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"user_id":   userID,
				"tenant_id": tenantID,
			}).Warnf("加载租户门店失败，按空范围处理: %v", err)
			return []uuid.UUID{}, err
		}
		ids := make([]uuid.UUID, 0, len(locations))
		for _, loc := range locations {
			ids = append(ids, loc.ID)
		}
		return ids, nil
	}

	ids, err := r.assignments.AssignedLocationIDs(ctx, userID, tenantID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"tenant_id": tenantID,
		}).Warnf("加载员工排班失败，按空范围处理: %v", err)
		return []uuid.UUID{}, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}
