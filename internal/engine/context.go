package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextType 操作上下文类型
type ContextType string

const (
	ContextOwnerHub ContextType = "owner_hub" // 跨门店聚合视图
	ContextLocation ContextType = "location"  // 单门店视图
	ContextNone     ContextType = ""          // 无可用上下文
)

// 经理/主管使用聚合视图所需的最少排班门店数，固定策略
const ownerHubMinLocations = 2

// ActiveContext 持久化的上下文偏好
type ActiveContext struct {
	Type       ContextType `json:"type"`
	LocationID uuid.UUID   `json:"location_id,omitempty"`
}

// ContextOption 可选上下文条目（聚合视图在前，门店按加载顺序）
type ContextOption struct {
	Type       ContextType `json:"type"`
	LocationID uuid.UUID   `json:"location_id,omitempty"`
	Label      string      `json:"label"`
}

// ResolvedContext 上下文解析结果
type ResolvedContext struct {
	Type                ContextType     `json:"type"`
	LocationID          uuid.UUID       `json:"location_id,omitempty"`
	AssignedLocationIDs []uuid.UUID     `json:"assigned_location_ids"`
	AvailableContexts   []ContextOption `json:"available_contexts"`
	CanUseOwnerHub      bool            `json:"can_use_owner_hub"`
	Role                Role            `json:"role"`
}

// ContextResolver 解析(用户,租户)的活动上下文
// 解析是幂等的：输入不变时两次调用产出相同结果
type ContextResolver struct {
	locations   *LocationAssignmentResolver
	assignments AssignmentStore
	store       ContextStore
	mirror      ContextMirror // 可为nil
	log         *logrus.Logger
}

// NewContextResolver 创建上下文解析器
func NewContextResolver(assignments AssignmentStore, store ContextStore, mirror ContextMirror, log *logrus.Logger) *ContextResolver {
	return &ContextResolver{
		locations:   NewLocationAssignmentResolver(assignments, log),
		assignments: assignments,
		store:       store,
		mirror:      mirror,
		log:         log,
	}
}

// Resolve 执行完整的上下文解析
// 优先级：有效的已存聚合视图 > 有效的已存门店 > 服务端默认值 > 聚合视图（如有资格）> 默认/首个门店 > 无
// 过期的已存偏好（门店被取消排班、聚合资格失效）静默纠正，不报错。
func (r *ContextResolver) Resolve(ctx context.Context, userID, tenantID uuid.UUID, role Role) (*ResolvedContext, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("未知角色: %s", role)
	}

	// 1. 可操作门店集合
	assigned, _ := r.locations.Resolve(ctx, userID, tenantID, role)

	// 2. 聚合视图资格：owner无条件；经理/主管需要排班门店多于一家
	canUseOwnerHub := role == RoleOwner ||
		((role == RoleManager || role == RoleSupervisor) && len(assigned) >= ownerHubMinLocations)

	// 门店标签与默认门店标记（读失败仅影响标签与默认门店兜底）
	tenantLocs, err := r.assignments.TenantLocations(ctx, tenantID)
	if err != nil {
		r.log.Warnf("加载租户门店失败: %v", err)
		tenantLocs = nil
	}

	// 3. 可选上下文列表
	options := buildOptions(role, assigned, tenantLocs, canUseOwnerHub)

	// 4. 读取已存偏好（可能缺失或过期）
	stored := r.loadStored(ctx, userID, tenantID)

	// 5+6. 校验已存偏好并按优先级确定生效上下文
	effective := r.pickEffective(ctx, userID, tenantID, stored, options, tenantLocs, canUseOwnerHub)

	// 7. 先同步回写本地存储，再尽力同步服务端镜像
	if effective.Type != ContextNone {
		if err := r.store.SaveContext(ctx, userID, tenantID, effective); err != nil {
			r.log.Warnf("保存上下文偏好失败: %v", err)
		}
		if r.mirror != nil {
			go func(ac ActiveContext) {
				syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := r.mirror.PushContext(syncCtx, userID, tenantID, ac); err != nil {
					r.log.Warnf("同步上下文镜像失败: %v", err)
				}
			}(effective)
		}
	}

	return &ResolvedContext{
		Type:                effective.Type,
		LocationID:          effective.LocationID,
		AssignedLocationIDs: assigned,
		AvailableContexts:   options,
		CanUseOwnerHub:      canUseOwnerHub,
		Role:                role,
	}, nil
}

// buildOptions 构建可选上下文：聚合视图在前，随后是可见门店
// owner可见租户全部门店，其他角色仅可见排班子集
func buildOptions(role Role, assigned []uuid.UUID, tenantLocs []LocationInfo, canUseOwnerHub bool) []ContextOption {
	options := make([]ContextOption, 0, len(assigned)+1)
	if canUseOwnerHub {
		options = append(options, ContextOption{Type: ContextOwnerHub, Label: "全部门店"})
	}

	if role == RoleOwner {
		for _, loc := range tenantLocs {
			options = append(options, ContextOption{Type: ContextLocation, LocationID: loc.ID, Label: loc.Name})
		}
		return options
	}

	labels := make(map[uuid.UUID]string, len(tenantLocs))
	for _, loc := range tenantLocs {
		labels[loc.ID] = loc.Name
	}
	for _, id := range assigned {
		label := labels[id]
		if label == "" {
			label = id.String()
		}
		options = append(options, ContextOption{Type: ContextLocation, LocationID: id, Label: label})
	}
	return options
}

// loadStored 读取已存偏好，读失败按缺失处理
func (r *ContextResolver) loadStored(ctx context.Context, userID, tenantID uuid.UUID) *ActiveContext {
	stored, err := r.store.LoadContext(ctx, userID, tenantID)
	if err != nil {
		r.log.Warnf("读取上下文偏好失败: %v", err)
		return nil
	}
	return stored
}

// validate 校验一个候选上下文当前是否可用
func validate(candidate *ActiveContext, options []ContextOption, canUseOwnerHub bool) bool {
	if candidate == nil {
		return false
	}
	switch candidate.Type {
	case ContextOwnerHub:
		return canUseOwnerHub
	case ContextLocation:
		for _, opt := range options {
			if opt.Type == ContextLocation && opt.LocationID == candidate.LocationID {
				return true
			}
		}
	}
	return false
}

// pickEffective 确定生效上下文
func (r *ContextResolver) pickEffective(ctx context.Context, userID, tenantID uuid.UUID, stored *ActiveContext, options []ContextOption, tenantLocs []LocationInfo, canUseOwnerHub bool) ActiveContext {
	// 有效的已存偏好直接生效
	if stored != nil && validate(stored, options, canUseOwnerHub) {
		return *stored
	}

	// 服务端默认值（权威解析器可用时，同样需要通过校验）
	if r.mirror != nil {
		serverDefault, err := r.mirror.DefaultContext(ctx, userID, tenantID)
		if err != nil {
			r.log.Warnf("读取服务端默认上下文失败: %v", err)
		} else if validate(serverDefault, options, canUseOwnerHub) {
			return *serverDefault
		}
	}

	// 兜底：聚合视图 > 默认门店 > 首个可见门店 > 无
	if canUseOwnerHub {
		return ActiveContext{Type: ContextOwnerHub}
	}
	for _, loc := range tenantLocs {
		if !loc.IsDefault {
			continue
		}
		candidate := &ActiveContext{Type: ContextLocation, LocationID: loc.ID}
		if validate(candidate, options, canUseOwnerHub) {
			return *candidate
		}
	}
	for _, opt := range options {
		if opt.Type == ContextLocation {
			return ActiveContext{Type: ContextLocation, LocationID: opt.LocationID}
		}
	}
	return ActiveContext{Type: ContextNone}
}
