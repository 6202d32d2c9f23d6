package engine

// Evaluator 权限判定器
// 三层优先级：owner全通过 > 用户级例外 > 租户角色规则 > 内置默认矩阵 > 未知模块拒绝
// 纯函数对象，不产生副作用；规则集按租户加载，切换租户后必须重建
type Evaluator struct {
	role       Role
	rolePerms  map[Module]bool
	overrides  map[Module]bool
	failClosed bool
}

// NewEvaluator 基于已加载的规则集创建判定器
func NewEvaluator(role Role, rolePerms, overrides map[Module]bool) *Evaluator {
	return &Evaluator{
		role:      role,
		rolePerms: rolePerms,
		overrides: overrides,
	}
}

// NewFailClosedEvaluator 规则集加载失败时的降级判定器
// 除owner外全部拒绝；与未知模块拒绝同向，绝不因故障放行
func NewFailClosedEvaluator(role Role) *Evaluator {
	return &Evaluator{role: role, failClosed: true}
}

// DenyAll 上下文未就绪（加载中/匿名）时的判定器：一律拒绝
func DenyAll() *Evaluator {
	return &Evaluator{failClosed: true}
}

// HasPermission 判定模块是否放行
func (e *Evaluator) HasPermission(module Module) bool {
	// owner不受任何规则限制
	if e.role == RoleOwner {
		return true
	}

	if e.failClosed {
		return false
	}

	// 用户级例外优先
	if allowed, ok := e.overrides[module]; ok {
		return allowed
	}

	// 租户角色规则
	if allowed, ok := e.rolePerms[module]; ok {
		return allowed
	}

	// 内置默认矩阵；目录外的模块键一律拒绝
	allowed, known := DefaultAllowed(e.role, module)
	if !known {
		return false
	}
	return allowed
}

// Snapshot 固定模块目录上的批量判定结果
func (e *Evaluator) Snapshot() map[Module]bool {
	result := make(map[Module]bool, len(Catalog()))
	for _, m := range Catalog() {
		result[m] = e.HasPermission(m)
	}
	return result
}
