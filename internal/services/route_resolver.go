package services

import (
	"context"

	"salonhub/internal/engine"

	"github.com/google/uuid"
)

// RouteService 落地路由的权威排序
// 按上下文类型给出模块路由的优先顺序；权限过滤由会话端完成
type RouteService struct{}

func NewRouteService() *RouteService {
	return &RouteService{}
}

// RankedRoutes 返回候选落地路由（优先级降序）
// 聚合视图以overview开头；门店视图以dashboard开头且不含聚合页
func (s *RouteService) RankedRoutes(_ context.Context, _, _ uuid.UUID, contextType engine.ContextType, _ uuid.UUID) ([]string, error) {
	routes := make([]string, 0, len(engine.Catalog()))

	if contextType == engine.ContextOwnerHub {
		routes = append(routes, engine.RouteOverview)
	}
	for _, m := range engine.Catalog() {
		route := engine.ModuleRoute(m)
		if route == "" || route == engine.RouteOverview {
			continue
		}
		routes = append(routes, route)
	}
	return routes, nil
}
