package services

import (
	"sync"

	"salonhub/internal/engine"
	"salonhub/pkg/logger"

	"github.com/google/uuid"
)

// SessionRegistry 按用户维护会话状态机
// 会话是唯一持有可变状态的组件，同一用户的所有请求共享一个实例
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*engine.Session
}

var (
	registryInstance *SessionRegistry
	registryOnce     sync.Once
)

// GetSessionRegistry 获取会话注册表单例
func GetSessionRegistry() *SessionRegistry {
	registryOnce.Do(func() {
		registryInstance = &SessionRegistry{
			sessions: make(map[uuid.UUID]*engine.Session),
		}
	})
	return registryInstance
}

// Get 获取用户会话，不存在则创建
func (r *SessionRegistry) Get(userID uuid.UUID) *engine.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[userID]; ok {
		return session
	}

	log := logger.GetLogger()
	contexts := NewContextService()
	session := engine.NewSession(engine.Deps{
		Profiles:    NewUserService(),
		Tenants:     NewTenantService(),
		Assignments: NewLocationService(),
		Rules:       NewRuleService(),
		Contexts:    contexts,
		Mirror:      contexts,
		Routes:      NewRouteService(),
		Audit:       engine.NewEmitter(NewAuditService(), log),
		Log:         log,
	})
	r.sessions[userID] = session
	return session
}

// Peek 获取已存在的用户会话
func (r *SessionRegistry) Peek(userID uuid.UUID) (*engine.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Drop 移除并关闭用户会话（登出/账号停用）
func (r *SessionRegistry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	session, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		session.Close()
	}
}
