package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Emitter 审计事件发射器
// 即发即忘：调用方不等待结果，落库失败只记日志，绝不影响被审计的操作本身
type Emitter struct {
	sink AuditSink
	log  *logrus.Logger
}

// NewEmitter 创建审计发射器；sink为nil时所有调用为空操作
func NewEmitter(sink AuditSink, log *logrus.Logger) *Emitter {
	return &Emitter{sink: sink, log: log}
}

// Log 记录一条审计事件
// entityID必须是合法UUID，否则本次调用为空操作并记录告警（不panic、不阻塞调用方）
func (e *Emitter) Log(tenantID uuid.UUID, action, entityType, entityID string, metadata map[string]interface{}) {
	if e.sink == nil {
		return
	}

	parsedID, err := uuid.Parse(entityID)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"action":    action,
			"entity_id": entityID,
		}).Warn("审计事件entity_id不是合法UUID，已跳过")
		return
	}

	entry := AuditEntry{
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   parsedID,
		Metadata:   metadata,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Warnf("审计落库panic已忽略: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sink.Write(ctx, entry); err != nil {
			e.log.WithField("action", action).Warnf("审计落库失败: %v", err)
		}
	}()
}
