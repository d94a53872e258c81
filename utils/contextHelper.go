package utils

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/finrisk_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyExecutionId   = appctx.ContextKeyExecutionId
	ContextKeyTriggerType   = appctx.ContextKeyTriggerType
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetExecutionIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyExecutionId)
}

func GetTriggerTypeFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTriggerType)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SetBatchTagsInContext stores the execution id and trigger type of a batch run.
func SetBatchTagsInContext(ctx context.Context, executionId string, triggerType string) context.Context {
	ctx = appctx.Set(ctx, ContextKeyExecutionId, executionId)
	return appctx.Set(ctx, ContextKeyTriggerType, triggerType)
}

// BatchLogFields returns the correlation id and batch tags found in ctx as log fields.
func BatchLogFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if v, ok := GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = v
	}
	if v, ok := GetExecutionIdFromContext(ctx); ok {
		fields["execution_id"] = v
	}
	if v, ok := GetTriggerTypeFromContext(ctx); ok {
		fields["trigger_type"] = v
	}
	return fields
}
