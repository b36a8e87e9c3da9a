package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditLogin             = "login"
	AuditLogout            = "logout"
	AuditEmailVerified     = "email_verified"
	AuditTwoFactorEnabled  = "two_factor_enabled"
	AuditTwoFactorDisabled = "two_factor_disabled"
	AuditBackupCodeUsed    = "backup_code_used"
	AuditBackupCodesReset  = "backup_codes_regenerated"
	AuditPasswordReset     = "password_reset"
	AuditRefreshReuse      = "refresh_token_reuse"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends events to capped redis lists ("audit" and
// "audit:<userID>"). A nil logger drops events.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	if a == nil || a.Redis == nil {
		return nil
	}
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := "audit"
	if e.UserID != "" {
		key = "audit:" + e.UserID
	}

	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n newest events of a user, newest last.
func (a *AuditLogger) Recent(ctx context.Context, userID string, n int64) ([]AuditEvent, error) {
	if a == nil || a.Redis == nil {
		return nil, nil
	}
	raw, err := a.Redis.LRange(ctx, "audit:"+userID, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
