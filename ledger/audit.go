/*
audit.go - Best-effort administrator audit log

PURPOSE:
  Appends one fixed-schema row per administrator-initiated write
  attempt, success or failure. Never raises: an audit failure must not
  mask or roll back the underlying ledger write, so any error here is
  logged and swallowed after the retryer's single pass.
*/
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/rowstore"
)

const (
	AuditOK   = "ok"
	AuditFail = "fail"
)

// AuditLog records administrator write attempts to the admin_requests
// table.
type AuditLog struct {
	client rowstore.Client
	retry  *Retryer
	clock  Clock
	log    *zap.Logger
}

func NewAuditLog(client rowstore.Client, retry *Retryer, clock Clock, log *zap.Logger) *AuditLog {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLog{client: client, retry: retry, clock: clock, log: log}
}

// Record appends one audit row. result is AuditOK or AuditFail;
// writeErr carries the failure detail when the audited write failed.
func (a *AuditLog) Record(ctx context.Context, adminKey, targetKey string, kind ActionKind, date Date, note, result string, writeErr error) {
	detail := ""
	if writeErr != nil {
		detail = writeErr.Error()
	}
	row := rowstore.Row{
		a.clock.Now().Format(time.RFC3339),
		adminKey,
		targetKey,
		string(kind),
		date.String(),
		note,
		result,
		detail,
	}
	err := a.retry.Do(ctx, "append audit", func(ctx context.Context) error {
		return a.client.Append(ctx, rowstore.TableAdminRequests, row)
	})
	if err != nil {
		a.log.Error("audit append failed, swallowing",
			zap.String("admin", adminKey),
			zap.String("target", targetKey),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
