package supportaccess

import (
	"context"
	"fmt"

	"github.com/byteness/supportaccess/logging"
)

// AuditLogger builds audit trail entries and mirrors committed entries to
// the structured audit log. The request record stays the source of truth:
// nothing reaches the log until the store has accepted the entry.
type AuditLogger struct {
	store  Store
	logger logging.Logger
	clock  Clock
}

// NewAuditLogger creates an AuditLogger. A nil logger discards log output.
func NewAuditLogger(store Store, logger logging.Logger, clock Clock) *AuditLogger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuditLogger{store: store, logger: logger, clock: clock}
}

// NewEntry creates an entry stamped with the current time.
func (a *AuditLogger) NewEntry(action AuditAction, userID, ipAddress, userAgent string, details map[string]string) AuditEntry {
	return AuditEntry{
		Action:    action,
		UserID:    userID,
		Timestamp: a.clock.Now(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   details,
	}
}

// Append persists entry on the request's trail and then mirrors it to the log.
func (a *AuditLogger) Append(ctx context.Context, req *SupportAccessRequest, entry AuditEntry) error {
	if err := a.store.AppendAudit(ctx, req.ID, entry); err != nil {
		return fmt.Errorf("append %s audit entry: %w", entry.Action, err)
	}
	a.Committed(req, entry)
	return nil
}

// Committed mirrors an entry the store has already accepted to the log.
func (a *AuditLogger) Committed(req *SupportAccessRequest, entry AuditEntry) {
	var event logging.SupportAccessEvent
	switch entry.Action {
	case ActionRequested:
		event = logging.EventRequested
	case ActionApproved:
		event = logging.EventApproved
	case ActionAccessed:
		event = logging.EventAccessed
	default:
		return
	}

	e := logging.NewSupportAccessLogEntry(event, entry.Timestamp, req.TargetTenantID)
	e.RequestID = req.ID
	e.ActorID = entry.UserID
	e.SuperadminID = req.SuperadminID
	e.TargetUserID = req.TargetUserID
	e.Status = string(req.Status)
	e.IPAddress = entry.IPAddress
	e.UserAgent = entry.UserAgent
	if event == logging.EventRequested {
		e.Purpose = req.Purpose
	}
	if req.Status == StatusApproved {
		e = e.WithExpiry(req.ExpirationTimestamp)
	}
	a.logger.LogSupportAccess(e)
}

// Denied logs a refused verification. Denials are not written to any
// request's trail, since a denial may have no matching request at all.
func (a *AuditLogger) Denied(actorID string, in VerifyInput, requestID, reason string) {
	e := logging.NewSupportAccessLogEntry(logging.EventDenied, a.clock.Now(), in.TargetTenantID)
	e.RequestID = requestID
	e.ActorID = actorID
	e.TargetUserID = in.TargetUserID
	e.IPAddress = in.IPAddress
	e.UserAgent = in.UserAgent
	e.Reason = reason
	a.logger.LogSupportAccess(e)
}
