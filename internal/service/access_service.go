package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/observability/metrics"
	"github.com/aryan0dhankhar/doorgate/internal/observability/tracing"
)

// Deny reasons recorded in metrics and logs
const (
	reasonGranted     = "granted"
	reasonUnknownTag  = "unknown_tag"
	reasonUnknownDoor = "unknown_door"
	reasonNotMember   = "not_member"
	reasonStoreError  = "store_error"
)

// AccessService decides whether a tag may open a door and audits every call
type AccessService struct {
	users   domain.UserRepository
	doors   domain.DoorRepository
	audit   domain.AuditRepository
	feed    *AuditFeed
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewAccessService creates a new access decision service. feed may be nil.
func NewAccessService(
	users domain.UserRepository,
	doors domain.DoorRepository,
	audit domain.AuditRepository,
	feed *AuditFeed,
	timeout time.Duration,
	logger *slog.Logger,
) *AccessService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccessService{
		users:   users,
		doors:   doors,
		audit:   audit,
		feed:    feed,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Decide grants iff the tag resolves to a user who is a member of the door's
// group. Lookup failures deny. Exactly one audit entry is written before it
// returns; the error is non-nil only when that write failed, and the decision
// is then a denial.
func (s *AccessService) Decide(ctx context.Context, tagUID string, doorID int64) (domain.Decision, error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "access.decide")
	defer span.End()
	span.SetAttributes(tracing.AttrDoorID.Int64(doorID))

	lookupCtx, cancelLookup := context.WithTimeout(ctx, s.timeout)
	decision, reason := s.evaluate(lookupCtx, tagUID, doorID)
	cancelLookup()

	// the audit row is written even when the lookups ran out of time
	auditCtx, cancelAudit := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancelAudit()

	entry := &domain.AuditEntry{
		Timestamp: s.now().UTC(),
		Principal: decision.Principal,
		TagUID:    tagUID,
		DoorID:    doorID,
		Granted:   decision.Granted,
	}
	if err := s.audit.Append(auditCtx, entry); err != nil {
		s.logger.Error("failed to write audit entry, denying",
			slog.Int64("door_id", doorID),
			slog.String("tag_uid", tagUID),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit write failed")
		metrics.ObserveDecision(false, "audit_error", time.Since(start))
		return domain.Decision{}, fmt.Errorf("append audit entry: %w", err)
	}

	if s.feed != nil {
		s.feed.Publish(*entry)
	}

	span.SetAttributes(attribute.Bool("access.granted", decision.Granted), attribute.String("access.reason", reason))
	metrics.ObserveDecision(decision.Granted, reason, time.Since(start))
	s.logger.Info("access decision",
		slog.Int64("door_id", doorID),
		slog.String("tag_uid", tagUID),
		slog.String("principal", decision.Principal),
		slog.Bool("granted", decision.Granted),
		slog.String("reason", reason),
	)
	return decision, nil
}

func (s *AccessService) evaluate(ctx context.Context, tagUID string, doorID int64) (domain.Decision, string) {
	user, err := s.users.GetByTag(ctx, tagUID)
	if err != nil {
		return domain.Decision{}, s.lookupFailure(err, reasonUnknownTag, "user")
	}

	door, err := s.doors.GetByID(ctx, doorID)
	if err != nil {
		return domain.Decision{}, s.lookupFailure(err, reasonUnknownDoor, "door")
	}

	if !user.HasGroup(door.Group) {
		return domain.Decision{}, reasonNotMember
	}
	return domain.Decision{Granted: true, Principal: user.Principal}, reasonGranted
}

func (s *AccessService) lookupFailure(err error, notFoundReason, what string) string {
	if errors.Is(err, domain.ErrNotFound) {
		return notFoundReason
	}
	s.logger.Error("access lookup failed, denying", slog.String("lookup", what), slog.String("error", err.Error()))
	return reasonStoreError
}
