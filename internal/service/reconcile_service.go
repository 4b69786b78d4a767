package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/doorgate/internal/directory"
	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/observability/metrics"
	"github.com/aryan0dhankhar/doorgate/internal/observability/tracing"
)

// ReconcileConfig names the directory subtrees and attributes the reconciler reads
type ReconcileConfig struct {
	UsersDN       string
	GroupsDN      string
	UserClass     string
	GroupClass    string
	PrincipalAttr string
	TagAttr       string
	MemberOfAttr  string
	StatusAttr    string
	GroupNameAttr string
}

// DefaultReconcileConfig returns the Active Directory attribute names
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		UserClass:     "user",
		GroupClass:    "group",
		PrincipalAttr: "userPrincipalName",
		TagAttr:       "rFIDUID",
		MemberOfAttr:  "memberOf",
		StatusAttr:    "userAccountControl",
		GroupNameAttr: "cn",
	}
}

// ReconcileService mirrors directory users and groups into the local cache
type ReconcileService struct {
	directory domain.Directory
	users     domain.UserRepository
	groups    domain.GroupRepository
	cfg       ReconcileConfig
	logger    *slog.Logger
}

// NewReconcileService creates a new reconciliation service
func NewReconcileService(
	dir domain.Directory,
	users domain.UserRepository,
	groups domain.GroupRepository,
	cfg ReconcileConfig,
	logger *slog.Logger,
) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultReconcileConfig()
	if cfg.UserClass == "" {
		cfg.UserClass = defaults.UserClass
	}
	if cfg.GroupClass == "" {
		cfg.GroupClass = defaults.GroupClass
	}
	if cfg.PrincipalAttr == "" {
		cfg.PrincipalAttr = defaults.PrincipalAttr
	}
	if cfg.TagAttr == "" {
		cfg.TagAttr = defaults.TagAttr
	}
	if cfg.MemberOfAttr == "" {
		cfg.MemberOfAttr = defaults.MemberOfAttr
	}
	if cfg.StatusAttr == "" {
		cfg.StatusAttr = defaults.StatusAttr
	}
	if cfg.GroupNameAttr == "" {
		cfg.GroupNameAttr = defaults.GroupNameAttr
	}

	return &ReconcileService{
		directory: dir,
		users:     users,
		groups:    groups,
		cfg:       cfg,
		logger:    logger,
	}
}

// Reconcile runs one pass: users first, then groups. It returns an error only
// when the cycle was aborted because the directory could not be opened or
// searched; per-entry failures are counted in the report and never abort.
func (s *ReconcileService) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	ctx, span := tracing.Tracer().Start(ctx, "reconcile")
	defer span.End()

	report := &domain.ReconcileReport{StartedAt: time.Now().UTC()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	session, err := s.directory.Open(ctx)
	if err != nil {
		s.logger.Error("directory unavailable, aborting reconciliation", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory unavailable")
		return report, fmt.Errorf("open directory: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("failed to close directory session", slog.String("error", cerr.Error()))
		}
	}()

	users, err := session.Search(ctx, s.cfg.UsersDN, s.cfg.UserClass)
	if err != nil {
		s.logger.Error("user search failed, aborting reconciliation", slog.String("base_dn", s.cfg.UsersDN), slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "user search failed")
		return report, fmt.Errorf("search users: %w", err)
	}
	for _, entry := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.reconcileUser(ctx, entry, report)
	}

	groups, err := session.Search(ctx, s.cfg.GroupsDN, s.cfg.GroupClass)
	if err != nil {
		s.logger.Error("group search failed, aborting reconciliation", slog.String("base_dn", s.cfg.GroupsDN), slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "group search failed")
		return report, fmt.Errorf("search groups: %w", err)
	}
	for _, entry := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.reconcileGroup(ctx, entry, report)
	}

	if count, err := s.users.Count(ctx); err == nil {
		metrics.SetCachedUsers(count)
	}
	metrics.AddReconcileChanges("user", "added", report.UsersAdded)
	metrics.AddReconcileChanges("user", "updated", report.UsersUpdated)
	metrics.AddReconcileChanges("user", "removed", report.UsersRemoved)
	metrics.AddReconcileChanges("user", "skipped", report.UsersSkipped)
	metrics.AddReconcileChanges("group", "added", report.GroupsAdded)

	span.SetAttributes(
		attribute.Int("users.seen", len(users)),
		attribute.Int("groups.seen", len(groups)),
		attribute.Int("writes", report.Writes()),
		attribute.Int("failures", report.Failures),
	)

	s.logger.Info("reconciliation complete",
		slog.Int("users_added", report.UsersAdded),
		slog.Int("users_updated", report.UsersUpdated),
		slog.Int("users_unchanged", report.UsersUnchanged),
		slog.Int("users_removed", report.UsersRemoved),
		slog.Int("users_skipped", report.UsersSkipped),
		slog.Int("groups_added", report.GroupsAdded),
		slog.Int("failures", report.Failures),
	)
	return report, nil
}

func (s *ReconcileService) reconcileUser(ctx context.Context, entry domain.DirectoryEntry, report *domain.ReconcileReport) {
	principal := strings.TrimSpace(entry.First(s.cfg.PrincipalAttr))
	if principal == "" {
		s.skip(entry, report, errors.New("missing principal name"))
		return
	}

	disabled, err := directory.AccountDisabled(entry.First(s.cfg.StatusAttr))
	if err != nil {
		s.skip(entry, report, err)
		return
	}
	if disabled {
		s.removeDisabled(ctx, principal, report)
		return
	}

	groups, err := directory.GroupNames(entry.Values(s.cfg.MemberOfAttr))
	if err != nil {
		s.skip(entry, report, err)
		return
	}
	slices.Sort(groups)
	groups = slices.Compact(groups)
	tag := strings.TrimSpace(entry.First(s.cfg.TagAttr))

	log := s.logger.With(slog.String("principal", principal))

	existing, err := s.users.GetByPrincipal(ctx, principal)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		report.Failures++
		log.Error("failed to load cached user", slog.String("error", err.Error()))
		return
	}

	if existing != nil && existing.TagUID == tag && sameGroups(existing.Groups, groups) {
		report.UsersUnchanged++
		log.Debug("user unchanged")
		return
	}

	if tag != "" && (existing == nil || existing.TagUID != tag) {
		holder, err := s.users.GetByTag(ctx, tag)
		switch {
		case err == nil && holder.Principal != principal:
			report.UsersSkipped++
			log.Warn("tag already assigned to another user, skipping",
				slog.String("tag_uid", tag),
				slog.String("holder", holder.Principal),
			)
			return
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			report.Failures++
			log.Error("failed to check tag ownership", slog.String("error", err.Error()))
			return
		}
	}

	user := &domain.User{Principal: principal, TagUID: tag, Groups: groups}
	if existing == nil {
		err = s.users.Create(ctx, user)
	} else {
		err = s.users.Update(ctx, user)
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateTag):
		report.UsersSkipped++
		log.Warn("tag already assigned to another user, skipping", slog.String("tag_uid", tag))
	case err != nil:
		report.Failures++
		log.Error("failed to write user", slog.String("error", err.Error()))
	case existing == nil:
		report.UsersAdded++
		log.Info("user added", slog.Int("groups", len(groups)))
	default:
		report.UsersUpdated++
		log.Info("user updated", slog.Int("groups", len(groups)))
	}
}

func (s *ReconcileService) removeDisabled(ctx context.Context, principal string, report *domain.ReconcileReport) {
	err := s.users.Delete(ctx, principal)
	switch {
	case err == nil:
		report.UsersRemoved++
		s.logger.Info("disabled user removed", slog.String("principal", principal))
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("disabled user already absent", slog.String("principal", principal))
	default:
		report.Failures++
		s.logger.Error("failed to remove disabled user",
			slog.String("principal", principal),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ReconcileService) reconcileGroup(ctx context.Context, entry domain.DirectoryEntry, report *domain.ReconcileReport) {
	name := strings.TrimSpace(entry.First(s.cfg.GroupNameAttr))
	if name == "" {
		var err error
		if name, err = directory.GroupNameFromDN(entry.DN); err != nil {
			s.logger.Warn("skipping malformed directory group", slog.String("dn", entry.DN), slog.String("error", err.Error()))
			report.Failures++
			return
		}
	}

	created, err := s.groups.Ensure(ctx, name)
	if err != nil {
		report.Failures++
		s.logger.Error("failed to write group", slog.String("group", name), slog.String("error", err.Error()))
		return
	}
	if created {
		report.GroupsAdded++
		s.logger.Info("group added", slog.String("group", name))
		return
	}
	report.GroupsExisting++
}

func (s *ReconcileService) skip(entry domain.DirectoryEntry, report *domain.ReconcileReport, reason error) {
	report.UsersSkipped++
	s.logger.Warn("skipping malformed directory entry",
		slog.String("dn", entry.DN),
		slog.String("error", reason.Error()),
	)
}

// sameGroups compares a cached membership set with a sorted, compacted one
// regardless of the order the store returned it in
func sameGroups(cached, sorted []string) bool {
	c := slices.Clone(cached)
	slices.Sort(c)
	return slices.Equal(slices.Compact(c), sorted)
}
