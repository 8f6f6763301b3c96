package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/openmaint/openmaint/internal/audit"
	"github.com/openmaint/openmaint/internal/catalog"
)

// DefaultGateCacheSize bounds the in-memory effective-matrix cache.
const DefaultGateCacheSize = 4096

// gateKey identifies one cached gate: a user at a specific override
// version. A commit bumps the version, so stale entries are never served.
type gateKey struct {
	userID  string
	version int64
}

// Service ties the pure resolution engine to the override store, the role
// directory, the audit trail, and the gate cache. It is the only writer of
// the override store and the only sanctioned producer of gates.
type Service struct {
	overrides OverrideRepository
	directory RoleDirectory
	auditLog  audit.Logger

	gates *lru.Cache[gateKey, *Gate]

	unknownRoles   metric.Int64Counter
	invalidQueries metric.Int64Counter
}

// NewService creates the access service. cacheSize <= 0 selects
// DefaultGateCacheSize.
func NewService(overrides OverrideRepository, directory RoleDirectory, auditLog audit.Logger, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultGateCacheSize
	}
	gates, err := lru.New[gateKey, *Gate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate cache: %w", err)
	}

	meter := otel.Meter("openmaint/access")
	unknownRoles, err := meter.Int64Counter("access_unknown_roles_total",
		metric.WithDescription("Permission resolutions that fell back to the read-only template"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	invalidQueries, err := meter.Int64Counter("access_invalid_queries_total",
		metric.WithDescription("Permission queries for module/action pairs outside the catalog"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Service{
		overrides:      overrides,
		directory:      directory,
		auditLog:       auditLog,
		gates:          gates,
		unknownRoles:   unknownRoles,
		invalidQueries: invalidQueries,
	}, nil
}

// overrideFor loads a user's override record, treating absence as an empty
// matrix at version 0.
func (s *Service) overrideFor(ctx context.Context, userID string) (Matrix, int64, error) {
	record, err := s.overrides.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrOverrideNotFound):
		return nil, 0, nil
	case err != nil:
		return nil, 0, err
	}
	return record.Matrix.Normalize(), record.Version, nil
}

// GateFor returns the authorization gate for a user. Gates are cached per
// (user, override version) for the lifetime of the process; permission
// reads on the render path never touch the store once a gate is warm.
func (s *Service) GateFor(ctx context.Context, userID string, role Role) (*Gate, error) {
	override, version, err := s.overrideFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := gateKey{userID: userID, version: version}
	if gate, ok := s.gates.Get(key); ok && gate.Role() == role {
		return gate, nil
	}

	gate, err := NewGate(role, override)
	if errors.Is(err, ErrUnknownRole) {
		s.observeUnknownRole(ctx, userID, role)
		err = nil
	}
	if err != nil {
		return nil, err
	}

	s.gates.Add(key, gate)
	return gate, nil
}

// Check resolves one (user, module, action) query through the cached gate.
// Invalid queries deny and are counted for observability.
func (s *Service) Check(ctx context.Context, userID string, role Role, key catalog.Key, action catalog.Action) (bool, error) {
	if !catalog.Supports(key, action) && role != RoleAdmin {
		s.observeInvalidQuery(ctx, userID, key, action)
		return false, fmt.Errorf("%w: %s/%s", ErrInvalidQuery, key, action)
	}
	gate, err := s.GateFor(ctx, userID, role)
	if err != nil {
		return false, err
	}
	return gate.Allows(key, action), nil
}

// StoredOverride returns the user's normalized sparse override and its
// version. Absence is an empty matrix at version 0, not an error.
func (s *Service) StoredOverride(ctx context.Context, userID string) (Matrix, int64, error) {
	override, version, err := s.overrideFor(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if override == nil {
		override = Matrix{}
	}
	return override, version, nil
}

// BeginEdit opens an override-editing session for a user, seeded with
// their effective matrix and the stored version for the commit-time
// optimistic-concurrency check.
func (s *Service) BeginEdit(ctx context.Context, userID string) (*WorkingMatrix, error) {
	role, err := s.directory.RoleOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role for %s: %w", userID, err)
	}

	override, version, err := s.overrideFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	working, err := NewWorkingMatrix(userID, role, override, version)
	if errors.Is(err, ErrUnknownRole) {
		s.observeUnknownRole(ctx, userID, role)
		// Edits against an unknown role diff against the read-only
		// template, matching what resolution does.
		working, err = NewWorkingMatrix(userID, RoleVisualiseur, override, version)
	}
	return working, err
}

// Commit diffs the working matrix against the role defaults and replaces
// the stored override wholesale. An empty diff deletes the record so
// untouched users keep tracking their role defaults. A concurrent save
// since BeginEdit fails with ErrStaleOverride instead of clobbering.
func (s *Service) Commit(ctx context.Context, actorID string, working *WorkingMatrix) (*OverrideRecord, error) {
	diff := working.Diff()

	if len(diff) == 0 {
		err := s.deleteOverride(ctx, working)
		if err != nil {
			s.auditStale(ctx, actorID, working, err)
			return nil, err
		}
		s.invalidate(working.UserID())
		s.auditLog.Log(ctx, audit.Event{
			Type:      audit.TypeOverrideReset,
			ActorID:   actorID,
			SubjectID: working.UserID(),
			Resource:  "permission_override",
			Metadata:  map[string]any{"role": string(working.Role()), "reason": "empty_diff"},
		})
		return &OverrideRecord{UserID: working.UserID(), Matrix: Matrix{}, UpdatedAt: time.Now()}, nil
	}

	record := &OverrideRecord{
		UserID:    working.UserID(),
		Matrix:    diff,
		Version:   working.Version() + 1,
		UpdatedAt: time.Now(),
	}
	if err := s.overrides.Put(ctx, record, working.Version()); err != nil {
		s.auditStale(ctx, actorID, working, err)
		return nil, err
	}

	s.invalidate(working.UserID())
	s.auditLog.Log(ctx, audit.Event{
		Type:      audit.TypeOverrideSaved,
		ActorID:   actorID,
		SubjectID: working.UserID(),
		Resource:  "permission_override",
		Metadata: map[string]any{
			"role":               string(working.Role()),
			"modules_overridden": len(diff),
			"version":            record.Version,
		},
	})
	return record, nil
}

// Reset deletes a user's override so their role defaults apply again.
func (s *Service) Reset(ctx context.Context, actorID, userID string) error {
	record, err := s.overrides.Get(ctx, userID)
	if errors.Is(err, ErrOverrideNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.overrides.Delete(ctx, userID, record.Version); err != nil {
		return err
	}
	s.invalidate(userID)
	s.auditLog.Log(ctx, audit.Event{
		Type:      audit.TypeOverrideReset,
		ActorID:   actorID,
		SubjectID: userID,
		Resource:  "permission_override",
	})
	return nil
}

// deleteOverride removes the stored record for a working matrix that diffs
// to nothing. Committing an empty diff over no record is a no-op.
func (s *Service) deleteOverride(ctx context.Context, working *WorkingMatrix) error {
	if working.Version() == 0 {
		return nil
	}
	return s.overrides.Delete(ctx, working.UserID(), working.Version())
}

// invalidate drops every cached gate for a user. Versions make stale
// entries unreachable anyway; eager removal just frees the slots.
func (s *Service) invalidate(userID string) {
	for _, key := range s.gates.Keys() {
		if key.userID == userID {
			s.gates.Remove(key)
		}
	}
}

func (s *Service) observeUnknownRole(ctx context.Context, userID string, role Role) {
	s.unknownRoles.Add(ctx, 1)
	slog.WarnContext(ctx, "unknown role, falling back to read-only template",
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	s.auditLog.Log(ctx, audit.Event{
		Type:      audit.TypeUnknownRole,
		SubjectID: userID,
		Resource:  "role",
		Metadata:  map[string]any{"role": string(role)},
	})
}

func (s *Service) observeInvalidQuery(ctx context.Context, userID string, key catalog.Key, action catalog.Action) {
	s.invalidQueries.Add(ctx, 1)
	slog.WarnContext(ctx, "permission query outside the module catalog",
		slog.String("user_id", userID),
		slog.String("module", string(key)),
		slog.String("action", string(action)),
	)
	s.auditLog.Log(ctx, audit.Event{
		Type:      audit.TypeInvalidQuery,
		SubjectID: userID,
		Resource:  string(key),
		Metadata:  map[string]any{"action": string(action)},
	})
}

func (s *Service) auditStale(ctx context.Context, actorID string, working *WorkingMatrix, err error) {
	if !errors.Is(err, ErrStaleOverride) {
		return
	}
	s.auditLog.Log(ctx, audit.Event{
		Type:      audit.TypeStaleCommit,
		ActorID:   actorID,
		SubjectID: working.UserID(),
		Resource:  "permission_override",
		Metadata:  map[string]any{"version": working.Version()},
	})
}
