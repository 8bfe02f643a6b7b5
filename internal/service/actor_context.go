package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

type teamDirectory interface {
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	IsBuildingSupervisor(ctx context.Context, hospitalID, buildingID, userID string) (bool, error)
}

type permissionSource interface {
	Resolve(ctx context.Context, userID, hospitalID string) *PermissionSet
	Roles(ctx context.Context, userID, hospitalID string) (models.RoleSet, error)
}

// ActorContext is everything the authorizer needs about a caller, loaded up
// front so the decision itself stays pure.
type ActorContext struct {
	Actor        models.Actor
	System       bool
	Roles        models.RoleSet
	RoleConfig   models.RoleConfig
	Permissions  *PermissionSet
	Relationship models.WorkOrderRelationship
	RolesErr     error
}

// Degraded reports whether a lookup failed and the context was closed down.
func (a *ActorContext) Degraded() bool {
	if a == nil {
		return true
	}
	return a.RolesErr != nil || a.Permissions.Err() != nil
}

// ActorContextLoader fetches roles, permissions and relationship flags in
// parallel. Every lookup fails closed.
type ActorContextLoader struct {
	permissions permissionSource
	teams       teamDirectory
	logger      *zap.Logger
}

// NewActorContextLoader constructs the loader.
func NewActorContextLoader(permissions permissionSource, teams teamDirectory, logger *zap.Logger) *ActorContextLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActorContextLoader{permissions: permissions, teams: teams, logger: logger}
}

// Load builds the caller's context for a work order. wo may be nil when only
// role and permission data is needed.
func (l *ActorContextLoader) Load(ctx context.Context, actor models.Actor, wo *models.WorkOrder) *ActorContext {
	ac := &ActorContext{Actor: actor, Roles: models.RoleSet{}}
	if actor.System {
		ac.System = true
		ac.Permissions = NewPermissionSet(actor.UserID, actor.HospitalID, nil, nil)
		return ac
	}

	var rel models.WorkOrderRelationship
	if wo != nil {
		rel.IsReporter = wo.ReportedBy != "" && wo.ReportedBy == actor.UserID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roles, err := l.permissions.Roles(gctx, actor.UserID, actor.HospitalID)
		if err != nil {
			l.logger.Warn("role lookup failed", zap.String("user_id", actor.UserID), zap.Error(err))
			ac.RolesErr = err
			return nil
		}
		ac.Roles = roles
		return nil
	})
	g.Go(func() error {
		ac.Permissions = l.permissions.Resolve(gctx, actor.UserID, actor.HospitalID)
		return nil
	})
	if wo != nil && wo.HasAssignedTeam() && l.teams != nil {
		teamID := *wo.AssignedTeamID
		g.Go(func() error {
			ok, err := l.teams.IsTeamMember(gctx, teamID, actor.UserID)
			if err != nil {
				l.logger.Warn("team membership lookup failed", zap.String("team_id", teamID), zap.Error(err))
				return nil
			}
			rel.IsTeamMember = ok
			return nil
		})
	}
	if wo != nil && wo.BuildingID != nil && *wo.BuildingID != "" && l.teams != nil {
		buildingID := *wo.BuildingID
		g.Go(func() error {
			ok, err := l.teams.IsBuildingSupervisor(gctx, actor.HospitalID, buildingID, actor.UserID)
			if err != nil {
				l.logger.Warn("building supervisor lookup failed", zap.String("building_id", buildingID), zap.Error(err))
				return nil
			}
			rel.IsAssignedToBuilding = ok
			return nil
		})
	}
	_ = g.Wait()

	ac.Relationship = rel
	ac.RoleConfig = RoleConfigFor(ac.Roles)
	return ac
}
