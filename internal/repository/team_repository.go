package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TeamRepository answers team membership, building supervision and issue
// routing lookups.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// IsTeamMember reports whether the user belongs to the team.
func (r *TeamRepository) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, teamID, userID); err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	return ok, nil
}

// IsBuildingSupervisor reports whether the user supervises the building.
func (r *TeamRepository) IsBuildingSupervisor(ctx context.Context, hospitalID, buildingID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM building_supervisors WHERE hospital_id = $1 AND building_id = $2 AND user_id = $3)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, hospitalID, buildingID, userID); err != nil {
		return false, fmt.Errorf("check building supervisor: %w", err)
	}
	return ok, nil
}

// TeamExists reports whether an active team exists in the hospital.
func (r *TeamRepository) TeamExists(ctx context.Context, hospitalID, teamID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1 AND hospital_id = $2 AND active = TRUE)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, teamID, hospitalID); err != nil {
		return false, fmt.Errorf("check team: %w", err)
	}
	return ok, nil
}

// ResolveTeamForIssueType returns the team that handles an issue type in a
// hospital, or an empty string when no active team is mapped.
func (r *TeamRepository) ResolveTeamForIssueType(ctx context.Context, hospitalID, issueType string) (string, error) {
	const query = `SELECT t.id FROM team_issue_types ti
	JOIN teams t ON t.id = ti.team_id
	WHERE ti.hospital_id = $1 AND ti.issue_type = $2 AND t.active = TRUE
	ORDER BY ti.priority ASC, t.id ASC LIMIT 1`
	var teamID string
	if err := r.db.GetContext(ctx, &teamID, query, hospitalID, issueType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve team for issue type: %w", err)
	}
	return teamID, nil
}
