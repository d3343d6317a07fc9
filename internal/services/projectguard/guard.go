// Package projectguard decides whether a caller may act on a project.
package projectguard

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

type Outcome int

const (
	Authorized Outcome = iota
	Denied
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "not_found"
	}
}

// Result carries the loaded project only when Outcome is Authorized.
type Result struct {
	Outcome Outcome
	Project *types.Project
}

// Err maps a non-authorized outcome onto the API error taxonomy.
func (r Result) Err() error {
	switch r.Outcome {
	case Authorized:
		return nil
	case Denied:
		return apierr.Forbidden("you do not have access to this project")
	default:
		return apierr.NotFound("project")
	}
}

// Check loads the project and compares its owner with userID. Archived
// projects are reported as NotFound. The returned error is only set for
// storage failures.
func Check(dbc dbctx.Context, projects repos.ProjectRepo, projectID, userID uuid.UUID) (Result, error) {
	if projectID == uuid.Nil {
		return Result{Outcome: NotFound}, nil
	}
	if userID == uuid.Nil {
		return Result{Outcome: Denied}, nil
	}
	p, err := projects.GetByID(dbc, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("load project: %w", err)
	}
	if p == nil || p.Status == project.StatusArchived {
		return Result{Outcome: NotFound}, nil
	}
	if p.OwnerUserID != userID {
		return Result{Outcome: Denied}, nil
	}
	return Result{Outcome: Authorized, Project: p}, nil
}

// Require is Check folded into a single error.
func Require(dbc dbctx.Context, projects repos.ProjectRepo, projectID, userID uuid.UUID) (*types.Project, error) {
	res, err := Check(dbc, projects, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Project, nil
}
