package handler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"teamsync/internal/cache"
	"teamsync/internal/events"
	"teamsync/internal/model"
	"teamsync/internal/progress"
	"teamsync/internal/repository"
)

// SnapshotPublisher rebuilds a project's full snapshot after a mutation,
// refreshes the progress cache and fans the snapshot out to realtime
// subscribers.
type SnapshotPublisher struct {
	hub           *events.Hub
	projectRepo   *repository.ProjectRepository
	taskRepo      *repository.TaskRepository
	feedbackRepo  *repository.FeedbackRepository
	progressCache *cache.ProgressCache
}

func NewSnapshotPublisher(
	hub *events.Hub,
	projectRepo *repository.ProjectRepository,
	taskRepo *repository.TaskRepository,
	feedbackRepo *repository.FeedbackRepository,
	progressCache *cache.ProgressCache,
) *SnapshotPublisher {
	return &SnapshotPublisher{
		hub:           hub,
		projectRepo:   projectRepo,
		taskRepo:      taskRepo,
		feedbackRepo:  feedbackRepo,
		progressCache: progressCache,
	}
}

// Build loads the project's current state and derives its progress.
func (p *SnapshotPublisher) Build(ctx context.Context, projectID uuid.UUID) (events.Snapshot, error) {
	project, err := p.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return events.Snapshot{}, err
	}
	if project == nil {
		return events.Snapshot{}, repository.ErrProjectNotFound
	}

	tasks, err := p.taskRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		return events.Snapshot{}, err
	}

	feedbackCount, err := p.feedbackRepo.CountByProject(ctx, projectID)
	if err != nil {
		return events.Snapshot{}, err
	}

	return events.Snapshot{
		Project:       toProjectState(project),
		Tasks:         toTaskStates(tasks),
		Progress:      progress.Compute(tasks),
		FeedbackCount: feedbackCount,
	}, nil
}

func toProjectState(project *model.Project) events.ProjectState {
	members := make([]events.MemberState, len(project.Members))
	for i, m := range project.Members {
		members[i] = events.MemberState{
			ID:     m.ID.String(),
			Email:  m.Email,
			Name:   m.Name,
			Avatar: m.Avatar,
		}
	}
	return events.ProjectState{
		ID:          project.ID.String(),
		Name:        project.Name,
		Description: project.Description,
		DueDate:     project.DueDate.Format(time.RFC3339),
		OwnerID:     project.OwnerID.String(),
		Status:      project.Status,
		Members:     members,
	}
}

func toTaskStates(tasks []model.Task) []events.TaskState {
	states := make([]events.TaskState, len(tasks))
	for i, t := range tasks {
		states[i] = events.TaskState{
			ID:          t.ID.String(),
			ProjectID:   t.ProjectID.String(),
			Title:       t.Title,
			Description: t.Description,
			DueDate:     t.DueDate.Format(time.RFC3339),
			Completed:   t.Completed,
			CreatedBy:   t.CreatedBy.String(),
		}
		if t.AssigneeID != nil {
			assigneeID := t.AssigneeID.String()
			states[i].AssigneeID = &assigneeID
		}
	}
	return states
}

// Publish rebuilds and broadcasts the snapshot. Delivery is best-effort;
// a failed rebuild only costs subscribers one update, so the error is
// logged and swallowed.
func (p *SnapshotPublisher) Publish(ctx context.Context, projectID uuid.UUID) {
	snapshot, err := p.Build(ctx, projectID)
	if err != nil {
		log.Printf("⚠️  Failed to build snapshot for project %s: %v", projectID, err)
		return
	}

	p.progressCache.Set(ctx, projectID, snapshot.Progress)
	p.hub.Publish(projectID, snapshot)
}

// InvalidateProgress drops the cached progress after a task mutation.
func (p *SnapshotPublisher) InvalidateProgress(ctx context.Context, projectID uuid.UUID) {
	p.progressCache.Invalidate(ctx, projectID)
}
