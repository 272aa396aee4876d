package handler

import (
	"log"
	"net/http"
	"time"

	"teamsync/internal/cache"
	"teamsync/internal/model"
	"teamsync/internal/progress"
	"teamsync/internal/repository"
	"teamsync/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectHandler struct {
	projectRepo   *repository.ProjectRepository
	taskRepo      *repository.TaskRepository
	feedbackRepo  *repository.FeedbackRepository
	userRepo      repository.UserRepositoryInterface
	workflow      *workflow.Workflow
	publisher     *SnapshotPublisher
	progressCache *cache.ProgressCache
}

func NewProjectHandler(
	projectRepo *repository.ProjectRepository,
	taskRepo *repository.TaskRepository,
	feedbackRepo *repository.FeedbackRepository,
	userRepo repository.UserRepositoryInterface,
	wf *workflow.Workflow,
	publisher *SnapshotPublisher,
	progressCache *cache.ProgressCache,
) *ProjectHandler {
	return &ProjectHandler{
		projectRepo:   projectRepo,
		taskRepo:      taskRepo,
		feedbackRepo:  feedbackRepo,
		userRepo:      userRepo,
		workflow:      wf,
		publisher:     publisher,
		progressCache: progressCache,
	}
}

// ProjectRequest carries project create/update input.
type ProjectRequest struct {
	Name        string    `json:"name" binding:"required,min=2"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" binding:"required"`
	MemberIDs   []string  `json:"member_ids"`
}

type ProjectResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DueDate     string         `json:"due_date"`
	OwnerID     string         `json:"owner_id"`
	Status      string         `json:"status"`
	Members     []UserResponse `json:"members"`
}

// ProjectDetailResponse adds the derived state the project page needs.
type ProjectDetailResponse struct {
	ProjectResponse
	Tasks                []TaskResponse   `json:"tasks"`
	Progress             progress.Summary `json:"progress"`
	AllTasksCompleted    bool             `json:"all_tasks_completed"`
	ReadyForReview       bool             `json:"ready_for_review"`
	FeedbackCount        int64            `json:"feedback_count"`
	MemberCount          int              `json:"member_count"`
	UserHasGivenFeedback bool             `json:"user_has_given_feedback"`
}

type FeedbackResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	UserAvatar string `json:"user_avatar,omitempty"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"created_at"`
}

func toProjectResponse(project *model.Project) ProjectResponse {
	members := make([]UserResponse, len(project.Members))
	for i := range project.Members {
		members[i] = toUserResponse(&project.Members[i])
	}
	return ProjectResponse{
		ID:          project.ID.String(),
		Name:        project.Name,
		Description: project.Description,
		DueDate:     project.DueDate.Format(time.RFC3339),
		OwnerID:     project.OwnerID.String(),
		Status:      project.Status,
		Members:     members,
	}
}

// resolveMembers loads the requested member set, always including the
// owner: the owner is permanently a member and cannot be removed.
func (h *ProjectHandler) resolveMembers(c *gin.Context, ownerID uuid.UUID, memberIDs []string) ([]model.User, bool) {
	ids := map[uuid.UUID]struct{}{ownerID: {}}
	for _, raw := range memberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID format"})
			return nil, false
		}
		ids[id] = struct{}{}
	}

	members := make([]model.User, 0, len(ids))
	for id := range ids {
		user, err := h.userRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return nil, false
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return nil, false
		}
		members = append(members, *user)
	}
	return members, true
}

// Create stores a new project. The creator becomes the owner and is
// always part of the member set; status starts in progress.
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	members, ok := h.resolveMembers(c, userID, req.MemberIDs)
	if !ok {
		return
	}

	project := &model.Project{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		OwnerID:     userID,
		Status:      model.StatusInProgress,
		Members:     members,
	}

	if err := h.projectRepo.Create(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, toProjectResponse(project))
}

// GetAll lists the caller's projects with their progress.
func (h *ProjectHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.projectRepo.GetForMember(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}

	type projectListItem struct {
		ProjectResponse
		Progress progress.Summary `json:"progress"`
	}

	response := make([]projectListItem, len(projects))
	for i := range projects {
		summary, err := h.projectProgress(c, projects[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute progress"})
			return
		}
		response[i] = projectListItem{
			ProjectResponse: toProjectResponse(&projects[i]),
			Progress:        summary,
		}
	}

	c.JSON(http.StatusOK, response)
}

// projectProgress returns the project's progress summary, cached when a
// cache is configured.
func (h *ProjectHandler) projectProgress(c *gin.Context, projectID uuid.UUID) (progress.Summary, error) {
	if summary, ok := h.progressCache.Get(c.Request.Context(), projectID); ok {
		return summary, nil
	}

	tasks, err := h.taskRepo.GetByProjectID(c.Request.Context(), projectID)
	if err != nil {
		return progress.Summary{}, err
	}

	summary := progress.Compute(tasks)
	h.progressCache.Set(c.Request.Context(), projectID, summary)
	return summary, nil
}

// GetByID returns the project detail with tasks, progress and feedback
// state. Reading also reconciles a missed completion flip, so a partial
// failure during feedback submission heals on the next observation.
func (h *ProjectHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return
	}

	if flipped, err := h.workflow.Reconcile(c.Request.Context(), projectID); err != nil {
		log.Printf("⚠️  Failed to reconcile project %s: %v", projectID, err)
	} else if flipped {
		h.publisher.Publish(c.Request.Context(), projectID)
	}

	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	tasks, err := h.taskRepo.GetByProjectID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	feedbackCount, err := h.feedbackRepo.CountByProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve feedback"})
		return
	}

	hasGiven, err := h.feedbackRepo.ExistsForMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve feedback"})
		return
	}

	summary := progress.Compute(tasks)
	h.progressCache.Set(c.Request.Context(), projectID, summary)

	response := ProjectDetailResponse{
		ProjectResponse:      toProjectResponse(project),
		Tasks:                toTaskResponses(tasks),
		Progress:             summary,
		AllTasksCompleted:    summary.AllCompleted(),
		ReadyForReview:       project.Status == model.StatusInProgress && summary.AllCompleted(),
		FeedbackCount:        feedbackCount,
		MemberCount:          len(project.Members),
		UserHasGivenFeedback: hasGiven,
	}

	c.JSON(http.StatusOK, response)
}

// Update edits project metadata and the member set. Any member may edit;
// the owner always stays in the member set.
func (h *ProjectHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return
	}

	members, ok := h.resolveMembers(c, project.OwnerID, req.MemberIDs)
	if !ok {
		return
	}

	project.Name = req.Name
	project.Description = req.Description
	project.DueDate = req.DueDate

	if err := h.projectRepo.Update(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}
	if err := h.projectRepo.ReplaceMembers(c.Request.Context(), project, members); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update members"})
		return
	}

	project.Members = members
	h.publisher.Publish(c.Request.Context(), projectID)

	c.JSON(http.StatusOK, toProjectResponse(project))
}

// Delete removes the project and everything it owns. Owner only.
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if project.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can delete a project"})
		return
	}

	if err := h.projectRepo.Delete(c.Request.Context(), projectID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	h.progressCache.Invalidate(c.Request.Context(), projectID)
	c.Status(http.StatusNoContent)
}

// GetFeedback lists the project's feedback with author details.
func (h *ProjectHandler) GetFeedback(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return
	}

	feedback, err := h.feedbackRepo.GetByProjectID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve feedback"})
		return
	}

	response := make([]FeedbackResponse, len(feedback))
	for i, fb := range feedback {
		response[i] = FeedbackResponse{
			ID:         fb.ID.String(),
			UserID:     fb.UserID.String(),
			UserName:   fb.User.Name,
			UserAvatar: fb.User.Avatar,
			Rating:     fb.Rating,
			Comment:    fb.Comment,
			CreatedAt:  fb.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetProgress returns just the progress summary, served from the cache
// when warm.
func (h *ProjectHandler) GetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return
	}

	summary, err := h.projectProgress(c, projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute progress"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
