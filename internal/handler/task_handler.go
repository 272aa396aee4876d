package handler

import (
	"errors"
	"net/http"
	"time"

	"teamsync/internal/model"
	"teamsync/internal/repository"
	"teamsync/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	taskRepo    *repository.TaskRepository
	projectRepo *repository.ProjectRepository
	publisher   *SnapshotPublisher
}

func NewTaskHandler(
	taskRepo *repository.TaskRepository,
	projectRepo *repository.ProjectRepository,
	publisher *SnapshotPublisher,
) *TaskHandler {
	return &TaskHandler{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		publisher:   publisher,
	}
}

// TaskRequest carries task create/update input.
type TaskRequest struct {
	Title       string    `json:"title" binding:"required,min=3"`
	Description string    `json:"description"`
	ProjectID   string    `json:"project_id" binding:"required,uuid"`
	DueDate     time.Time `json:"due_date" binding:"required"`
	AssigneeID  *string   `json:"assignee_id"`
}

type TaskCompletionRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Completed   bool    `json:"completed"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	CreatedBy   string  `json:"created_by"`
}

func toTaskResponse(task *model.Task) TaskResponse {
	response := TaskResponse{
		ID:          task.ID.String(),
		ProjectID:   task.ProjectID.String(),
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate.Format(time.RFC3339),
		Completed:   task.Completed,
		CreatedBy:   task.CreatedBy.String(),
	}
	if task.AssigneeID != nil {
		assigneeID := task.AssigneeID.String()
		response.AssigneeID = &assigneeID
	}
	return response
}

func toTaskResponses(tasks []model.Task) []TaskResponse {
	response := make([]TaskResponse, len(tasks))
	for i := range tasks {
		response[i] = toTaskResponse(&tasks[i])
	}
	return response
}

// loadMutableProject fetches the project and runs the shared guards for
// task mutations: the caller must be a member and the project must not
// be completed. Responses are written here on failure.
func (h *TaskHandler) loadMutableProject(c *gin.Context, projectID, userID uuid.UUID) (*model.Project, bool) {
	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return nil, false
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return nil, false
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return nil, false
	}

	if err := workflow.EnsureMutable(project); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Project is completed, tasks can no longer be changed"})
		return nil, false
	}

	return project, true
}

// resolveAssignee validates the optional assignee: it must parse and be
// a member of the project.
func (h *TaskHandler) resolveAssignee(c *gin.Context, project *model.Project, raw *string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}

	assigneeID, err := uuid.Parse(*raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignee ID format"})
		return nil, false
	}

	for _, m := range project.Members {
		if m.ID == assigneeID {
			return &assigneeID, true
		}
	}

	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Assignee must be a member of the project"})
	return nil, false
}

// Create adds a task to a project.
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	project, ok := h.loadMutableProject(c, projectID, userID)
	if !ok {
		return
	}

	if err := workflow.ValidateTaskDueDate(project, req.DueDate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	assigneeID, ok := h.resolveAssignee(c, project, req.AssigneeID)
	if !ok {
		return
	}

	task := &model.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		AssigneeID:  assigneeID,
		CreatedBy:   userID,
	}

	if err := h.taskRepo.Create(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	h.publisher.InvalidateProgress(c.Request.Context(), projectID)
	h.publisher.Publish(c.Request.Context(), projectID)

	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetByID retrieves a single task.
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	isMember, err := h.projectRepo.IsMember(c.Request.Context(), task.ProjectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// Update edits a task's fields.
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	// Tasks cannot be moved between projects.
	project, ok := h.loadMutableProject(c, task.ProjectID, userID)
	if !ok {
		return
	}

	if err := workflow.ValidateTaskDueDate(project, req.DueDate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	assigneeID, ok := h.resolveAssignee(c, project, req.AssigneeID)
	if !ok {
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	task.DueDate = req.DueDate
	task.AssigneeID = assigneeID

	if err := h.taskRepo.Update(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	h.publisher.InvalidateProgress(c.Request.Context(), task.ProjectID)
	h.publisher.Publish(c.Request.Context(), task.ProjectID)

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// SetCompleted toggles a task's completion flag.
func (h *TaskHandler) SetCompleted(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	if _, ok := h.loadMutableProject(c, task.ProjectID, userID); !ok {
		return
	}

	if err := h.taskRepo.SetCompleted(c.Request.Context(), taskID, *req.Completed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	task.Completed = *req.Completed
	h.publisher.InvalidateProgress(c.Request.Context(), task.ProjectID)
	h.publisher.Publish(c.Request.Context(), task.ProjectID)

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	if _, ok := h.loadMutableProject(c, task.ProjectID, userID); !ok {
		return
	}

	if err := h.taskRepo.Delete(c.Request.Context(), taskID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	h.publisher.InvalidateProgress(c.Request.Context(), task.ProjectID)
	h.publisher.Publish(c.Request.Context(), task.ProjectID)

	c.Status(http.StatusNoContent)
}
