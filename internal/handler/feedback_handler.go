package handler

import (
	"errors"
	"net/http"
	"time"

	"teamsync/internal/repository"
	"teamsync/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FeedbackHandler struct {
	workflow  *workflow.Workflow
	publisher *SnapshotPublisher
}

func NewFeedbackHandler(wf *workflow.Workflow, publisher *SnapshotPublisher) *FeedbackHandler {
	return &FeedbackHandler{workflow: wf, publisher: publisher}
}

type SubmitFeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"required"`
}

type SubmitFeedbackResponse struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment"`
	CreatedAt        string `json:"created_at"`
	ProjectCompleted bool   `json:"project_completed"`
}

// Submit records the caller's completion feedback for a project. The
// workflow decides whether this submission also completes the project.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	feedback, completedNow, err := h.workflow.SubmitFeedback(c.Request.Context(), projectID, userID, req.Rating, req.Comment)
	if err != nil {
		var vErr *workflow.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, workflow.ErrDuplicateSubmission):
			c.JSON(http.StatusConflict, gin.H{"error": "You have already submitted feedback for this project"})
		case errors.Is(err, workflow.ErrNotEligible):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "All tasks must be completed before submitting feedback"})
		case errors.Is(err, workflow.ErrNotMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this project"})
		case errors.Is(err, repository.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit feedback"})
		}
		return
	}

	h.publisher.Publish(c.Request.Context(), projectID)

	c.JSON(http.StatusCreated, SubmitFeedbackResponse{
		ID:               feedback.ID.String(),
		ProjectID:        feedback.ProjectID.String(),
		Rating:           feedback.Rating,
		Comment:          feedback.Comment,
		CreatedAt:        feedback.CreatedAt.Format(time.RFC3339),
		ProjectCompleted: completedNow,
	})
}
