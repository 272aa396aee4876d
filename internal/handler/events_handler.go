package handler

import (
	"errors"
	"io"
	"net/http"

	"teamsync/internal/events"
	"teamsync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventsHandler struct {
	hub         *events.Hub
	projectRepo *repository.ProjectRepository
	publisher   *SnapshotPublisher
}

func NewEventsHandler(hub *events.Hub, projectRepo *repository.ProjectRepository, publisher *SnapshotPublisher) *EventsHandler {
	return &EventsHandler{hub: hub, projectRepo: projectRepo, publisher: publisher}
}

// Stream delivers project snapshots over server-sent events. The first
// event is the current state; every mutation afterwards pushes a fresh
// snapshot. The subscription is torn down when the client disconnects.
func (h *EventsHandler) Stream(c *gin.Context) {
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

	initial, err := h.publisher.Build(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		}
		return
	}

	ch, cancel := h.hub.Subscribe(projectID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("snapshot", initial)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("snapshot", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
