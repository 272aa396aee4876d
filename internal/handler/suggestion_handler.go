package handler

import (
	"net/http"

	"teamsync/internal/suggest"

	"github.com/gin-gonic/gin"
)

type SuggestionHandler struct {
	advisor suggest.Advisor
}

// NewSuggestionHandler accepts a nil advisor; the endpoint then reports
// the feature as unavailable instead of failing at startup.
func NewSuggestionHandler(advisor suggest.Advisor) *SuggestionHandler {
	return &SuggestionHandler{advisor: advisor}
}

type SuggestionRequest struct {
	Text string `json:"text" binding:"required,min=10"`
}

type SuggestionResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// Analyze runs the text through the suggestion advisor.
func (h *SuggestionHandler) Analyze(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	if h.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Suggestion service is not configured"})
		return
	}

	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	suggestions, err := h.advisor.Suggest(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to analyze text"})
		return
	}

	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	c.JSON(http.StatusOK, SuggestionResponse{Suggestions: suggestions})
}
