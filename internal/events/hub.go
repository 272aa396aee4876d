// Package events fans project snapshots out to realtime subscribers.
// Every mutation publishes the full current state of the affected
// project; consumers replace their local copy with each snapshot instead
// of patching it.
package events

import (
	"sync"

	"github.com/google/uuid"

	"teamsync/internal/progress"
)

// Snapshot is the full current state of one project as delivered to
// subscribers after every change. It carries the same response shapes
// the REST endpoints serve; database rows never reach the wire directly.
type Snapshot struct {
	Project       ProjectState     `json:"project"`
	Tasks         []TaskState      `json:"tasks"`
	Progress      progress.Summary `json:"progress"`
	FeedbackCount int64            `json:"feedback_count"`
}

type ProjectState struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	DueDate     string        `json:"due_date"`
	OwnerID     string        `json:"owner_id"`
	Status      string        `json:"status"`
	Members     []MemberState `json:"members"`
}

type MemberState struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type TaskState struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Completed   bool    `json:"completed"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	CreatedBy   string  `json:"created_by"`
}

type subscriber struct {
	ch chan Snapshot
}

// Hub delivers snapshots per project. Slow subscribers drop snapshots
// rather than block publishers; the next snapshot is always a full
// replacement, so a dropped one is never missed state.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
}

// Subscribe registers for a project's snapshots. The returned cancel
// function tears the subscription down and closes the channel; after
// cancel, no further deliveries happen.
func (h *Hub) Subscribe(projectID uuid.UUID) (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, 8)}

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[*subscriber]struct{})
	}
	h.subs[projectID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[projectID], sub)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Publish sends a snapshot to every subscriber of the project.
func (h *Hub) Publish(projectID uuid.UUID, snapshot Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[projectID] {
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// SubscriberCount reports the active subscriptions for a project.
func (h *Hub) SubscriberCount(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}
