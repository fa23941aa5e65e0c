package model

import "time"

// Priority orders queue items for waiting agents.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// IsValid returns true if the priority is a known queue priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// AgentStatus is the availability an agent advertises to the hub.
type AgentStatus string

const (
	AgentOnline AgentStatus = "online"
	AgentAway   AgentStatus = "away"
	AgentBusy   AgentStatus = "busy"
)

// IsValid returns true if the status is a known agent status.
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentOnline, AgentAway, AgentBusy:
		return true
	}
	return false
}

// QueueItem is a customer conversation waiting for a human agent. The queue
// is owned by the hub; agent consoles mirror it read-only.
type QueueItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	History   []Message `json:"conversation_history"`
	Reason    string    `json:"reason"`
	Priority  Priority  `json:"priority"`
	AddedAt   time.Time `json:"added_at"`
}

// ActiveSession is a live customer/agent pairing, created when an agent
// accepts a queue item and destroyed when the session ends.
type ActiveSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Messages  []Message `json:"messages"`
}
