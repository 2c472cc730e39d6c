package store

import (
	"errors"
	"time"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingPlanned    MeetingStatus = "planned"
	MeetingInProgress MeetingStatus = "in-progress"
	MeetingCompleted  MeetingStatus = "completed"
)

// MessageType is the author kind of a message.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// MessageCategory is the assistant classification of a message.
type MessageCategory string

const (
	CategoryTask       MessageCategory = "task"
	CategoryDefinition MessageCategory = "definition"
	CategoryBlocker    MessageCategory = "blocker"
	CategoryGeneral    MessageCategory = "general"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// Identity describes a participant attached to a message or task.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Meeting is a persisted meeting record. IDs and timestamps are assigned
// by the store.
type Meeting struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       MeetingStatus `json:"status"`
	Participants []string      `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Message is a persisted meeting message. Category is set only for
// assistant messages; Sender only for user messages.
type Message struct {
	ID        string          `json:"id"`
	MeetingID string          `json:"meeting_id"`
	Type      MessageType     `json:"type"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Sender    *Identity       `json:"sender,omitempty"`
	Category  MessageCategory `json:"category,omitempty"`
}

// Task is a persisted task record. FromMessageID back-references the
// message the task was extracted from, when there is one.
type Task struct {
	ID            string     `json:"id"`
	MeetingID     string     `json:"meeting_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        TaskStatus `json:"status"`
	Assignee      *Identity  `json:"assignee,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FromMessageID string     `json:"from_message_id,omitempty"`
}

// MessageDraft is the caller-supplied part of a new message.
type MessageDraft struct {
	Type     MessageType
	Content  string
	Sender   *Identity
	Category MessageCategory
}

// TaskDraft is the caller-supplied part of a new task. An empty Status
// defaults to pending.
type TaskDraft struct {
	Title         string
	Description   string
	Status        TaskStatus
	Assignee      *Identity
	DueDate       *time.Time
	FromMessageID string
}

// MeetingUpdate carries the mutable meeting fields; nil means unchanged.
type MeetingUpdate struct {
	Title        *string
	Description  *string
	Status       *MeetingStatus
	Participants []string
}

// Sentinel errors shared by store implementations.
var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidType     = errors.New("invalid message type")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidCategory = errors.New("category is only valid on assistant messages")
	ErrBadReference    = errors.New("from_message_id does not reference a message in this meeting")
)

// ValidMeetingStatus reports whether s is a known meeting status.
func ValidMeetingStatus(s MeetingStatus) bool {
	switch s {
	case MeetingPlanned, MeetingInProgress, MeetingCompleted:
		return true
	}
	return false
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known message category.
func ValidCategory(c MessageCategory) bool {
	switch c {
	case CategoryTask, CategoryDefinition, CategoryBlocker, CategoryGeneral:
		return true
	}
	return false
}
