package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore persists every collection as one JSON document under baseDir:
// meetings.json, messages.json, tasks.json. Mutations rewrite the whole
// document through a tmp file and rename.
type FileStore struct {
	mu       sync.RWMutex
	baseDir  string
	meetings map[string]*Meeting
	messages map[string]*Message
	tasks    map[string]*Task
}

// NewFileStore opens (or initializes) a file store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &FileStore{
		baseDir:  baseDir,
		meetings: map[string]*Meeting{},
		messages: map[string]*Message{},
		tasks:    map[string]*Task{},
	}
	if err := loadCollection(s.path("meetings.json"), s.meetings, func(m *Meeting) string { return m.ID }); err != nil {
		return nil, err
	}
	if err := loadCollection(s.path("messages.json"), s.messages, func(m *Message) string { return m.ID }); err != nil {
		return nil, err
	}
	if err := loadCollection(s.path("tasks.json"), s.tasks, func(t *Task) string { return t.ID }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.baseDir, name)
}

func loadCollection[T any](path string, dst map[string]T, key func(T) string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // first run
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	var arr []T
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	for _, item := range arr {
		dst[key(item)] = item
	}
	return nil
}

func saveCollection[T any](path string, src map[string]T) error {
	arr := make([]T, 0, len(src))
	for _, item := range src {
		arr = append(arr, item)
	}
	b, err := json.MarshalIndent(arr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename tmp file: %w", err)
	}
	return nil
}

// CreateMeeting inserts a new meeting in status planned.
func (s *FileStore) CreateMeeting(_ context.Context, title, description string, participants []string) (*Meeting, error) {
	if title == "" {
		return nil, fmt.Errorf("title required")
	}
	if participants == nil {
		participants = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Meeting{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		Status:       MeetingPlanned,
		Participants: participants,
		CreatedAt:    time.Now().UTC(),
	}
	s.meetings[m.ID] = m
	if err := saveCollection(s.path("meetings.json"), s.meetings); err != nil {
		delete(s.meetings, m.ID)
		return nil, err
	}
	cpy := *m
	return &cpy, nil
}

// UpdateMeeting applies the non-nil fields of update.
func (s *FileStore) UpdateMeeting(_ context.Context, id string, update MeetingUpdate) (*Meeting, error) {
	if update.Status != nil && !ValidMeetingStatus(*update.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *update.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}

	prev := *m
	if update.Title != nil {
		m.Title = *update.Title
	}
	if update.Description != nil {
		m.Description = *update.Description
	}
	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.Participants != nil {
		m.Participants = update.Participants
	}

	if err := saveCollection(s.path("meetings.json"), s.meetings); err != nil {
		*m = prev
		return nil, err
	}
	cpy := *m
	return &cpy, nil
}

// GetMeeting returns a copy of the meeting with the given id.
func (s *FileStore) GetMeeting(_ context.Context, id string) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", id, ErrNotFound)
	}
	cpy := *m
	return &cpy, nil
}

// ListMeetings returns all meetings, newest first.
func (s *FileStore) ListMeetings(_ context.Context) ([]*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		cpy := *m
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AddMessage persists a message under the given meeting and returns the
// canonical stored record.
func (s *FileStore) AddMessage(_ context.Context, meetingID string, draft MessageDraft) (*Message, error) {
	if draft.Type != MessageUser && draft.Type != MessageAssistant {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, draft.Type)
	}
	if draft.Category != "" {
		if draft.Type != MessageAssistant {
			return nil, ErrInvalidCategory
		}
		if !ValidCategory(draft.Category) {
			return nil, fmt.Errorf("%w: invalid category %s", ErrInvalidStatus, draft.Category)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meetingID]; !ok {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
	}

	msg := &Message{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Type:      draft.Type,
		Content:   draft.Content,
		Timestamp: time.Now().UTC(),
		Category:  draft.Category,
	}
	if draft.Sender != nil {
		sender := *draft.Sender
		msg.Sender = &sender
	}

	s.messages[msg.ID] = msg
	if err := saveCollection(s.path("messages.json"), s.messages); err != nil {
		delete(s.messages, msg.ID)
		return nil, err
	}
	cpy := *msg
	return &cpy, nil
}

// ListMessages returns the meeting's messages ordered by timestamp ascending.
func (s *FileStore) ListMessages(_ context.Context, meetingID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Message{}
	for _, m := range s.messages {
		if m.MeetingID == meetingID {
			cpy := *m
			out = append(out, &cpy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AddTask persists a task under the given meeting. An empty draft status
// defaults to pending. A non-empty FromMessageID must reference a message
// in the same meeting.
func (s *FileStore) AddTask(_ context.Context, meetingID string, draft TaskDraft) (*Task, error) {
	status := draft.Status
	if status == "" {
		status = TaskPending
	}
	if !ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[meetingID]; !ok {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
	}
	if draft.FromMessageID != "" {
		origin, ok := s.messages[draft.FromMessageID]
		if !ok || origin.MeetingID != meetingID {
			return nil, ErrBadReference
		}
	}

	t := &Task{
		ID:            uuid.NewString(),
		MeetingID:     meetingID,
		Title:         draft.Title,
		Description:   draft.Description,
		Status:        status,
		DueDate:       draft.DueDate,
		CreatedAt:     time.Now().UTC(),
		FromMessageID: draft.FromMessageID,
	}
	if draft.Assignee != nil {
		assignee := *draft.Assignee
		t.Assignee = &assignee
	}

	s.tasks[t.ID] = t
	if err := saveCollection(s.path("tasks.json"), s.tasks); err != nil {
		delete(s.tasks, t.ID)
		return nil, err
	}
	cpy := *t
	return &cpy, nil
}

// ListTasks returns tasks newest first; an empty meetingID selects all.
func (s *FileStore) ListTasks(_ context.Context, meetingID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Task{}
	for _, t := range s.tasks {
		if meetingID == "" || t.MeetingID == meetingID {
			cpy := *t
			out = append(out, &cpy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetTask returns a copy of the task with the given id.
func (s *FileStore) GetTask(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	cpy := *t
	return &cpy, nil
}

// UpdateTaskStatus transitions the task to the given status.
func (s *FileStore) UpdateTaskStatus(_ context.Context, id string, status TaskStatus) (*Task, error) {
	if !ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	prev := t.Status
	t.Status = status
	if err := saveCollection(s.path("tasks.json"), s.tasks); err != nil {
		t.Status = prev
		return nil, err
	}
	cpy := *t
	return &cpy, nil
}
