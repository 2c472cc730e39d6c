package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s, dir
}

func TestCreateAndUpdateMeeting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	m, err := s.CreateMeeting(ctx, "Sprint planning", "weekly", []string{"ana", "juan"})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if m.ID == "" {
		t.Error("expected generated meeting id")
	}
	if m.Status != MeetingPlanned {
		t.Errorf("expected status planned, got %s", m.Status)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected server-assigned created_at")
	}

	status := MeetingInProgress
	updated, err := s.UpdateMeeting(ctx, m.ID, MeetingUpdate{Status: &status})
	if err != nil {
		t.Fatalf("UpdateMeeting: %v", err)
	}
	if updated.Status != MeetingInProgress {
		t.Errorf("expected status in-progress, got %s", updated.Status)
	}
	if updated.Title != "Sprint planning" {
		t.Errorf("title should be unchanged, got %s", updated.Title)
	}

	if _, err := s.UpdateMeeting(ctx, "missing", MeetingUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing meeting, got %v", err)
	}

	bad := MeetingStatus("archived")
	if _, err := s.UpdateMeeting(ctx, m.ID, MeetingUpdate{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestListMeetingsNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateMeeting(ctx, "first", "", nil)
	// created_at granularity is nanoseconds but force distinct timestamps
	time.Sleep(2 * time.Millisecond)
	second, _ := s.CreateMeeting(ctx, "second", "", nil)

	list, err := s.ListMeetings(ctx)
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 meetings, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("expected newest-first ordering")
	}
}

func TestAddMessageValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "standup", "", nil)

	if _, err := s.AddMessage(ctx, m.ID, MessageDraft{Type: "bot", Content: "hi"}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}

	if _, err := s.AddMessage(ctx, m.ID, MessageDraft{Type: MessageUser, Content: "hola", Category: CategoryTask}); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory for categorized user message, got %v", err)
	}

	if _, err := s.AddMessage(ctx, "missing", MessageDraft{Type: MessageUser, Content: "hola"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	msg, err := s.AddMessage(ctx, m.ID, MessageDraft{
		Type:    MessageUser,
		Content: "hola equipo",
		Sender:  &Identity{ID: "u1", Name: "Ana"},
	})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Error("expected server-assigned id and timestamp")
	}
	if msg.Sender == nil || msg.Sender.Name != "Ana" {
		t.Error("expected sender to survive the round trip")
	}

	reply, err := s.AddMessage(ctx, m.ID, MessageDraft{
		Type:     MessageAssistant,
		Content:  "Tarea detectada",
		Category: CategoryTask,
	})
	if err != nil {
		t.Fatalf("AddMessage assistant: %v", err)
	}
	if reply.Category != CategoryTask {
		t.Errorf("expected category task, got %s", reply.Category)
	}
}

func TestListMessagesAscending(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "standup", "", nil)

	first, _ := s.AddMessage(ctx, m.ID, MessageDraft{Type: MessageUser, Content: "uno"})
	time.Sleep(2 * time.Millisecond)
	second, _ := s.AddMessage(ctx, m.ID, MessageDraft{Type: MessageUser, Content: "dos"})

	list, err := s.ListMessages(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Error("expected ascending timestamp ordering")
	}
}

func TestAddTaskReferences(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "standup", "", nil)
	other, _ := s.CreateMeeting(ctx, "retro", "", nil)
	msg, _ := s.AddMessage(ctx, m.ID, MessageDraft{Type: MessageUser, Content: "revisar PR"})

	task, err := s.AddTask(ctx, m.ID, TaskDraft{Title: "Revisar PR", FromMessageID: msg.ID})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.Status != TaskPending {
		t.Errorf("expected default status pending, got %s", task.Status)
	}
	if task.FromMessageID != msg.ID {
		t.Errorf("expected from_message_id %s, got %s", msg.ID, task.FromMessageID)
	}

	if _, err := s.AddTask(ctx, other.ID, TaskDraft{Title: "cross", FromMessageID: msg.ID}); !errors.Is(err, ErrBadReference) {
		t.Errorf("expected ErrBadReference for cross-meeting message, got %v", err)
	}
	if _, err := s.AddTask(ctx, m.ID, TaskDraft{Title: "bad", Status: "done"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "standup", "", nil)
	task, _ := s.AddTask(ctx, m.ID, TaskDraft{Title: "deploy"})

	updated, err := s.UpdateTaskStatus(ctx, task.ID, TaskCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if updated.Status != TaskCompleted {
		t.Errorf("expected status completed, got %s", updated.Status)
	}

	// idempotent
	again, err := s.UpdateTaskStatus(ctx, task.ID, TaskCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus repeat: %v", err)
	}
	if again.Status != TaskCompleted {
		t.Errorf("expected status completed after repeat, got %s", again.Status)
	}

	if _, err := s.UpdateTaskStatus(ctx, "missing", TaskCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReloadFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	m, _ := s1.CreateMeeting(ctx, "persisted", "", []string{"ana"})
	msg, _ := s1.AddMessage(ctx, m.ID, MessageDraft{Type: MessageUser, Content: "hola"})
	task, _ := s1.AddTask(ctx, m.ID, TaskDraft{Title: "seguir", FromMessageID: msg.ID})

	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore reload: %v", err)
	}

	got, err := s2.GetMeeting(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMeeting after reload: %v", err)
	}
	if got.Title != "persisted" {
		t.Errorf("expected title persisted, got %s", got.Title)
	}

	msgs, _ := s2.ListMessages(ctx, m.ID)
	if len(msgs) != 1 || msgs[0].Content != "hola" {
		t.Errorf("expected reloaded message, got %+v", msgs)
	}

	gotTask, err := s2.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask after reload: %v", err)
	}
	if gotTask.FromMessageID != msg.ID {
		t.Errorf("expected from_message_id to survive reload, got %s", gotTask.FromMessageID)
	}
}

func TestListTasksAllMeetings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	m1, _ := s.CreateMeeting(ctx, "a", "", nil)
	m2, _ := s.CreateMeeting(ctx, "b", "", nil)
	s.AddTask(ctx, m1.ID, TaskDraft{Title: "t1"})
	time.Sleep(2 * time.Millisecond)
	s.AddTask(ctx, m2.ID, TaskDraft{Title: "t2"})

	all, err := s.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}
	if all[0].Title != "t2" {
		t.Error("expected newest-first ordering")
	}

	only, _ := s.ListTasks(ctx, m1.ID)
	if len(only) != 1 || only[0].Title != "t1" {
		t.Errorf("expected only m1 tasks, got %+v", only)
	}
}
