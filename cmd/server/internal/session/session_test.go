package session

import (
	"context"
	"errors"
	"testing"

	"github.com/acta-labs/acta/cmd/server/internal/ai"
	"github.com/acta-labs/acta/cmd/server/internal/audit"
	"github.com/acta-labs/acta/cmd/server/internal/store"
	"github.com/acta-labs/acta/pkg/logger"
)

// flakyStore wraps a real store and fails selected operations on demand.
type flakyStore struct {
	store.Store
	failAddMessage       bool
	failAssistantMessage bool
	failUpdateMeeting    bool
}

var errInjected = errors.New("injected store failure")

func (f *flakyStore) AddMessage(ctx context.Context, meetingID string, draft store.MessageDraft) (*store.Message, error) {
	if f.failAddMessage {
		return nil, errInjected
	}
	if f.failAssistantMessage && draft.Type == store.MessageAssistant {
		return nil, errInjected
	}
	return f.Store.AddMessage(ctx, meetingID, draft)
}

func (f *flakyStore) UpdateMeeting(ctx context.Context, id string, update store.MeetingUpdate) (*store.Meeting, error) {
	if f.failUpdateMeeting {
		return nil, errInjected
	}
	return f.Store.UpdateMeeting(ctx, id, update)
}

func newTestSession(t *testing.T, gateway ai.Gateway) (*Session, store.Store) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	log, err := logger.New(logger.Config{Level: "error"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if gateway == nil {
		gateway = ai.NewMockGateway()
	}
	return New(fs, gateway, audit.Nop{}, log), fs
}

func TestStartAdoptsMeeting(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	m, err := s.Start(ctx, "admin", "Sprint planning", "weekly", []string{"ana"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Status != store.MeetingInProgress {
		t.Errorf("expected in-progress, got %s", m.Status)
	}

	active := s.Active()
	if active == nil || active.ID != m.ID {
		t.Fatal("session did not adopt the meeting")
	}
	if len(s.Messages()) != 0 || len(s.Tasks()) != 0 {
		t.Error("start must clear message and task lists")
	}
}

func TestStartOverActiveMeetingReplacesIt(t *testing.T) {
	s, st := newTestSession(t, nil)
	ctx := context.Background()

	first, _ := s.Start(ctx, "admin", "standup", "", nil)
	s.RecordUserMessage(ctx, "ana", "necesito revisar el backlog", nil)
	s.AddTask(ctx, "ana", store.TaskDraft{Title: "deploy"})

	second, err := s.Start(ctx, "admin", "retro", "", nil)
	if err != nil {
		t.Fatalf("Start over an active meeting: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new meeting")
	}

	active := s.Active()
	if active == nil || active.ID != second.ID {
		t.Fatal("session must adopt the new meeting")
	}
	if len(s.Messages()) != 0 || len(s.Tasks()) != 0 {
		t.Error("starting over a non-empty meeting must clear the lists")
	}

	// the replaced meeting is abandoned, not completed
	old, err := st.GetMeeting(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetMeeting: %v", err)
	}
	if old.Status != store.MeetingInProgress {
		t.Errorf("replaced meeting must stay in progress, got %s", old.Status)
	}
}

func TestRecordUserMessageCreatesReplyAndTask(t *testing.T) {
	gateway := &ai.MockGateway{
		ClassifyFunc: func(ctx context.Context, text string) (*ai.Classification, error) {
			return &ai.Classification{
				Response: "He detectado una tarea: revisar el PR.",
				Category: "task",
				Tasks: []ai.TaskProposal{{
					Title:       "Revisar PR",
					Description: "antes del viernes",
					Assignee:    "Juan",
					DueDate:     "2026-09-04",
				}},
			}, nil
		},
	}
	s, _ := newTestSession(t, gateway)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	result, err := s.RecordUserMessage(ctx, "ana", "Necesito que Juan revise el PR antes del viernes", &store.Identity{ID: "u1", Name: "Ana"})
	if err != nil {
		t.Fatalf("RecordUserMessage: %v", err)
	}

	if result.UserMessage.Type != store.MessageUser {
		t.Error("expected user message")
	}
	if result.Reply == nil || result.Reply.Category != store.CategoryTask {
		t.Errorf("expected assistant reply with category task, got %+v", result.Reply)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(result.Tasks))
	}
	task := result.Tasks[0]
	if task.FromMessageID != result.UserMessage.ID {
		t.Error("task must reference the originating user message")
	}
	if task.Assignee == nil || task.Assignee.Name != "Juan" {
		t.Errorf("expected assignee Juan, got %+v", task.Assignee)
	}
	if task.DueDate == nil {
		t.Error("expected parsed due date")
	}

	if got := len(s.Messages()); got != 2 {
		t.Errorf("expected 2 messages in session, got %d", got)
	}
	if got := len(s.Tasks()); got != 1 {
		t.Errorf("expected 1 task in session, got %d", got)
	}
}

func TestRecordUserMessageSkipsDuplicateProposals(t *testing.T) {
	gateway := &ai.MockGateway{
		ClassifyFunc: func(ctx context.Context, text string) (*ai.Classification, error) {
			return &ai.Classification{
				Response: "Tarea detectada.",
				Category: "task",
				Tasks:    []ai.TaskProposal{{Title: "Revisar PR", Description: "x"}},
			}, nil
		},
	}
	s, _ := newTestSession(t, gateway)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	s.RecordUserMessage(ctx, "ana", "hay que revisar el PR", nil)
	second, err := s.RecordUserMessage(ctx, "ana", "repito, revisar el PR", nil)
	if err != nil {
		t.Fatalf("RecordUserMessage: %v", err)
	}
	if len(second.Tasks) != 0 {
		t.Errorf("near-duplicate proposal must be skipped, got %+v", second.Tasks)
	}
	if got := len(s.Tasks()); got != 1 {
		t.Errorf("expected 1 task total, got %d", got)
	}
}

func TestRecordUserMessageNoActiveMeeting(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if _, err := s.RecordUserMessage(context.Background(), "ana", "hola", nil); !errors.Is(err, ErrNoActiveMeeting) {
		t.Errorf("expected ErrNoActiveMeeting, got %v", err)
	}
}

func TestClassifyFailureKeepsUserMessage(t *testing.T) {
	gateway := &ai.MockGateway{
		ClassifyFunc: func(ctx context.Context, text string) (*ai.Classification, error) {
			return nil, errors.New("provider down")
		},
	}
	s, st := newTestSession(t, gateway)
	ctx := context.Background()
	m, _ := s.Start(ctx, "admin", "standup", "", nil)

	result, err := s.RecordUserMessage(ctx, "ana", "hola equipo", nil)
	if err != nil {
		t.Fatalf("RecordUserMessage must succeed despite classify failure: %v", err)
	}
	if result.Reply != nil || len(result.Tasks) != 0 {
		t.Error("no reply or tasks expected on classify failure")
	}

	persisted, _ := st.ListMessages(ctx, m.ID)
	if len(persisted) != 1 || persisted[0].Type != store.MessageUser {
		t.Errorf("user message must be persisted, got %+v", persisted)
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("expected 1 message in session, got %d", got)
	}
}

func TestRecordUserMessagePersistFailureAborts(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	// swap in a store that fails message writes
	flaky := &flakyStore{Store: s.store, failAddMessage: true}
	s.store = flaky

	if _, err := s.RecordUserMessage(ctx, "ana", "hola", nil); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if got := len(s.Messages()); got != 0 {
		t.Errorf("session state must be unchanged on persist failure, got %d messages", got)
	}
}

func TestReplyPersistFailureStillCreatesTasks(t *testing.T) {
	gateway := &ai.MockGateway{
		ClassifyFunc: func(ctx context.Context, text string) (*ai.Classification, error) {
			return &ai.Classification{
				Response: "Tarea detectada.",
				Category: "task",
				Tasks:    []ai.TaskProposal{{Title: "Revisar PR"}},
			}, nil
		},
	}
	s, _ := newTestSession(t, gateway)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	// only assistant writes fail; the user message goes through
	flaky := &flakyStore{Store: s.store, failAssistantMessage: true}
	s.store = flaky

	result, err := s.RecordUserMessage(ctx, "ana", "hay que revisar el PR", nil)
	if err != nil {
		t.Fatalf("RecordUserMessage: %v", err)
	}
	if result.Reply != nil {
		t.Error("no reply expected when its persistence fails")
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Title != "Revisar PR" {
		t.Fatalf("proposals must become tasks despite the lost reply, got %+v", result.Tasks)
	}
	if got := len(s.Tasks()); got != 1 {
		t.Errorf("expected 1 task in session, got %d", got)
	}
}

func TestFilteredMessages(t *testing.T) {
	replies := []ai.Classification{
		{Response: "una tarea", Category: "task"},
		{Response: "una definición", Category: "definition"},
	}
	i := 0
	gateway := &ai.MockGateway{
		ClassifyFunc: func(ctx context.Context, text string) (*ai.Classification, error) {
			c := replies[i%len(replies)]
			i++
			return &c, nil
		},
	}
	s, _ := newTestSession(t, gateway)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)
	s.RecordUserMessage(ctx, "ana", "uno", nil)
	s.RecordUserMessage(ctx, "ana", "dos", nil)

	all := s.FilteredMessages("")
	if len(all) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(all))
	}
	tasks := s.FilteredMessages(store.CategoryTask)
	if len(tasks) != 1 || tasks[0].Content != "una tarea" {
		t.Errorf("expected exactly the task reply, got %+v", tasks)
	}
	if got := s.FilteredMessages(store.CategoryBlocker); len(got) != 0 {
		t.Errorf("expected no blocker messages, got %d", len(got))
	}
}

func TestAddTaskAndUpdateStatus(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	task, err := s.AddTask(ctx, "ana", store.TaskDraft{Title: "deploy"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.Status != store.TaskPending {
		t.Errorf("expected default pending, got %s", task.Status)
	}

	updated, err := s.UpdateTaskStatus(ctx, "ana", task.ID, store.TaskCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if updated.Status != store.TaskCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
	if got := s.Tasks()[0].Status; got != store.TaskCompleted {
		t.Errorf("in-memory task not patched, got %s", got)
	}

	// repeat is idempotent
	if _, err := s.UpdateTaskStatus(ctx, "ana", task.ID, store.TaskCompleted); err != nil {
		t.Fatalf("repeated UpdateTaskStatus: %v", err)
	}
}

func TestEndSummarizesAndClears(t *testing.T) {
	gateway := &ai.MockGateway{
		SummarizeFunc: func(ctx context.Context, transcript []ai.TranscriptEntry) (string, error) {
			if len(transcript) == 0 {
				t.Error("expected non-empty transcript")
			}
			return "Resumen de la reunión.", nil
		},
	}
	s, st := newTestSession(t, gateway)
	ctx := context.Background()
	m, _ := s.Start(ctx, "admin", "standup", "", nil)
	s.RecordUserMessage(ctx, "ana", "buenos días", nil)

	result, err := s.End(ctx, "admin")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if result.Meeting.Status != store.MeetingCompleted {
		t.Errorf("expected completed meeting, got %s", result.Meeting.Status)
	}
	if result.Summary != "Resumen de la reunión." {
		t.Errorf("unexpected summary: %s", result.Summary)
	}
	if result.SummaryMessage == nil || result.SummaryMessage.Category != store.CategoryGeneral {
		t.Errorf("summary must be persisted as assistant/general, got %+v", result.SummaryMessage)
	}

	if s.Active() != nil {
		t.Error("session must be idle after end")
	}
	if len(s.Messages()) != 0 || len(s.Tasks()) != 0 {
		t.Error("end must clear message and task lists")
	}

	persisted, _ := st.ListMessages(ctx, m.ID)
	last := persisted[len(persisted)-1]
	if last.Type != store.MessageAssistant || last.Content != "Resumen de la reunión." {
		t.Errorf("summary message not persisted last, got %+v", last)
	}
}

func TestEndWithNoMessagesStillSummarizes(t *testing.T) {
	var got []ai.TranscriptEntry
	called := false
	gateway := &ai.MockGateway{
		SummarizeFunc: func(ctx context.Context, transcript []ai.TranscriptEntry) (string, error) {
			called = true
			got = transcript
			return "No se pudo generar un resumen.", nil
		},
	}
	s, st := newTestSession(t, gateway)
	ctx := context.Background()
	m, _ := s.Start(ctx, "admin", "empty", "", nil)

	result, err := s.End(ctx, "admin")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !called {
		t.Fatal("summarizer must run even for an empty meeting")
	}
	if len(got) != 0 {
		t.Errorf("expected an empty transcript, got %d entries", len(got))
	}
	if result.SummaryMessage == nil {
		t.Fatal("summary must be persisted for an empty meeting")
	}

	persisted, _ := st.ListMessages(ctx, m.ID)
	if len(persisted) != 1 || persisted[0].Type != store.MessageAssistant {
		t.Errorf("expected only the summary message, got %+v", persisted)
	}
}

func TestEndCompletionFailureKeepsSession(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)

	flaky := &flakyStore{Store: s.store, failUpdateMeeting: true}
	s.store = flaky

	if _, err := s.End(ctx, "admin"); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if s.Active() == nil {
		t.Error("session must keep the meeting when completion fails")
	}
}

func TestEndSummaryFailureStillEnds(t *testing.T) {
	gateway := &ai.MockGateway{
		SummarizeFunc: func(ctx context.Context, transcript []ai.TranscriptEntry) (string, error) {
			return "", errors.New("provider down")
		},
	}
	s, _ := newTestSession(t, gateway)
	ctx := context.Background()
	s.Start(ctx, "admin", "standup", "", nil)
	s.RecordUserMessage(ctx, "ana", "hola", nil)

	result, err := s.End(ctx, "admin")
	if err != nil {
		t.Fatalf("End must succeed despite summary failure: %v", err)
	}
	if result.SummaryError == "" {
		t.Error("summary failure must be reported in the result")
	}
	if result.Meeting.Status != store.MeetingCompleted {
		t.Error("meeting must still complete")
	}
	if s.Active() != nil {
		t.Error("session must be idle after end")
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	log, _ := logger.New(logger.Config{Level: "error"})

	// first session leaves a meeting in progress
	s1 := New(fs, ai.NewMockGateway(), audit.Nop{}, log)
	m, _ := s1.Start(ctx, "admin", "interrupted", "", nil)
	s1.RecordUserMessage(ctx, "ana", "buenos días", nil)
	s1.AddTask(ctx, "ana", store.TaskDraft{Title: "pendiente"})

	// a fresh session over the same store adopts it
	s2 := New(fs, ai.NewMockGateway(), audit.Nop{}, log)
	resumed, err := s2.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed == nil || resumed.ID != m.ID {
		t.Fatal("expected the in-progress meeting to be resumed")
	}
	if len(s2.Messages()) == 0 {
		t.Error("resume must load messages")
	}
	if len(s2.Tasks()) != 1 || s2.Tasks()[0].Title != "pendiente" {
		t.Errorf("resume must load tasks, got %+v", s2.Tasks())
	}
}

func TestResumeNothingToDo(t *testing.T) {
	s, _ := newTestSession(t, nil)
	resumed, err := s.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed != nil || s.Active() != nil {
		t.Error("expected idle session when no meeting is in progress")
	}
}
