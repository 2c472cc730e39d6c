// Package session holds the active meeting and orchestrates the message,
// task, and summary flows around it. The server runs exactly one session;
// at most one meeting is active at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/acta-labs/acta/cmd/server/internal/ai"
	"github.com/acta-labs/acta/cmd/server/internal/audit"
	"github.com/acta-labs/acta/cmd/server/internal/dedup"
	"github.com/acta-labs/acta/cmd/server/internal/store"
	"github.com/acta-labs/acta/pkg/metrics"
)

// ErrNoActiveMeeting is returned by operations that need a meeting in
// progress.
var ErrNoActiveMeeting = errors.New("no active meeting")

// Session is the meeting orchestrator. Mutating operations serialize on a
// weighted semaphore so overlapping calls cannot interleave their store
// and AI round trips.
type Session struct {
	store store.Store
	ai    ai.Gateway
	audit audit.Logger
	log   *slog.Logger

	sem *semaphore.Weighted

	mu       sync.RWMutex
	meeting  *store.Meeting
	messages []*store.Message
	tasks    []*store.Task
}

// New creates an idle session.
func New(s store.Store, gateway ai.Gateway, auditLog audit.Logger, log *slog.Logger) *Session {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Session{
		store:    s,
		ai:       gateway,
		audit:    auditLog,
		log:      log,
		sem:      semaphore.NewWeighted(1),
		messages: []*store.Message{},
		tasks:    []*store.Task{},
	}
}

// RecordResult is the outcome of RecordUserMessage. Reply and Tasks are
// nil when classification was skipped or failed.
type RecordResult struct {
	UserMessage *store.Message `json:"user_message"`
	Reply       *store.Message `json:"reply,omitempty"`
	Tasks       []*store.Task  `json:"tasks,omitempty"`
}

// EndResult is the outcome of End. Summary and SummaryMessage are empty
// when summary generation or persistence failed after the meeting was
// already completed.
type EndResult struct {
	Meeting        *store.Meeting `json:"meeting"`
	Summary        string         `json:"summary,omitempty"`
	SummaryMessage *store.Message `json:"summary_message,omitempty"`
	SummaryError   string         `json:"summary_error,omitempty"`
}

// Busy reports whether a mutating operation is currently running. The
// answer is advisory; it can be stale by the time the caller acts on it.
func (s *Session) Busy() bool {
	if s.sem.TryAcquire(1) {
		s.sem.Release(1)
		return false
	}
	return true
}

// Active returns the meeting in progress, or nil.
func (s *Session) Active() *store.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meeting == nil {
		return nil
	}
	cpy := *s.meeting
	return &cpy
}

// Messages returns a snapshot of the active meeting's messages in
// chronological order.
func (s *Session) Messages() []*store.Message {
	return s.FilteredMessages("")
}

// FilteredMessages returns the active meeting's messages whose category
// matches. An empty category returns everything; user messages carry no
// category and only appear in the unfiltered view.
func (s *Session) FilteredMessages(category store.MessageCategory) []*store.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*store.Message{}
	for _, m := range s.messages {
		if category == "" || m.Category == category {
			cpy := *m
			out = append(out, &cpy)
		}
	}
	return out
}

// Tasks returns a snapshot of the active meeting's tasks, in the order
// they were created.
func (s *Session) Tasks() []*store.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cpy := *t
		out = append(out, &cpy)
	}
	return out
}

func (s *Session) acquire(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

// Start creates a meeting, moves it to in-progress, and adopts it as the
// active meeting with empty message and task lists. A meeting already
// active is simply replaced; it stays in progress in the store. A meeting
// left in planned because the transition failed is not rolled back.
func (s *Session) Start(ctx context.Context, operator, title, description string, participants []string) (*store.Meeting, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.RLock()
	previous := s.meeting
	s.mu.RUnlock()

	meeting, err := s.store.CreateMeeting(ctx, title, description, participants)
	if err != nil {
		metrics.RecordSessionOperation("start", "failed")
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	status := store.MeetingInProgress
	meeting, err = s.store.UpdateMeeting(ctx, meeting.ID, store.MeetingUpdate{Status: &status})
	if err != nil {
		metrics.RecordSessionOperation("start", "failed")
		return nil, fmt.Errorf("activate meeting: %w", err)
	}

	s.mu.Lock()
	s.meeting = meeting
	s.messages = []*store.Message{}
	s.tasks = []*store.Task{}
	s.mu.Unlock()

	metrics.RecordSessionOperation("start", "success")
	if err := s.audit.Log(operator, audit.ActionStartMeeting, meeting.ID, meeting.Title); err != nil {
		s.log.Warn("audit write failed", "action", "start_meeting", "error", err)
	}
	if previous != nil {
		s.log.Info("replaced active meeting", "previous_id", previous.ID, "meeting_id", meeting.ID)
	}
	s.log.Info("meeting started", "meeting_id", meeting.ID, "title", meeting.Title)

	cpy := *meeting
	return &cpy, nil
}

// RecordUserMessage persists a user message, asks the classifier for a
// reply, persists the reply, and creates tasks from the proposals. A
// classification failure keeps the user message and returns it without a
// reply; a persistence failure of the user message aborts the operation.
func (s *Session) RecordUserMessage(ctx context.Context, operator, content string, sender *store.Identity) (*RecordResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.RLock()
	meeting := s.meeting
	s.mu.RUnlock()
	if meeting == nil {
		metrics.RecordSessionOperation("record_message", "failed")
		return nil, ErrNoActiveMeeting
	}

	userMsg, err := s.store.AddMessage(ctx, meeting.ID, store.MessageDraft{
		Type:    store.MessageUser,
		Content: content,
		Sender:  sender,
	})
	if err != nil {
		metrics.RecordSessionOperation("record_message", "failed")
		return nil, fmt.Errorf("persist message: %w", err)
	}

	s.mu.Lock()
	s.messages = append(s.messages, userMsg)
	s.mu.Unlock()

	if err := s.audit.Log(operator, audit.ActionAddMessage, userMsg.ID, ""); err != nil {
		s.log.Warn("audit write failed", "action", "add_message", "error", err)
	}

	result := &RecordResult{UserMessage: copyMessage(userMsg)}

	classification, err := s.ai.Classify(ctx, content)
	if err != nil {
		s.log.Error("classification failed, message kept without reply",
			"meeting_id", meeting.ID, "message_id", userMsg.ID, "error", err)
		metrics.RecordSessionOperation("record_message", "success")
		return result, nil
	}

	// a lost reply does not block the task pipeline
	result.Reply = s.recordAssistantReply(ctx, meeting.ID, classification)
	result.Tasks = s.adoptProposals(ctx, operator, meeting.ID, userMsg.ID, classification.Tasks)

	metrics.RecordSessionOperation("record_message", "success")
	return result, nil
}

// recordAssistantReply persists and adopts the assistant's reply. A
// persistence failure is logged and swallowed; the user message already
// stands on its own.
func (s *Session) recordAssistantReply(ctx context.Context, meetingID string, c *ai.Classification) *store.Message {
	category := store.MessageCategory(c.Category)
	if !store.ValidCategory(category) {
		category = store.CategoryGeneral
	}

	reply, err := s.store.AddMessage(ctx, meetingID, store.MessageDraft{
		Type:     store.MessageAssistant,
		Content:  c.Response,
		Category: category,
	})
	if err != nil {
		s.log.Error("persist assistant reply failed", "meeting_id", meetingID, "error", err)
		return nil
	}

	s.mu.Lock()
	s.messages = append(s.messages, reply)
	s.mu.Unlock()
	return copyMessage(reply)
}

// adoptProposals creates one task per proposal, skipping empty titles and
// near-duplicates of tasks the meeting already has.
func (s *Session) adoptProposals(ctx context.Context, operator, meetingID, fromMessageID string, proposals []ai.TaskProposal) []*store.Task {
	if len(proposals) == 0 {
		return nil
	}

	var created []*store.Task
	for _, p := range proposals {
		if p.Title == "" {
			continue
		}
		if dedup.ContainsNearDuplicate(p.Title, s.taskTitles()) {
			s.log.Info("skipping near-duplicate task proposal", "title", p.Title)
			continue
		}

		draft := store.TaskDraft{
			Title:         p.Title,
			Description:   p.Description,
			FromMessageID: fromMessageID,
		}
		if p.Assignee != "" {
			draft.Assignee = &store.Identity{ID: p.Assignee, Name: p.Assignee}
		}
		if due := parseDueDate(p.DueDate); due != nil {
			draft.DueDate = due
		}

		task, err := s.store.AddTask(ctx, meetingID, draft)
		if err != nil {
			s.log.Error("persist proposed task failed", "title", p.Title, "error", err)
			continue
		}

		s.mu.Lock()
		s.tasks = append(s.tasks, task)
		s.mu.Unlock()

		if err := s.audit.Log(operator, audit.ActionCreateTask, task.ID, task.Title); err != nil {
			s.log.Warn("audit write failed", "action", "create_task", "error", err)
		}
		created = append(created, copyTask(task))
	}
	return created
}

func (s *Session) taskTitles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	titles := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		titles = append(titles, t.Title)
	}
	return titles
}

// AddTask creates a task in the active meeting.
func (s *Session) AddTask(ctx context.Context, operator string, draft store.TaskDraft) (*store.Task, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.RLock()
	meeting := s.meeting
	s.mu.RUnlock()
	if meeting == nil {
		metrics.RecordSessionOperation("add_task", "failed")
		return nil, ErrNoActiveMeeting
	}

	task, err := s.store.AddTask(ctx, meeting.ID, draft)
	if err != nil {
		metrics.RecordSessionOperation("add_task", "failed")
		return nil, err
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	metrics.RecordSessionOperation("add_task", "success")
	if err := s.audit.Log(operator, audit.ActionCreateTask, task.ID, task.Title); err != nil {
		s.log.Warn("audit write failed", "action", "create_task", "error", err)
	}
	return copyTask(task), nil
}

// UpdateTaskStatus transitions a task in the store, then patches the
// in-memory copy when the task belongs to the active meeting. On store
// failure the in-memory state is left untouched.
func (s *Session) UpdateTaskStatus(ctx context.Context, operator, taskID string, status store.TaskStatus) (*store.Task, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	task, err := s.store.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		metrics.RecordSessionOperation("update_task_status", "failed")
		return nil, err
	}

	s.mu.Lock()
	for i, t := range s.tasks {
		if t.ID == taskID {
			s.tasks[i] = task
			break
		}
	}
	s.mu.Unlock()

	metrics.RecordSessionOperation("update_task_status", "success")
	if err := s.audit.Log(operator, audit.ActionUpdateTaskStatus, task.ID, string(status)); err != nil {
		s.log.Warn("audit write failed", "action", "update_task_status", "error", err)
	}
	return copyTask(task), nil
}

// End completes the active meeting, generates a summary from the
// transcript, persists it as an assistant message, and clears the
// session. When the completion transition fails the session keeps the
// meeting and returns the error; failures after that point are reported
// in the result but the meeting still ends.
func (s *Session) End(ctx context.Context, operator string) (*EndResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.RLock()
	meeting := s.meeting
	transcript := buildTranscript(s.messages)
	s.mu.RUnlock()
	if meeting == nil {
		metrics.RecordSessionOperation("end", "failed")
		return nil, ErrNoActiveMeeting
	}

	status := store.MeetingCompleted
	completed, err := s.store.UpdateMeeting(ctx, meeting.ID, store.MeetingUpdate{Status: &status})
	if err != nil {
		metrics.RecordSessionOperation("end", "failed")
		return nil, fmt.Errorf("complete meeting: %w", err)
	}

	result := &EndResult{Meeting: completed}

	// the summarizer also runs for an empty transcript; it answers with
	// its own fallback text
	summary, err := s.ai.Summarize(ctx, transcript)
	if err != nil {
		s.log.Error("summary generation failed", "meeting_id", meeting.ID, "error", err)
		result.SummaryError = err.Error()
	} else {
		result.Summary = summary
		msg, err := s.store.AddMessage(ctx, meeting.ID, store.MessageDraft{
			Type:     store.MessageAssistant,
			Content:  summary,
			Category: store.CategoryGeneral,
		})
		if err != nil {
			s.log.Error("persist summary failed", "meeting_id", meeting.ID, "error", err)
			result.SummaryError = err.Error()
		} else {
			result.SummaryMessage = msg
		}
	}

	s.mu.Lock()
	s.meeting = nil
	s.messages = []*store.Message{}
	s.tasks = []*store.Task{}
	s.mu.Unlock()

	metrics.RecordSessionOperation("end", "success")
	if err := s.audit.Log(operator, audit.ActionEndMeeting, meeting.ID, meeting.Title); err != nil {
		s.log.Warn("audit write failed", "action", "end_meeting", "error", err)
	}
	s.log.Info("meeting ended", "meeting_id", meeting.ID, "messages", len(transcript))

	return result, nil
}

// Resume scans the store for a meeting left in progress and adopts it,
// loading its messages and tasks in parallel. With no such meeting the
// session stays idle.
func (s *Session) Resume(ctx context.Context) (*store.Meeting, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	meetings, err := s.store.ListMeetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}

	var active *store.Meeting
	for _, m := range meetings {
		if m.Status == store.MeetingInProgress {
			active = m
			break
		}
	}
	if active == nil {
		return nil, nil
	}

	var (
		messages []*store.Message
		tasks    []*store.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		messages, err = s.store.ListMessages(gctx, active.ID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx, active.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load meeting state: %w", err)
	}

	// tasks come back newest first; session keeps creation order
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}

	s.mu.Lock()
	s.meeting = active
	s.messages = messages
	s.tasks = tasks
	s.mu.Unlock()

	s.log.Info("resumed in-progress meeting", "meeting_id", active.ID,
		"messages", len(messages), "tasks", len(tasks))

	cpy := *active
	return &cpy, nil
}

func buildTranscript(messages []*store.Message) []ai.TranscriptEntry {
	transcript := make([]ai.TranscriptEntry, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Type == store.MessageAssistant {
			role = "assistant"
		}
		transcript = append(transcript, ai.TranscriptEntry{Role: role, Content: m.Content})
	}
	return transcript
}

func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func copyMessage(m *store.Message) *store.Message {
	cpy := *m
	return &cpy
}

func copyTask(t *store.Task) *store.Task {
	cpy := *t
	return &cpy
}
