package store

import "context"

// Store is the persistence gateway for meetings, messages, and tasks.
// Implementations assign record ids and timestamps server-side.
type Store interface {
	CreateMeeting(ctx context.Context, title, description string, participants []string) (*Meeting, error)
	UpdateMeeting(ctx context.Context, id string, update MeetingUpdate) (*Meeting, error)
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	// ListMeetings returns all meetings, newest first.
	ListMeetings(ctx context.Context) ([]*Meeting, error)

	AddMessage(ctx context.Context, meetingID string, draft MessageDraft) (*Message, error)
	// ListMessages returns the meeting's messages ordered by timestamp ascending.
	ListMessages(ctx context.Context, meetingID string) ([]*Message, error)

	AddTask(ctx context.Context, meetingID string, draft TaskDraft) (*Task, error)
	// ListTasks returns tasks newest first; an empty meetingID selects all.
	ListTasks(ctx context.Context, meetingID string) ([]*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) (*Task, error)
}
