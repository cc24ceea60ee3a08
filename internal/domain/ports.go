package domain

import "context"

// ConversationStore persists conversations and their ordered messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
	UpdateConversation(ctx context.Context, conv *Conversation) error

	// ListConversationsByOwner returns active conversations, most recently
	// updated first.
	ListConversationsByOwner(ctx context.Context, ownerID UserID, limit int) ([]*Conversation, error)

	// AppendMessages assigns consecutive sequence numbers (LastSeq+1, ...) to msgs
	// and stores them in one atomic step. Concurrent calls for the same
	// conversation never observe the same next number. ID, ConversationID and
	// CreatedAt are filled in on msgs when empty. Inactive conversations fail
	// with ErrConversationNotFound.
	AppendMessages(ctx context.Context, id ConversationID, msgs []*Message) error

	// ListMessages returns messages ascending by Seq. limit > 0 keeps only the
	// most recent limit messages.
	ListMessages(ctx context.Context, id ConversationID, limit int) ([]*Message, error)
}

// InterviewStore persists interview sessions and their answers.
type InterviewStore interface {
	CreateInterview(ctx context.Context, s *InterviewSession) error
	GetInterview(ctx context.Context, id InterviewSessionID) (*InterviewSession, error)
	// ListInterviewsByOwner returns sessions newest first, without answers.
	ListInterviewsByOwner(ctx context.Context, ownerID UserID, limit int) ([]*InterviewSession, error)

	// RecordAnswer stores answer and advances the turn pointer by one, provided
	// the pointer still equals answer.QuestionIndex and the session is not
	// finalized. A non-nil report finalizes the session in the same step.
	RecordAnswer(ctx context.Context, id InterviewSessionID, answer *Answer, report *Report) error

	// FinalizeInterview closes a session that is still in progress.
	FinalizeInterview(ctx context.Context, id InterviewSessionID, report *Report) error
}

// FileExtractor turns uploads into text fragments or image metadata.
// PrepareImage returns the bytes forwarded to providers for image files.
type FileExtractor interface {
	Process(ctx context.Context, file UploadedFile) (*ExtractedFile, error)
	PrepareImage(ctx context.Context, file UploadedFile) (ImageInput, error)
}

// QuestionCatalog supplies interview plans.
type QuestionCatalog interface {
	Candidates(role string, skills []string, limit int) []PlanQuestion
}
