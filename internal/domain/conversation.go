package domain

// Conversation is an owner-scoped, append-only message log.
// LastSeq is the highest sequence number handed out so far; it only grows.
type Conversation struct {
	ID        ConversationID
	OwnerID   UserID
	Title     string
	Active    bool
	LastSeq   int64
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// Message is one immutable entry of a conversation.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Seq            int64
	Role           Role
	Content        string

	// ModelTag records "<provider>/<model>" for assistant messages.
	ModelTag string

	// Attachments holds the JSON encoded []AttachmentMeta of a user message, if any.
	Attachments string
	CreatedAt   Timestamp
}

type FileKind string

const (
	FileKindText  FileKind = "text"
	FileKindImage FileKind = "image"
)

type AttachmentStatus string

const (
	AttachmentOK     AttachmentStatus = "ok"
	AttachmentFailed AttachmentStatus = "failed"
)

// AttachmentMeta is the persisted description of one uploaded file.
// Text carries the extracted content or the failure placeholder.
type AttachmentMeta struct {
	Name      string           `json:"name"`
	MimeType  string           `json:"mimeType"`
	SizeBytes int64            `json:"sizeBytes"`
	Kind      FileKind         `json:"kind,omitempty"`
	Status    AttachmentStatus `json:"status"`
	Text      string           `json:"text,omitempty"`
}

// UploadedFile is a raw file received from a client.
type UploadedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// ExtractedFile is the result of processing an UploadedFile.
// Images only carry metadata; their bytes travel separately as ImageInput.
type ExtractedFile struct {
	Kind          FileKind
	ExtractedText string
	DisplayName   string
	MimeType      string
	SizeBytes     int64
	Width         int
	Height        int
}
