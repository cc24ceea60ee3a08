package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

const systemPrompt = `
You are Morningstar, a helpful assistant for software developers and job seekers.

Style:
- Answer in the SAME LANGUAGE as the user.
- Be direct and concrete. Prefer short paragraphs, lists and code blocks.
- When the user attached files, ground your answer in their content and name the file you refer to.
- If a file could not be processed, say so briefly and answer with what you have.
- Do not invent facts about the user's files, employers or projects.
`

// FailedPlaceholder is the text that replaces a file that could not be read.
func FailedPlaceholder(name string) string {
	return fmt.Sprintf("[file processing failed: %s]", name)
}

// FoldAttachments appends file fragments to the user content so providers
// without native file support still see them.
func FoldAttachments(content string, metas []domain.AttachmentMeta) string {
	if len(metas) == 0 {
		return content
	}

	var b strings.Builder
	b.WriteString(content)
	for _, m := range metas {
		b.WriteString("\n\n")
		switch {
		case m.Status == domain.AttachmentFailed:
			b.WriteString(m.Text)
		case m.Kind == domain.FileKindImage:
			fmt.Fprintf(&b, "[image: %s]", m.Name)
		default:
			fmt.Fprintf(&b, "[file: %s]\n%s", m.Name, m.Text)
		}
	}
	return b.String()
}

// DecodeAttachments parses the attachment column of a message. Broken JSON
// yields no attachments.
func DecodeAttachments(raw string) []domain.AttachmentMeta {
	if raw == "" {
		return nil
	}
	var metas []domain.AttachmentMeta
	if err := json.Unmarshal([]byte(raw), &metas); err != nil {
		return nil
	}
	return metas
}

func EncodeAttachments(metas []domain.AttachmentMeta) string {
	if len(metas) == 0 {
		return ""
	}
	raw, err := json.Marshal(metas)
	if err != nil {
		return ""
	}
	return string(raw)
}

// replayed is the text a stored message contributes to a later request.
func replayed(m *domain.Message) string {
	return FoldAttachments(m.Content, DecodeAttachments(m.Attachments))
}

// BuildRequest turns the stored history plus the new user turn into a
// provider request. Past attachments are replayed as text only.
func BuildRequest(model string, history []*domain.Message, current domain.ChatMessage) domain.CompletionRequest {
	msgs := make([]domain.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, domain.ChatMessage{
			Role:    m.Role,
			Content: replayed(m),
		})
	}
	msgs = append(msgs, current)

	return domain.CompletionRequest{
		Model:    model,
		System:   strings.TrimSpace(systemPrompt),
		Messages: msgs,
	}
}
