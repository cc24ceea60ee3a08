// Package relay binds one outbound provider stream to one client stream.
package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

const defaultIdleTimeout = 45 * time.Second

type Options struct {
	// IdleTimeout is the longest silence tolerated from the provider.
	IdleTimeout time.Duration
	Retry       retry.Policy
}

// Gateway runs relays. It holds no per-request state and is safe for
// concurrent use; every call to Stream is an independent relay.
type Gateway struct {
	conversations *conversation.Service
	files         domain.FileExtractor
	opts          Options
}

func NewGateway(conversations *conversation.Service, files domain.FileExtractor, opts Options) *Gateway {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Gateway{conversations: conversations, files: files, opts: opts}
}

type Request struct {
	Owner          domain.UserID
	ConversationID domain.ConversationID
	Content        string
	Model          string
	Files          []domain.UploadedFile
}

// Result describes how a relay ended. Opened reports whether the sink saw
// any event; when it did, the terminal error was already sent to it.
type Result struct {
	State     State
	Opened    bool
	Attempts  int
	Text      string
	User      *domain.Message
	Assistant *domain.Message
}

// Stream relays one answer from provider to sink. On COMPLETED the user
// message and the assistant reply are stored before the done event is sent.
// Any other ending leaves the conversation history untouched: the user
// message of a failed, timed out or cancelled stream is not stored either,
// and the client resends it.
func (g *Gateway) Stream(ctx context.Context, req Request, provider domain.Provider, sink Sink) (*Result, error) {
	started := time.Now()
	res := &Result{State: StateOpen}

	log := observability.LoggerFromContext(ctx).With(
		"conversation_id", req.ConversationID,
		"provider", provider.Kind(),
	)

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Files) == 0 {
		return res, domain.Errorf(domain.KindInvalidInput, "content must not be empty")
	}

	conv, err := g.conversations.Authorize(ctx, req.Owner, req.ConversationID)
	if err != nil {
		return res, err
	}
	history, err := g.conversations.Window(ctx, conv.ID)
	if err != nil {
		return res, err
	}

	metas, images := g.attach(ctx, req.Files)
	names := make([]string, 0, len(metas))
	for _, m := range metas {
		if m.Status == domain.AttachmentOK {
			names = append(names, m.Name)
		}
	}

	model := modelName(provider, req.Model)
	creq := conversation.BuildRequest(model, history, domain.ChatMessage{
		Role:            domain.RoleUser,
		Content:         conversation.FoldAttachments(content, metas),
		Images:          images,
		AttachmentNames: names,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sink.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	s := &stream{sink: sink, idle: g.opts.IdleTimeout, res: res}
	res.State = StateStreaming
	log.Debug("relay streaming", "model", model, "history", len(history), "files", len(metas))

	var lateErr error
	policy := g.opts.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warn("retrying provider stream", "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
	}
	err = retry.Do(ctx, policy, func(attempt int) error {
		res.Attempts = attempt + 1
		err := s.run(ctx, provider, creq)
		if err != nil && res.Opened {
			// once a delta reached the client the call cannot be replayed
			lateErr = err
			return nil
		}
		return err
	})
	if err == nil {
		err = lateErr
	}
	if err == nil {
		err = g.commit(ctx, conv, res, content, metas, provider.Kind(), model)
	}

	if err != nil {
		res.State = failureState(ctx, err)
		res.Text = ""
		if res.Opened {
			_ = sink.Send(ErrorEvent(err))
		}
		log.Warn("relay ended",
			"state", res.State,
			"attempts", res.Attempts,
			"elapsed_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return res, err
	}

	res.State = StateCompleted
	if err := sink.Send(Event{
		Type:      EventDone,
		MessageID: res.Assistant.ID,
		Sequence:  res.Assistant.Seq,
		Model:     model,
	}); err != nil {
		log.Debug("client left before done event", "error", err)
	}
	log.Info("relay ended",
		"state", res.State,
		"attempts", res.Attempts,
		"chars", len(res.Text),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return res, nil
}

// commit stores the finished turn. The provider already finished, so a
// client leaving at this point does not abort the write.
func (g *Gateway) commit(ctx context.Context, conv *domain.Conversation, res *Result, content string, metas []domain.AttachmentMeta, kind domain.ProviderKind, model string) error {
	user := &domain.Message{
		Content:     content,
		Attachments: conversation.EncodeAttachments(metas),
	}
	assistant := &domain.Message{
		Content:  res.Text,
		ModelTag: string(kind) + "/" + model,
	}
	if err := g.conversations.AppendTurn(context.WithoutCancel(ctx), conv, user, assistant); err != nil {
		return err
	}
	res.User, res.Assistant = user, assistant
	return nil
}

// attach extracts every upload. A file that cannot be read becomes a
// placeholder instead of failing the request.
func (g *Gateway) attach(ctx context.Context, uploads []domain.UploadedFile) ([]domain.AttachmentMeta, []domain.ImageInput) {
	if len(uploads) == 0 {
		return nil, nil
	}
	log := observability.LoggerFromContext(ctx)

	metas := make([]domain.AttachmentMeta, 0, len(uploads))
	var images []domain.ImageInput
	for _, f := range uploads {
		meta := domain.AttachmentMeta{
			Name:      f.Name,
			MimeType:  f.MimeType,
			SizeBytes: int64(len(f.Data)),
			Status:    domain.AttachmentOK,
		}

		ext, err := g.files.Process(ctx, f)
		if err == nil {
			meta.Name, meta.MimeType, meta.Kind = ext.DisplayName, ext.MimeType, ext.Kind
			if ext.Kind == domain.FileKindImage {
				var img domain.ImageInput
				if img, err = g.files.PrepareImage(ctx, f); err == nil {
					images = append(images, img)
				}
			} else {
				meta.Text = ext.ExtractedText
			}
		}
		if err != nil {
			log.Warn("file processing failed", "file", f.Name, "kind", domain.KindOf(err), "error", err)
			meta.Status = domain.AttachmentFailed
			meta.Kind = ""
			meta.Text = conversation.FailedPlaceholder(meta.Name)
		}
		metas = append(metas, meta)
	}
	return metas, images
}

// stream consumes provider attempts for one relay.
type stream struct {
	sink Sink
	idle time.Duration
	res  *Result
	buf  strings.Builder
}

// run performs one provider call and forwards its deltas. It returns nil
// once the provider signalled completion.
func (s *stream) run(ctx context.Context, provider domain.Provider, req domain.CompletionRequest) error {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := provider.Stream(callCtx, req)
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.idle)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return domain.Errorf(domain.KindProviderUnavailable, "%s stream ended without completion", provider.Kind())
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.idle)

			switch ev.Type {
			case domain.StreamDelta:
				if err := s.forward(ev.Text); err != nil {
					return err
				}
			case domain.StreamDone:
				s.res.Text = s.buf.String()
				return nil
			case domain.StreamError:
				if ctx.Err() != nil {
					return cancelled(ctx)
				}
				return ev.Err
			}
		case <-timer.C:
			return domain.NewError(domain.KindStreamTimeout, domain.ErrStreamTimeout.Message,
				errors.New("no provider activity for "+s.idle.String()))
		case <-ctx.Done():
			return cancelled(ctx)
		}
	}
}

func (s *stream) forward(text string) error {
	if !s.res.Opened {
		if err := s.sink.Open(); err != nil {
			return domain.NewError(domain.KindClientCancelled, "client stream could not be opened", err)
		}
		s.res.Opened = true
	}
	if err := s.sink.Send(Event{Type: EventDelta, Delta: text}); err != nil {
		return domain.NewError(domain.KindClientCancelled, domain.ErrClientCancelled.Message, err)
	}
	s.buf.WriteString(text)
	return nil
}

func cancelled(ctx context.Context) error {
	return domain.NewError(domain.KindClientCancelled, domain.ErrClientCancelled.Message, context.Cause(ctx))
}

func failureState(ctx context.Context, err error) State {
	switch {
	case domain.IsKind(err, domain.KindStreamTimeout):
		return StateTimedOut
	case domain.IsKind(err, domain.KindClientCancelled) || ctx.Err() != nil:
		return StateCancelled
	default:
		return StateFailed
	}
}

func modelName(p domain.Provider, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	models := p.Models()
	for _, m := range models {
		if m.Default {
			return m.Name
		}
	}
	if len(models) > 0 {
		return models[0].Name
	}
	return ""
}
