package relay_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/files"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/llm"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/memory"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/conversation"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/app/relay"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/retry"
)

const owner = domain.UserID("user-1")

// recordingSink collects events and can simulate a client leaving after a
// number of deltas.
type recordingSink struct {
	mu        sync.Mutex
	opened    bool
	events    []relay.Event
	leaveAt   int
	done      chan struct{}
	closeOnce sync.Once
}

func newSink(leaveAt int) *recordingSink {
	return &recordingSink{leaveAt: leaveAt, done: make(chan struct{})}
}

func (s *recordingSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *recordingSink) Send(ev relay.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.leaveAt > 0 && ev.Type == relay.EventDelta && s.count(relay.EventDelta) == s.leaveAt {
		s.closeOnce.Do(func() { close(s.done) })
	}
	return nil
}

func (s *recordingSink) Done() <-chan struct{} { return s.done }

func (s *recordingSink) count(t relay.EventType) int {
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (s *recordingSink) deltas() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, ev := range s.events {
		if ev.Type == relay.EventDelta {
			b.WriteString(ev.Delta)
		}
	}
	return b.String()
}

func (s *recordingSink) last() relay.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return relay.Event{}
	}
	return s.events[len(s.events)-1]
}

// scriptedProvider runs script once per Stream call.
type scriptedProvider struct {
	calls     atomic.Int32
	cancelled chan struct{}
	script    func(call int, ctx context.Context, send func(domain.StreamEvent) bool)
}

func newScripted(script func(call int, ctx context.Context, send func(domain.StreamEvent) bool)) *scriptedProvider {
	return &scriptedProvider{script: script, cancelled: make(chan struct{}, 1)}
}

func (p *scriptedProvider) Kind() domain.ProviderKind { return domain.ProviderMock }

func (p *scriptedProvider) Models() []domain.ModelInfo {
	return []domain.ModelInfo{{Name: "scripted", SupportsFiles: true, Default: true}}
}

func (p *scriptedProvider) Stream(ctx context.Context, _ domain.CompletionRequest) (<-chan domain.StreamEvent, error) {
	call := int(p.calls.Add(1))
	out := make(chan domain.StreamEvent)
	send := func(ev domain.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(out)
		p.script(call, ctx, send)
		if ctx.Err() != nil {
			select {
			case p.cancelled <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

func (p *scriptedProvider) Complete(context.Context, domain.CompletionRequest) (*domain.Completion, error) {
	return nil, errors.New("not used")
}

func delta(s string) domain.StreamEvent { return domain.StreamEvent{Type: domain.StreamDelta, Text: s} }

var done = domain.StreamEvent{Type: domain.StreamDone}

type fixture struct {
	convs *conversation.Service
	gw    *relay.Gateway
	conv  *domain.Conversation
}

func newFixture(t *testing.T, idle time.Duration) *fixture {
	t.Helper()
	convs := conversation.NewService(memory.NewConversationStore(), conversation.Options{HistoryLimit: 20})
	gw := relay.NewGateway(convs, files.NewExtractor(), relay.Options{
		IdleTimeout: idle,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Sleep:       func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil },
		},
	})
	conv, err := convs.Create(context.Background(), conversation.CreateInput{Owner: owner, Title: "chat"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return &fixture{convs: convs, gw: gw, conv: conv}
}

func (f *fixture) history(t *testing.T) []*domain.Message {
	t.Helper()
	msgs, err := f.convs.History(context.Background(), owner, f.conv.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	return msgs
}

func (f *fixture) request(content string) relay.Request {
	return relay.Request{Owner: owner, ConversationID: f.conv.ID, Content: content}
}

func TestStreamCompletesAndPersistsTurn(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(0)

	res, err := f.gw.Stream(context.Background(), f.request("hello there"), llm.NewMockLLM(), sink)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if res.State != relay.StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", res.State)
	}

	msgs := f.history(t)
	if len(msgs) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "hello there" {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != sink.deltas() {
		t.Fatalf("assistant content %q does not match forwarded deltas %q", msgs[1].Content, sink.deltas())
	}
	if msgs[1].ModelTag != "mock/mock-echo" {
		t.Fatalf("unexpected model tag %q", msgs[1].ModelTag)
	}

	last := sink.last()
	if last.Type != relay.EventDone || last.Sequence != msgs[1].Seq || last.MessageID != msgs[1].ID {
		t.Fatalf("unexpected done event: %+v", last)
	}
}

func TestStreamClientDisconnectCancelsProvider(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(3)

	provider := newScripted(func(_ int, ctx context.Context, send func(domain.StreamEvent) bool) {
		for i := 0; i < 10; i++ {
			if !send(delta("x")) {
				return
			}
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
		send(done)
	})

	res, err := f.gw.Stream(context.Background(), f.request("count to ten"), provider, sink)
	if !domain.IsKind(err, domain.KindClientCancelled) {
		t.Fatalf("expected client_cancelled, got %v", err)
	}
	if res.State != relay.StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.State)
	}

	select {
	case <-provider.cancelled:
	case <-time.After(time.Second):
		t.Fatal("provider call was not cancelled")
	}
	if n := len(f.history(t)); n != 0 {
		t.Fatalf("expected unchanged history, got %d messages", n)
	}
}

func TestStreamRetriesBeforeFirstDelta(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(0)

	provider := newScripted(func(call int, _ context.Context, send func(domain.StreamEvent) bool) {
		if call == 1 {
			send(domain.StreamEvent{Type: domain.StreamError, Err: domain.Errorf(domain.KindProviderUnavailable, "overloaded")})
			return
		}
		send(delta("fine "))
		send(delta("now"))
		send(done)
	})

	res, err := f.gw.Stream(context.Background(), f.request("hi"), provider, sink)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", res.Attempts)
	}
	if got := f.history(t)[1].Content; got != "fine now" {
		t.Fatalf("unexpected assistant content %q", got)
	}
}

func TestStreamFailureAfterDeltaIsNotRetried(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(0)

	provider := newScripted(func(_ int, _ context.Context, send func(domain.StreamEvent) bool) {
		send(delta("partial"))
		send(domain.StreamEvent{Type: domain.StreamError, Err: domain.Errorf(domain.KindProviderUnavailable, "connection reset")})
	})

	res, err := f.gw.Stream(context.Background(), f.request("hi"), provider, sink)
	if !domain.IsKind(err, domain.KindProviderUnavailable) {
		t.Fatalf("expected provider_unavailable, got %v", err)
	}
	if res.State != relay.StateFailed || !res.Opened {
		t.Fatalf("expected opened FAILED relay, got %+v", res)
	}
	if n := provider.calls.Load(); n != 1 {
		t.Fatalf("expected a single provider call, got %d", n)
	}
	if last := sink.last(); last.Type != relay.EventError || last.Kind != domain.KindProviderUnavailable {
		t.Fatalf("expected terminal error event, got %+v", last)
	}
	if n := len(f.history(t)); n != 0 {
		t.Fatalf("partial text must not be stored, got %d messages", n)
	}
}

func TestStreamInactivityTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	sink := newSink(0)

	provider := newScripted(func(_ int, ctx context.Context, send func(domain.StreamEvent) bool) {
		send(delta("thinking"))
		<-ctx.Done()
	})

	res, err := f.gw.Stream(context.Background(), f.request("hi"), provider, sink)
	if !domain.IsKind(err, domain.KindStreamTimeout) {
		t.Fatalf("expected stream_timeout, got %v", err)
	}
	if res.State != relay.StateTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", res.State)
	}
	select {
	case <-provider.cancelled:
	case <-time.After(time.Second):
		t.Fatal("provider call was not cancelled after timeout")
	}
	if last := sink.last(); last.Kind != domain.KindStreamTimeout {
		t.Fatalf("expected timeout error event, got %+v", last)
	}
	if n := len(f.history(t)); n != 0 {
		t.Fatalf("a timed out stream must not store the question, got %d messages", n)
	}
}

func TestStreamSteadyDeltasOutliveIdleWindow(t *testing.T) {
	f := newFixture(t, 60*time.Millisecond)
	sink := newSink(0)

	provider := newScripted(func(_ int, ctx context.Context, send func(domain.StreamEvent) bool) {
		for i := 0; i < 8; i++ {
			time.Sleep(20 * time.Millisecond)
			if !send(delta(".")) {
				return
			}
		}
		send(done)
	})

	if _, err := f.gw.Stream(context.Background(), f.request("slow"), provider, sink); err != nil {
		t.Fatalf("steady stream must not time out: %v", err)
	}
}

func TestStreamRejectedBeforeOpen(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(0)

	provider := newScripted(func(_ int, _ context.Context, send func(domain.StreamEvent) bool) {
		send(domain.StreamEvent{Type: domain.StreamError, Err: domain.Errorf(domain.KindProviderRejected, "bad request")})
	})

	res, err := f.gw.Stream(context.Background(), f.request("hi"), provider, sink)
	if !domain.IsKind(err, domain.KindProviderRejected) {
		t.Fatalf("expected provider_rejected, got %v", err)
	}
	if res.Opened || sink.opened {
		t.Fatal("sink must stay closed when nothing was streamed")
	}
	if n := provider.calls.Load(); n != 1 {
		t.Fatalf("rejections must not be retried, got %d calls", n)
	}
}

func TestStreamUnsupportedFileDegrades(t *testing.T) {
	f := newFixture(t, time.Second)
	sink := newSink(0)

	req := f.request("what is in my notes?")
	req.Files = []domain.UploadedFile{
		{Name: "blob.bin", Data: []byte{0x00, 0x01, 0x02, 0xff, 0xfe}},
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("buy milk")},
	}

	if _, err := f.gw.Stream(context.Background(), req, llm.NewMockLLM(), sink); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	msgs := f.history(t)
	if len(msgs) != 2 || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("expected a stored assistant reply, got %+v", msgs)
	}
	metas := conversation.DecodeAttachments(msgs[0].Attachments)
	if len(metas) != 2 {
		t.Fatalf("expected 2 attachments, got %+v", metas)
	}
	if metas[0].Status != domain.AttachmentFailed || !strings.Contains(metas[0].Text, "file processing failed") {
		t.Fatalf("expected failure marker for blob.bin, got %+v", metas[0])
	}
	if metas[1].Status != domain.AttachmentOK || strings.Contains(metas[1].Text, "file processing failed") {
		t.Fatalf("notes.txt must be processed, got %+v", metas[1])
	}
}

func TestStreamUnknownConversation(t *testing.T) {
	f := newFixture(t, time.Second)
	req := f.request("hi")
	req.ConversationID = "missing"

	if _, err := f.gw.Stream(context.Background(), req, llm.NewMockLLM(), newSink(0)); !domain.IsKind(err, domain.KindConversationNotFound) {
		t.Fatalf("expected conversation_not_found, got %v", err)
	}
}
