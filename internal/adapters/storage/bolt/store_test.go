package bolt_test

import (
	"path/filepath"
	"testing"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/bolt"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/storetest"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func openStore(t *testing.T) *bolt.Store {
	t.Helper()
	s, err := bolt.Open(filepath.Join(t.TempDir(), "data", "morningstar.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationStore(t *testing.T) {
	storetest.RunConversationStore(t, func(t *testing.T) domain.ConversationStore { return openStore(t) })
}

func TestInterviewStore(t *testing.T) {
	storetest.RunInterviewStore(t, func(t *testing.T) domain.InterviewStore { return openStore(t) })
}

func TestReopenKeepsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "morningstar.db")
	ctx := t.Context()

	s, err := bolt.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	c := &domain.Conversation{ID: "c1", OwnerID: "u1", Active: true}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessages(ctx, c.ID, []*domain.Message{{Role: domain.RoleUser, Content: "one"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = bolt.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	msgs := []*domain.Message{{Role: domain.RoleUser, Content: "two"}}
	if err := s.AppendMessages(ctx, c.ID, msgs); err != nil {
		t.Fatal(err)
	}
	if msgs[0].Seq != 2 {
		t.Fatalf("sequence restarted after reopen: %d", msgs[0].Seq)
	}
}
