package sqlstore_test

import (
	"testing"

	"github.com/glebarez/sqlite"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/sqlstore"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/adapters/storage/storetest"
	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := "file:" + domain.NewID() + "?mode=memory&cache=shared"
	s, err := sqlstore.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := s.DB().DB()
	if err != nil {
		t.Fatal(err)
	}
	// one connection serializes writers the way row locks do on postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationStore(t *testing.T) {
	storetest.RunConversationStore(t, func(t *testing.T) domain.ConversationStore { return openSQLite(t) })
}

func TestInterviewStore(t *testing.T) {
	storetest.RunInterviewStore(t, func(t *testing.T) domain.InterviewStore { return openSQLite(t) })
}

func TestAttachmentsRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := t.Context()
	c := &domain.Conversation{ID: "c1", OwnerID: "u1", Active: true}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatal(err)
	}
	meta := `[{"name":"a.txt","mimeType":"text/plain","sizeBytes":3,"status":"ok"}]`
	if err := s.AppendMessages(ctx, c.ID, []*domain.Message{{Role: domain.RoleUser, Content: "see file", Attachments: meta}}); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.ListMessages(ctx, c.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Attachments != meta {
		t.Fatalf("attachments not preserved: %+v", msgs)
	}
}
