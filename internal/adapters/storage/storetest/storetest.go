// Package storetest holds the behaviour every storage backend must share.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

func newConversation(owner string) *domain.Conversation {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Conversation{
		ID:        domain.ConversationID(domain.NewID()),
		OwnerID:   domain.UserID(owner),
		Title:     "test",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func userMsg(text string) *domain.Message {
	return &domain.Message{Role: domain.RoleUser, Content: text}
}

func assistantMsg(text string) *domain.Message {
	return &domain.Message{Role: domain.RoleAssistant, Content: text, ModelTag: "mock/mock-echo"}
}

// RunConversationStore exercises a fresh domain.ConversationStore.
func RunConversationStore(t *testing.T, newStore func(t *testing.T) domain.ConversationStore) {
	t.Run("create and get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newConversation("u1")
		if err := s.CreateConversation(ctx, c); err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
		got, err := s.GetConversation(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if got.OwnerID != "u1" || got.Title != "test" || !got.Active || got.LastSeq != 0 {
			t.Fatalf("unexpected conversation %+v", got)
		}
		if _, err := s.GetConversation(ctx, "missing"); !domain.IsKind(err, domain.KindConversationNotFound) {
			t.Fatalf("expected conversation_not_found, got %v", err)
		}
	})

	t.Run("append assigns consecutive sequence numbers", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newConversation("u1")
		if err := s.CreateConversation(ctx, c); err != nil {
			t.Fatal(err)
		}
		first := []*domain.Message{userMsg("q1"), assistantMsg("a1")}
		if err := s.AppendMessages(ctx, c.ID, first); err != nil {
			t.Fatalf("AppendMessages: %v", err)
		}
		if first[0].Seq != 1 || first[1].Seq != 2 || first[0].ID == "" || first[0].CreatedAt.IsZero() {
			t.Fatalf("sequence not assigned: %+v %+v", first[0], first[1])
		}
		if err := s.AppendMessages(ctx, c.ID, []*domain.Message{userMsg("q2"), assistantMsg("a2")}); err != nil {
			t.Fatal(err)
		}

		all, err := s.ListMessages(ctx, c.ID, 0)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		want := []string{"q1", "a1", "q2", "a2"}
		if len(all) != len(want) {
			t.Fatalf("expected %d messages, got %d", len(want), len(all))
		}
		for i, m := range all {
			if m.Seq != int64(i+1) || m.Content != want[i] {
				t.Fatalf("message %d: seq=%d content=%q", i, m.Seq, m.Content)
			}
		}
		if all[1].ModelTag != "mock/mock-echo" || all[1].Role != domain.RoleAssistant {
			t.Fatalf("fields not persisted: %+v", all[1])
		}

		last, err := s.ListMessages(ctx, c.ID, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(last) != 3 || last[0].Content != "a1" || last[2].Content != "a2" {
			t.Fatalf("limit should keep the most recent messages in order, got %d", len(last))
		}

		got, _ := s.GetConversation(ctx, c.ID)
		if got.LastSeq != 4 {
			t.Fatalf("LastSeq = %d, want 4", got.LastSeq)
		}
	})

	t.Run("concurrent appends are gapless", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c := newConversation("u1")
		if err := s.CreateConversation(ctx, c); err != nil {
			t.Fatal(err)
		}

		const writers = 12
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pair := []*domain.Message{userMsg(fmt.Sprintf("q%d", i)), assistantMsg(fmt.Sprintf("a%d", i))}
				if err := s.AppendMessages(ctx, c.ID, pair); err != nil {
					errs <- err
					return
				}
				if pair[1].Seq != pair[0].Seq+1 {
					errs <- fmt.Errorf("pair %d not consecutive: %d %d", i, pair[0].Seq, pair[1].Seq)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}

		all, err := s.ListMessages(ctx, c.ID, 0)
		if err != nil {
			t.Fatal(err)
		}
		seqs := make([]int, 0, len(all))
		for _, m := range all {
			seqs = append(seqs, int(m.Seq))
		}
		sort.Ints(seqs)
		if len(seqs) != 2*writers {
			t.Fatalf("expected %d messages, got %d", 2*writers, len(seqs))
		}
		for i, seq := range seqs {
			if seq != i+1 {
				t.Fatalf("sequence numbers are not a gapless run from 1: %v", seqs)
			}
		}
	})

	t.Run("inactive conversations reject appends and are not listed", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		keep := newConversation("u1")
		gone := newConversation("u1")
		other := newConversation("u2")
		for _, c := range []*domain.Conversation{keep, gone, other} {
			if err := s.CreateConversation(ctx, c); err != nil {
				t.Fatal(err)
			}
		}
		gone.Active = false
		gone.UpdatedAt = gone.UpdatedAt.Add(time.Second)
		if err := s.UpdateConversation(ctx, gone); err != nil {
			t.Fatalf("UpdateConversation: %v", err)
		}
		if err := s.AppendMessages(ctx, gone.ID, []*domain.Message{userMsg("x")}); !domain.IsKind(err, domain.KindConversationNotFound) {
			t.Fatalf("expected conversation_not_found, got %v", err)
		}

		list, err := s.ListConversationsByOwner(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("ListConversationsByOwner: %v", err)
		}
		if len(list) != 1 || list[0].ID != keep.ID {
			t.Fatalf("expected only the active conversation, got %d", len(list))
		}
	})
}

func newInterview(owner string, planLen int) *domain.InterviewSession {
	now := time.Now().UTC().Truncate(time.Millisecond)
	plan := make([]domain.PlanQuestion, planLen)
	for i := range plan {
		plan[i] = domain.PlanQuestion{Index: i, Type: domain.QuestionBehavioral, Text: fmt.Sprintf("question %d", i)}
	}
	return &domain.InterviewSession{
		ID:        domain.InterviewSessionID(domain.NewID()),
		OwnerID:   domain.UserID(owner),
		Role:      "backend",
		Skills:    []string{"go"},
		Plan:      plan,
		State:     domain.SessionInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func answer(sess *domain.InterviewSession, idx int) *domain.Answer {
	q := sess.Plan[idx]
	return &domain.Answer{
		SessionID:     sess.ID,
		QuestionIndex: idx,
		QuestionType:  q.Type,
		QuestionText:  q.Text,
		Transcript:    "my answer",
		Score:         70,
		Dimensions:    map[string]float64{domain.DimensionClarity: 70},
		Tips:          []string{"be concrete"},
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

// RunInterviewStore exercises a fresh domain.InterviewStore.
func RunInterviewStore(t *testing.T, newStore func(t *testing.T) domain.InterviewStore) {
	t.Run("create and get", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		sess := newInterview("u1", 3)
		if err := s.CreateInterview(ctx, sess); err != nil {
			t.Fatalf("CreateInterview: %v", err)
		}
		got, err := s.GetInterview(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetInterview: %v", err)
		}
		if len(got.Plan) != 3 || got.Plan[2].Text != "question 2" || got.TurnPointer != 0 || got.State != domain.SessionInProgress {
			t.Fatalf("unexpected session %+v", got)
		}
		if _, err := s.GetInterview(ctx, "missing"); !domain.IsKind(err, domain.KindSessionNotFound) {
			t.Fatalf("expected session_not_found, got %v", err)
		}
	})

	t.Run("record answer compares and advances the pointer", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		sess := newInterview("u1", 2)
		if err := s.CreateInterview(ctx, sess); err != nil {
			t.Fatal(err)
		}
		if err := s.RecordAnswer(ctx, sess.ID, answer(sess, 0), nil); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
		if err := s.RecordAnswer(ctx, sess.ID, answer(sess, 0), nil); !domain.IsKind(err, domain.KindStaleTurn) {
			t.Fatalf("expected stale_turn, got %v", err)
		}

		report := &domain.Report{OverallScore: 70, AnsweredTurns: 2, TotalTurns: 2, FinalizedAt: time.Now().UTC().Truncate(time.Millisecond)}
		if err := s.RecordAnswer(ctx, sess.ID, answer(sess, 1), report); err != nil {
			t.Fatalf("RecordAnswer final: %v", err)
		}
		if err := s.RecordAnswer(ctx, sess.ID, answer(sess, 1), nil); !domain.IsKind(err, domain.KindSessionAlreadyFinalized) {
			t.Fatalf("expected session_already_finalized, got %v", err)
		}
		if err := s.FinalizeInterview(ctx, sess.ID, report); !domain.IsKind(err, domain.KindSessionAlreadyFinalized) {
			t.Fatalf("expected session_already_finalized, got %v", err)
		}

		got, err := s.GetInterview(ctx, sess.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.TurnPointer != 2 || len(got.Answers) != 2 || !got.IsFinalized() || got.Report == nil || got.FinalizedAt == nil {
			t.Fatalf("unexpected final state: pointer=%d answers=%d state=%s", got.TurnPointer, len(got.Answers), got.State)
		}
		if got.Answers[0].QuestionText != "question 0" || got.Answers[1].QuestionIndex != 1 || got.Answers[0].Dimensions[domain.DimensionClarity] != 70 {
			t.Fatalf("answers not persisted: %+v", got.Answers[0])
		}
		if got.Report.OverallScore != 70 {
			t.Fatalf("report not persisted: %+v", got.Report)
		}
	})

	t.Run("concurrent submissions of one index record one answer", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		sess := newInterview("u1", 3)
		if err := s.CreateInterview(ctx, sess); err != nil {
			t.Fatal(err)
		}

		const racers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok, stale := 0, 0
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.RecordAnswer(ctx, sess.ID, answer(sess, 0), nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case domain.IsKind(err, domain.KindStaleTurn):
					stale++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if ok != 1 || stale != racers-1 {
			t.Fatalf("ok=%d stale=%d", ok, stale)
		}
		got, _ := s.GetInterview(ctx, sess.ID)
		if len(got.Answers) != 1 || got.TurnPointer != 1 {
			t.Fatalf("expected one answer, got %d (pointer %d)", len(got.Answers), got.TurnPointer)
		}
	})

	t.Run("early finalize and listing", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := newInterview("u1", 3)
		b := newInterview("u1", 3)
		b.CreatedAt = a.CreatedAt.Add(time.Second)
		c := newInterview("u2", 3)
		for _, sess := range []*domain.InterviewSession{a, b, c} {
			if err := s.CreateInterview(ctx, sess); err != nil {
				t.Fatal(err)
			}
		}
		report := &domain.Report{TotalTurns: 3, FinalizedAt: time.Now().UTC().Truncate(time.Millisecond)}
		if err := s.FinalizeInterview(ctx, a.ID, report); err != nil {
			t.Fatalf("FinalizeInterview: %v", err)
		}
		got, _ := s.GetInterview(ctx, a.ID)
		if !got.IsFinalized() || got.TurnPointer != 0 {
			t.Fatalf("unexpected state after finalize: %s pointer=%d", got.State, got.TurnPointer)
		}

		list, err := s.ListInterviewsByOwner(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("ListInterviewsByOwner: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID {
			t.Fatalf("expected 2 sessions newest first, got %d", len(list))
		}
	})
}
