// Package bolt persists conversations and interviews in a single bbolt file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

var (
	bucketConversations = []byte("conversations")
	bucketMessages      = []byte("messages")
	bucketInterviews    = []byte("interviews")
)

// Store implements domain.ConversationStore and domain.InterviewStore.
// bbolt allows one writer at a time, so sequence assignment inside db.Update
// is atomic without further locking.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketMessages, bucketInterviews} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type conversationRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	NextSeq   int64     `json:"next_seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r conversationRecord) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:        domain.ConversationID(r.ID),
		OwnerID:   domain.UserID(r.OwnerID),
		Title:     r.Title,
		Active:    r.Active,
		LastSeq:   r.NextSeq - 1,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type messageRecord struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ModelTag    string    `json:"model_tag,omitempty"`
	Attachments string    `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func seqKey(seq int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(seq))
	return k
}

func getConversation(tx *bolt.Tx, id domain.ConversationID) (*conversationRecord, error) {
	v := tx.Bucket(bucketConversations).Get([]byte(id))
	if v == nil {
		return nil, domain.ErrConversationNotFound
	}
	var rec conversationRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &rec, nil
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, enc)
}

func (s *Store) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		if b.Get([]byte(conv.ID)) != nil {
			return errors.New("conversation already exists")
		}
		rec := conversationRecord{
			ID:        string(conv.ID),
			OwnerID:   string(conv.OwnerID),
			Title:     conv.Title,
			Active:    conv.Active,
			NextSeq:   conv.LastSeq + 1,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		}
		if _, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(conv.ID)); err != nil {
			return err
		}
		return putJSON(b, []byte(conv.ID), rec)
	})
}

func (s *Store) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var out *domain.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getConversation(tx, id)
		if err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	return out, err
}

func (s *Store) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getConversation(tx, conv.ID)
		if err != nil {
			return err
		}
		rec.Title = conv.Title
		rec.Active = conv.Active
		rec.UpdatedAt = conv.UpdatedAt
		return putJSON(tx.Bucket(bucketConversations), []byte(conv.ID), rec)
	})
}

func (s *Store) ListConversationsByOwner(_ context.Context, ownerID domain.UserID, limit int) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConversations).ForEach(func(_, v []byte) error {
			var rec conversationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.OwnerID == string(ownerID) && rec.Active {
				out = append(out, rec.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt ListConversationsByOwner: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendMessages reads next_seq and writes the messages in one read-write
// transaction.
func (s *Store) AppendMessages(_ context.Context, id domain.ConversationID, msgs []*domain.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getConversation(tx, id)
		if err != nil {
			return err
		}
		if !rec.Active {
			return domain.ErrConversationNotFound
		}
		mb, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, m := range msgs {
			m.Seq = rec.NextSeq
			rec.NextSeq++
			m.ConversationID = id
			if m.ID == "" {
				m.ID = domain.MessageID(domain.NewID())
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			mr := messageRecord{
				ID:          string(m.ID),
				Seq:         m.Seq,
				Role:        string(m.Role),
				Content:     m.Content,
				ModelTag:    m.ModelTag,
				Attachments: m.Attachments,
				CreatedAt:   m.CreatedAt,
			}
			if err := putJSON(mb, seqKey(m.Seq), mr); err != nil {
				return err
			}
		}
		rec.UpdatedAt = now
		return putJSON(tx.Bucket(bucketConversations), []byte(id), rec)
	})
}

func (s *Store) ListMessages(_ context.Context, id domain.ConversationID, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		if _, err := getConversation(tx, id); err != nil {
			return err
		}
		mb := tx.Bucket(bucketMessages).Bucket([]byte(id))
		if mb == nil {
			return nil
		}
		// walk backwards so limit only touches the newest entries
		c := mb.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) == limit {
				break
			}
			var mr messageRecord
			if err := json.Unmarshal(v, &mr); err != nil {
				return err
			}
			out = append(out, &domain.Message{
				ID:             domain.MessageID(mr.ID),
				ConversationID: id,
				Seq:            mr.Seq,
				Role:           domain.Role(mr.Role),
				Content:        mr.Content,
				ModelTag:       mr.ModelTag,
				Attachments:    mr.Attachments,
				CreatedAt:      mr.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
