package conversation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

// perMessageOverhead approximates role and separator tokens.
const perMessageOverhead = 4

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// Tokenizer counts cl100k_base tokens, or len/4 when the encoding is missing.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

func NewTokenizer() *Tokenizer {
	encOnce.Do(func() {
		// BPE ranks are embedded, so no download happens at runtime
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return &Tokenizer{encoding: enc}
}

func (t *Tokenizer) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Fit keeps the newest contiguous run of messages whose tokens fit budget.
// Messages are charged as they are replayed, attachment text included.
// It stops at the first message that does not fit so the window never has
// holes, and drops leading assistant turns so the window opens with the user.
// budget <= 0 disables the token check.
func (t *Tokenizer) Fit(history []*domain.Message, budget int) []*domain.Message {
	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := perMessageOverhead + t.CountTokens(replayed(history[i]))
		if budget > 0 && used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	for start < len(history) && history[start].Role != domain.RoleUser {
		start++
	}
	return history[start:]
}
