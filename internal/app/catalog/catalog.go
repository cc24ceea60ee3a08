// Package catalog builds interview plans from per-role question banks.
package catalog

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/domain"
)

const maxSkills = 5

// Catalog implements domain.QuestionCatalog. Banks can be swapped at runtime.
type Catalog struct {
	mu    sync.RWMutex
	banks map[string]Bank

	// Seed returns the shuffle seed of one plan. Each call should differ so
	// repeated sessions get different plans.
	Seed func() (uint64, uint64)
}

func New() *Catalog {
	return &Catalog{
		banks: builtinBanks(),
		Seed:  func() (uint64, uint64) { return rand.Uint64(), rand.Uint64() },
	}
}

// Replace installs banks on top of the built-in ones.
func (c *Catalog) Replace(banks map[string]Bank) {
	merged := builtinBanks()
	for role, b := range banks {
		merged[normalize(role)] = b
	}
	c.mu.Lock()
	c.banks = merged
	c.mu.Unlock()
}

func (c *Catalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.banks))
	for r := range c.banks {
		out = append(out, r)
	}
	return out
}

// Candidates returns an ordered plan of min(limit, bank size) questions, at
// least one: an intro first, a closing last when there is room, and a
// shuffled mix of technical, behavioral and situational questions between.
func (c *Catalog) Candidates(role string, skills []string, limit int) []domain.PlanQuestion {
	bank := c.bankFor(role)
	s1, s2 := c.Seed()
	rng := rand.New(rand.NewPCG(s1, s2))

	intro := pick(rng, bank.Intro, domain.QuestionIntro)
	closing := pick(rng, bank.Closing, domain.QuestionClosing)

	var middle []domain.PlanQuestion
	middle = append(middle, skillQuestions(rng, bank, skills)...)
	middle = append(middle, shuffled(rng, bank.Technical, domain.QuestionTechnical)...)
	middle = append(middle, shuffled(rng, bank.Behavioral, domain.QuestionBehavioral)...)
	middle = append(middle, shuffled(rng, bank.Situational, domain.QuestionSituational)...)
	rng.Shuffle(len(middle), func(i, j int) { middle[i], middle[j] = middle[j], middle[i] })

	total := len(middle)
	if intro != nil {
		total++
	}
	if closing != nil {
		total++
	}
	n := min(limit, total)
	if n < 1 {
		n = 1
	}

	plan := make([]domain.PlanQuestion, 0, n)
	if intro != nil {
		plan = append(plan, *intro)
	}
	room := n - len(plan)
	if closing != nil && room > 0 && n > 1 {
		room--
	}
	if room > len(middle) {
		room = len(middle)
	}
	plan = append(plan, middle[:room]...)
	if closing != nil && len(plan) < n {
		plan = append(plan, *closing)
	}
	if len(plan) == 0 {
		plan = append(plan, domain.PlanQuestion{Type: domain.QuestionIntro, Text: commonIntro[0]})
	}

	for i := range plan {
		plan[i].Index = i
	}
	return plan
}

func (c *Catalog) bankFor(role string) Bank {
	key := normalize(role)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if b, ok := c.banks[key]; ok && b.size() > 0 {
		return b
	}
	for _, word := range strings.FieldsFunc(key, func(r rune) bool { return r == ' ' || r == '-' || r == '_' || r == '/' }) {
		if b, ok := c.banks[word]; ok && b.size() > 0 {
			return b
		}
		if alias, ok := roleAliases[word]; ok {
			if b, ok := c.banks[alias]; ok && b.size() > 0 {
				return b
			}
		}
	}
	return c.banks[generalRole]
}

func skillQuestions(rng *rand.Rand, bank Bank, skills []string) []domain.PlanQuestion {
	templates := bank.SkillTemplates
	if len(templates) == 0 {
		templates = defaultSkillTemplates
	}

	seen := make(map[string]bool)
	var out []domain.PlanQuestion
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, domain.PlanQuestion{
			Type: domain.QuestionTechnical,
			Text: fmt.Sprintf(templates[rng.IntN(len(templates))], s),
		})
		if len(out) == maxSkills {
			break
		}
	}
	return out
}

func pick(rng *rand.Rand, texts []string, t domain.QuestionType) *domain.PlanQuestion {
	if len(texts) == 0 {
		return nil
	}
	return &domain.PlanQuestion{Type: t, Text: texts[rng.IntN(len(texts))]}
}

func shuffled(rng *rand.Rand, texts []string, t domain.QuestionType) []domain.PlanQuestion {
	out := make([]domain.PlanQuestion, len(texts))
	for i, text := range texts {
		out[i] = domain.PlanQuestion{Type: t, Text: text}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// LoadFile reads a JSON object of role name to Bank.
func LoadFile(path string) (map[string]Bank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	var banks map[string]Bank
	if err := json.Unmarshal(raw, &banks); err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}
	for role, b := range banks {
		if b.size() == 0 {
			return nil, fmt.Errorf("question bank %s: role %q has no questions", path, role)
		}
		for _, tpl := range b.SkillTemplates {
			if strings.Count(tpl, "%s") != 1 {
				return nil, fmt.Errorf("question bank %s: skill template %q needs exactly one %%s", path, tpl)
			}
		}
	}
	return banks, nil
}
