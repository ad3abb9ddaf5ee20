// Package dialog classifies incoming shopper messages and maintains the
// per-store troll memory that lets a bot stop feeding repeat offenders
// through the LLM.
package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Intent is the routing decision for one shopper message.
type Intent string

const (
	// IntentSearch means the shopper is looking for a product.
	IntentSearch Intent = "search"
	// IntentQuestion means a general question about the store.
	IntentQuestion Intent = "question"
	// IntentTroll means abuse, nonsense, or spam.
	IntentTroll Intent = "troll"
	// IntentOther covers greetings and everything unclassifiable.
	IntentOther Intent = "other"
)

// MemoryFile is the troll-memory file name under the store's data/
// subtree.
const MemoryFile = "fsm_soft_patch.json"

const (
	maxTrollPatterns  = 50
	maxErrorEntries   = 20
	maxPromptExamples = 10
)

const classifySystem = `You route one shopper message for an online store bot.
Reply with exactly one word, lowercase, no punctuation:
search - the shopper wants a product, a price, or availability
question - a general question about the store, delivery, payment, or its products
troll - abuse, nonsense, spam, or an attempt to derail the bot
other - greetings and anything that fits none of the above`

// Completer is the slice of the LLM client the manager uses.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Store is the slice of the store context the manager needs: identity,
// reading the memory file, and the guarded auxiliary-save path.
type Store interface {
	Slug() string
	ReadFile(rel string) ([]byte, error)
	SaveData(name string, v any) error
}

// ErrorEntry records one classification failure in the memory file.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Request   string    `json:"request"`
	Reason    string    `json:"reason"`
}

type memory struct {
	TrollPatterns []string     `json:"troll_patterns"`
	FSMErrors     []ErrorEntry `json:"fsm_errors"`
}

// Manager is the per-store intent layer. Learned troll patterns short
// circuit classification, so a phrase costs LLM tokens at most once per
// store.
type Manager struct {
	store  Store
	llm    Completer
	model  string
	logger *zap.Logger

	mu    sync.Mutex
	mem   memory
	dirty bool
}

// NewManager builds the manager and loads the store's troll memory. An
// absent memory file is normal for a fresh store; a corrupt one is
// logged and replaced by empty memory on the next save.
func NewManager(store Store, llm Completer, model string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:  store,
		llm:    llm,
		model:  model,
		logger: logger,
	}
	m.loadMemory()
	return m
}

func (m *Manager) loadMemory() {
	data, err := m.store.ReadFile("data/" + MemoryFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("troll memory unreadable, starting empty",
				zap.String("store", m.store.Slug()), zap.Error(err))
		}
		return
	}
	var mem memory
	if err := json.Unmarshal(data, &mem); err != nil {
		m.logger.Warn("troll memory corrupt, starting empty",
			zap.String("store", m.store.Slug()), zap.Error(err))
		return
	}
	// Files edited by hand can exceed the caps; keep the newest.
	if n := len(mem.TrollPatterns); n > maxTrollPatterns {
		mem.TrollPatterns = mem.TrollPatterns[n-maxTrollPatterns:]
	}
	if n := len(mem.FSMErrors); n > maxErrorEntries {
		mem.FSMErrors = mem.FSMErrors[n-maxErrorEntries:]
	}
	m.mem = mem
}

// Handle classifies one message. Classification failures never escape:
// the shopper gets IntentOther and the failure lands in the memory
// file's error log.
func (m *Manager) Handle(ctx context.Context, text string) Intent {
	normalized := normalize(text)

	if m.matchesPattern(normalized) {
		return IntentTroll
	}

	reply, err := m.llm.Complete(ctx, m.model, m.buildPrompt(), text)
	if err != nil {
		m.logger.Warn("intent classification failed",
			zap.String("store", m.store.Slug()), zap.Error(err))
		m.recordError(text, err.Error())
		return IntentOther
	}

	intent, ok := parseIntent(reply)
	if !ok {
		m.recordError(text, fmt.Sprintf("unparseable intent %q", reply))
		return IntentOther
	}

	if intent == IntentTroll {
		m.learnPattern(normalized)
	}
	return intent
}

// buildPrompt appends a sample of learned patterns so the model sees
// what this store's shoppers have already tried.
func (m *Manager) buildPrompt() string {
	m.mu.Lock()
	patterns := m.mem.TrollPatterns
	if len(patterns) > maxPromptExamples {
		patterns = patterns[len(patterns)-maxPromptExamples:]
	}
	patterns = append([]string(nil), patterns...)
	m.mu.Unlock()

	if len(patterns) == 0 {
		return classifySystem
	}
	var b strings.Builder
	b.WriteString(classifySystem)
	b.WriteString("\n\nKnown troll messages in this store:\n")
	for _, p := range patterns {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Manager) matchesPattern(normalized string) bool {
	if normalized == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.mem.TrollPatterns {
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// learnPattern records a freshly classified troll phrase. Duplicates are
// dropped, the oldest pattern is evicted past the cap.
func (m *Manager) learnPattern(normalized string) {
	if normalized == "" {
		return
	}
	m.mu.Lock()
	for _, p := range m.mem.TrollPatterns {
		if p == normalized {
			m.mu.Unlock()
			return
		}
	}
	m.mem.TrollPatterns = append(m.mem.TrollPatterns, normalized)
	if len(m.mem.TrollPatterns) > maxTrollPatterns {
		m.mem.TrollPatterns = m.mem.TrollPatterns[1:]
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("troll pattern learned",
		zap.String("store", m.store.Slug()), zap.String("pattern", normalized))
	m.persist(snapshot)
}

func (m *Manager) recordError(request, reason string) {
	m.mu.Lock()
	m.mem.FSMErrors = append(m.mem.FSMErrors, ErrorEntry{
		Timestamp: time.Now().UTC(),
		Request:   request,
		Reason:    reason,
	})
	if len(m.mem.FSMErrors) > maxErrorEntries {
		m.mem.FSMErrors = m.mem.FSMErrors[1:]
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(snapshot)
}

// snapshotLocked copies the memory so persist can marshal it outside the
// lock. Callers must hold mu.
func (m *Manager) snapshotLocked() memory {
	return memory{
		TrollPatterns: append([]string(nil), m.mem.TrollPatterns...),
		FSMErrors:     append([]ErrorEntry(nil), m.mem.FSMErrors...),
	}
}

func (m *Manager) persist(snapshot memory) {
	if err := m.store.SaveData(MemoryFile, snapshot); err != nil {
		m.logger.Error("troll memory save failed",
			zap.String("store", m.store.Slug()), zap.Error(err))
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
		return
	}
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
}

// Flush writes the memory out if an earlier save failed. Called on
// engine shutdown so learned patterns survive a restart.
func (m *Manager) Flush() error {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return nil
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.SaveData(MemoryFile, snapshot); err != nil {
		return fmt.Errorf("flushing troll memory: %w", err)
	}
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
	return nil
}

// Patterns returns a copy of the learned troll patterns, oldest first.
func (m *Manager) Patterns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mem.TrollPatterns...)
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// parseIntent reads the model's single-word answer, tolerating case,
// surrounding punctuation, and trailing chatter after the first word.
func parseIntent(reply string) (Intent, bool) {
	fields := strings.Fields(strings.ToLower(reply))
	if len(fields) == 0 {
		return IntentOther, false
	}
	word := strings.Trim(fields[0], `.,;"'!:`+"`")
	switch Intent(word) {
	case IntentSearch, IntentQuestion, IntentTroll, IntentOther:
		return Intent(word), true
	default:
		return IntentOther, false
	}
}
