// Package engine implements the per-store message handler: one engine
// owns a tenant's dialog manager and retrieval index and turns incoming
// Telegram updates into replies.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/dialog"
	"github.com/fyrsmithlabs/storefrontd/internal/embeddings"
	"github.com/fyrsmithlabs/storefrontd/internal/llm"
	"github.com/fyrsmithlabs/storefrontd/internal/registry"
	"github.com/fyrsmithlabs/storefrontd/internal/retrieval"
	"github.com/fyrsmithlabs/storefrontd/internal/store"
	"github.com/fyrsmithlabs/storefrontd/internal/translate"
)

// Completer is the slice of the LLM client engines use.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Sender delivers replies to shoppers.
type Sender interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
}

// Deps are the process-wide collaborators shared by every store engine.
type Deps struct {
	Provider   embeddings.Provider
	Translator translate.Translator
	LLM        Completer
	Selector   *llm.Selector
	Sender     Sender
	Retrieval  retrieval.Options
	Logger     *zap.Logger
}

// Stats is a snapshot of one engine's counters.
type Stats struct {
	Updates   int64 `json:"updates"`
	Searches  int64 `json:"searches"`
	Hits      int64 `json:"hits"`
	NoResults int64 `json:"no_results"`
	Trolls    int64 `json:"trolls"`
	Failures  int64 `json:"failures"`
}

// Engine handles updates for a single store.
type Engine struct {
	sc        *store.StoreContext
	retrieval *retrieval.Engine
	dialog    *dialog.Manager
	provider  embeddings.Provider
	llm       Completer
	selector  *llm.Selector
	sender    Sender
	logger    *zap.Logger

	updates   atomic.Int64
	searches  atomic.Int64
	hits      atomic.Int64
	noResults atomic.Int64
	trolls    atomic.Int64
	failures  atomic.Int64
}

// New builds the engine for one store, including its retrieval index. A
// build failure fails construction; the registry then skips the store
// or keeps the old engine serving.
func New(ctx context.Context, sc *store.StoreContext, deps Deps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("store", sc.Slug()))

	selector := deps.Selector
	if selector == nil {
		selector = llm.NewSelector("", "")
	}

	r := retrieval.New(sc, deps.Provider, deps.Translator, deps.Retrieval, logger)
	if err := r.Build(ctx); err != nil {
		return nil, fmt.Errorf("building retrieval engine: %w", err)
	}

	return &Engine{
		sc:        sc,
		retrieval: r,
		dialog:    dialog.NewManager(sc, deps.LLM, selector.Fast(), logger),
		provider:  deps.Provider,
		llm:       deps.LLM,
		selector:  selector,
		sender:    deps.Sender,
		logger:    logger,
	}, nil
}

// NewFactory binds the shared collaborators into the registry's engine
// factory.
func NewFactory(deps Deps) registry.Factory {
	return func(ctx context.Context, sc *store.StoreContext) (registry.Engine, error) {
		return New(ctx, sc, deps)
	}
}

type update struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// HandleUpdate processes one Telegram webhook payload. Updates without
// a chat id or text (edits, stickers, joins) are ignored. The shopper
// always gets a reply on the paths that answer; raw errors never reach
// the chat.
func (e *Engine) HandleUpdate(ctx context.Context, raw json.RawMessage) error {
	e.updates.Add(1)

	var upd update
	if err := json.Unmarshal(raw, &upd); err != nil {
		e.failures.Add(1)
		return fmt.Errorf("parsing update: %w", err)
	}

	chatID := upd.Message.Chat.ID
	text := upd.Message.Text
	if chatID == 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	e.logger.Debug("processing message", zap.Int64("chat_id", chatID))

	var reply string
	switch e.dialog.Handle(ctx, text) {
	case dialog.IntentTroll:
		e.trolls.Add(1)
		reply = e.sc.Prompt("troll", "Let's get back to shopping.")

	case dialog.IntentSearch:
		reply = e.handleSearch(ctx, text)

	case dialog.IntentQuestion:
		reply = e.handleQuestion(ctx, text)

	default:
		reply = e.sc.Prompt("default", "Tell me what product you are looking for.")
	}

	if err := e.sender.SendMessage(ctx, e.sc.Config().BotToken.Value(), chatID, reply); err != nil {
		e.failures.Add(1)
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

func (e *Engine) handleSearch(ctx context.Context, text string) string {
	e.searches.Add(1)

	res, err := e.retrieval.Search(ctx, text)
	if err != nil {
		e.failures.Add(1)
		e.logger.Error("search failed", zap.Error(err))
		return e.sc.Prompt("error", "Something went wrong. Please try again later.")
	}

	if res.Status == retrieval.StatusSuccess {
		e.hits.Add(1)
		return e.formatProducts(res.Products)
	}

	e.noResults.Add(1)
	reply := e.sc.Prompt("not_found", "Nothing found.")
	if len(res.AvailableCategories) > 0 {
		hint := e.sc.Prompt("categories_hint", "Available categories: {options}")
		reply += "\n" + strings.ReplaceAll(hint, "{options}", strings.Join(res.AvailableCategories, ", "))
	}
	return reply
}

func (e *Engine) handleQuestion(ctx context.Context, text string) string {
	answer, err := e.answerQuestion(ctx, text)
	if err != nil {
		e.failures.Add(1)
		e.logger.Error("question answering failed", zap.Error(err))
		return e.sc.Prompt("error", "Something went wrong. Please try again later.")
	}
	return answer
}

// Stats snapshots the engine counters for the admin API.
func (e *Engine) Stats() Stats {
	return Stats{
		Updates:   e.updates.Load(),
		Searches:  e.searches.Load(),
		Hits:      e.hits.Load(),
		NoResults: e.noResults.Load(),
		Trolls:    e.trolls.Load(),
		Failures:  e.failures.Load(),
	}
}

// Categories exposes the retrieval engine's category list for the admin
// API.
func (e *Engine) Categories() []string {
	return e.retrieval.Categories()
}

// IndexSize exposes the retrieval index size for the admin API.
func (e *Engine) IndexSize() int {
	return e.retrieval.IndexSize()
}

// Close flushes the troll memory so learned patterns survive restarts.
func (e *Engine) Close(_ context.Context) error {
	if err := e.dialog.Flush(); err != nil {
		return fmt.Errorf("closing engine %s: %w", e.sc.Slug(), err)
	}
	return nil
}
