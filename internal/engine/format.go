package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/embeddings"
	"github.com/fyrsmithlabs/storefrontd/internal/retrieval"
)

// knowledgeCollection is the collection name inside a store's persisted
// index that holds free-form reference snippets (delivery terms, FAQ).
const knowledgeCollection = "knowledge"

const knowledgeResults = 3

// formatProducts renders a search result as an HTML message: header,
// then one numbered block per product with price and an optional link.
func (e *Engine) formatProducts(products []retrieval.Scored) string {
	header := e.sc.Prompt("search_header", "Search results:")
	viewLabel := e.sc.Prompt("view_button", "View")
	priceLabel := e.sc.Prompt("price_label", "Price")
	currency := e.sc.Config().Currency

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", header)
	for i, p := range products {
		name := p.Record.Name
		if name == "" {
			name = "---"
		}
		price := p.Record.Price
		if price == "" {
			price = "???"
		}
		fmt.Fprintf(&b, "\n\n%d. <b>%s</b>\n%s: %s", i+1, name, priceLabel, price)
		if currency != "" {
			fmt.Fprintf(&b, " %s", currency)
		}
		if p.Record.Link != "" {
			fmt.Fprintf(&b, "\n<a href='%s'>%s</a>", p.Record.Link, viewLabel)
		}
	}
	return b.String()
}

// answerQuestion asks the heavy model, grounded in the store identity
// and, when the store ships a persisted knowledge index, the snippets
// closest to the question.
func (e *Engine) answerQuestion(ctx context.Context, text string) (string, error) {
	var b strings.Builder
	b.WriteString(e.sc.Prompt("product_consultant", "You are a helpful shop assistant."))
	fmt.Fprintf(&b, "\nYou answer for the store %q.", e.sc.Config().StoreName)
	fmt.Fprintf(&b, " Answer briefly in the shopper's language.")

	for _, snippet := range e.knowledgeSnippets(ctx, text) {
		b.WriteString("\n\nStore reference:\n")
		b.WriteString(snippet)
	}

	return e.llm.Complete(ctx, e.selector.Heavy(), b.String(), text)
}

// knowledgeSnippets queries the store's persisted index, if present.
// Every failure is soft: the question is still answered, just without
// grounding.
func (e *Engine) knowledgeSnippets(ctx context.Context, text string) []string {
	db, ok, err := e.sc.VectorDB()
	if err != nil {
		e.logger.Debug("persisted index unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	col := db.GetCollection(knowledgeCollection, embeddings.ChromemEmbeddingFunc(e.provider))
	if col == nil {
		return nil
	}

	count := col.Count()
	if count == 0 {
		return nil
	}
	// chromem rejects nResults above the document count.
	n := knowledgeResults
	if n > count {
		n = count
	}

	results, err := col.Query(ctx, text, n, nil, nil)
	if err != nil {
		e.logger.Debug("knowledge query failed", zap.Error(err))
		return nil
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content != "" {
			snippets = append(snippets, r.Content)
		}
	}
	return snippets
}
