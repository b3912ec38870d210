package retrieval

import (
	"sort"
	"strings"
	"sync"

	"workbench/pkg/contextx"
)

const previewLength = 200

// Document is a source registered with the local provider.
type Document struct {
	Name    string
	Title   string
	Content string
	URL     string
	Page    int
}

// LocalProvider is an in-process lexical scorer over registered documents,
// the default backend and the one tests run against.
type LocalProvider struct {
	minScore float64
	topK     int

	mu   sync.RWMutex
	docs []Document
}

func NewLocalProvider(minScore float64, topK int) *LocalProvider {
	return &LocalProvider{
		minScore: minScore,
		topK:     topK,
	}
}

func (p *LocalProvider) Register(doc Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, doc)
}

func (p *LocalProvider) Search(ctx *contextx.Context, query string, allowedNames []string, minScore float64, topK int) ([]Reference, []FilteredOut, error) {
	if minScore == 0 {
		minScore = p.minScore
	}
	if topK == 0 {
		topK = p.topK
	}

	allowed := map[string]bool{}
	for _, name := range allowedNames {
		allowed[name] = true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}

	var hits []scored
	var filtered []FilteredOut
	for i, doc := range p.docs {
		score := lexicalScore(query, doc)
		if score == 0 {
			continue
		}
		if len(allowed) > 0 && !allowed[doc.Name] {
			filtered = append(filtered, FilteredOut{Title: doc.Title, Score: score, Reason: "not in allow-list"})
			continue
		}
		if score < minScore {
			filtered = append(filtered, FilteredOut{Title: doc.Title, Score: score, Reason: "below score threshold"})
			continue
		}
		hits = append(hits, scored{idx: i, score: score})
	}

	// ties break on registration order, keeping results stable
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].idx < hits[b].idx
	})

	if topK > 0 && len(hits) > topK {
		for _, h := range hits[topK:] {
			filtered = append(filtered, FilteredOut{Title: p.docs[h.idx].Title, Score: h.score, Reason: "over top_k"})
		}
		hits = hits[:topK]
	}

	refs := make([]Reference, 0, len(hits))
	for _, h := range hits {
		doc := p.docs[h.idx]
		refs = append(refs, Reference{
			Title:   doc.Title,
			Score:   h.score,
			Preview: preview(doc.Content),
			URL:     doc.URL,
			Page:    doc.Page,
		})
	}
	return refs, filtered, nil
}

// lexicalScore is the fraction of query terms present in the document,
// always in [0,1].
func lexicalScore(query string, doc Document) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(doc.Title + " " + doc.Content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= previewLength {
		return content
	}
	return content[:previewLength]
}
