package rag

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/conversation"
	"github.com/kailas-cloud/ragpipe/internal/usecase/contextopt"
	"github.com/kailas-cloud/ragpipe/internal/usecase/search"
)

// SearchEngine produces a ranked raw result set for a query.
type SearchEngine interface {
	Search(ctx context.Context, req search.Request) (domain.SearchResponse, error)
}

// QualityEngine scores, deduplicates, filters, and reorders results.
type QualityEngine interface {
	Process(query string, results []domain.SearchResult) domain.QualityReport
}

// ContextEngine assembles the token-bounded context and owns conversation
// memory.
type ContextEngine interface {
	Optimize(ctx context.Context, query string, results []domain.SearchResult, convID string) domain.OptimizedContext
	RecordMessage(convID, userID, agentID string, role conversation.Role, content string)
	Conversation(convID string) (contextopt.Snapshot, bool)
}
