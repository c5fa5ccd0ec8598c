package rag

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/text"
)

const (
	maxAlternativeQueries = 3
	maxRelatedEntities    = 5
	maxFollowUps          = 3
)

// Recommendations suggest how the caller could continue the session.
type Recommendations struct {
	AlternativeQueries []string `json:"alternativeQueries"`
	RelatedEntities    []string `json:"relatedEntities"`
	FollowUpQuestions  []string `json:"followUpQuestions"`
}

// recommend derives alternative phrasings from top extracted topics, related
// entities from tracked mentions, and follow-up questions from entities and
// insights.
func (s *Service) recommend(req Request, optimized domain.OptimizedContext) Recommendations {
	topics := text.TopTerms(optimized.Content, maxAlternativeQueries+2)
	if req.ConversationID != "" {
		if snap, ok := s.contextOpt.Conversation(req.ConversationID); ok {
			topics = append(topics, snap.Topics...)
		}
	}

	var recs Recommendations

	queryWords := make(map[string]struct{})
	for _, w := range text.Words(req.Query) {
		queryWords[w] = struct{}{}
	}
	for _, topic := range topics {
		if len(recs.AlternativeQueries) >= maxAlternativeQueries {
			break
		}
		if _, inQuery := queryWords[topic]; inQuery {
			continue
		}
		recs.AlternativeQueries = append(recs.AlternativeQueries,
			fmt.Sprintf("%s %s", req.Query, topic))
	}

	recs.RelatedEntities = topEntities(optimized.EntityMentions, maxRelatedEntities)

	for _, entity := range recs.RelatedEntities {
		if len(recs.FollowUpQuestions) >= maxFollowUps {
			break
		}
		recs.FollowUpQuestions = append(recs.FollowUpQuestions,
			fmt.Sprintf("Can you expand on %s?", entity))
	}
	if len(recs.FollowUpQuestions) < maxFollowUps {
		for _, insight := range optimized.KeyInsights {
			if len(recs.FollowUpQuestions) >= maxFollowUps {
				break
			}
			if terms := text.TopTerms(insight, 1); len(terms) > 0 {
				recs.FollowUpQuestions = append(recs.FollowUpQuestions,
					fmt.Sprintf("What else is known about %s?", terms[0]))
			}
		}
	}

	return recs
}

// topEntities orders entities by mention count, name as tie-break.
func topEntities(mentions map[string]int, n int) []string {
	entities := make([]string, 0, len(mentions))
	for e := range mentions {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		if mentions[entities[i]] != mentions[entities[j]] {
			return mentions[entities[i]] > mentions[entities[j]]
		}
		return entities[i] < entities[j]
	})
	if len(entities) > n {
		entities = entities[:n]
	}
	return entities
}
