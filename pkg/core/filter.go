package core

import "github.com/agentmem/agentmem-go/pkg/types"

// applyQuery filters candidates against every query predicate, orders by
// relevance, and applies the limit exactly once at the end. Filtering before
// limiting keeps the result set stable regardless of which tier the
// candidates came from.
func applyQuery(records []*types.MemoryContext, query *types.ContextQuery) []*types.MemoryContext {
	var matched []*types.MemoryContext
	for _, record := range records {
		if matchQuery(record, query) {
			matched = append(matched, record)
		}
	}

	types.SortByRelevance(matched)

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched
}

func matchQuery(record *types.MemoryContext, query *types.ContextQuery) bool {
	if record.TenantID != query.TenantID {
		return false
	}
	if query.UserID != "" && record.UserID != query.UserID {
		return false
	}
	if query.SessionID != "" && record.SessionID != query.SessionID {
		return false
	}

	if len(query.ContextTypes) > 0 {
		found := false
		for _, t := range query.ContextTypes {
			if record.ContextType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query.TimeRange != nil {
		if record.CreatedAt.Before(query.TimeRange.Start) || record.CreatedAt.After(query.TimeRange.End) {
			return false
		}
	}

	if query.RelevanceThreshold > 0 && record.RelevanceScore < query.RelevanceThreshold {
		return false
	}

	if len(query.Tags) > 0 && !hasAnyTag(record.Metadata.Tags, query.Tags) {
		return false
	}

	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
