package orchestrator

import (
	"context"
	"sort"

	"onboard/internal/roster/models"
	"onboard/internal/rules"
)

// snapshot is one poll of every configured category.
type snapshot struct {
	pending []models.Record
	newIDs  map[string]struct{}
	errs    []error
}

// enrich attaches labels, ride rules and proposed handles. Label lookups that
// fail leave records grouped by their raw location.
func (s *Service) enrich(ctx context.Context, records []models.Record) []models.Enriched {
	if len(records) == 0 {
		return nil
	}

	var labels map[string]string
	if s.enricher != nil {
		var err error
		labels, err = s.enricher.Labels(ctx, records)
		if err != nil {
			s.logger.WarnContext(ctx, "location enrichment incomplete", "error", err)
		}
	}

	ruleSet, err := s.rules.ListRules(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "ride rules unavailable, records left unmatched", "error", err)
		ruleSet = nil
	}

	out := make([]models.Enriched, len(records))
	var needEmail []string
	var needEmailIdx []int
	for i, r := range records {
		label := labels[r.ID]
		if label == "" {
			label = r.Location
		}
		out[i] = models.Enriched{Record: r, Label: label}
		if len(ruleSet) > 0 {
			out[i].Rule = s.matcher.Match(label, ruleSet)
		}
		if !r.HasEmail {
			needEmail = append(needEmail, r.Name)
			needEmailIdx = append(needEmailIdx, i)
		}
	}

	for j, a := range s.allocator.AllocateBatch(ctx, needEmail, nil) {
		if a.Err == nil {
			out[needEmailIdx[j]].ProposedHandle = a.Handle
		}
	}
	return out
}

// groupRecords partitions records by grouping key, keys sorted.
func groupRecords(records []models.Enriched) ([]string, map[string][]models.Enriched) {
	groups := make(map[string][]models.Enriched)
	for _, r := range records {
		key := r.GroupKey()
		groups[key] = append(groups[key], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

// StaticRules serves ride rules from configuration.
type StaticRules []rules.Rule

func (s StaticRules) ListRules(context.Context) ([]rules.Rule, error) {
	return append([]rules.Rule(nil), s...), nil
}
