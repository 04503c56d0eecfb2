package middleware

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// Mask replaces sensitive values in stored snapshots.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks slot and form values whose
// key matches one of the patterns. Masking only affects the stored copy, so a
// resumed run sees the mask instead of the original value.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, state *domain.RunState) error {
	// Deep clone to avoid side effects on the in-memory state of the run.
	cloned := state.Clone()
	masked := maskMap(cloned.SlotValues, m.patterns)
	masked = append(masked, maskMap(cloned.FormValues, m.patterns)...)

	// Transcript steps echo what the user typed into masked fields.
	for i, step := range cloned.Steps {
		if step.Role != domain.RoleUser {
			continue
		}
		for _, v := range masked {
			if v != "" && strings.Contains(step.Text, v) {
				cloned.Steps[i].Text = strings.ReplaceAll(cloned.Steps[i].Text, v, Mask)
			}
		}
	}
	return m.next.Save(ctx, runID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.RunState, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// maskMap masks matching keys in place and returns the masked string values.
func maskMap(values map[string]any, patterns []*regexp.Regexp) []string {
	var masked []string
	for k, v := range values {
		if matchesAny(k, patterns) {
			if s, ok := v.(string); ok {
				masked = append(masked, s)
			}
			values[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			masked = append(masked, maskMap(sub, patterns)...)
		}
	}
	return masked
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
