// Package loam loads scenarios from a loam document repository, so scenario
// files can live as Markdown with frontmatter, JSON or YAML next to their
// prose documentation.
package loam

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/aretw0/loam"
)

// Loader adapts a loam repository to ports.ScenarioLoader.
type Loader struct {
	Repo *loam.TypedRepository[ScenarioMetadata]
}

var _ ports.ScenarioLoader = (*Loader)(nil)

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[ScenarioMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only repository rooted at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scenario directory: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithVersioning(false),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario repository: %w", err)
	}
	return New(loam.NewTypedRepository[ScenarioMetadata](repo)), nil
}

// Load retrieves a scenario document and decodes its graph. The key is the
// document id without extension unless the metadata sets one.
func (l *Loader) Load(ctx context.Context, key string) (*domain.Scenario, error) {
	doc, err := l.Repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, key)
		}
		return nil, fmt.Errorf("%w: loam get failed for %s: %v", domain.ErrScenarioNotFound, key, err)
	}

	meta := doc.Data
	raw := map[string]any{
		"title": meta.Title,
		"nodes": normalize(meta.Nodes),
		"edges": normalize(meta.Edges),
	}
	sc, err := domain.DecodeScenario(key, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", key, err)
	}
	if sc.Title == "" {
		sc.Title = firstLine(doc.Content)
	}
	if err := graph.Validate(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// List lists all scenario keys in the repository.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.Key
		if rawID == "" {
			rawID = doc.ID
		}
		key := trimExtension(rawID)

		if existingPath, ok := seen[key]; ok {
			return nil, fmt.Errorf("collision detected: scenario '%s' is defined in both '%s' and '%s'", key, existingPath, doc.ID)
		}
		seen[key] = doc.ID
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch reports the key of every scenario document that changes until ctx
// is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func firstLine(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

// normalize converts YAML style map[any]any values into map[string]any so the
// domain decoder sees one shape regardless of the serializer.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprint(k)] = normalize(sub)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalize(sub)
		}
		return out
	}
	return v
}
