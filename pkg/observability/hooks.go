package observability

import (
	"context"
	"log/slog"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one log line per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node_id", e.NodeID, "node_type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "run_id", e.RunID, "node_id", e.NodeID)
		},
		OnRunnerStart: func(ctx context.Context, e *domain.RunnerEvent) {
			logger.DebugContext(ctx, "runner_start", "run_id", e.RunID, "node_id", e.NodeID, "node_type", e.NodeType)
		},
		OnRunnerFinish: func(ctx context.Context, e *domain.RunnerEvent) {
			level := slog.LevelInfo
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "runner_finish",
				"run_id", e.RunID,
				"node_id", e.NodeID,
				"node_type", e.NodeType,
				"outcome", e.Outcome,
				"duration", e.Duration,
			)
		},
	}
}

// CombineHooks calls each set of hooks in order.
func CombineHooks(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range all {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range all {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnRunnerStart: func(ctx context.Context, e *domain.RunnerEvent) {
			for _, h := range all {
				if h.OnRunnerStart != nil {
					h.OnRunnerStart(ctx, e)
				}
			}
		},
		OnRunnerFinish: func(ctx context.Context, e *domain.RunnerEvent) {
			for _, h := range all {
				if h.OnRunnerFinish != nil {
					h.OnRunnerFinish(ctx, e)
				}
			}
		},
	}
}
