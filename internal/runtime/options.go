package runtime

import (
	"log/slog"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for runner faults and store errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore enables hydration from, and persistence to, a snapshot store.
func WithStore(store ports.RunStore) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithHTTPClient sets the client used by api nodes.
func WithHTTPClient(client ports.HTTPDoer) Option {
	return func(c *Controller) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTextStreamer sets the generation backend used by llm nodes.
func WithTextStreamer(streamer ports.TextStreamer) Option {
	return func(c *Controller) {
		c.streamer = streamer
	}
}

// WithSystemPrompt is sent along with every llm prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) {
		c.systemPrompt = prompt
	}
}

// WithCallbacks registers the host output surface. Callbacks are invoked in
// order from a publisher goroutine with no lock held, so they may read the
// controller.
func WithCallbacks(cb domain.HostCallbacks) Option {
	return func(c *Controller) {
		c.callbacks = cb
	}
}

// WithLifecycleHooks registers observability hooks.
// Hooks run synchronously and must not call back into the controller.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithInitialState seeds a run that has no persisted snapshot.
func WithInitialState(state *domain.RunState) Option {
	return func(c *Controller) {
		c.initial = state.Clone()
	}
}

// WithStrictAPIFailure makes a failed api call without an onFail edge end the
// run. By default the run continues through the onSuccess edge.
func WithStrictAPIFailure(strict bool) Option {
	return func(c *Controller) {
		c.strictAPIFailure = strict
	}
}

// WithClock overrides the time source used for lifecycle events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
