/*
Package hamsfam executes chatbot scenarios: directed graphs of typed nodes
(message, branch, form, slotfilling, api, llm, setSlot, delay, link, iframe,
toast and scenario groups) interpreted step by step to drive a conversation.

# Concept

A scenario is loaded through a ports.ScenarioLoader. Each conversation on it
is a run: a snapshot of the current node, the transcript, slot values and form
values. The engine drives automatic nodes by itself and waits for the host on
interactive ones. The host reports user events as actions and receives every
settled snapshot through host callbacks; a ports.RunStore makes runs durable.

# Usage

	loader := memory.NewLoader(scenario)
	eng, err := hamsfam.New(loader,
		hamsfam.WithStore(memory.NewStore()),
		hamsfam.WithCallbacks(domain.HostCallbacks{
			OnProgress: func(ctx context.Context, ev *domain.ProgressEvent) {
				log.Println(ev.CurrentNodeID, len(ev.Steps))
			},
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Shutdown()

	run, err := eng.Start(ctx, "greeting", "")
	if err != nil {
		log.Fatal(err)
	}
	_ = run.Dispatch(ctx, domain.Continue())

Runs are safe for concurrent use. While an api, llm or delay node is in
flight, user actions fail with domain.ErrRunBusy; Reset cancels the in-flight
work and its result is discarded.
*/
package hamsfam
