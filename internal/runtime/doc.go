/*
Package runtime executes scenario runs.

A Controller owns the state of one run. Activate hydrates it once (persisted
snapshot, then initial state, then the root node) and Dispatch applies user
actions. Between user actions the controller drives automatic nodes itself:
setSlot and group nodes settle synchronously, while api, llm and delay nodes
run in a goroutine under a cancellation token. Resetting or closing the run
cancels the token, which aborts the in-flight request or timer.

Every settled transition is queued for publication. A single publisher
persists the snapshot, reports progress and appends the final history,
skipping duplicates by comparing canonical JSON signatures.
*/
package runtime
