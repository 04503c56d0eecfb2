/*
Package domain contains the core data model of the scenario engine.

It defines the scenario graph (Nodes with typed payloads, Edges with handles),
the per-run snapshot (RunState and its transcript Steps), the user Actions that
drive a run, and the hook types through which a run reports to its host. The
package is kept free of I/O and persistence concerns.

# Key Entities

  - Node: a typed unit of conversation behaviour. Data is a closed sum type keyed by Type.
  - Edge: a transition between nodes, optionally labelled with a source handle.
  - RunState: the current node, transcript, slot and form values of one run.
  - Action: a user event (continue, reply, submit) applied to the current node.
  - RunDiff: a JSON-friendly delta between two snapshots, used for streaming updates.
*/
package domain
