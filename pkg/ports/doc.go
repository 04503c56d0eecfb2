/*
Package ports defines the driven ports (interfaces) of the scenario engine.

These interfaces decouple the execution controller from external
implementations, so the same engine runs against different scenario sources,
snapshot stores and text generation backends.

# Key Interfaces

  - ScenarioLoader: Loads a scenario graph by key (memory, files, Loam).
  - RunStore: Persists and loads run snapshots keyed by run id.
  - TextStreamer: Streams generated text for llm nodes.
  - HTTPDoer: Issues the HTTP requests of api nodes.
  - DistributedLocker: Coordinates access to one run across replicas.
*/
package ports
