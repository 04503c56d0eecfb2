/*
Package session coordinates access to persisted run snapshots.

The Manager wraps a ports.RunStore with per-run locks, and optionally with a
distributed lock, so hosts running several replicas never interleave writes
for the same run. It satisfies ports.RunStore itself and can be handed to a
controller in place of the raw store.
*/
package session
