/*
Package observability monitors scenario runs.

It turns the engine's lifecycle hooks and host callbacks into Prometheus
metrics and structured log lines, and serves the collected metrics over HTTP.
*/
package observability
