// Package audit persists guard block events.
//
// Every blocked request produces one Event: when, which direction, which
// client, and which scanners failed. Request and response bodies are never
// persisted; the content is represented only by a hash so operators can
// correlate repeat offenders without retaining the text itself.
//
// Store is the synchronous SQLite-backed store. Recorder wraps it with a
// buffered asynchronous writer so the request path never waits on disk.
// Pruner deletes events past the retention window on a cron schedule.
package audit
