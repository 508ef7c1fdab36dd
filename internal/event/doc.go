// Package event provides the progress and diagnostic event sink used by the
// discovery pipeline.
//
// The fetcher, the discoverer and the orchestrator report every decision
// (search issued, candidate rejected, escalation, fallback) as an Event to a
// Sink. Sinks never influence control flow: a Sink may print, log, count or
// ignore events.
//
// # Usage
//
//	sink := event.NewMultiSink(event.NewLogSink(logger), event.NewProgressSink(os.Stdout))
//	d := discovery.New(provider, fetcher, discovery.WithSink(sink))
package event
