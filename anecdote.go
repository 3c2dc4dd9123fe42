// Package anecdote provides an incremental fetcher for paginated listing
// sites. It requests listing pages one at a time, extracts structured
// records from each page using per-site CSS selector rules, tracks
// pagination continuation tokens across pages, and publishes outcomes to
// consumers over an in-process message broker. Failed requests are queued
// and replayed once when connectivity returns.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, resty/, bus/).
package anecdote
