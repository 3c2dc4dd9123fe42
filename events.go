package anecdote

// Broker topics.
const (
	TopicRecordsLoaded = "records.loaded"
	TopicRequestFailed = "request.failed"
	TopicLoadNext      = "load.next"
	TopicConnectivity  = "connectivity.changed"
)

// Event is a message delivered over the Broker.
type Event interface {
	// Topic returns the subscription topic the event is published under.
	Topic() string
}

// Handler consumes events delivered by a Broker.
type Handler func(Event)

// Broker is an in-process publish/subscribe channel. Publish may be called
// from any goroutine; delivery to subscribers happens on one fixed consumer
// goroutine, preserving the order in which a single producer published.
// A Broker is constructed explicitly at startup and passed to the
// components that need it.
type Broker interface {
	Publish(Event)
	Subscribe(topic string, fn Handler)
}

// RecordsLoaded announces that a page fetch produced records.
type RecordsLoaded struct {
	SiteID string
	Count  int
	Page   int
}

// Topic implements Event.
func (RecordsLoaded) Topic() string { return TopicRecordsLoaded }

// FailReason classifies a failed load request.
type FailReason string

// FailReason values.
const (
	// FailConfiguration is a malformed URL template. The request is queued
	// so a later config fix plus reconnect signal can retry it.
	FailConfiguration FailReason = "configuration"

	// FailNetwork is a transport failure or non-success status. Always
	// queued for retry.
	FailNetwork FailReason = "network"

	// FailParse is a selector misconfiguration found after a successful
	// fetch. Never queued: reconnecting would repeat the same failure.
	FailParse FailReason = "parse"
)

// RequestFailed announces that a load request failed.
// Cause may be nil, e.g. for a non-2xx response without a body.
type RequestFailed struct {
	SiteID  string
	Message string
	Cause   error
	Page    int
	Reason  FailReason
}

// Topic implements Event.
func (RequestFailed) Topic() string { return TopicRequestFailed }

// LoadNext asks the site's fetch service to load the page containing
// StartOffset.
type LoadNext struct {
	SiteID      string
	StartOffset int
}

// Topic implements Event.
func (LoadNext) Topic() string { return TopicLoadNext }

// ConnectivityChanged reports a network connectivity transition. The
// transition to connected triggers the replay of queued failed requests.
type ConnectivityChanged struct {
	Connected bool
}

// Topic implements Event.
func (ConnectivityChanged) Topic() string { return TopicConnectivity }

// LoadRequest is one consumer-originated request to load a page. It is
// created when a LoadNext event arrives, retained unchanged in the failure
// queue if the fetch fails, and discarded after a successful fetch or
// replay.
type LoadRequest struct {
	// ID correlates the request across retries and log lines.
	ID string

	SiteID      string
	StartOffset int

	// Page is the resolved page number being fetched.
	Page int
}
