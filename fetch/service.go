// Package fetch coordinates page fetching, extraction, pagination and
// failure replay for paginated listing sites. One Service owns one site:
// it resolves LoadNext triggers to page numbers, builds page URLs from the
// site's template and the pagination cursor, dispatches requests to the
// transport, routes outcomes to the extractor or the retry queue, and
// publishes results on the broker.
package fetch

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/lazercorn/anecdote"
)

// Service is the fetch orchestrator for a single site.
//
// All fetching for the site is serialized through one worker goroutine:
// at most one page request is in flight at a time and further triggers
// queue behind it. This makes the record store, the pagination cursor and
// the end-of-data flag single-writer and keeps completed batches in
// request order.
type Service struct {
	site      *anecdote.Site
	transport anecdote.Transport
	extractor anecdote.Extractor
	broker    anecdote.Broker
	limiter   *HostLimiter

	// mu guards state read from outside the worker goroutine.
	mu      sync.Mutex
	records []anecdote.Record
	end     bool

	// cursor and retries are written by the worker; retries is also
	// drained from the broker's dispatch goroutine and locks internally.
	cursor  *Cursor
	retries *RetryQueue

	// pending is the serialization point: triggers append here and the
	// worker consumes, so submission never blocks the caller.
	pmu     sync.Mutex
	pending []anecdote.LoadRequest
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithHostLimiter rate-limits the service's requests per host.
func WithHostLimiter(l *HostLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// NewService creates a fetch service for the site, subscribes it to
// LoadNext and ConnectivityChanged on the broker, and starts its worker
// goroutine. Call Close to stop it.
func NewService(site *anecdote.Site, transport anecdote.Transport, extractor anecdote.Extractor, broker anecdote.Broker, opts ...Option) (*Service, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		site:      site,
		transport: transport,
		extractor: extractor,
		broker:    broker,
		cursor:    NewCursor(),
		retries:   NewRetryQueue(),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	broker.Subscribe(anecdote.TopicLoadNext, s.handleLoadNext)
	broker.Subscribe(anecdote.TopicConnectivity, s.handleConnectivity)

	go s.run()

	return s, nil
}

// Site returns the site descriptor the service fetches.
func (s *Service) Site() *anecdote.Site {
	return s.site
}

// Records returns a copy of the records accumulated so far, in the order
// their batches completed.
func (s *Service) Records() []anecdote.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]anecdote.Record, len(s.records))
	copy(records, s.records)
	return records
}

// ClearRecords discards all accumulated records.
func (s *Service) ClearRecords() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// EndReached reports whether a fetched page has yielded zero records.
// The service does not suppress further fetch attempts itself; consumers
// are expected to check this flag before asking for more.
func (s *Service) EndReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// QueuedFailures returns the number of failed requests awaiting a
// connectivity-restored replay.
func (s *Service) QueuedFailures() int {
	return s.retries.Len()
}

// LoadNext asks the service to load the page containing the given item
// offset. It queues the request and returns immediately.
func (s *Service) LoadNext(startOffset int) {
	s.submit(anecdote.LoadRequest{
		ID:          uuid.NewString(),
		SiteID:      s.site.ID,
		StartOffset: startOffset,
		Page:        s.site.PageForOffset(startOffset),
	})
}

// Retry replays every queued failed request exactly once, in the order
// the failures happened. Requests that fail again are re-queued for the
// next signal.
func (s *Service) Retry() {
	for _, req := range s.retries.Drain() {
		s.submit(req)
	}
}

// Close stops the worker goroutine and cancels any in-flight request.
func (s *Service) Close() {
	s.cancel()
	<-s.done
}

func (s *Service) handleLoadNext(event anecdote.Event) {
	trigger, ok := event.(anecdote.LoadNext)
	if !ok || trigger.SiteID != s.site.ID {
		return
	}
	s.LoadNext(trigger.StartOffset)
}

func (s *Service) handleConnectivity(event anecdote.Event) {
	change, ok := event.(anecdote.ConnectivityChanged)
	if !ok || !change.Connected {
		return
	}
	s.Retry()
}

func (s *Service) submit(req anecdote.LoadRequest) {
	s.pmu.Lock()
	s.pending = append(s.pending, req)
	s.pmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) next() (anecdote.LoadRequest, bool) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if len(s.pending) == 0 {
		return anecdote.LoadRequest{}, false
	}
	req := s.pending[0]
	s.pending = s.pending[1:]
	return req, true
}

func (s *Service) run() {
	defer close(s.done)
	for {
		req, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}
		s.loadPage(req)
	}
}

// loadPage performs one fetch-extract round for a request. Every failure
// is converted to a RequestFailed event here; nothing propagates past the
// orchestrator.
func (s *Service) loadPage(req anecdote.LoadRequest) {
	token, _ := s.cursor.Get(req.Page)

	pageURL, err := s.site.PageURL(req.Page, token)
	if err != nil {
		// A config fix plus a reconnect signal should retry this, so the
		// request goes in the queue even though the transport was never
		// touched.
		s.retries.Enqueue(req)
		s.broker.Publish(anecdote.RequestFailed{
			SiteID:  s.site.ID,
			Message: "website configuration is wrong: " + s.site.Name,
			Cause:   err,
			Page:    req.Page,
			Reason:  anecdote.FailConfiguration,
		})
		return
	}

	if s.limiter != nil {
		if u, err := url.Parse(pageURL); err == nil {
			if err := s.limiter.Wait(s.ctx, u.Host); err != nil {
				return
			}
		}
	}

	resp, err := s.transport.Send(s.ctx, pageURL)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.retries.Enqueue(req)
		s.broker.Publish(anecdote.RequestFailed{
			SiteID:  s.site.ID,
			Message: "unable to load " + s.site.Name,
			Cause:   err,
			Page:    req.Page,
			Reason:  anecdote.FailNetwork,
		})
		return
	}

	if !resp.Success() {
		s.retries.Enqueue(req)
		s.broker.Publish(anecdote.RequestFailed{
			SiteID:  s.site.ID,
			Message: "unable to load website",
			Page:    req.Page,
			Reason:  anecdote.FailNetwork,
		})
		return
	}

	result, err := s.extractor.Extract(string(resp.Body), s.site)
	if err != nil {
		// A selector misconfiguration will not be fixed by reconnecting,
		// so the request is not re-queued.
		s.broker.Publish(anecdote.RequestFailed{
			SiteID:  s.site.ID,
			Message: "something went wrong, try another website setting",
			Cause:   err,
			Page:    req.Page,
			Reason:  anecdote.FailParse,
		})
		return
	}

	if result.End {
		// Silent end: the flag is set and no event is emitted.
		s.mu.Lock()
		s.end = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.records = append(s.records, result.Records...)
	s.mu.Unlock()

	if s.site.TokenRule != nil {
		s.cursor.Put(req.Page+1, result.NextPageToken)
	}

	s.broker.Publish(anecdote.RecordsLoaded{
		SiteID: s.site.ID,
		Count:  len(result.Records),
		Page:   req.Page,
	})
}
