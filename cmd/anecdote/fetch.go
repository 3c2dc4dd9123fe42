package main

import (
	"fmt"
	"time"

	"github.com/lazercorn/anecdote"
	"github.com/lazercorn/anecdote/fetch"
	"golang.org/x/sync/errgroup"
)

// Run executes the fetch command.
func (c *FetchCmd) Run(deps *Dependencies) error {
	if c.All {
		g, _ := errgroup.WithContext(deps.Ctx)
		for _, sc := range deps.Config.Sites {
			svc, ok := deps.Services[sc.ID]
			if !ok {
				continue
			}
			g.Go(func() error {
				return c.fetchSite(deps, svc, 1, 0)
			})
		}
		return g.Wait()
	}

	if c.Site == "" {
		fmt.Fprintln(deps.Stderr, "error: a site ID is required unless --all is set. Run 'anecdote sites' to see configured sites.")
		return anecdote.Errorf(anecdote.EINVALID, "site ID required")
	}

	svc, ok := deps.Services[c.Site]
	if !ok {
		fmt.Fprintf(deps.Stderr, "error: site %q not found. Run 'anecdote sites' to see configured sites.\n", c.Site)
		return anecdote.Errorf(anecdote.ENOTFOUND, "site %q not found", c.Site)
	}

	return c.fetchSite(deps, svc, c.Pages, c.Offset)
}

// fetchSite drives the service page by page and prints each batch as its
// RecordsLoaded event arrives on the broker.
func (c *FetchCmd) fetchSite(deps *Dependencies, svc *fetch.Service, pages, offset int) error {
	siteID := svc.Site().ID

	events := make(chan anecdote.Event, 8)
	forward := func(e anecdote.Event) {
		select {
		case events <- e:
		default:
		}
	}
	deps.Broker.Subscribe(anecdote.TopicRecordsLoaded, func(e anecdote.Event) {
		if e.(anecdote.RecordsLoaded).SiteID == siteID {
			forward(e)
		}
	})
	deps.Broker.Subscribe(anecdote.TopicRequestFailed, func(e anecdote.Event) {
		if e.(anecdote.RequestFailed).SiteID == siteID {
			forward(e)
		}
	})

	for page := 0; page < pages; page++ {
		if svc.EndReached() {
			break
		}

		before := len(svc.Records())
		deps.Broker.Publish(anecdote.LoadNext{SiteID: siteID, StartOffset: offset})

		event, err := c.awaitPage(deps, svc, events)
		if err != nil {
			return err
		}
		if event == nil {
			// Silent end: the page yielded no records.
			break
		}

		switch e := event.(type) {
		case anecdote.RecordsLoaded:
			fmt.Fprintf(deps.Stdout, "%s: page %d, %d records\n", siteID, e.Page, e.Count)
			for _, record := range svc.Records()[before:] {
				fmt.Fprintf(deps.Stdout, "  %s\n    %s\n", record.Content, record.URL)
			}
		case anecdote.RequestFailed:
			fmt.Fprintf(deps.Stderr, "error: %s (page %d, %s)\n", e.Message, e.Page, e.Reason)
			code := anecdote.ErrorCode(e.Cause)
			if code == "" {
				code = anecdote.ENETWORK
			}
			return anecdote.Errorf(code, "site %s: %s", siteID, e.Message)
		}

		offset = len(svc.Records())
	}

	if svc.EndReached() {
		fmt.Fprintf(deps.Stdout, "%s: no more items\n", siteID)
	}

	return nil
}

// awaitPage waits for the page's outcome event. A nil event means the
// end-of-data flag was raised without one.
func (c *FetchCmd) awaitPage(deps *Dependencies, svc *fetch.Service, events chan anecdote.Event) (anecdote.Event, error) {
	deadline := time.NewTimer(c.Wait)
	defer deadline.Stop()
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case event := <-events:
			return event, nil
		case <-poll.C:
			if svc.EndReached() {
				return nil, nil
			}
		case <-deadline.C:
			return nil, anecdote.Errorf(anecdote.EINTERNAL, "timed out waiting for site %s", svc.Site().ID)
		case <-deps.Ctx.Done():
			return nil, deps.Ctx.Err()
		}
	}
}
