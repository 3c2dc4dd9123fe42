package fetch_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lazercorn/anecdote"
	"github.com/lazercorn/anecdote/bus"
	"github.com/lazercorn/anecdote/fetch"
	"github.com/lazercorn/anecdote/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSite() *anecdote.Site {
	return &anecdote.Site{
		ID:           "vdm",
		Name:         "VDM",
		URLTemplate:  "https://example.com/list?page={page}&after={token}",
		ListSelector: "article.post",
		ItemsPerPage: 20,
		ContentRule:  &anecdote.FieldRule{Selector: "p.content"},
		URLRule:      &anecdote.FieldRule{Selector: "a", Attr: "href"},
		TokenRule:    &anecdote.FieldRule{Selector: "#next", Attr: "data-cursor"},
	}
}

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []anecdote.Event
}

func (r *eventRecorder) publish(event anecdote.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []anecdote.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]anecdote.Event, len(r.events))
	copy(events, r.events)
	return events
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// urlRecorder captures the URLs the service sends to the transport.
type urlRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (r *urlRecorder) add(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
}

func (r *urlRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	urls := make([]string, len(r.urls))
	copy(urls, r.urls)
	return urls
}

func (r *urlRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.urls)
}

func TestService_LoadNext(t *testing.T) {
	t.Parallel()

	t.Run("successful fetch publishes RecordsLoaded and grows the store", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				return &anecdote.Response{StatusCode: 200, Body: []byte("<html>page</html>")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{
					Records: []anecdote.Record{
						{Content: "first", URL: "https://example.com/1"},
						{Content: "second", URL: "https://example.com/2"},
					},
					NextPageToken: "tok-2",
				}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)

		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 10*time.Millisecond)

		loaded, ok := recorder.all()[0].(anecdote.RecordsLoaded)
		require.True(t, ok)
		assert.Equal(t, "vdm", loaded.SiteID)
		assert.Equal(t, 2, loaded.Count)
		assert.Equal(t, 1, loaded.Page)

		records := svc.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "first", records[0].Content)
		assert.False(t, svc.EndReached())
		assert.Zero(t, svc.QueuedFailures())
	})

	t.Run("stored token from page P is used to request page P+1", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		urls := &urlRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				urls.add(url)
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{
					Records:       []anecdote.Record{{Content: "a"}},
					NextPageToken: "tok-2",
				}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)  // page 1, no token
		svc.LoadNext(20) // page 2, token extracted from page 1

		require.Eventually(t, func() bool { return urls.count() == 2 }, time.Second, 10*time.Millisecond)

		sent := urls.all()
		assert.Equal(t, "https://example.com/list?page=1&after=", sent[0])
		assert.Equal(t, "https://example.com/list?page=2&after=tok-2", sent[1])
	})

	t.Run("offset resolves to the containing page", func(t *testing.T) {
		t.Parallel()

		urls := &urlRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				urls.add(url)
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{Records: []anecdote.Record{{Content: "a"}}}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: func(anecdote.Event) {}})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(45) // itemsPerPage=20 resolves to page 3

		require.Eventually(t, func() bool { return urls.count() == 1 }, time.Second, 10*time.Millisecond)
		assert.True(t, strings.Contains(urls.all()[0], "page=3"))
	})

	t.Run("non-success status queues the request and publishes a network failure", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				return &anecdote.Response{StatusCode: 500}, nil
			},
		}
		extractor := &mock.Extractor{}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(20) // page 2

		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 10*time.Millisecond)

		failed, ok := recorder.all()[0].(anecdote.RequestFailed)
		require.True(t, ok)
		assert.Equal(t, anecdote.FailNetwork, failed.Reason)
		assert.Equal(t, 2, failed.Page)
		assert.Nil(t, failed.Cause)
		assert.Equal(t, 1, svc.QueuedFailures())
		assert.Empty(t, svc.Records())
	})

	t.Run("queued request is refetched on retry without a new trigger", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		urls := &urlRecorder{}
		var failing sync.Map
		failing.Store("on", true)
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				urls.add(url)
				if _, down := failing.Load("on"); down {
					return &anecdote.Response{StatusCode: 500}, nil
				}
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{Records: []anecdote.Record{{Content: "a"}}}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(20)
		require.Eventually(t, func() bool { return svc.QueuedFailures() == 1 }, time.Second, 10*time.Millisecond)

		failing.Delete("on")
		svc.Retry()

		require.Eventually(t, func() bool { return urls.count() == 2 }, time.Second, 10*time.Millisecond)
		assert.True(t, strings.Contains(urls.all()[1], "page=2"))

		require.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, 10*time.Millisecond)
		loaded, ok := recorder.all()[1].(anecdote.RecordsLoaded)
		require.True(t, ok)
		assert.Equal(t, 2, loaded.Page)
		assert.Zero(t, svc.QueuedFailures())
	})

	t.Run("malformed template fails identically on every dispatch", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		site := testSite()
		site.URLTemplate = "not-a-url-{page}"
		var sent int
		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				sent++
				return nil, nil
			},
		}

		svc, err := fetch.NewService(site, transport, &mock.Extractor{}, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)
		svc.LoadNext(0)

		require.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, 10*time.Millisecond)

		for _, event := range recorder.all() {
			failed, ok := event.(anecdote.RequestFailed)
			require.True(t, ok)
			assert.Equal(t, anecdote.FailConfiguration, failed.Reason)
			assert.Equal(t, anecdote.ECONFIG, anecdote.ErrorCode(failed.Cause))
		}
		assert.Zero(t, sent, "configuration failures must not touch the transport")
		assert.Equal(t, 2, svc.QueuedFailures())
	})

	t.Run("parse failure is surfaced but not queued for retry", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, site *anecdote.Site) (*anecdote.ExtractResult, error) {
				return nil, anecdote.Errorf(anecdote.ECONFIG, "site %s: invalid list selector", site.ID)
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)

		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 10*time.Millisecond)

		failed, ok := recorder.all()[0].(anecdote.RequestFailed)
		require.True(t, ok)
		assert.Equal(t, anecdote.FailParse, failed.Reason)
		assert.Zero(t, svc.QueuedFailures(), "reconnecting would repeat the same parse failure")
	})

	t.Run("empty page sets the end flag silently", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{End: true}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)

		require.Eventually(t, svc.EndReached, time.Second, 10*time.Millisecond)
		assert.Zero(t, recorder.count(), "end of data is silent")
		assert.Empty(t, svc.Records())
	})

	t.Run("transport errors are classified as network failures", func(t *testing.T) {
		t.Parallel()

		recorder := &eventRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				return nil, anecdote.Errorf(anecdote.ENETWORK, "get %s: connection refused", url)
			},
		}

		svc, err := fetch.NewService(testSite(), transport, &mock.Extractor{}, &mock.Broker{PublishFn: recorder.publish})
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)

		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 10*time.Millisecond)

		failed, ok := recorder.all()[0].(anecdote.RequestFailed)
		require.True(t, ok)
		assert.Equal(t, anecdote.FailNetwork, failed.Reason)
		assert.Equal(t, anecdote.ENETWORK, anecdote.ErrorCode(failed.Cause))
		assert.Equal(t, 1, svc.QueuedFailures())
	})

	t.Run("invalid site is rejected at construction", func(t *testing.T) {
		t.Parallel()

		site := testSite()
		site.ListSelector = ""

		_, err := fetch.NewService(site, &mock.Transport{}, &mock.Extractor{}, &mock.Broker{PublishFn: func(anecdote.Event) {}})

		require.Error(t, err)
		assert.Equal(t, anecdote.EINVALID, anecdote.ErrorCode(err))
	})
}

func TestService_ClearRecords(t *testing.T) {
	t.Parallel()

	transport := &mock.Transport{
		SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
			return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
		},
	}
	extractor := &mock.Extractor{
		ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
			return &anecdote.ExtractResult{Records: []anecdote.Record{{Content: "a"}}}, nil
		},
	}

	svc, err := fetch.NewService(testSite(), transport, extractor, &mock.Broker{PublishFn: func(anecdote.Event) {}})
	require.NoError(t, err)
	defer svc.Close()

	svc.LoadNext(0)
	require.Eventually(t, func() bool { return len(svc.Records()) == 1 }, time.Second, 10*time.Millisecond)

	svc.ClearRecords()

	assert.Empty(t, svc.Records())
}

func TestService_BusIntegration(t *testing.T) {
	t.Parallel()

	t.Run("LoadNext events drive the service and failures replay on reconnect", func(t *testing.T) {
		t.Parallel()

		b := bus.New()
		defer b.Close()

		urls := &urlRecorder{}
		var failing sync.Map
		failing.Store("on", true)
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				urls.add(url)
				if _, down := failing.Load("on"); down {
					return &anecdote.Response{StatusCode: 503}, nil
				}
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{Records: []anecdote.Record{{Content: "a"}}}, nil
			},
		}

		loaded := make(chan anecdote.Event, 4)
		b.Subscribe(anecdote.TopicRecordsLoaded, func(e anecdote.Event) { loaded <- e })

		svc, err := fetch.NewService(testSite(), transport, extractor, b)
		require.NoError(t, err)
		defer svc.Close()

		b.Publish(anecdote.LoadNext{SiteID: "vdm", StartOffset: 20})
		require.Eventually(t, func() bool { return svc.QueuedFailures() == 1 }, time.Second, 10*time.Millisecond)

		failing.Delete("on")
		b.Publish(anecdote.ConnectivityChanged{Connected: true})

		select {
		case e := <-loaded:
			assert.Equal(t, 2, e.(anecdote.RecordsLoaded).Page)
		case <-time.After(time.Second):
			t.Fatal("queued request was not replayed")
		}
		assert.Zero(t, svc.QueuedFailures())
	})

	t.Run("triggers for other sites are ignored", func(t *testing.T) {
		t.Parallel()

		b := bus.New()
		defer b.Close()

		urls := &urlRecorder{}
		transport := &mock.Transport{
			SendFn: func(_ context.Context, url string) (*anecdote.Response, error) {
				urls.add(url)
				return &anecdote.Response{StatusCode: 200, Body: []byte("ok")}, nil
			},
		}
		extractor := &mock.Extractor{
			ExtractFn: func(_ string, _ *anecdote.Site) (*anecdote.ExtractResult, error) {
				return &anecdote.ExtractResult{Records: []anecdote.Record{{Content: "a"}}}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, extractor, b)
		require.NoError(t, err)
		defer svc.Close()

		b.Publish(anecdote.LoadNext{SiteID: "other", StartOffset: 0})
		b.Publish(anecdote.LoadNext{SiteID: "vdm", StartOffset: 0})

		require.Eventually(t, func() bool { return urls.count() == 1 }, time.Second, 10*time.Millisecond)
		assert.True(t, strings.Contains(urls.all()[0], "page=1"))
	})

	t.Run("disconnect transitions do not trigger a replay", func(t *testing.T) {
		t.Parallel()

		b := bus.New()
		defer b.Close()

		transport := &mock.Transport{
			SendFn: func(_ context.Context, _ string) (*anecdote.Response, error) {
				return &anecdote.Response{StatusCode: 500}, nil
			},
		}

		svc, err := fetch.NewService(testSite(), transport, &mock.Extractor{}, b)
		require.NoError(t, err)
		defer svc.Close()

		svc.LoadNext(0)
		require.Eventually(t, func() bool { return svc.QueuedFailures() == 1 }, time.Second, 10*time.Millisecond)

		b.Publish(anecdote.ConnectivityChanged{Connected: false})
		b.Close() // flush

		assert.Equal(t, 1, svc.QueuedFailures())
	})
}
