package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/require"
)

func TestParseWaitUntil(t *testing.T) {
	testCases := []struct {
		in       string
		expected WaitUntil
	}{
		{in: "", expected: WaitNetworkIdle},
		{in: "networkidle", expected: WaitNetworkIdle},
		{in: "Network-Idle", expected: WaitNetworkIdle},
		{in: "domcontentloaded", expected: WaitContentLoaded},
		{in: "content-loaded", expected: WaitContentLoaded},
	}
	for _, tc := range testCases {
		got, err := ParseWaitUntil(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.expected, got)
	}

	_, err := ParseWaitUntil("whenever")
	require.Error(t, err)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	require.Equal(t, WaitNetworkIdle, o.WaitUntil)
	require.Equal(t, 60*time.Second, o.NavigationTimeout)
	require.Equal(t, DefaultUserAgent, o.UserAgent)
}

func TestFetchEachIsolatesFailures(t *testing.T) {
	var calls []string
	fetch := func(_ context.Context, url string) (string, error) {
		calls = append(calls, url)
		switch url {
		case "b":
			return "", errors.New("navigate b: timeout after 1m0s")
		case "c":
			return "", nil
		}
		return "<html>" + url + "</html>", nil
	}

	out := map[string]string{}
	err := fetchEach(context.Background(), []string{"a", "b", "c", "d"}, fetch, out)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, calls)
	require.Equal(t, map[string]string{
		"a": "<html>a</html>",
		"d": "<html>d</html>",
	}, out)
}

func TestFetchEachStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(_ context.Context, url string) (string, error) {
		if url == "b" {
			cancel()
			return "", context.Canceled
		}
		return "ok", nil
	}

	out := map[string]string{}
	err := fetchEach(ctx, []string{"a", "b", "c"}, fetch, out)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, map[string]string{"a": "ok"}, out)
}

func TestIdleWatchMatchesFrameAndLoader(t *testing.T) {
	w := newIdleWatch()
	// previous document and a child frame going idle
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "old", Name: "networkIdle"})
	w.observe(&page.EventLifecycleEvent{FrameID: "child", LoaderID: "new", Name: "networkIdle"})
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "new", Name: "load"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.wait(ctx, "main", "new"), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- w.wait(context.Background(), "main", "new") }()
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "new", Name: "networkIdle"})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after the committed document went idle")
	}
}

func TestIdleWatchEventBeforeWait(t *testing.T) {
	w := newIdleWatch()
	w.observe(&page.EventLifecycleEvent{FrameID: "main", LoaderID: "l1", Name: "networkIdle"})
	require.True(t, w.reached("main", "l1"))
	require.NoError(t, w.wait(context.Background(), "main", "l1"))
	require.NoError(t, w.wait(context.Background(), cdp.FrameID("main"), ""))
}

func fakeSession(pages map[string]string) func(context.Context, func(FetchFunc) error) error {
	return func(ctx context.Context, fn func(FetchFunc) error) error {
		return fn(func(_ context.Context, url string) (string, error) {
			p, ok := pages[url]
			if !ok {
				return "", errors.New("navigate " + url + ": net::ERR_NAME_NOT_RESOLVED")
			}
			return p, nil
		})
	}
}

func TestRenderSingleURL(t *testing.T) {
	r := New(Options{})
	r.session = fakeSession(map[string]string{"https://example.test/EUR-USD": "<html>1.08</html>"})

	markup, err := r.Render(context.Background(), "https://example.test/EUR-USD")
	require.NoError(t, err)
	require.Equal(t, "<html>1.08</html>", markup)

	_, err = r.Render(context.Background(), "https://example.test/XXX-USD")
	require.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
}

func TestRenderAllLeavesOutFailures(t *testing.T) {
	r := New(Options{})
	r.session = fakeSession(map[string]string{"a": "<html>a</html>"})

	out := r.RenderAll(context.Background(), []string{"a", "b"})
	require.Equal(t, map[string]string{"a": "<html>a</html>"}, out)
}
