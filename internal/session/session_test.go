package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/newswire/internal/newsapi"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/danmuck/newswire/internal/store"
	"github.com/danmuck/newswire/internal/testutil/testlog"
	"github.com/danmuck/newswire/internal/validate"
)

type fakeGateway struct {
	articles []newsapi.Article
	sources  []newsapi.Source
	err      error
	panicMsg string

	headlineCalls []map[string]string
	sourceCalls   []map[string]string
}

func (g *fakeGateway) FetchHeadlines(_ context.Context, params map[string]string) (newsapi.HeadlinesResult, error) {
	g.headlineCalls = append(g.headlineCalls, params)
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if g.err != nil {
		return newsapi.HeadlinesResult{}, g.err
	}
	raw, _ := json.Marshal(map[string]any{"status": "ok", "totalResults": len(g.articles), "articles": g.articles})
	return newsapi.HeadlinesResult{Raw: raw, Status: "ok", TotalResults: len(g.articles), Articles: g.articles}, nil
}

func (g *fakeGateway) FetchSources(_ context.Context, params map[string]string) (newsapi.SourcesResult, error) {
	g.sourceCalls = append(g.sourceCalls, params)
	if g.err != nil {
		return newsapi.SourcesResult{}, g.err
	}
	raw, _ := json.Marshal(map[string]any{"status": "ok", "sources": g.sources})
	return newsapi.SourcesResult{Raw: raw, Status: "ok", Sources: g.sources}, nil
}

type persisted struct {
	key     store.Key
	payload []byte
}

type fakeStore struct {
	writes []persisted
	err    error
}

func (s *fakeStore) Persist(_ context.Context, key store.Key, payload []byte) error {
	s.writes = append(s.writes, persisted{key: key, payload: payload})
	return s.err
}

func strp(v string) *string { return &v }

func makeArticles(n int) []newsapi.Article {
	out := make([]newsapi.Article, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, newsapi.Article{
			Source:      newsapi.ArticleSource{Name: strp(fmt.Sprintf("Source %d", i))},
			Author:      strp(fmt.Sprintf("Author %d", i)),
			Title:       strp(fmt.Sprintf("Title %d", i)),
			Description: strp(fmt.Sprintf("Description %d", i)),
			URL:         strp(fmt.Sprintf("https://news.example/%d", i)),
			PublishedAt: strp("2026-10-17T08:00:00Z"),
		})
	}
	return out
}

func makeSources(n int) []newsapi.Source {
	out := make([]newsapi.Source, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, newsapi.Source{
			ID:       strp(fmt.Sprintf("src-%d", i)),
			Name:     strp(fmt.Sprintf("Outlet %d", i)),
			Country:  strp("us"),
			URL:      strp(fmt.Sprintf("https://outlet%d.example", i)),
			Category: strp("general"),
			Language: strp("en"),
		})
	}
	return out
}

func newReadySession(t *testing.T, gw *fakeGateway, st store.Persister) *Session {
	t.Helper()
	s, err := New(Dependencies{Gateway: gw, Rules: validate.DefaultRules(), Store: st})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.SetUsername("alice"); err != nil {
		t.Fatalf("set username: %v", err)
	}
	return s
}

func req(action protocol.ActionName, params map[string]string) protocol.Request {
	return protocol.Request{Action: action, Params: params}
}

func TestHeadlinesCountryThenDetail(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(3)}
	s := newReadySession(t, gw, nil)
	ctx := context.Background()

	resp := s.Handle(ctx, req(protocol.ActionHeadlinesCountry, map[string]string{"country": "us"}))
	if !resp.OK() || resp.Type != protocol.TypeHeadlines {
		t.Fatalf("unexpected list response: %+v", resp)
	}
	if resp.Total == nil || *resp.Total != 3 {
		t.Fatalf("unexpected total: %v", resp.Total)
	}
	items, err := resp.HeadlineItems()
	if err != nil {
		t.Fatalf("decode items: %v", err)
	}
	for k, item := range items {
		if item.Index != k+1 {
			t.Fatalf("item %d has index %d", k, item.Index)
		}
	}
	if *items[0].Source != "Source 1" || *items[0].Author != "Author 1" || *items[0].Title != "Title 1" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}

	detail := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "2"}))
	if !detail.OK() || detail.Type != protocol.TypeHeadlineDetail {
		t.Fatalf("unexpected detail response: %+v", detail)
	}
	d, err := detail.HeadlineDetail()
	if err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if *d.Title != "Title 2" || *d.URL != "https://news.example/2" || *d.Source != "Source 2" || *d.PublishedAt != "2026-10-17T08:00:00Z" {
		t.Fatalf("unexpected detail: %+v", d)
	}
}

func TestHeadlinesTruncatedToMaxResults(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(40)}
	s := newReadySession(t, gw, nil)

	resp := s.Handle(context.Background(), req(protocol.ActionHeadlinesAll, nil))
	items, err := resp.HeadlineItems()
	if err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != MaxResults || *resp.Total != MaxResults {
		t.Fatalf("expected %d items, got %d total=%d", MaxResults, len(items), *resp.Total)
	}
	if items[MaxResults-1].Index != MaxResults {
		t.Fatalf("unexpected last index: %d", items[MaxResults-1].Index)
	}
	if len(s.headlines) != MaxResults {
		t.Fatalf("cache should hold %d entries, got %d", MaxResults, len(s.headlines))
	}
	out := s.Handle(context.Background(), req(protocol.ActionHeadlinesDetail, map[string]string{"index": "16"}))
	if out.Message != protocol.MsgIndexOutOfRange {
		t.Fatalf("expected out of range past the cap, got %+v", out)
	}
}

func TestHeadlinesDefaultCountryForwarded(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{}
	s := newReadySession(t, gw, nil)

	resp := s.Handle(context.Background(), req(protocol.ActionHeadlinesAll, map[string]string{}))
	if !resp.OK() || *resp.Total != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if string(resp.Items) != "[]" {
		t.Fatalf("expected empty item list, got %s", resp.Items)
	}
	if len(gw.headlineCalls) != 1 || !reflect.DeepEqual(gw.headlineCalls[0], map[string]string{"country": "us"}) {
		t.Fatalf("unexpected gateway params: %v", gw.headlineCalls)
	}
}

func TestDetailIdempotent(t *testing.T) {
	testlog.Start(t)
	s := newReadySession(t, &fakeGateway{articles: makeArticles(5)}, nil)
	ctx := context.Background()
	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))

	a := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "4"}))
	b := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": " 4 "}))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("detail lookups differ: a=%+v b=%+v", a, b)
	}
}

func TestCacheIsolation(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(2), sources: makeSources(6)}
	s := newReadySession(t, gw, nil)
	ctx := context.Background()

	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))
	before := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "2"}))

	src := s.Handle(ctx, req(protocol.ActionSourcesAll, nil))
	if !src.OK() || *src.Total != 6 {
		t.Fatalf("unexpected sources response: %+v", src)
	}
	after := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "2"}))
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("sources fetch changed headline detail: before=%+v after=%+v", before, after)
	}
	if out := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "3"})); out.Message != protocol.MsgIndexOutOfRange {
		t.Fatalf("headline cache should still hold 2 entries, got %+v", out)
	}

	srcBefore := s.Handle(ctx, req(protocol.ActionSourcesDetail, map[string]string{"index": "6"}))
	gw.articles = makeArticles(1)
	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))
	srcAfter := s.Handle(ctx, req(protocol.ActionSourcesDetail, map[string]string{"index": "6"}))
	if !reflect.DeepEqual(srcBefore, srcAfter) {
		t.Fatalf("headlines fetch changed source detail")
	}
	d, err := srcAfter.SourceDetail()
	if err != nil {
		t.Fatalf("decode source detail: %v", err)
	}
	if *d.Name != "Outlet 6" || *d.Country != "us" || *d.Language != "en" || *d.Category != "general" {
		t.Fatalf("unexpected source detail: %+v", d)
	}
	if d.Description != nil {
		t.Fatalf("missing upstream description should stay null, got %q", *d.Description)
	}
}

func TestDetailIndexErrors(t *testing.T) {
	testlog.Start(t)
	s := newReadySession(t, &fakeGateway{articles: makeArticles(3), sources: makeSources(2)}, nil)
	ctx := context.Background()

	if out := s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "1"})); out.Message != protocol.MsgIndexOutOfRange {
		t.Fatalf("empty cache should be out of range, got %+v", out)
	}
	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))
	s.Handle(ctx, req(protocol.ActionSourcesAll, nil))

	cases := []struct {
		action protocol.ActionName
		params map[string]string
		want   string
	}{
		{protocol.ActionHeadlinesDetail, map[string]string{"index": "0"}, protocol.MsgIndexOutOfRange},
		{protocol.ActionHeadlinesDetail, map[string]string{"index": "4"}, protocol.MsgIndexOutOfRange},
		{protocol.ActionHeadlinesDetail, map[string]string{"index": "-1"}, protocol.MsgIndexOutOfRange},
		{protocol.ActionHeadlinesDetail, map[string]string{"index": "two"}, protocol.MsgInvalidIndexFormat},
		{protocol.ActionHeadlinesDetail, map[string]string{"index": "1.5"}, protocol.MsgInvalidIndexFormat},
		{protocol.ActionHeadlinesDetail, nil, protocol.MsgInvalidIndexFormat},
		{protocol.ActionSourcesDetail, map[string]string{"index": "0"}, protocol.MsgIndexOutOfRange},
		{protocol.ActionSourcesDetail, map[string]string{"index": "3"}, protocol.MsgIndexOutOfRange},
		{protocol.ActionSourcesDetail, map[string]string{"index": ""}, protocol.MsgInvalidIndexFormat},
	}
	for _, tc := range cases {
		out := s.Handle(ctx, req(tc.action, tc.params))
		if out.Status != protocol.StatusError || out.Message != tc.want {
			t.Fatalf("%s %v: got=%+v want message %q", tc.action, tc.params, out, tc.want)
		}
	}
	if s.State() != StateReady {
		t.Fatalf("index errors must not close the session")
	}
}

func TestValidationErrorsLeaveCacheUntouched(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(2), sources: makeSources(3)}
	s := newReadySession(t, gw, nil)
	ctx := context.Background()
	s.Handle(ctx, req(protocol.ActionSourcesAll, nil))
	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))

	out := s.Handle(ctx, req(protocol.ActionSourcesLanguage, map[string]string{"language": "fr"}))
	if out.Status != protocol.StatusError || out.Message != "Invalid language. Choose from: ar, en" {
		t.Fatalf("unexpected response: %+v", out)
	}
	out = s.Handle(ctx, req(protocol.ActionHeadlinesCategory, map[string]string{"category": "bogus"}))
	if out.Message != "Invalid category. Choose from: business, general, health, science, sports, technology" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(gw.sourceCalls) != 1 || len(gw.headlineCalls) != 1 {
		t.Fatalf("gateway must not be called for invalid params: sources=%d headlines=%d", len(gw.sourceCalls), len(gw.headlineCalls))
	}
	if len(s.sources) != 3 || len(s.headlines) != 2 {
		t.Fatalf("cache changed on validation error: sources=%d headlines=%d", len(s.sources), len(s.headlines))
	}
}

func TestUpstreamFailureIsGeneric(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(2)}
	st := &fakeStore{}
	s := newReadySession(t, gw, st)
	ctx := context.Background()
	s.Handle(ctx, req(protocol.ActionHeadlinesAll, nil))

	gw.err = fmt.Errorf("%w: top-headlines: status=401 code=apiKeyInvalid", newsapi.ErrUpstreamFetch)
	out := s.Handle(ctx, req(protocol.ActionHeadlinesKeyword, map[string]string{"q": "rates"}))
	if out.Status != protocol.StatusError || out.Message != protocol.MsgUpstreamFailed {
		t.Fatalf("unexpected response: %+v", out)
	}
	if strings.Contains(out.Message, "apiKey") {
		t.Fatalf("upstream cause leaked to client: %q", out.Message)
	}
	if len(s.headlines) != 2 {
		t.Fatalf("failed fetch must keep previous cache, got %d", len(s.headlines))
	}
	if len(st.writes) != 1 {
		t.Fatalf("failed fetch must not persist, writes=%d", len(st.writes))
	}
	out = s.Handle(ctx, req(protocol.ActionSourcesCountry, map[string]string{"country": "kr"}))
	if out.Message != protocol.MsgUpstreamFailed || s.State() != StateReady {
		t.Fatalf("unexpected sources failure handling: %+v state=%s", out, s.State())
	}
}

func TestPersistKeyedByUsernameAndAction(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(1), sources: makeSources(1)}
	st := &fakeStore{}
	s := newReadySession(t, gw, st)
	ctx := context.Background()

	s.Handle(ctx, req(protocol.ActionHeadlinesKeyword, map[string]string{"q": "ai"}))
	s.Handle(ctx, req(protocol.ActionSourcesCategory, map[string]string{"category": "technology"}))
	s.Handle(ctx, req(protocol.ActionHeadlinesDetail, map[string]string{"index": "1"}))

	if len(st.writes) != 2 {
		t.Fatalf("expected two persisted responses, got %d", len(st.writes))
	}
	if st.writes[0].key != (store.Key{Username: "alice", Action: "headlines_keyword"}) {
		t.Fatalf("unexpected first key: %+v", st.writes[0].key)
	}
	if st.writes[1].key != (store.Key{Username: "alice", Action: "sources_category"}) {
		t.Fatalf("unexpected second key: %+v", st.writes[1].key)
	}
	var body map[string]any
	if err := json.Unmarshal(st.writes[0].payload, &body); err != nil || body["status"] != "ok" {
		t.Fatalf("expected raw upstream body, got %s err=%v", st.writes[0].payload, err)
	}
}

func TestPersistFailureDoesNotFailRequest(t *testing.T) {
	testlog.Start(t)
	st := &fakeStore{err: errors.New("disk full")}
	s := newReadySession(t, &fakeGateway{sources: makeSources(2)}, st)

	out := s.Handle(context.Background(), req(protocol.ActionSourcesAll, nil))
	if !out.OK() || *out.Total != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestUnknownActionAndQuit(t *testing.T) {
	testlog.Start(t)
	s := newReadySession(t, &fakeGateway{}, nil)
	ctx := context.Background()

	for _, action := range []protocol.ActionName{"weather_today", "", "HEADLINES_all"} {
		out := s.Handle(ctx, req(action, nil))
		if out.Status != protocol.StatusError || out.Message != protocol.MsgUnknownAction {
			t.Fatalf("action %q: unexpected response %+v", action, out)
		}
	}
	if s.State() != StateReady {
		t.Fatalf("unknown action must not close the session")
	}

	out := s.Handle(ctx, req(protocol.ActionQuit, nil))
	if out.Status != protocol.StatusOK || out.Message != "Connection closed" {
		t.Fatalf("unexpected quit response: %+v", out)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", s.State())
	}
}

func TestHandlerPanicBecomesErrorResponse(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{panicMsg: "boom"}
	s := newReadySession(t, gw, nil)

	out := s.Handle(context.Background(), req(protocol.ActionHeadlinesAll, nil))
	if out.Status != protocol.StatusError || out.Message != protocol.MsgInternal {
		t.Fatalf("unexpected response: %+v", out)
	}
	gw.panicMsg = ""
	if out := s.Handle(context.Background(), req(protocol.ActionHeadlinesAll, nil)); !out.OK() {
		t.Fatalf("session should keep serving after a recovered panic: %+v", out)
	}
}

func TestUsernameHandshake(t *testing.T) {
	testlog.Start(t)
	s, err := New(Dependencies{Gateway: &fakeGateway{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.State() != StateAwaitingUsername {
		t.Fatalf("unexpected initial state: %s", s.State())
	}
	if err := s.Run(context.Background(), nil); !errors.Is(err, ErrNotReady) {
		t.Fatalf("run before handshake should fail, got %v", err)
	}

	ch := frame.NewChannel(struct {
		io.Reader
		io.Writer
	}{strings.NewReader("   \n"), io.Discard}, frame.DefaultLimits())
	if err := s.Handshake(ch); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if s.Username() != DefaultUsername || s.State() != StateReady {
		t.Fatalf("unexpected handshake result: username=%q state=%s", s.Username(), s.State())
	}
	if err := s.SetUsername("bob"); !errors.Is(err, ErrNotAwaitingUsername) {
		t.Fatalf("second username should be rejected, got %v", err)
	}
	if NormalizeUsername("  carol\t") != "carol" {
		t.Fatalf("unexpected normalized username")
	}
	if _, err := New(Dependencies{}); !errors.Is(err, ErrNoGateway) {
		t.Fatalf("expected ErrNoGateway, got %v", err)
	}
}

func startPipeSession(t *testing.T, gw *fakeGateway) (*frame.Channel, net.Conn, <-chan error) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})
	s, err := New(Dependencies{Gateway: gw, Rules: validate.DefaultRules()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		ch := frame.NewChannel(serverConn, frame.DefaultLimits())
		if err := s.Handshake(ch); err != nil {
			done <- err
			return
		}
		done <- s.Run(context.Background(), ch)
	}()
	client := frame.NewChannel(clientConn, frame.DefaultLimits())
	if err := client.WriteLine("alice"); err != nil {
		t.Fatalf("write username: %v", err)
	}
	return client, clientConn, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish")
		return nil
	}
}

func TestRunQuitEndsSession(t *testing.T) {
	testlog.Start(t)
	client, _, done := startPipeSession(t, &fakeGateway{articles: makeArticles(3)})

	if err := client.Send(req(protocol.ActionHeadlinesCountry, map[string]string{"country": "us"})); err != nil {
		t.Fatalf("send: %v", err)
	}
	var resp protocol.Response
	if err := client.Receive(&resp); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if *resp.Total != 3 {
		t.Fatalf("unexpected total: %+v", resp)
	}

	if err := client.Send(req("nonsense", nil)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.Receive(&resp); err != nil || resp.Message != protocol.MsgUnknownAction {
		t.Fatalf("unexpected unknown-action reply: %+v err=%v", resp, err)
	}

	if err := client.Send(req(protocol.ActionQuit, nil)); err != nil {
		t.Fatalf("send quit: %v", err)
	}
	resp = protocol.Response{}
	if err := client.Receive(&resp); err != nil {
		t.Fatalf("receive quit: %v", err)
	}
	if resp.Status != protocol.StatusOK || resp.Message != protocol.MsgConnectionClosed {
		t.Fatalf("unexpected quit reply: %+v", resp)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("quit should end cleanly, got %v", err)
	}
}

func TestRunPeerDisconnectEndsCleanly(t *testing.T) {
	testlog.Start(t)
	_, clientConn, done := startPipeSession(t, &fakeGateway{})
	clientConn.Close()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("disconnect should end cleanly, got %v", err)
	}
}

func TestRunMalformedMessageEndsSession(t *testing.T) {
	testlog.Start(t)
	client, _, done := startPipeSession(t, &fakeGateway{})
	if err := client.WriteLine("{not json"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := waitDone(t, done); !errors.Is(err, frame.ErrDecode) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}

func TestRunIllTypedParamsKeepSessionOpen(t *testing.T) {
	testlog.Start(t)
	gw := &fakeGateway{articles: makeArticles(3)}
	client, _, done := startPipeSession(t, gw)

	exchange := func(line string) protocol.Response {
		t.Helper()
		if err := client.WriteLine(line); err != nil {
			t.Fatalf("write %s: %v", line, err)
		}
		var resp protocol.Response
		if err := client.Receive(&resp); err != nil {
			t.Fatalf("receive after %s: %v", line, err)
		}
		return resp
	}

	if resp := exchange(`{"action":"headlines_all"}`); !resp.OK() || *resp.Total != 3 {
		t.Fatalf("unexpected list reply: %+v", resp)
	}

	resp := exchange(`{"action":"headlines_detail","params":{"index":2}}`)
	if !resp.OK() || resp.Type != protocol.TypeHeadlineDetail {
		t.Fatalf("numeric index should resolve: %+v", resp)
	}
	d, err := resp.HeadlineDetail()
	if err != nil || *d.Title != "Title 2" {
		t.Fatalf("unexpected detail: %+v err=%v", d, err)
	}

	cases := []struct {
		line string
		want string
	}{
		{`{"action":"headlines_keyword","params":{"q":5}}`, fmt.Sprintf(protocol.MsgInvalidParamType, "q")},
		{`{"action":"sources_category","params":{"category":["business"]}}`, fmt.Sprintf(protocol.MsgInvalidParamType, "category")},
		{`{"action":"headlines_detail","params":{"index":true}}`, fmt.Sprintf(protocol.MsgInvalidParamType, "index")},
		{`{"action":"headlines_detail","params":{"index":1.5}}`, protocol.MsgInvalidIndexFormat},
		{`{"action":"headlines_all","params":"country=us"}`, protocol.MsgInvalidRequest},
		{`{"action":7}`, protocol.MsgInvalidRequest},
		{`["headlines_all"]`, protocol.MsgInvalidRequest},
	}
	for _, tc := range cases {
		resp := exchange(tc.line)
		if resp.Status != protocol.StatusError || resp.Message != tc.want {
			t.Fatalf("%s: got %+v, want error %q", tc.line, resp, tc.want)
		}
	}

	if resp := exchange(`{"action":"headlines_detail","params":{"index":"3"}}`); !resp.OK() {
		t.Fatalf("cache should survive rejected requests: %+v", resp)
	}
	if resp := exchange(`{"action":"quit","params":{"q":5}}`); resp.Message != protocol.MsgConnectionClosed {
		t.Fatalf("quit should always close: %+v", resp)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("session should end cleanly, got %v", err)
	}
	if len(gw.headlineCalls) != 1 {
		t.Fatalf("rejected requests must not reach the gateway: %d calls", len(gw.headlineCalls))
	}
}
