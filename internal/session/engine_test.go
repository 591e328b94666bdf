package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const (
	claudeSend     = `button[aria-label="Send message"]`
	setupActionLen = 3
)

func exchangeActions(message string, reads int, readAction string) []string {
	out := []string{
		"click:" + claudeInput,
		"fill:" + claudeInput + "=" + message,
		"click:" + claudeSend,
	}
	for i := 0; i < reads; i++ {
		out = append(out, "count", readAction)
	}
	return out
}

func TestSendWaitsForStableResponse(t *testing.T) {
	page := newFakePage(texts("", "Hel", "Hello", "Hello", "Hello", "Hello")...)
	rec := &fakeRecorder{}
	engine, _ := readyEngine(t, page, EngineConfig{}, rec)

	ex, err := engine.Send(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ex.Response != "Hello" {
		t.Errorf("Response = %q, want %q", ex.Response, "Hello")
	}
	if ex.Ticks != 6 || page.Reads() != 6 {
		t.Errorf("ticks = %d, reads = %d, want 6", ex.Ticks, page.Reads())
	}
	if ex.Target != "claude" || ex.ID == "" || ex.Failed() {
		t.Errorf("unexpected exchange %+v", ex)
	}

	got := page.Actions()[setupActionLen:]
	if diff := cmp.Diff(exchangeActions("Hi", 6, "text"), got); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}

	if len(rec.exchanges) != 1 || rec.exchanges[0].Response != "Hello" {
		t.Errorf("recorded %+v", rec.exchanges)
	}
}

func TestSendCounterResetsOnChange(t *testing.T) {
	page := newFakePage(texts("A", "A", "B", "B", "B")...)
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	ex, err := engine.Send(context.Background(), "go")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ex.Response != "B" {
		t.Errorf("Response = %q, want B", ex.Response)
	}
	if ex.Ticks != 6 {
		t.Errorf("ticks = %d, want 6", ex.Ticks)
	}
}

func TestSendSkipsMissingAndFailedReads(t *testing.T) {
	script := append([]read{{none: true}, {err: errDetached}, {none: true}}, texts("ok", "ok", "ok", "ok")...)
	page := newFakePage(script...)
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	ex, err := engine.Send(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ex.Response != "ok" || ex.Ticks != 7 {
		t.Errorf("got %q after %d ticks, want ok after 7", ex.Response, ex.Ticks)
	}
}

func TestSendNotReady(t *testing.T) {
	page := newFakePage(texts("x")...)
	ctrl := NewController(&fakeLauncher{page: page}, ControllerConfig{})
	engine := NewEngine(ctrl, EngineConfig{PollInterval: time.Millisecond}, nil)

	_, err := engine.Send(context.Background(), "hello")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if n := len(page.Actions()); n != 0 {
		t.Errorf("page touched %d times before setup", n)
	}
}

func TestSendRejectsBlankMessage(t *testing.T) {
	page := newFakePage(texts("x")...)
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	for _, msg := range []string{"", "   ", "\n\t"} {
		if _, err := engine.Send(context.Background(), msg); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Send(%q): expected ErrInvalidInput, got %v", msg, err)
		}
	}
	if n := len(page.Actions()); n != setupActionLen {
		t.Errorf("blank message reached the page: %v", page.Actions()[setupActionLen:])
	}
}

func TestSendSerializesExchanges(t *testing.T) {
	page := newFakePage()
	page.replyToFill = true
	filled := make(chan string, 2)
	page.onFill = func(text string) { filled <- text }
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	var wg sync.WaitGroup
	results := make(map[string]string)
	var mu sync.Mutex
	send := func(msg string) {
		defer wg.Done()
		ex, err := engine.Send(context.Background(), msg)
		if err != nil {
			t.Errorf("Send(%q) failed: %v", msg, err)
			return
		}
		mu.Lock()
		results[msg] = ex.Response
		mu.Unlock()
	}

	wg.Add(1)
	go send("first")
	if got := <-filled; got != "first" {
		t.Fatalf("first fill = %q", got)
	}
	wg.Add(1)
	go send("second")
	wg.Wait()

	want := map[string]string{"first": "reply: first", "second": "reply: second"}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}

	// Each exchange needs a baseline read plus three matches.
	wantActions := append(exchangeActions("first", 4, "text"), exchangeActions("second", 4, "text")...)
	if diff := cmp.Diff(wantActions, page.Actions()[setupActionLen:]); diff != "" {
		t.Errorf("exchanges interleaved (-want +got):\n%s", diff)
	}
}

func TestSendMaxExchangeDuration(t *testing.T) {
	page := newFakePage(read{none: true})
	rec := &fakeRecorder{}
	engine, _ := readyEngine(t, page, EngineConfig{MaxExchangeDuration: 20 * time.Millisecond}, rec)

	_, err := engine.Send(context.Background(), "slow")
	if !errors.Is(err, ErrAutomation) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected automation timeout, got %v", err)
	}
	if len(rec.exchanges) != 1 || !rec.exchanges[0].Failed() {
		t.Errorf("failed exchange not recorded: %+v", rec.exchanges)
	}

	// The gate is released after a failure.
	page.mu.Lock()
	page.script = texts("fast")
	page.tick = 0
	page.mu.Unlock()
	if _, err := engine.Send(context.Background(), "again"); err != nil {
		t.Fatalf("Send after timeout failed: %v", err)
	}
}

func TestSendCallerCancel(t *testing.T) {
	page := newFakePage(read{none: true})
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	if _, err := engine.Send(ctx, "never"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSendStoppedMidExchange(t *testing.T) {
	page := newFakePage(texts("a", "b", "c")...)
	engine, ctrl := readyEngine(t, page, EngineConfig{}, nil)

	_, err := engine.Send(context.Background(), "hi", WithObserver(func(p Progress) {
		if p.Tick == 1 {
			_ = ctrl.Stop()
		}
	}))
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestSendObserver(t *testing.T) {
	page := newFakePage(texts("", "Hel", "Hello", "Hello", "Hello", "Hello")...)
	engine, _ := readyEngine(t, page, EngineConfig{}, nil)

	var got []Progress
	_, err := engine.Send(context.Background(), "Hi", WithObserver(func(p Progress) {
		got = append(got, p)
	}))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := []Progress{
		{Tick: 1, Text: "", Stable: 0},
		{Tick: 2, Text: "Hel", Stable: 0},
		{Tick: 3, Text: "Hello", Stable: 0},
		{Tick: 4, Text: "Hello", Stable: 1},
		{Tick: 5, Text: "Hello", Stable: 2},
		{Tick: 6, Text: "Hello", Stable: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestSendHTML2TextFormat(t *testing.T) {
	page := newFakePage(texts("<div><p>Hello world</p></div>")...)
	engine, _ := readyEngine(t, page, EngineConfig{ResponseFormat: FormatHTML2Text}, nil)

	ex, err := engine.Send(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ex.Response != "Hello world" {
		t.Errorf("Response = %q, want %q", ex.Response, "Hello world")
	}
	got := page.Actions()[setupActionLen:]
	if diff := cmp.Diff(exchangeActions("Hi", 4, "html"), got); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestSendInteractionFailure(t *testing.T) {
	page := newFakePage(texts("x")...)
	page.clickErr[claudeSend] = errors.New("button disabled")
	rec := &fakeRecorder{}
	engine, _ := readyEngine(t, page, EngineConfig{}, rec)

	_, err := engine.Send(context.Background(), "hi")
	if !errors.Is(err, ErrAutomation) {
		t.Fatalf("expected ErrAutomation, got %v", err)
	}
	if page.Reads() != 0 {
		t.Errorf("polled %d times after failed send", page.Reads())
	}
	if len(rec.exchanges) != 1 || rec.exchanges[0].Error == "" {
		t.Errorf("failure not recorded: %+v", rec.exchanges)
	}
}

func TestSendRecorderErrorIgnored(t *testing.T) {
	page := newFakePage(texts("ok")...)
	engine, _ := readyEngine(t, page, EngineConfig{}, &fakeRecorder{err: errors.New("disk full")})

	if _, err := engine.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("recorder failure should not fail Send: %v", err)
	}
}

var _ ExchangeRecorder = (*fakeRecorder)(nil)
