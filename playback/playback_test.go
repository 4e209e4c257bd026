package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexivox/lexivox/internal/cache"
	"github.com/lexivox/lexivox/playback"
	"github.com/lexivox/lexivox/playback/backend/mock"
)

const testURL = "https://cdn.example.com/audio/ephemeral.mp3"

func testConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.PlayTimeout = 2 * time.Second
	return cfg
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// TestPlayHappyPath tests the buffered tier serving a request end to end.
func TestPlayHappyPath(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	req := playback.Request{URL: testURL, Text: "ephemeral"}
	if err := m.Play(context.Background(), req); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	state := m.State()
	if state.CurrentState != playback.StatePlaying {
		t.Errorf("state = %v, want playing", state.CurrentState)
	}
	if state.Track == nil || state.Track.URL != testURL {
		t.Error("expected a track carrying the request URL")
	}
	if state.Tier != playback.TierBuffered {
		t.Errorf("tier = %v, want buffered", state.Tier)
	}
	if buffered.StartCalls() != 1 {
		t.Errorf("Start calls = %d, want 1", buffered.StartCalls())
	}
}

// TestPlayNaturalCompletion tests the transition back to idle when the
// track ends on its own.
func TestPlayNaturalCompletion(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	buffered.LastHandle().Complete()

	waitFor(t, func() bool {
		return m.State().CurrentState == playback.StateIdle
	}, "idle after natural completion")

	if m.State().Track != nil {
		t.Error("expected track cleared after completion")
	}
}

// TestPlayPreemptsCurrent tests that a new request stops the previous
// track so at most one is ever active.
func TestPlayPreemptsCurrent(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("first Play() = %v", err)
	}
	first := buffered.LastHandle()

	if err := m.Play(context.Background(), playback.Request{URL: "https://cdn.example.com/audio/other.mp3"}); err != nil {
		t.Fatalf("second Play() = %v", err)
	}

	select {
	case <-first.Done():
	default:
		t.Error("expected first handle stopped by second play")
	}
	if got := buffered.ActiveHandles(); got != 1 {
		t.Errorf("active handles = %d, want 1", got)
	}
}

// TestFallbackOnPermanentFailure tests immediate fallthrough when a tier
// fails permanently.
func TestFallbackOnPermanentFailure(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	streaming := mock.New(playback.TierStreaming)
	buffered.FailWith(playback.ErrDecodeFailed)

	m := playback.NewManager(testConfig(), buffered, streaming)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if buffered.StartCalls() != 1 {
		t.Errorf("buffered attempts = %d, want 1 (no retry on permanent failure)", buffered.StartCalls())
	}
	if m.State().Tier != playback.TierStreaming {
		t.Errorf("tier = %v, want streaming", m.State().Tier)
	}
}

// TestBoundedRetryThenFallback tests the per-tier retry budget before
// falling through.
func TestBoundedRetryThenFallback(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	streaming := mock.New(playback.TierStreaming)
	buffered.FailWith(playback.ErrFetchFailed)

	cfg := testConfig()
	cfg.MaxRetries = 3
	m := playback.NewManager(cfg, buffered, streaming)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if buffered.StartCalls() != 3 {
		t.Errorf("buffered attempts = %d, want 3", buffered.StartCalls())
	}
	if m.State().Tier != playback.TierStreaming {
		t.Errorf("tier = %v, want streaming", m.State().Tier)
	}
}

// TestRetryRecoversSameTier tests that a flaky tier recovering within its
// budget still serves the request.
func TestRetryRecoversSameTier(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	buffered.FailNTimes(2, playback.ErrFetchFailed)

	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if buffered.StartCalls() != 3 {
		t.Errorf("attempts = %d, want 3", buffered.StartCalls())
	}
	if m.State().Tier != playback.TierBuffered {
		t.Errorf("tier = %v, want buffered", m.State().Tier)
	}
}

// TestAllTiersFail tests the terminal error and error state when every
// tier is exhausted.
func TestAllTiersFail(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	streaming := mock.New(playback.TierStreaming)
	synth := mock.New(playback.TierSynthesis)
	buffered.FailWith(playback.ErrDecodeFailed)
	streaming.FailWith(playback.ErrFetchFailed)
	synth.FailWith(playback.ErrSynthesisFailed)

	var gotErr error
	m := playback.NewManager(testConfig(), buffered, streaming, synth)
	m.OnError(func(err error) { gotErr = err })

	err := m.Play(context.Background(), playback.Request{URL: testURL, Text: "ephemeral"})
	if !errors.Is(err, playback.ErrTiersExhausted) {
		t.Fatalf("Play() = %v, want ErrTiersExhausted", err)
	}
	if !errors.Is(err, playback.ErrSynthesisFailed) {
		t.Error("expected the synthesis failure preserved in the chain")
	}

	state := m.State()
	if state.CurrentState != playback.StateError {
		t.Errorf("state = %v, want error", state.CurrentState)
	}
	if !errors.Is(state.LastError, playback.ErrTiersExhausted) {
		t.Errorf("LastError = %v, want ErrTiersExhausted", state.LastError)
	}
	if gotErr == nil {
		t.Error("expected OnError callback invoked")
	}
}

// TestStaleCompletionSuppressed tests that a slow superseded request
// cannot clobber the newer one.
func TestStaleCompletionSuppressed(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	buffered.SetStartDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowErr = m.Play(context.Background(), playback.Request{URL: testURL})
	}()

	time.Sleep(20 * time.Millisecond)
	buffered.SetStartDelay(0)

	fastURL := "https://cdn.example.com/audio/fast.mp3"
	if err := m.Play(context.Background(), playback.Request{URL: fastURL}); err != nil {
		t.Fatalf("fast Play() = %v", err)
	}

	wg.Wait()

	if slowErr != nil {
		t.Errorf("superseded Play() = %v, want nil", slowErr)
	}

	state := m.State()
	if state.CurrentState != playback.StatePlaying {
		t.Errorf("state = %v, want playing", state.CurrentState)
	}
	if state.Track == nil || state.Track.URL != fastURL {
		t.Error("expected the newer request to own the engine")
	}
	waitFor(t, func() bool {
		return buffered.ActiveHandles() == 1
	}, "stale handle stopped")
}

// TestStopIdempotent tests that stopping twice is safe and silent.
func TestStopIdempotent(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	m.Stop()
	m.Stop()

	if got := m.State().CurrentState; got != playback.StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if got := buffered.StopCalls(); got != 1 {
		t.Errorf("stop calls = %d, want 1", got)
	}
}

// TestStopOnIdleEngine tests that stop with nothing playing is a no-op.
func TestStopOnIdleEngine(t *testing.T) {
	m := playback.NewManager(testConfig(), mock.New(playback.TierBuffered))

	m.Stop()

	if got := m.State().CurrentState; got != playback.StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

// TestPauseResume tests the pause and resume cycle.
func TestPauseResume(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Pause(); !errors.Is(err, playback.ErrNotPlaying) {
		t.Errorf("Pause() while idle = %v, want ErrNotPlaying", err)
	}
	if err := m.Resume(); !errors.Is(err, playback.ErrNotPaused) {
		t.Errorf("Resume() while idle = %v, want ErrNotPaused", err)
	}

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause() = %v", err)
	}
	if got := m.State().CurrentState; got != playback.StatePaused {
		t.Errorf("state = %v, want paused", got)
	}
	if !buffered.LastHandle().Paused() {
		t.Error("expected handle paused")
	}

	if err := m.Resume(); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	if got := m.State().CurrentState; got != playback.StatePlaying {
		t.Errorf("state = %v, want playing", got)
	}
	if buffered.LastHandle().Paused() {
		t.Error("expected handle resumed")
	}
}

// TestSetVolumeClampsAndApplies tests live volume changes.
func TestSetVolumeClampsAndApplies(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	m.SetVolume(1.7)
	if got := buffered.LastHandle().Volume(); got != 1.0 {
		t.Errorf("volume = %v, want clamped to 1.0", got)
	}

	m.SetVolume(0.3)
	if got := buffered.LastHandle().Volume(); got != 0.3 {
		t.Errorf("volume = %v, want 0.3", got)
	}

	// Engine-level volume carries over to the next play.
	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("second Play() = %v", err)
	}
	if got := buffered.LastHandle().Request().Volume; got != 0.3 {
		t.Errorf("next play volume = %v, want 0.3", got)
	}
}

// TestSetRateClamps tests rate clamping on live changes.
func TestSetRateClamps(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if err := m.SetRate(10); err != nil {
		t.Fatalf("SetRate() = %v", err)
	}
	if got := buffered.LastHandle().Rate(); got != 4.0 {
		t.Errorf("rate = %v, want clamped to 4.0", got)
	}

	if err := m.SetRate(0.01); err != nil {
		t.Fatalf("SetRate() = %v", err)
	}
	if got := buffered.LastHandle().Rate(); got != 0.25 {
		t.Errorf("rate = %v, want clamped to 0.25", got)
	}
}

// TestPlayTimeout tests the hard deadline on a request.
func TestPlayTimeout(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	buffered.SetStartDelay(time.Hour)

	cfg := testConfig()
	cfg.PlayTimeout = 50 * time.Millisecond
	m := playback.NewManager(cfg, buffered)

	err := m.Play(context.Background(), playback.Request{URL: testURL})
	if !errors.Is(err, playback.ErrDeadlineExceeded) {
		t.Fatalf("Play() = %v, want ErrDeadlineExceeded", err)
	}
	if got := m.State().CurrentState; got != playback.StateError {
		t.Errorf("state = %v, want error", got)
	}
}

// TestMidTrackFailure tests the transition to error when playback dies
// after it started.
func TestMidTrackFailure(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	deviceErr := errors.New("device wedged")
	buffered.LastHandle().Fail(deviceErr)

	waitFor(t, func() bool {
		return m.State().CurrentState == playback.StateError
	}, "error state after mid-track failure")

	if !errors.Is(m.State().LastError, deviceErr) {
		t.Errorf("LastError = %v, want the device error", m.State().LastError)
	}
}

// TestEmptyRequest tests rejection when nothing can be played.
func TestEmptyRequest(t *testing.T) {
	m := playback.NewManager(testConfig(), mock.New(playback.TierBuffered))

	if err := m.Play(context.Background(), playback.Request{}); !errors.Is(err, playback.ErrNoSource) {
		t.Errorf("Play(empty) = %v, want ErrNoSource", err)
	}
}

// stubLoader records loads and fails for scripted URLs.
type stubLoader struct {
	mu     sync.Mutex
	loaded []string
	fail   map[string]error
}

func (l *stubLoader) Load(ctx context.Context, url string) (*playback.Buffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail[url]; err != nil {
		return nil, err
	}
	l.loaded = append(l.loaded, url)
	return &playback.Buffer{SampleRate: 44100, Channels: 2}, nil
}

// TestPreloadContinuesPastFailures tests that one bad URL does not abort
// the batch.
func TestPreloadContinuesPastFailures(t *testing.T) {
	loader := &stubLoader{fail: map[string]error{
		"https://cdn.example.com/audio/bad.mp3": playback.ErrFetchFailed,
	}}

	m := playback.NewManager(testConfig(), mock.New(playback.TierBuffered))
	m.SetLoader(loader)

	urls := []string{
		"https://cdn.example.com/audio/a.mp3",
		"https://cdn.example.com/audio/bad.mp3",
		"https://cdn.example.com/audio/b.mp3",
	}
	err := m.Preload(context.Background(), urls)
	if !errors.Is(err, playback.ErrFetchFailed) {
		t.Errorf("Preload() = %v, want the fetch failure surfaced", err)
	}
	if len(loader.loaded) != 2 {
		t.Errorf("loaded %d assets, want 2", len(loader.loaded))
	}
}

// TestPreloadWithoutLoader tests the error when no buffered tier exists.
func TestPreloadWithoutLoader(t *testing.T) {
	m := playback.NewManager(testConfig(), mock.New(playback.TierSynthesis))

	err := m.Preload(context.Background(), []string{testURL})
	if !errors.Is(err, playback.ErrTierUnsupported) {
		t.Errorf("Preload() = %v, want ErrTierUnsupported", err)
	}
}

// TestCacheStatsPassthrough tests the stats wiring.
func TestCacheStatsPassthrough(t *testing.T) {
	m := playback.NewManager(testConfig(), mock.New(playback.TierBuffered))

	if got := m.CacheStats(); got.Capacity != 0 {
		t.Errorf("unwired CacheStats() = %+v, want zero", got)
	}

	m.SetCacheStats(func() cache.Stats {
		return cache.Stats{Capacity: 1024, Size: 512, Hits: 9}
	})

	got := m.CacheStats()
	if got.Capacity != 1024 || got.Size != 512 || got.Hits != 9 {
		t.Errorf("CacheStats() = %+v", got)
	}
}

// TestClearCachePassthrough tests the clear wiring.
func TestClearCachePassthrough(t *testing.T) {
	m := playback.NewManager(testConfig(), mock.New(playback.TierBuffered))

	if err := m.ClearCache(); err != nil {
		t.Errorf("unwired ClearCache() = %v, want nil", err)
	}

	cleared := false
	m.SetCacheClear(func() error {
		cleared = true
		return nil
	})
	if err := m.ClearCache(); err != nil {
		t.Errorf("ClearCache() = %v", err)
	}
	if !cleared {
		t.Error("ClearCache did not invoke the wired target")
	}
}

// TestStateChangeCallback tests the observable lifecycle of one request.
func TestStateChangeCallback(t *testing.T) {
	buffered := mock.New(playback.TierBuffered)
	m := playback.NewManager(testConfig(), buffered)

	var mu sync.Mutex
	var seen []playback.StateType
	m.OnStateChange(func(s playback.StateType) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if err := m.Play(context.Background(), playback.Request{URL: testURL}); err != nil {
		t.Fatalf("Play() = %v", err)
	}
	buffered.LastHandle().Complete()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	}, "loading, playing, idle notifications")

	mu.Lock()
	defer mu.Unlock()
	want := []playback.StateType{playback.StateLoading, playback.StatePlaying, playback.StateIdle}
	for i, s := range want {
		if seen[i] != s {
			t.Errorf("state[%d] = %v, want %v", i, seen[i], s)
		}
	}
}
