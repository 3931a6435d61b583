package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hkuriyama/hanako/internal/config"
	"github.com/hkuriyama/hanako/internal/observe"
	"github.com/hkuriyama/hanako/internal/orchestrator"
	"github.com/hkuriyama/hanako/internal/registry"
	"github.com/hkuriyama/hanako/internal/resilience"
	"github.com/hkuriyama/hanako/internal/store/memstore"
	"github.com/hkuriyama/hanako/pkg/audio"
	"github.com/hkuriyama/hanako/pkg/provider/llm"
	llmmock "github.com/hkuriyama/hanako/pkg/provider/llm/mock"
	"github.com/hkuriyama/hanako/pkg/provider/tts"
	ttsmock "github.com/hkuriyama/hanako/pkg/provider/tts/mock"
)

// testServer bundles the server with the doubles behind it.
type testServer struct {
	*Server
	llm   *llmmock.Provider
	tts   *ttsmock.Provider
	store *memstore.MemStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.AudioDir = t.TempDir()
	cfg.Storage.AvatarDir = t.TempDir()
	cfgStore := config.NewStoreFromConfig("", cfg)

	sink, err := audio.NewSink(cfg.Storage.AudioDir)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	st := memstore.New()
	mockLLM := &llmmock.Provider{ChatReply: llm.Reply{Content: "mock reply"}}
	mockTTS := &ttsmock.Provider{SpeakResult: tts.Speech{Filename: "1_a.mp3", Provider: "fish_audio"}}

	speech := resilience.NewSpeechChain(
		func(config.TTSConfig, string) (tts.Provider, error) { return mockTTS, nil },
		resilience.BreakerConfig{},
	)
	orch := orchestrator.New(cfgStore, st,
		func(config.LLMConfig) (llm.Provider, error) { return mockLLM, nil },
		speech,
		orchestrator.WithMetrics(metrics),
	)

	s := New(Options{
		Config:  cfgStore,
		Store:   st,
		Orch:    orch,
		Reg:     registry.New(sink),
		Speech:  speech,
		Sink:    sink,
		Metrics: metrics,
	})
	return &testServer{Server: s, llm: mockLLM, tts: mockTTS, store: st}
}

func (ts *testServer) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestChat_Success(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/chat", `{"text":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decode[orchestrator.ChatResponse](t, rec)
	if !resp.OK || resp.Reply != "mock reply" || resp.SessionID != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestChat_EmptyTextIs400(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/chat", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChat_LLMFailureIsStill200(t *testing.T) {
	ts := newTestServer(t)
	ts.llm.ChatErr = errors.New("backend exploded")
	rec := ts.request(t, http.MethodPost, "/api/chat", `{"text":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with ok=false", rec.Code)
	}
	resp := decode[orchestrator.ChatResponse](t, rec)
	if resp.OK || !strings.Contains(resp.Error, "backend exploded") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestTTS_StandaloneEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/tts", `{"text":"say this"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	speech := decode[tts.Speech](t, rec)
	if speech.Filename != "1_a.mp3" {
		t.Errorf("speech = %+v", speech)
	}
	if ts.tts.CallCount() != 1 {
		t.Errorf("tts called %d times", ts.tts.CallCount())
	}
}

func TestTTS_AllProvidersFailedIs502(t *testing.T) {
	ts := newTestServer(t)
	ts.tts.SpeakErr = errors.New("everything is down")
	ts.tts.SpeakResult = tts.Speech{}
	rec := ts.request(t, http.MethodPost, "/api/tts", `{"text":"hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestASR_DisabledIs400(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "a.wav")
	fw.Write([]byte("wav"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/asr", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 while asr is disabled", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestConfig_GetAndMerge(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	got := decode[config.Config](t, rec)
	if got.LLM.Provider != "lmstudio" {
		t.Errorf("config = %+v", got.LLM)
	}

	rec = ts.request(t, http.MethodPut, "/api/config", `{"memory":{"max_history":20}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body)
	}
	merged := decode[config.Config](t, rec)
	if merged.Memory.MaxHistory != 20 {
		t.Errorf("max_history = %d, want 20", merged.Memory.MaxHistory)
	}
	// Sibling values survive the merge.
	if merged.LLM.Endpoint == "" {
		t.Error("llm endpoint clobbered")
	}
}

func TestConfig_UnknownKeyRejected(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPut, "/api/config", `{"warp_drive":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSessions_CRUDOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/sessions", `{"title":"morning chat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[map[string]any](t, rec)
	id := int64(created["id"].(float64))

	rec = ts.request(t, http.MethodPut, "/api/sessions/1", `{"title":"renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/sessions", "")
	list := decode[map[string][]map[string]any](t, rec)
	if len(list["sessions"]) != 1 || list["sessions"][0]["title"] != "renamed" {
		t.Fatalf("sessions = %+v", list)
	}

	rec = ts.request(t, http.MethodDelete, "/api/sessions/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.request(t, http.MethodDelete, "/api/sessions/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
	_ = id
}

func TestSessionMessages_AfterChat(t *testing.T) {
	ts := newTestServer(t)
	ts.request(t, http.MethodPost, "/api/chat", `{"text":"hello"}`)

	rec := ts.request(t, http.MethodGet, "/api/sessions/1/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[map[string][]map[string]any](t, rec)
	if len(got["messages"]) != 2 {
		t.Fatalf("messages = %+v", got)
	}
}

func TestCharacters_DefaultIsProtected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodDelete, "/api/characters/1", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/characters", `{"name":"Miko","voice_id":"v7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[map[string]any](t, rec)
	id := int(created["id"].(float64))
	if id == 1 {
		t.Fatal("created character got the reserved id")
	}

	rec = ts.request(t, http.MethodDelete, "/api/characters/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestCharacters_CreateRequiresName(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/characters", `{"system_prompt":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func uploadAvatar(t *testing.T, ts *testServer, filename string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("model-bytes"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/avatars", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, r)
	return rec
}

func TestAvatars_UploadListDelete(t *testing.T) {
	ts := newTestServer(t)

	if rec := uploadAvatar(t, ts, "hanako.vrm"); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body)
	}

	rec := ts.request(t, http.MethodGet, "/api/avatars", "")
	got := decode[map[string][]string](t, rec)
	if len(got["avatars"]) != 1 || got["avatars"][0] != "hanako.vrm" {
		t.Fatalf("avatars = %+v", got)
	}

	rec = ts.request(t, http.MethodDelete, "/api/avatars/hanako.vrm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestAvatars_RejectsBadUploads(t *testing.T) {
	ts := newTestServer(t)

	if rec := uploadAvatar(t, ts, "malware.exe"); rec.Code != http.StatusBadRequest {
		t.Fatalf("exe upload status = %d, want 400", rec.Code)
	}
	if rec := uploadAvatar(t, ts, "../../etc/passwd.vrm"); rec.Code != http.StatusOK {
		// filepath.Base strips the traversal; the stored name must be bare.
		t.Fatalf("traversal upload status = %d", rec.Code)
	}
	rec := ts.request(t, http.MethodGet, "/api/avatars", "")
	got := decode[map[string][]string](t, rec)
	for _, name := range got["avatars"] {
		if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
			t.Fatalf("stored avatar name %q escapes the directory", name)
		}
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v after cancel", err)
		}
	case <-time.After(shutdownTimeout + 5*time.Second):
		t.Fatal("server did not shut down after context cancel")
	}
}
