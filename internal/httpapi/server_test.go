package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Anansitrading/chat-vrd-backend/internal/config"
	"github.com/Anansitrading/chat-vrd-backend/internal/coordinator"
	"github.com/Anansitrading/chat-vrd-backend/internal/gemini"
	"github.com/Anansitrading/chat-vrd-backend/internal/langdetect"
	"github.com/Anansitrading/chat-vrd-backend/internal/rooms"
)

func testConfig() config.Config {
	return config.Config{
		DefaultModelID:  "gemini-2.0-flash-live-001",
		DefaultLanguage: "en-US",
		BotName:         "Chat-VRD Bot",
		BotReadyTimeout: 50 * time.Millisecond,
		DetectTimeout:   300 * time.Millisecond,
	}
}

func testCoordinator(provider rooms.Provider) *coordinator.Coordinator {
	dial := func(_, _, _ string) rooms.Transport { return rooms.NewMockTransport() }
	return coordinator.New(provider, dial, gemini.NewMockDialer(), nil, nil, nil, coordinator.Settings{
		DefaultModelID:  "gemini-2.0-flash-live-001",
		DefaultLanguage: "en-US",
		BotName:         "Chat-VRD Bot",
		ReadyTimeout:    50 * time.Millisecond,
	})
}

func newTestServer(provider rooms.Provider, detector langdetect.Detector, flags Flags) *Server {
	return New(testConfig(), testCoordinator(provider), detector, nil, flags)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, parsed
}

func TestConnectDutchDefaultsEchoPuck(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/connect", map[string]any{"language": "nl-NL"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	voice := body["voice"].(map[string]any)
	if voice["id"] != "Puck" {
		t.Fatalf("voice.id = %v, want the model default Puck", voice["id"])
	}
	if body["room_url"] == "" || body["token"] == "" {
		t.Fatalf("incomplete payload: %v", body)
	}
	if status := body["bot_status"]; status != "joined" && status != "joining" {
		t.Fatalf("bot_status = %v", status)
	}
}

func TestConnectUnknownModelReturns400WithIDs(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/connect", map[string]any{"model_id": "unknown-model"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	msg := body["error"].(string)
	for _, id := range []string{"gemini-2.0-flash-exp", "gemini-2.0-flash-live-001", "gemini-2.5-flash"} {
		if !strings.Contains(msg, id) {
			t.Fatalf("error %q does not list model %s", msg, id)
		}
	}
}

func TestConnectBadVoiceReturns400NamingSet(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/connect", map[string]any{
		"model_id": "gemini-2.0-flash-live-001",
		"voice_id": "Sulafat",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	msg := body["error"].(string)
	if !strings.Contains(msg, "Puck") || !strings.Contains(msg, "Zephyr") {
		t.Fatalf("error %q does not name the supported voice set", msg)
	}
}

func TestConnectProviderFailureReturns500AndEmptyRegistry(t *testing.T) {
	provider := rooms.NewMockProvider()
	provider.CreateErr = &rooms.ProviderError{Op: "create room", Status: 401, Body: "invalid api key"}
	coord := testCoordinator(provider)
	srv := New(testConfig(), coord, nil, nil, Flags{Daily: true, Google: true})

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/connect", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := body["error"].(string); !strings.Contains(msg, "invalid api key") {
		t.Fatalf("error %q lost provider detail", msg)
	}
	if coord.Count() != 0 {
		t.Fatalf("registry not empty after provider failure")
	}
}

func TestConnectWithoutDailyKeyReturns500(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: false, Google: true})
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/connect", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := body["error"].(string); !strings.Contains(msg, "DAILY_API_KEY") {
		t.Fatalf("error %q does not name the missing credential", msg)
	}
}

func TestConnectWithoutGoogleKeyReturns503(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: false})
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/connect", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDisconnectUnknownRoomReturns404(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/disconnect/room-that-does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestConnectThenDisconnectAndActive(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodPost, "/connect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d", rec.Code)
	}
	roomURL := body["room_url"].(string)
	roomName := roomURL[strings.LastIndex(roomURL, "/")+1:]

	rec, body = doJSON(t, router, http.MethodGet, "/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active status = %d", rec.Code)
	}
	if count := body["count"].(float64); count != 1 {
		t.Fatalf("active count = %v, want 1", count)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/disconnect/"+roomName, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "disconnected" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestModelsEndpoints(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{})
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodGet, "/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("models status = %d", rec.Code)
	}
	if got := len(body["models"].([]any)); got != 7 {
		t.Fatalf("models count = %d, want 7", got)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/models/gemini-2.0-flash-live-001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("model status = %d", rec.Code)
	}
	if got := len(body["voices"].([]any)); got != 8 {
		t.Fatalf("half-cascade voices = %d, want 8", got)
	}
	if body["default_voice"] != "Puck" {
		t.Fatalf("default_voice = %v", body["default_voice"])
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/models/not-a-model", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown model status = %d, want 404", rec.Code)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/models/gemini-live-2.5-flash/voices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("model voices status = %d", rec.Code)
	}
	if got := len(body["voices"].([]any)); got != 30 {
		t.Fatalf("native voices = %d, want 30", got)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/models/not-a-model/voices", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown model voices status = %d, want 404", rec.Code)
	}
}

func TestVoicesEndpoints(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{})
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodGet, "/voices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("voices status = %d", rec.Code)
	}
	if got := len(body["voices"].([]any)); got != 30 {
		t.Fatalf("voices count = %d, want 30", got)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/voices/Aoede", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("voice status = %d", rec.Code)
	}
	if body["id"] != "Aoede" {
		t.Fatalf("voice id = %v", body["id"])
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/voices/NotAVoice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown voice status = %d, want 404", rec.Code)
	}
}

// scriptedDetector lets tests control detection outcomes.
type scriptedDetector struct {
	result langdetect.Result
	block  bool
}

func (d *scriptedDetector) Detect(ctx context.Context, _ []byte, _ string) (langdetect.Result, error) {
	if d.block {
		<-ctx.Done()
		return langdetect.Result{}, ctx.Err()
	}
	return d.result, nil
}

func TestDetectLanguageJSONBody(t *testing.T) {
	detector := &scriptedDetector{result: langdetect.Result{Language: "nl", Confidence: 0.9}}
	srv := newTestServer(rooms.NewMockProvider(), detector, Flags{Deepgram: true})

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/detect-language", map[string]any{
		"base64_audio": "UklGRg==",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["detected_language"] != "nl" {
		t.Fatalf("detected_language = %v", body["detected_language"])
	}
	if _, ok := body["duration_ms"]; !ok {
		t.Fatalf("duration_ms missing")
	}
}

func TestDetectLanguageMultipart(t *testing.T) {
	detector := &scriptedDetector{result: langdetect.Result{Language: "en", Confidence: 0.8}}
	srv := newTestServer(rooms.NewMockProvider(), detector, Flags{Deepgram: true})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sample.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("RIFFdata")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/detect-language", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestDetectLanguageMissingAudioReturns400(t *testing.T) {
	detector := &scriptedDetector{}
	srv := newTestServer(rooms.NewMockProvider(), detector, Flags{Deepgram: true})

	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/detect-language", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDetectLanguageTimeoutReturns504(t *testing.T) {
	detector := &scriptedDetector{block: true}
	cfg := testConfig()
	cfg.DetectTimeout = 20 * time.Millisecond
	srv := New(cfg, testCoordinator(rooms.NewMockProvider()), detector, nil, Flags{Deepgram: true})

	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/detect-language", map[string]any{
		"base64_audio": "UklGRg==",
	})
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestDetectLanguageUnconfiguredReturns503(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{})
	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/detect-language", map[string]any{
		"base64_audio": "UklGRg==",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestDebugGeminiModelsFiltersToLive(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash-live-001","displayName":"Flash Live","supportedGenerationMethods":["bidiGenerateContent"]},
			{"name":"models/gemini-1.5-pro","displayName":"Pro","supportedGenerationMethods":["generateContent"]}
		]}`))
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.GoogleAPIKey = "test-key"
	srv := New(cfg, testCoordinator(rooms.NewMockProvider()), nil, nil, Flags{Google: true})
	srv.googleModelsURL = upstream.URL

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/debug/gemini-models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if count := body["count"].(float64); count != 1 {
		t.Fatalf("count = %v, want 1", count)
	}
	live := body["live_models"].([]any)
	first := live[0].(map[string]any)
	if first["name"] != "models/gemini-2.0-flash-live-001" {
		t.Fatalf("live model = %v", first["name"])
	}
}

func TestHealthReportsFlags(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{Daily: true, Google: true})
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	configured := body["configured"].(map[string]any)
	if configured["daily"] != true || configured["google"] != true || configured["cartesia"] != false {
		t.Fatalf("configured = %v", configured)
	}
}

func TestIndexListsEndpoints(t *testing.T) {
	srv := newTestServer(rooms.NewMockProvider(), nil, Flags{})
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	endpoints := body["endpoints"].([]any)
	if len(endpoints) == 0 {
		t.Fatalf("endpoint list empty")
	}
}
