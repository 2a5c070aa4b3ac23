// Package httpapi exposes the coordinator over HTTP.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Anansitrading/chat-vrd-backend/internal/catalog"
	"github.com/Anansitrading/chat-vrd-backend/internal/config"
	"github.com/Anansitrading/chat-vrd-backend/internal/coordinator"
	"github.com/Anansitrading/chat-vrd-backend/internal/langdetect"
	"github.com/Anansitrading/chat-vrd-backend/internal/observability"
	"github.com/Anansitrading/chat-vrd-backend/internal/rooms"
)

const defaultGoogleModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Flags reports which upstream credentials are present. Missing ones
// degrade their endpoints instead of failing startup.
type Flags struct {
	Daily    bool `json:"daily"`
	Google   bool `json:"google"`
	Cartesia bool `json:"cartesia"`
	Deepgram bool `json:"deepgram"`
	Database bool `json:"database"`
}

type Server struct {
	cfg      config.Config
	coord    *coordinator.Coordinator
	detector langdetect.Detector
	metrics  *observability.Metrics
	flags    Flags

	// googleModelsURL is swapped out by tests.
	googleModelsURL string
	httpClient      *http.Client
}

func New(cfg config.Config, coord *coordinator.Coordinator, detector langdetect.Detector, metrics *observability.Metrics, flags Flags) *Server {
	return &Server{
		cfg:             cfg,
		coord:           coord,
		detector:        detector,
		metrics:         metrics,
		flags:           flags,
		googleModelsURL: defaultGoogleModelsURL,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/connect", s.handleConnect)
	r.Post("/disconnect/{room_name}", s.handleDisconnect)
	r.Get("/active", s.handleActive)

	r.Get("/models", s.handleListModels)
	r.Get("/models/{id}", s.handleGetModel)
	r.Get("/models/{id}/voices", s.handleModelVoices)
	r.Get("/voices", s.handleListVoices)
	r.Get("/voices/{id}", s.handleGetVoice)

	r.Post("/detect-language", s.handleDetectLanguage)
	r.Get("/debug/gemini-models", s.handleDebugGeminiModels)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": "chat-vrd-backend",
		"status":  "running",
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"POST /connect",
			"POST /disconnect/{room_name}",
			"GET /active",
			"GET /models",
			"GET /models/{id}",
			"GET /models/{id}/voices",
			"GET /voices",
			"GET /voices/{id}",
			"POST /detect-language",
			"GET /debug/gemini-models",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"configured":    s.flags,
		"active_bots":   s.coord.Count(),
		"default_model": s.cfg.DefaultModelID,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !s.flags.Daily {
		respondError(w, http.StatusInternalServerError, "rooms_unconfigured", "DAILY_API_KEY not configured; cannot provision rooms")
		return
	}
	if !s.flags.Google {
		respondError(w, http.StatusServiceUnavailable, "bot_unavailable", "GOOGLE_API_KEY not configured; bot subsystem unavailable")
		return
	}

	var req coordinator.ConnectRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.coord.Connect(r.Context(), req)
	if err != nil {
		var verr *coordinator.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, "invalid_selection", verr.Message)
			return
		}
		var perr *rooms.ProviderError
		if errors.As(err, &perr) {
			respondError(w, http.StatusInternalServerError, "provider_error", perr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "connect_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "room_name")
	matched, err := s.coord.Disconnect(roomName)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "no active session for room "+roomName)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "disconnected",
		"room":   matched,
	})
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request) {
	sessions := s.coord.Active()
	respondJSON(w, http.StatusOK, map[string]any{
		"active_sessions": sessions,
		"count":           len(sessions),
	})
}

type modelView struct {
	catalog.Model
	Voices       []catalog.Voice `json:"voices"`
	DefaultVoice string          `json:"default_voice"`
}

func viewOf(m catalog.Model) modelView {
	return modelView{
		Model:        m,
		Voices:       catalog.VoicesFor(m.ID),
		DefaultVoice: catalog.DefaultVoice(m.ID),
	}
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	all := catalog.AllModels()
	out := make([]modelView, 0, len(all))
	for _, m := range all {
		out = append(out, viewOf(m))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"models":  out,
		"default": s.cfg.DefaultModelID,
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := catalog.Lookup(id)
	if !ok {
		respondError(w, http.StatusNotFound, "model_not_found", "unknown model "+id)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) handleModelVoices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	voices := catalog.VoicesFor(id)
	if len(voices) == 0 {
		respondError(w, http.StatusNotFound, "model_not_found", "unknown model "+id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"model_id": id,
		"voices":   voices,
		"default":  catalog.DefaultVoice(id),
	})
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"voices": catalog.AllVoices()})
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, ok := catalog.FindVoice(id)
	if !ok {
		respondError(w, http.StatusNotFound, "voice_not_found", "unknown voice "+id)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil || !s.flags.Deepgram {
		respondError(w, http.StatusServiceUnavailable, "detection_unavailable", "DEEPGRAM_API_KEY not configured")
		return
	}

	audio, mimeType, err := readAudioSample(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "no_audio", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DetectTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.detector.Detect(ctx, audio, mimeType)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveDetectLatency(elapsed)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			respondError(w, http.StatusGatewayTimeout, "detection_timeout", "language detection exceeded "+s.cfg.DetectTimeout.String())
			return
		}
		respondError(w, http.StatusInternalServerError, "detection_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detected_language": result.Language,
		"confidence":        result.Confidence,
		"duration_ms":       elapsed.Milliseconds(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

// readAudioSample accepts either a multipart "file" field or a JSON body
// with base64_audio.
func readAudioSample(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errors.New("multipart field 'file' is required")
		}
		defer file.Close()
		audio, err := io.ReadAll(io.LimitReader(file, 8<<20))
		if err != nil {
			return nil, "", err
		}
		if len(audio) == 0 {
			return nil, "", errors.New("uploaded file is empty")
		}
		return audio, header.Header.Get("Content-Type"), nil
	}

	var body struct {
		Base64Audio string `json:"base64_audio"`
		MimeType    string `json:"mime_type"`
	}
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Base64Audio) == "" {
		return nil, "", errors.New("provide a multipart 'file' or a JSON body with base64_audio")
	}
	audio, err := base64.StdEncoding.DecodeString(body.Base64Audio)
	if err != nil {
		return nil, "", errors.New("base64_audio is not valid base64")
	}
	if len(audio) == 0 {
		return nil, "", errors.New("base64_audio decodes to empty audio")
	}
	return audio, body.MimeType, nil
}

// handleDebugGeminiModels probes the Google models API and filters to the
// entries usable over the Live websocket.
func (s *Server) handleDebugGeminiModels(w http.ResponseWriter, r *http.Request) {
	if !s.flags.Google {
		respondError(w, http.StatusServiceUnavailable, "bot_unavailable", "GOOGLE_API_KEY not configured")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.googleModelsURL+"?key="+s.cfg.GoogleAPIKey, nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "probe_failed", err.Error())
		return
	}
	res, err := s.httpClient.Do(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "probe_failed", err.Error())
		return
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		respondError(w, http.StatusInternalServerError, "probe_failed", strings.TrimSpace(string(raw)))
		return
	}

	var parsed struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		respondError(w, http.StatusInternalServerError, "probe_failed", err.Error())
		return
	}

	type liveModel struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	var live []liveModel
	for _, m := range parsed.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "bidiGenerateContent" {
				live = append(live, liveModel{Name: m.Name, DisplayName: m.DisplayName})
				break
			}
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"live_models": live,
		"count":       len(live),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
