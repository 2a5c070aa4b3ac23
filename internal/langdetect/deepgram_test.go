package langdetect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDetectParsesLanguageAndConfidence(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Token ") {
			t.Errorf("Authorization = %q, want Token prefix", got)
		}
		if !strings.Contains(r.URL.RawQuery, "detect_language=true") {
			t.Errorf("query = %q, missing detect_language", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"detected_language":"nl","alternatives":[{"confidence":0.91}]}]}}`))
	}))
	defer ts.Close()

	client := NewClient("key")
	client.baseURL = ts.URL

	got, err := client.Detect(context.Background(), []byte("riff"), "audio/wav")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got.Language != "nl" {
		t.Fatalf("Language = %q, want nl", got.Language)
	}
	if got.Confidence != 0.91 {
		t.Fatalf("Confidence = %v, want 0.91", got.Confidence)
	}
}

func TestDetectFallsBackToUndetermined(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer ts.Close()

	client := NewClient("key")
	client.baseURL = ts.URL

	got, err := client.Detect(context.Background(), []byte("riff"), "")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got.Language != "und" {
		t.Fatalf("Language = %q, want und", got.Language)
	}
}

func TestDetectHonorsContextDeadline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient("key")
	client.baseURL = ts.URL

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Detect(ctx, []byte("riff"), ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Detect() error = %v, want deadline exceeded", err)
	}
}

func TestDetectRequiresKeyAndAudio(t *testing.T) {
	if _, err := NewClient("").Detect(context.Background(), []byte("x"), ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
	if _, err := NewClient("key").Detect(context.Background(), nil, ""); err == nil {
		t.Fatalf("Detect() accepted empty audio")
	}
}
