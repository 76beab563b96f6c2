package reststore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bioreader/internal/logging"
	"bioreader/internal/services"
	"bioreader/internal/store"
	"bioreader/internal/store/reststore"
)

func newClient(t *testing.T, handler http.HandlerFunc) *reststore.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return reststore.New(reststore.Config{URL: server.URL + "/", APIKey: "service-key"}, server.Client(), logging.NewNop())
}

func checkAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("apikey"); got != "service-key" {
		t.Errorf("apikey header = %q", got)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
		t.Errorf("authorization header = %q", got)
	}
}

func TestListQueriesByUser(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		if r.Method != http.MethodGet || r.URL.Path != "/rest/v1/biometric_templates" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user_id") != "eq.user-42" || q.Get("select") != "id,template,quality" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "2f9c", "template": "QUJD", "quality": 93},
			{"id": 17, "template": "REVG", "quality": null}
		]`))
	})

	templates, err := client.List(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("templates = %+v", templates)
	}
	if templates[0].ID != "2f9c" || string(templates[0].Template) != "QUJD" || templates[0].Quality != 93 {
		t.Fatalf("first template = %+v", templates[0])
	}
	if templates[1].ID != "17" || templates[1].Quality != 0 {
		t.Fatalf("second template = %+v", templates[1])
	}
}

func TestListEmptySet(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	templates, err := client.List(context.Background(), "new-user")
	if err != nil || len(templates) != 0 {
		t.Fatalf("List = %+v, %v", templates, err)
	}
}

func TestSavePostsEnrollment(t *testing.T) {
	var got map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/biometric_templates" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Save(context.Background(), store.Enrollment{
		UserID: "user-42", Template: []byte("QUJD"), Quality: 95, Finger: "right_index",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := map[string]any{"user_id": "user-42", "template": "QUJD", "quality": float64(95), "finger": "right_index"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("body[%s] = %v, want %v (body %v)", k, got[k], v, got)
		}
	}
}

func TestNon2xxIsExternalServiceError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	})

	_, err := client.List(context.Background(), "user-42")
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "Invalid API key") {
		t.Fatalf("error should carry status and body: %v", err)
	}

	if err := client.Save(context.Background(), store.Enrollment{UserID: "u"}); !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("Save error = %v", err)
	}
}

func TestMissingCredentialsIsConfigurationError(t *testing.T) {
	client := reststore.New(reststore.Config{}, nil, nil)
	_, err := client.List(context.Background(), "user-42")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEmptyUserRejected(t *testing.T) {
	client := reststore.New(reststore.Config{URL: "http://unused", APIKey: "k"}, nil, nil)
	if _, err := client.List(context.Background(), ""); !errors.Is(err, store.ErrInvalidUser) {
		t.Fatalf("List error = %v", err)
	}
}
