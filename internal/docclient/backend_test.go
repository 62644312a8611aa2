package docclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
)

const (
	testAppID    = "fridgechef"
	testPassword = "secret123"
)

var testUserID = uuid.MustParse("5b6f3c1e-6a0e-4c8e-9a53-2f1d0c7e4a11")

// backend is an in-process stand-in for the server API.
type backend struct {
	secret []byte

	mu             sync.Mutex
	accessTTL      time.Duration
	refresh        string
	refreshCalls   int
	refuseRefresh  bool
	seq            int
	docs           map[string]map[string]json.RawMessage
	subs           map[string][]chan struct{}
	streamStatus   int
	streamFailures int
	streamOpens    int
	lastQuery      url.Values
	aiStatus       int
	aiCode         string
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{
		secret:    []byte("test-secret"),
		accessTTL: 15 * time.Minute,
		docs:      make(map[string]map[string]json.RawMessage),
		subs:      make(map[string][]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.login)
	mux.HandleFunc("POST /api/auth/register", b.login)
	mux.HandleFunc("POST /api/auth/refresh", b.refreshToken)
	mux.HandleFunc("POST /api/auth/logout", b.logout)
	mux.HandleFunc("POST /api/auth/password-reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "sent"})
	})
	mux.HandleFunc("POST /api/docs/{collection}", b.authed(b.create))
	mux.HandleFunc("PUT /api/docs/{collection}/{id}", b.authed(b.set))
	mux.HandleFunc("PATCH /api/docs/{collection}/{id}", b.authed(b.update))
	mux.HandleFunc("DELETE /api/docs/{collection}/{id}", b.authed(b.remove))
	mux.HandleFunc("GET /api/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.profile())
	}))
	mux.HandleFunc("PATCH /api/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req dto.UpdateProfileRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p := b.profile()
		if req.TaxID != nil {
			p.TaxID = *req.TaxID
			p.NeedsProfileCompletion = false
		}
		writeJSON(w, http.StatusOK, p)
	}))
	mux.HandleFunc("GET /api/stream/{collection}", b.stream)
	mux.HandleFunc("POST /api/p/fridgechef/analyze", b.authed(b.ai(map[string]any{"ingredients": []string{"Ovos", "Leite"}})))
	mux.HandleFunc("POST /api/p/fridgechef/recipes", b.authed(b.ai(map[string]any{"recipes": []map[string]any{{"title": "Omelete"}}})))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, dto.ErrorResponse{Error: true, Code: code, Message: code})
}

func (b *backend) issue(w http.ResponseWriter, status int) {
	b.mu.Lock()
	b.seq++
	b.refresh = fmt.Sprintf("refresh-%d", b.seq)
	refresh, ttl := b.refresh, b.accessTTL
	b.mu.Unlock()

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    testUserID.String(),
		"app_id": testAppID,
		"exp":    time.Now().Add(ttl).Unix(),
	}).SignedString(b.secret)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, dto.CodeInternal)
		return
	}
	writeJSON(w, status, dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         dto.UserResponse{ID: testUserID, Email: "ana@example.com", DisplayName: "Ana"},
	})
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != testPassword {
		writeErr(w, http.StatusUnauthorized, dto.CodeInvalidCredentials)
		return
	}
	b.issue(w, http.StatusOK)
}

func (b *backend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	ok := !b.refuseRefresh && req.RefreshToken != "" && req.RefreshToken == b.refresh
	if ok {
		b.refreshCalls++
	}
	b.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusUnauthorized, dto.CodeInvalidToken)
		return
	}
	b.issue(w, http.StatusOK)
}

func (b *backend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refresh = ""
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (b *backend) authorized(r *http.Request) bool {
	if r.Header.Get("X-App-ID") != testAppID {
		return false
	}
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return b.secret, nil })
	return err == nil
}

func (b *backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			writeErr(w, http.StatusUnauthorized, dto.CodeUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *backend) profile() dto.ProfileResponse {
	return dto.ProfileResponse{ID: testUserID, Email: "ana@example.com", DisplayName: "Ana", NeedsProfileCompletion: true}
}

func (b *backend) create(w http.ResponseWriter, r *http.Request) {
	var data json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeErr(w, http.StatusBadRequest, dto.CodeBadRequest)
		return
	}
	collection := r.PathValue("collection")
	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("d%03d", b.seq)
	b.put(collection, id, data)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, dto.CreateDocumentResponse{ID: id})
}

func (b *backend) set(w http.ResponseWriter, r *http.Request) {
	var data json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&data)
	b.mu.Lock()
	b.lastQuery = r.URL.Query()
	b.put(r.PathValue("collection"), r.PathValue("id"), data)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

func (b *backend) update(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	_ = json.NewDecoder(r.Body).Decode(&fields)
	collection, id := r.PathValue("collection"), r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.docs[collection][id]
	if !ok {
		writeErr(w, http.StatusNotFound, dto.CodeNotFound)
		return
	}
	merged := map[string]any{}
	_ = json.Unmarshal(current, &merged)
	for k, v := range fields {
		merged[k] = v
	}
	data, _ := json.Marshal(merged)
	b.put(collection, id, data)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (b *backend) remove(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[collection][id]; !ok {
		writeErr(w, http.StatusNotFound, dto.CodeNotFound)
		return
	}
	delete(b.docs[collection], id)
	b.notify(collection)
	w.WriteHeader(http.StatusNoContent)
}

// put stores a document and wakes the collection's streams. Callers hold mu.
func (b *backend) put(collection, id string, data json.RawMessage) {
	if b.docs[collection] == nil {
		b.docs[collection] = make(map[string]json.RawMessage)
	}
	b.docs[collection][id] = data
	b.notify(collection)
}

func (b *backend) notify(collection string) {
	for _, ch := range b.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *backend) snapshot(collection string) dto.SnapshotResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.docs[collection]))
	for id := range b.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snap := dto.SnapshotResponse{Collection: collection, Docs: []dto.DocumentResponse{}}
	for _, id := range ids {
		snap.Docs = append(snap.Docs, dto.DocumentResponse{ID: id, Data: b.docs[collection][id]})
	}
	return snap
}

func (b *backend) stream(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	b.mu.Lock()
	b.streamOpens++
	status := b.streamStatus
	fail := b.streamFailures > 0
	if fail {
		b.streamFailures--
	}
	b.mu.Unlock()

	switch {
	case !b.authorized(r):
		writeErr(w, http.StatusUnauthorized, dto.CodeUnauthorized)
		return
	case status != 0:
		writeErr(w, status, dto.CodeForbidden)
		return
	case fail:
		writeErr(w, http.StatusInternalServerError, dto.CodeInternal)
		return
	}

	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[collection] = append(b.subs[collection], ch)
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		subs := b.subs[collection]
		for i, c := range subs {
			if c == ch {
				b.subs[collection] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)

	write := func() {
		var payload []byte
		if collection == "profile" {
			payload, _ = json.Marshal(b.profile())
		} else {
			payload, _ = json.Marshal(b.snapshot(collection))
		}
		fmt.Fprintf(w, ": ping\n\nevent: snapshot\ndata: %s\n\n", payload)
		flusher.Flush()
	}

	write()
	for {
		select {
		case <-ch:
			write()
		case <-r.Context().Done():
			return
		}
	}
}

func (b *backend) ai(body map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status, code := b.aiStatus, b.aiCode
		b.mu.Unlock()
		if status != 0 {
			writeErr(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (b *backend) doc(collection, id string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.docs[collection][id]
	if !ok {
		return nil, false
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out, true
}
