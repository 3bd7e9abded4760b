package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/model"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/service"
	"github.com/rushteam/catalogrec/suggest"
)

type stubEngine struct {
	snap       *service.Snapshot
	words      []string
	err        error
	history    []recall.ProductMeta
	neighbors  []recall.Neighbor
	rebuildErr error
	// rebuildDelay 模拟耗时的全量重建
	rebuildDelay time.Duration

	gotQuery string
	gotMax   int
	gotN     int
	gotOpts  service.UserOptions
}

func (s *stubEngine) Snapshot() *service.Snapshot { return s.snap }
func (s *stubEngine) Rebuild(ctx context.Context) error {
	if s.rebuildDelay > 0 {
		select {
		case <-time.After(s.rebuildDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.rebuildErr
}

func (s *stubEngine) Autocomplete(_ context.Context, q string, max int) (suggest.Result, error) {
	s.gotQuery, s.gotMax = q, max
	if s.err != nil {
		return suggest.Result{}, s.err
	}
	return suggest.Result{Words: s.words, Tier: suggest.TierPrefix}, nil
}

func (s *stubEngine) RecommendSimilarProducts(_ context.Context, _ string, n int) ([]recall.Neighbor, error) {
	s.gotN = n
	return s.neighbors, s.err
}

func (s *stubEngine) RecommendForUser(_ context.Context, _ string, n int, opts service.UserOptions) ([]model.Prediction, error) {
	s.gotN, s.gotOpts = n, opts
	if s.err != nil {
		return nil, s.err
	}
	return []model.Prediction{{Title: "Logitech keyboard", PredictedRating: 4.2}}, nil
}

func (s *stubEngine) RecommendFromHistory(_ context.Context, _ string, n int) ([]recall.Neighbor, error) {
	s.gotN = n
	return s.neighbors, s.err
}

func (s *stubEngine) UserHistory(_ context.Context, userID string) ([]recall.ProductMeta, error) {
	if userID == "" {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "user_id is required")
	}
	return s.history, s.err
}

func (s *stubEngine) NormalizeTitle(_ context.Context, title string) (service.TitleInfo, error) {
	return service.TitleInfo{Title: title, Canonical: "Logitech mouse"}, s.err
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func testSnapshot(t *testing.T) *service.Snapshot {
	t.Helper()
	trie := suggest.New()
	trie.InsertAll([]string{"logitech mouse", "logitech keyboard"})
	knn, err := recall.NewItemKNN(6, []core.Interaction{{UserID: "u1", ProductID: "p1"}, {UserID: "u1", ProductID: "p2"}})
	if err != nil {
		t.Fatal(err)
	}
	h := model.NewHybrid()
	h.SVD.Factors = 2
	if err := h.Fit(context.Background(), []core.UserRatings{{UserID: "u1", Products: []core.ProductRatings{{Title: "Logitech mouse", Ratings: []float64{4}}}}}); err != nil {
		t.Fatal(err)
	}
	return &service.Snapshot{Version: "v1", Trie: trie, KNN: knn, Hybrid: h}
}

func TestHealth(t *testing.T) {
	eng := &stubEngine{}
	h := NewRouter(eng, Config{})

	if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready status = %d", rec.Code)
	}

	eng.snap = testSnapshot(t)
	rec := do(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["version"] != "v1" || body["words"] != float64(2) || body["products"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

func TestAutocomplete(t *testing.T) {
	eng := &stubEngine{words: []string{"logitech keyboard", "logitech mouse"}}
	h := NewRouter(eng, Config{})

	rec := do(t, h, http.MethodGet, "/autocomplete?query=LOG&max=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var words []string
	decode(t, rec, &words)
	if !reflect.DeepEqual(words, eng.words) {
		t.Errorf("words = %v", words)
	}
	if eng.gotQuery != "LOG" || eng.gotMax != 3 {
		t.Errorf("engine got %q, %d", eng.gotQuery, eng.gotMax)
	}
	if got := rec.Header().Get(headerTier); got != "prefix" {
		t.Errorf("tier header = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	do(t, h, http.MethodGet, "/autocomplete?q=del")
	if eng.gotQuery != "del" {
		t.Errorf("q alias = %q", eng.gotQuery)
	}

	rec = do(t, h, http.MethodGet, "/autocomplete?query=log&max=ten")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad max status = %d", rec.Code)
	}
	var body errorBody
	decode(t, rec, &body)
	if body.Error.Code != core.ErrorCodeInvalidInput {
		t.Errorf("error body = %+v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "n must not be negative"), http.StatusBadRequest},
		{"unavailable", core.ErrModelNotTrained, http.StatusServiceUnavailable},
		{"not found", core.ErrStoreNotFound, http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&stubEngine{err: tt.err}, Config{})
			rec := do(t, h, http.MethodGet, "/recommendations/similar?product_id=p1")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "boom") {
				t.Error("internal error message leaked")
			}
		})
	}
}

func TestRecommendForUser_Params(t *testing.T) {
	eng := &stubEngine{}
	h := NewRouter(eng, Config{})

	rec := do(t, h, http.MethodGet,
		"/recommendations/user?user_id=u1&n=3&alpha=0.7&exclude_owned=true&diversity=1&exclude=a,%20b,&filter=item.score%3E3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	o := eng.gotOpts
	if eng.gotN != 3 || o.Alpha == nil || *o.Alpha != 0.7 {
		t.Errorf("n/alpha = %d %v", eng.gotN, o.Alpha)
	}
	if o.ExcludeOwnedTypes == nil || !*o.ExcludeOwnedTypes || !o.Diversity {
		t.Errorf("flags = %+v", o)
	}
	if !reflect.DeepEqual(o.ExcludeIDs, []string{"a", "b"}) || o.Filter != "item.score>3" {
		t.Errorf("exclude/filter = %v %q", o.ExcludeIDs, o.Filter)
	}
	var body struct {
		UserID          string             `json:"user_id"`
		Recommendations []model.Prediction `json:"recommendations"`
	}
	decode(t, rec, &body)
	if body.UserID != "u1" || len(body.Recommendations) != 1 || body.Recommendations[0].PredictedRating != 4.2 {
		t.Errorf("body = %+v", body)
	}

	for _, q := range []string{"alpha=x", "exclude_owned=maybe", "diversity=2x", "n=1.5"} {
		if rec := do(t, h, http.MethodGet, "/recommendations/user?user_id=u1&"+q); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestFromHistory(t *testing.T) {
	eng := &stubEngine{}
	h := NewRouter(eng, Config{})

	rec := do(t, h, http.MethodGet, "/get_recommendation")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "user_id is required") {
		t.Errorf("missing user = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/get_recommendation?user_id=u9")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No user history found") {
		t.Errorf("no history = %d %s", rec.Code, rec.Body)
	}

	eng.history = []recall.ProductMeta{{ProductID: "p1"}}
	rec = do(t, h, http.MethodGet, "/recommendation?user_id=u1")
	if !strings.Contains(rec.Body.String(), "No recommendations found") {
		t.Errorf("no neighbors = %s", rec.Body)
	}

	eng.neighbors = []recall.Neighbor{{ProductID: "p2", Category: "mouse", Brand: "logitech", SimilarityScore: 1}}
	rec = do(t, h, http.MethodGet, "/recommendation?user_id=u1&n=2")
	var body struct {
		Recommendations []recall.Neighbor `json:"recommendations"`
	}
	decode(t, rec, &body)
	if !reflect.DeepEqual(body.Recommendations, eng.neighbors) || eng.gotN != 2 {
		t.Errorf("body = %+v, n = %d", body, eng.gotN)
	}
}

func TestHistoryAndNormalize(t *testing.T) {
	eng := &stubEngine{history: []recall.ProductMeta{{ProductID: "p1", CategoryCode: "a.b.mouse", Brand: "logitech"}}}
	h := NewRouter(eng, Config{})

	rec := do(t, h, http.MethodGet, "/history?user_id=u1")
	var body struct {
		History []recall.ProductMeta `json:"history"`
	}
	decode(t, rec, &body)
	if !reflect.DeepEqual(body.History, eng.history) {
		t.Errorf("history = %+v", body.History)
	}
	if rec := do(t, h, http.MethodGet, "/history"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing user status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/normalize?title=Logitech+M185+Mouse")
	var info service.TitleInfo
	decode(t, rec, &info)
	if info.Title != "Logitech M185 Mouse" || info.Canonical != "Logitech mouse" {
		t.Errorf("info = %+v", info)
	}
}

func TestRebuild(t *testing.T) {
	eng := &stubEngine{snap: &service.Snapshot{Version: "v2"}}
	h := NewRouter(eng, Config{})

	if rec := do(t, h, http.MethodGet, "/admin/rebuild"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/admin/rebuild")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "v2") {
		t.Errorf("rebuild = %d %s", rec.Code, rec.Body)
	}

	eng.rebuildErr = errors.New("load ratings: missing file")
	rec = do(t, h, http.MethodPost, "/admin/rebuild")
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "REBUILD_FAILED") {
		t.Errorf("failed rebuild = %d %s", rec.Code, rec.Body)
	}
}

func TestRebuild_OutlivesServerWriteTimeout(t *testing.T) {
	eng := &stubEngine{snap: &service.Snapshot{Version: "v3"}, rebuildDelay: 300 * time.Millisecond}
	srv := httptest.NewUnstartedServer(NewRouter(eng, Config{RebuildTimeout: 5 * time.Second}))
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/admin/rebuild", "application/json", nil)
	if err != nil {
		t.Fatalf("rebuild request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "v3") {
		t.Errorf("rebuild = %d %s", resp.StatusCode, body)
	}

	// 重建超时按 rebuild timeout 计算
	eng.rebuildDelay = time.Second
	short := httptest.NewServer(NewRouter(eng, Config{RebuildTimeout: 20 * time.Millisecond}))
	defer short.Close()
	resp2, err := short.Client().Post(short.URL+"/admin/rebuild", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusInternalServerError {
		t.Errorf("timed out rebuild status = %d", resp2.StatusCode)
	}
}

func TestMetricsAndRateLimit(t *testing.T) {
	h := NewRouter(&stubEngine{words: []string{}}, Config{RateLimit: 1})

	if rec := do(t, h, http.MethodGet, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/autocomplete?query=a"); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/autocomplete?query=a"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d", rec.Code)
	}
}
