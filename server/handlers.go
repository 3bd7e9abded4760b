package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/service"
)

const headerTier = "X-Match-Tier"

type handler struct {
	engine         Engine
	rebuildTimeout time.Duration
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("write response")
	}
}

// statusOf 把领域错误码映射为 HTTP 状态码。
func statusOf(err error) (int, string) {
	de := core.GetDomainError(err)
	if de == nil {
		return http.StatusInternalServerError, core.ErrorCodeInternalError
	}
	switch de.Code {
	case core.ErrorCodeInvalidInput:
		return http.StatusBadRequest, de.Code
	case core.ErrorCodeNotFound:
		return http.StatusNotFound, de.Code
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable, de.Code
	case core.ErrorCodeNotSupported:
		return http.StatusNotImplemented, de.Code
	default:
		return http.StatusInternalServerError, de.Code
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func badParam(name string, err error) error {
	return core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "invalid "+name, err)
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, badParam(name, err)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (*bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, badParam(name, err)
	}
	return &v, nil
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "starting"})
		return
	}
	products, users := snap.KNN.Size()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  snap.Version,
		"built_at": snap.BuiltAt.UTC().Format(time.RFC3339),
		"words":    snap.Trie.Len(),
		"products": products,
		"users":    users,
		"titles":   len(snap.Hybrid.Titles()),
	})
}

// GET /autocomplete?query=log&max=5 → ["logitech keyboard","logitech mouse"]
func (h *handler) autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		query = q.Get("q")
	}
	max, err := intParam(r, "max")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.engine.Autocomplete(r.Context(), query, max)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(headerTier, string(res.Tier))
	writeJSON(w, http.StatusOK, res.Words)
}

func (h *handler) similar(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	n, err := intParam(r, "n")
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := h.engine.RecommendSimilarProducts(r.Context(), productID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "recommendations": recs})
}

func (h *handler) forUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	n, err := intParam(r, "n")
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := service.UserOptions{Filter: q.Get("filter")}
	if s := q.Get("alpha"); s != "" {
		alpha, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, r, badParam("alpha", err))
			return
		}
		opts.Alpha = &alpha
	}
	if opts.ExcludeOwnedTypes, err = boolParam(r, "exclude_owned"); err != nil {
		writeError(w, r, err)
		return
	}
	diversity, err := boolParam(r, "diversity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts.Diversity = diversity != nil && *diversity
	if s := q.Get("exclude"); s != "" {
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.ExcludeIDs = append(opts.ExcludeIDs, id)
			}
		}
	}

	recs, err := h.engine.RecommendForUser(r.Context(), userID, n, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "recommendations": recs})
}

// fromHistory 保持旧接口的响应形状：没有历史或没有近邻时返回 message。
func (h *handler) fromHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	n, err := intParam(r, "n")
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.engine.UserHistory(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(hist) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No user history found"})
		return
	}
	recs, err := h.engine.RecommendFromHistory(r.Context(), userID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No recommendations found for the chosen product"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	hist, err := h.engine.UserHistory(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "history": hist})
}

func (h *handler) normalize(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.NormalizeTitle(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// rebuildWriteSlack 是重建结束后留给写响应的时间。
const rebuildWriteSlack = 5 * time.Second

func (h *handler) rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// 重建通常比 server.write_timeout 长：为本请求单独放宽写超时，0 表示取消写超时
	var deadline time.Time
	if h.rebuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.rebuildTimeout)
		defer cancel()
		deadline = time.Now().Add(h.rebuildTimeout + rebuildWriteSlack)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Ctx(ctx).Warn().Err(err).Msg("extend write deadline for rebuild")
	}
	if err := h.engine.Rebuild(ctx); err != nil {
		// 重建失败时旧快照继续服务，把原因返回给运维
		logging.Ctx(ctx).Error().Err(err).Msg("rebuild failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "REBUILD_FAILED", Message: err.Error()}})
		return
	}
	resp := map[string]any{"status": "rebuilt"}
	if snap := h.engine.Snapshot(); snap != nil {
		resp["version"] = snap.Version
	}
	writeJSON(w, http.StatusOK, resp)
}
