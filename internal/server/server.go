package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deidaraiorek/codeindex/internal/config"
	"github.com/deidaraiorek/codeindex/internal/errdefs"
	"github.com/deidaraiorek/codeindex/internal/query"
	"github.com/deidaraiorek/codeindex/internal/search"
)

// MethodsFactory returns the search methods for one request on idx.
type MethodsFactory func(idx config.IndexConfig) *search.Methods

type Server struct {
	cfg     *config.Config
	methods MethodsFactory
	rules   query.CommentRuleFunc
	logger  *slog.Logger
	router  chi.Router
}

func New(cfg *config.Config, methods MethodsFactory, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg, err := cfg.CommentRegistry()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		methods: methods,
		rules:   reg.Lookup,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/indexes", func(r chi.Router) {
		r.Get("/", s.handleIndexes)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/search", s.handleSearch)
			r.Get("/files", s.handleFiles)
			r.Get("/stats", s.handleStats)
		})
	})
	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

type indexInfo struct {
	Name           string   `json:"name"`
	Directories    []string `json:"directories"`
	Extensions     []string `json:"extensions"`
	UpdateMode     string   `json:"update_mode"`
	Type           string   `json:"type"`
	ContentIndexed bool     `json:"content_indexed"`
	NamesIndexed   bool     `json:"names_indexed"`
}

type searchResponse struct {
	Matches []string        `json:"matches"`
	Actions []search.Action `json:"actions"`
	Total   time.Duration   `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	infos := make([]indexInfo, 0, len(s.cfg.Indexes))
	for _, idx := range s.cfg.Indexes {
		infos = append(infos, indexInfo{
			Name:           idx.DisplayName(),
			Directories:    idx.Directories,
			Extensions:     idx.Extensions,
			UpdateMode:     string(idx.UpdateMode),
			Type:           string(idx.Type),
			ContentIndexed: idx.IsContentIndexed(),
			NamesIndexed:   idx.IsFileNameIndexed(),
		})
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) (config.IndexConfig, bool) {
	name := chi.URLParam(r, "name")
	idx, ok := s.cfg.Index(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown index %q", name), Kind: "not_found"})
	}
	return idx, ok
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errdefs.NewQueryError(v, fmt.Sprintf("invalid value for %s", name))
	}
	return b, nil
}

func (s *Server) params(r *http.Request) (query.Params, error) {
	values := r.URL.Query()
	p := query.Params{
		Search:          values.Get("q"),
		FolderFilter:    values.Get("folders"),
		ExtensionFilter: values.Get("extensions"),
		CommentRules:    s.rules,
	}
	var err error
	if p.CaseSensitive, err = boolParam(r, "case"); err != nil {
		return p, err
	}
	if p.ExcludeComments, err = boolParam(r, "exclude_comments"); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	p, err := s.params(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q, err := query.NewContentQuery(p)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.methods(idx).SearchContent(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	p, err := s.params(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q, err := query.NewFileQuery(p)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.methods(idx).SearchFiles(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	stats, err := s.methods(idx).Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeResult(w http.ResponseWriter, res search.Result) {
	resp := searchResponse{Matches: res.Matches}
	if resp.Matches == nil {
		resp.Matches = []string{}
	}
	if res.Report != nil {
		resp.Actions = res.Report.Actions()
		resp.Total = res.Report.Total()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func statusFor(kind errdefs.Kind) int {
	switch kind {
	case errdefs.KindQuery:
		return http.StatusBadRequest
	case errdefs.KindIndexMissing:
		return http.StatusNotFound
	case errdefs.KindLocationUnreachable, errdefs.KindLocked:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errdefs.Classify(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: errdefs.Message(err), Kind: kind.String()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
