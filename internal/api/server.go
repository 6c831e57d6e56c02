package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	mw "github.com/edvin/clustermanifest/internal/api/middleware"
	"github.com/edvin/clustermanifest/internal/api/response"
	"github.com/edvin/clustermanifest/internal/deploy"
	"github.com/edvin/clustermanifest/internal/generate"
	"github.com/edvin/clustermanifest/internal/manifest"
	"github.com/edvin/clustermanifest/internal/mcpserver"
	"github.com/edvin/clustermanifest/internal/metrics"
	"github.com/edvin/clustermanifest/internal/topology"
)

// MaxTopologyBytes bounds request bodies.
const MaxTopologyBytes = 4 << 20

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	gen     *generate.Generator
	metrics *metrics.Metrics
	deploy  deploy.Config
}

// NewServer creates the HTTP service. gen is used for rendering only; its
// sink is never touched.
func NewServer(logger zerolog.Logger, gen *generate.Generator, m *metrics.Metrics, deployCfg deploy.Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
		gen:     gen,
		metrics: m,
		deploy:  deployCfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics(s.metrics.Registry))
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", metrics.Handler(s.metrics.Registry))
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)
		r.Post("/manifests", s.handleManifests)
		r.Post("/manifests/{host}", s.handleManifest)
		r.Post("/groups", s.handleGroups)
		r.Post("/plan", s.handlePlan)
	})

	mcpSrv := mcpserver.New(s.gen, s.logger)
	s.router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath("/")))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, topology.Schema())
}

type manifestItem struct {
	Host     string            `json:"host"`
	Key      string            `json:"key"`
	File     string            `json:"file"`
	Manifest manifest.Manifest `json:"manifest"`
}

type manifestsResponse struct {
	RunID     string         `json:"run_id"`
	Groups    any            `json:"groups"`
	Manifests []manifestItem `json:"manifests"`
}

func (s *Server) handleManifests(w http.ResponseWriter, r *http.Request) {
	format, err := manifest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.render(w, r)
	if !ok {
		return
	}

	items := make([]manifestItem, 0, len(res.Entries))
	for _, e := range res.Entries {
		items = append(items, manifestItem{
			Host:     e.Host,
			Key:      e.Key(),
			File:     manifest.Filename(e.Host, format),
			Manifest: e.Manifest,
		})
	}
	response.WriteJSON(w, http.StatusOK, manifestsResponse{
		RunID:     res.RunID,
		Groups:    res.Groups,
		Manifests: items,
	})
}

// handleManifest returns one node's document exactly as it would be written.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	format, err := manifest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.render(w, r)
	if !ok {
		return
	}

	for _, e := range res.Entries {
		if e.Host != host {
			continue
		}
		data, err := manifest.Encode(e.Manifest, format)
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+manifest.Filename(host, format)+`"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("host", host).Msg("manifest response write failed")
		}
		return
	}
	response.WriteError(w, http.StatusNotFound, "host "+strconv.Quote(host)+" is not in the topology")
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	res, ok := s.render(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, res.Groups)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := manifest.ParseFormat(q.Get("format"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := deploy.Options{}
	if o := q.Get("override"); o != "" {
		opts.OverrideRunList = strings.Split(o, ",")
	}
	if sb := q.Get("skip_bootstrap"); sb != "" {
		opts.SkipBootstrap, err = strconv.ParseBool(sb)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "skip_bootstrap: "+err.Error())
			return
		}
	}

	res, ok := s.render(w, r)
	if !ok {
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"run_id":   res.RunID,
		"packages": deploy.PackageURLs(s.deploy, res.Topology.Version()),
		"nodes":    deploy.Plan(s.deploy, res.Topology, res.Entries, format, opts),
	})
}

// render loads the request body as a topology and builds its manifests,
// writing an error response and returning false on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request) (*generate.Result, bool) {
	body := http.MaxBytesReader(w, r.Body, MaxTopologyBytes)
	res, err := s.gen.Render(r.Context(), body)
	if err == nil {
		return res, true
	}

	var (
		invalid  *topology.InvalidError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		response.WriteError(w, http.StatusRequestEntityTooLarge, "topology exceeds "+strconv.Itoa(MaxTopologyBytes)+" bytes")
	case errors.Is(err, topology.ErrMalformedTopology):
		response.WriteProblems(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &invalid):
		response.WriteProblems(w, http.StatusUnprocessableEntity, topology.ErrInvalidTopology.Error(), invalid.Problems)
	case errors.Is(err, context.Canceled):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render failed")
		response.WriteError(w, http.StatusInternalServerError, "internal error")
	}
	return nil, false
}
