// Package server publishes a schema instance over HTTP. It serves the fetch
// endpoint contract consumed by updater.HTTPSource, so one strata process can
// feed others.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/sdk"
	"github.com/syssam/strata/updater"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server serves one SDK.
type Server struct {
	sdk    *sdk.SDK
	logger *zap.Logger
	router chi.Router
}

// New returns a server publishing s.
func New(s *sdk.SDK, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{sdk: s, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(srv.logRequests)

	r.Get("/healthz", srv.health)
	r.Get(updater.SchemaPath, srv.schemaJSON)
	r.Get("/schema.graphql", srv.schemaGraphQL)
	r.Route("/types", func(r chi.Router) {
		r.Get("/", srv.types)
		r.Get("/{name}", srv.typeByName)
	})
	r.Post("/validate/{type}/{property}", srv.validate)
	if m := s.Metrics(); m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	srv.router = r
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Options configures ListenAndServe.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, opts Options) error {
	hs := &http.Server{
		Addr:         opts.Addr,
		Handler:      s,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Serving schema", zap.String("addr", opts.Addr))
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	v, err := s.sdk.Version()
	if err != nil {
		s.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": v})
}

func (s *Server) schemaJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sdk.Store().Snapshot()
	if err != nil {
		s.error(w, err)
		return
	}
	etag := strconv.Quote(snap.Version)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	p := &schema.Payload{Version: snap.Version, Schema: snap}
	if acceptsMsgpack(r) {
		w.Header().Set("Content-Type", updater.MediaTypeMsgpack)
		if err := schema.EncodeMsgpack(w, p); err != nil {
			s.logger.Warn("Encoding schema failed", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) schemaGraphQL(w http.ResponseWriter, r *http.Request) {
	sdl, err := s.sdk.GraphQLSchema()
	if err != nil {
		s.error(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(sdl))
}

func (s *Server) types(w http.ResponseWriter, r *http.Request) {
	types, err := s.sdk.Types(typeOptions(r)...)
	if err != nil {
		s.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) typeByName(w http.ResponseWriter, r *http.Request) {
	t, err := s.sdk.Type(chi.URLParam(r, "name"), typeOptions(r)...)
	if err != nil {
		s.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// validate checks the JSON request body as a value of one property.
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var value any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return
	}
	typeName, property := chi.URLParam(r, "type"), chi.URLParam(r, "property")
	if err := s.sdk.Validator().ValidateProperty(typeName, property, value); err != nil {
		s.error(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// typeOptions reads resolver options from query flags such as ?grouped=true.
func typeOptions(r *http.Request) []resolve.Option {
	q := r.URL.Query()
	flag := func(name string) (bool, bool) {
		if !q.Has(name) {
			return false, false
		}
		raw := q.Get(name)
		if raw == "" {
			return true, true
		}
		v, err := strconv.ParseBool(raw)
		return err == nil && v, true
	}
	var opts []resolve.Option
	if v, ok := flag("grouped"); ok {
		opts = append(opts, resolve.GroupProperties(v))
	}
	if v, ok := flag("meta"); ok {
		opts = append(opts, resolve.IncludeMetaFields(v))
	}
	if v, ok := flag("relationships"); ok {
		opts = append(opts, resolve.WithRelationships(v))
	}
	if v, ok := flag("synthetic"); ok {
		opts = append(opts, resolve.IncludeSyntheticFields(v))
	}
	if q.Get("primitives") == string(resolve.GraphQL) {
		opts = append(opts, resolve.PrimitiveTypes(resolve.GraphQL))
	}
	return opts
}

func acceptsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case updater.MediaTypeMsgpack:
			return true
		case updater.MediaTypeJSON:
			return false
		}
	}
	return false
}

func (s *Server) error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case strata.IsSchemaNotLoaded(err):
		status = http.StatusServiceUnavailable
	case strata.IsUnknownType(err):
		status = http.StatusNotFound
	case strata.IsUserError(err):
		status = http.StatusUnprocessableEntity
	default:
		s.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
