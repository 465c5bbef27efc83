// Package httpapi serves the query engine over HTTP.
//
// Routes:
//
//	GET /api/*path  resource requests (collections and items)
//	GET /healthz    liveness
//	GET /metrics    Prometheus collectors
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/cache"
	"github.com/roach88/bandmap/internal/engine"
	"github.com/roach88/bandmap/internal/ir"
	"github.com/roach88/bandmap/internal/logging"
	"github.com/roach88/bandmap/internal/metrics"
	"github.com/roach88/bandmap/internal/request"
	"github.com/roach88/bandmap/internal/schema"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "bandmap.request_id"

// Option configures a Server.
type Option func(*Server)

// WithMetrics records responses in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithStrictContracts validates every returned object against the JSON
// Schema contract of its resource. Violations are 500s.
func WithStrictContracts(schemas *schema.Provider) Option {
	return func(s *Server) { s.schemas = schemas }
}

// WithRequestIDs sets the generator of request ids for requests that do
// not carry one.
func WithRequestIDs(gen func() string) Option {
	return func(s *Server) { s.newID = gen }
}

// Server is the HTTP adapter. It implements http.Handler.
type Server struct {
	router    *gin.Engine
	parser    *request.Parser
	engine    *engine.Engine
	logger    *zap.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	schemas   *schema.Provider
	contracts *cache.Scalars[*schema.Contract]
	newID     func() string
}

// NewServer wires the routes. A nil logger disables request logging.
func NewServer(p *request.Parser, e *engine.Engine, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		parser:    p,
		engine:    e,
		logger:    logging.OrNop(logger),
		gatherer:  prometheus.DefaultGatherer,
		contracts: cache.New[*schema.Contract](64, time.Hour),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/api/*path", s.handleResource)
	r.NoRoute(s.noRoute)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Do serves a GET of target ("/api/bands?limit=2") in process and
// returns the response status and body.
func (s *Server) Do(ctx context.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("httpapi: building request for %q: %w", target, err)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes(), nil
}

// requestID echoes the caller's request id or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = s.newID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) noRoute(c *gin.Context) {
	err := apierr.NotFound("No resource found for URL '%s'.", c.Request.URL.Path)
	s.writeError(c, err, nil, true)
}

// handleResource parses, runs and renders one resource request.
func (s *Server) handleResource(c *gin.Context) {
	query := c.Request.URL.Query()
	pretty := query.Get("pretty") != "false"

	d, issues, err := s.parser.Parse(c.Param("path"), query)
	if err != nil {
		s.writeError(c, err, issues, pretty)
		return
	}
	d.ID = c.GetString(requestIDKey)
	pretty = d.Params.Pretty

	res, err := s.engine.Fetch(c.Request.Context(), d)
	if err != nil {
		s.writeError(c, err, issues, pretty)
		return
	}

	body, err := s.render(d, c.Request.URL.RawQuery, res)
	if err != nil {
		s.writeError(c, issues.Raise(apierr.As(err)), issues, pretty)
		return
	}
	attachWarnings(body, issues)
	s.write(c, http.StatusOK, body, pretty)
}

func (s *Server) render(d *request.Descriptor, rawQuery string, res *engine.Result) (*ir.Object, error) {
	if err := s.validate(d, res); err != nil {
		return nil, err
	}
	if d.Kind == schema.Collection {
		return collectionEnvelope(d, rawQuery, res), nil
	}
	if len(res.Objects) == 0 {
		return nil, apierr.NotFound("Requested %s not found.", d.RootObject.Singular)
	}
	obj, ok := res.Objects[0].(*ir.Object)
	if !ok {
		return nil, apierr.ServerError("Assembled %s is not an object.", d.RootObject.Singular)
	}
	return obj, nil
}

// validate checks the returned objects in strict mode.
func (s *Server) validate(d *request.Descriptor, res *engine.Result) error {
	if s.schemas == nil {
		return nil
	}
	prefix := ""
	if d.Kind == schema.Collection {
		prefix = d.Root + "."
	}
	key := d.Kind.String() + ":" + strings.Join(d.Collections, "/")
	contract, err := s.contracts.Get(key, func() (*schema.Contract, error) {
		fs, err := s.schemas.Fields(d.Kind, d.Collections)
		if err != nil {
			return nil, err
		}
		return schema.NewContract(key, fs, prefix)
	})
	if err != nil {
		return err
	}
	for _, obj := range res.Objects {
		if err := contract.Validate(obj); err != nil {
			s.logger.Error("contract violation",
				zap.String("request_id", d.ID),
				zap.String("resource", d.Path),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}
