// Package api serves contract comparisons over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/claw-gang/amendment-diff/internal/report"
	"github.com/claw-gang/amendment-diff/internal/temporal/runner"
	"github.com/claw-gang/amendment-diff/internal/temporal/workflows"
)

// Comparer runs one comparison and returns its report.
type Comparer interface {
	CompareReport(ctx context.Context, originalFolder, amendmentFolder, contractID string) (report.Report, error)
}

// History reads past comparisons. Only durable deployments provide one.
type History interface {
	List(ctx context.Context, pageSize int) ([]runner.ComparisonSummary, error)
	State(ctx context.Context, contractID string) (*workflows.ComparisonResult, error)
}

// Server is the HTTP API server.
type Server struct {
	comparer Comparer
	history  History
	dataRoot string
	mux      *http.ServeMux
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the comparison listing and state endpoints.
func WithHistory(h History) Option { return func(s *Server) { s.history = h } }

// WithDataRoot restricts request folders to paths under root.
func WithDataRoot(root string) Option { return func(s *Server) { s.dataRoot = root } }

// New creates a Server. When oidcCfg is enabled the issuer is discovered
// immediately and every route but health requires a bearer token.
func New(c Comparer, corsOrigins []string, oidcCfg OIDCConfig, opts ...Option) (*Server, error) {
	s := &Server{comparer: c, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()

	var h http.Handler = s.mux
	if oidcCfg.Enabled {
		provider, err := oidc.NewProvider(context.Background(), oidcCfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("api: oidc discovery: %w", err)
		}
		h = requireCaller(provider, oidcCfg.Audience)(h)
	}
	s.handler = requestID(logging(cors(corsOrigins, h)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/comparisons", s.handleCompare)
	s.mux.HandleFunc("GET /api/v1/comparisons", s.handleListComparisons)
	s.mux.HandleFunc("GET /api/v1/comparisons/{id}", s.handleGetComparison)
}
