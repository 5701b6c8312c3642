// Package httpapi is the order and product HTTP API the client synchronizes
// against.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"orderdesk/pkg/logger"
	"orderdesk/pkg/metrics"
	"orderdesk/pkg/order"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/product"
)

// Sessions authenticates requests. See session.Store.
type Sessions interface {
	Create(ctx context.Context, user string) (string, error)
	User(ctx context.Context, sid string) (string, error)
	TTL() time.Duration
}

// ImageStore persists uploaded product images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, productID, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// Config wires a Server. Sessions, Images, Metrics and Tracer are optional:
// a nil Sessions disables authentication, a nil Images rejects uploads.
type Config struct {
	Orders   order.Repository
	Products product.Repository
	Sessions Sessions
	// Users, when non-empty, restricts login to these user/password pairs.
	Users   map[string]string
	Images  ImageStore
	Metrics *metrics.ServerMetrics
	Tracer  trace.Tracer
	Log     *logger.Logger
	NewID   func() string
	Now     func() time.Time
}

// Server serves the API.
type Server struct {
	orders   order.Repository
	products product.Repository
	sessions Sessions
	users    map[string]string
	images   ImageStore
	metrics  *metrics.ServerMetrics
	tracer   trace.Tracer
	log      *logger.Logger
	newID    func() string
	now      func() time.Time
}

// New returns a Server for cfg.
func New(cfg Config) *Server {
	s := &Server{
		orders:   cfg.Orders,
		products: cfg.Products,
		sessions: cfg.Sessions,
		users:    cfg.Users,
		images:   cfg.Images,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		log:      cfg.Log,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)

	orders := r.PathPrefix("/orders").Subrouter()
	products := r.PathPrefix("/products").Subrouter()
	if s.sessions != nil {
		orders.Use(s.authMiddleware)
		products.Use(s.authMiddleware)
	}

	orders.HandleFunc("", s.listOrdersHandler).Methods(http.MethodGet)
	orders.HandleFunc("", s.createOrderHandler).Methods(http.MethodPost)
	orders.HandleFunc("/{id}", s.getOrderHandler).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.deleteOrderHandler).Methods(http.MethodDelete)
	orders.HandleFunc("/{id}/items", s.addOrderItemHandler).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/items/{itemId}", s.deleteOrderItemHandler).Methods(http.MethodDelete)
	orders.HandleFunc("/{id}/export", s.exportOrderHandler).Methods(http.MethodGet, http.MethodPost)

	products.HandleFunc("", s.listProductsHandler).Methods(http.MethodGet)
	products.HandleFunc("", s.createProductHandler).Methods(http.MethodPost)
	products.HandleFunc("/upload-image/{id}", s.uploadProductImageHandler).Methods(http.MethodPost)
	products.HandleFunc("/{id}", s.updateProductHandler).Methods(http.MethodPut, http.MethodPatch)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tracer == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := otel.InjectTracing(r.Context(), s.tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler reports liveness.
// @Summary Health check
// @Produce json
// @Success 200
// @Router /health [get]
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Page is the envelope every collection endpoint returns.
type Page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func newPage[T any](items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Count: len(items), Results: items}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
