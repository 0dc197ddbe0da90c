// Package axlproxy is a small REST front for the CUCM AXL SOAP API: callers
// pass search criteria as query parameters and get the AXL reply back.
package axlproxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// AXL is the upstream the routes forward to; *Client is one.
type AXL interface {
	Call(ctx context.Context, op string, envelope []byte) (*Response, error)
}

type Server struct {
	axl     AXL
	version string
	tokens  *JWTIssuer
}

// New builds the proxy. tokens may be nil, which leaves the API open to
// anyone who can reach the listener.
func New(axl AXL, version string, tokens *JWTIssuer) *Server {
	return &Server{axl: axl, version: version, tokens: tokens}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

const landingPage = `<!DOCTYPE html>
<html><head><title>Provisioning API</title></head>
<body>
<h1>Provisioning API</h1>
<ul>
<li>POST /api/v1/macd/listphone?name=&amp;description=&amp;protocol=&amp;callingSearchSpaceName=&amp;devicePoolName=&amp;securityProfileName=</li>
<li>POST /api/v1/macd/getphone?name=</li>
<li>GET /healthz</li>
</ul>
</body></html>
`

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(landingPage))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Route("/api/v1/macd", func(r chi.Router) {
		if s.tokens != nil {
			r.Use(RequireToken(s.tokens))
		}
		r.Post("/listphone", s.listPhone)
		r.Post("/getphone", s.getPhone)
	})
	return r
}

func (s *Server) listPhone(w http.ResponseWriter, r *http.Request) {
	criteria, err := CriteriaFrom(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.forward(w, r, "listPhone", ListPhoneEnvelope(s.version, criteria))
}

func (s *Server) getPhone(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}
	s.forward(w, r, "getPhone", GetPhoneEnvelope(s.version, name))
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, op string, envelope []byte) {
	resp, err := s.axl.Call(r.Context(), op, envelope)
	if err != nil {
		log.WithField("request_id", RequestID(r.Context())).Errorf("AXL %s failed: %v", op, err)
		code := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		writeJSON(w, code, map[string]any{"error": "upstream request failed"})
		return
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type requestIDKey struct{}

// RequestID returns the id requestID attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a caller-supplied X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"request_id": RequestID(r.Context()),
			"remote":     r.RemoteAddr,
			"status":     ww.Status(),
			"duration":   time.Since(start).Round(time.Millisecond),
		}).Infof("%s %s", r.Method, r.URL.Path)
	})
}
