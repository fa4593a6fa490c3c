package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
)

// ProofHeader carries the payment proof on dispense requests.
const ProofHeader = "X-Payment-Proof"

// DefaultService is dispensed when the query omits a service name.
const DefaultService = "soda"

// ServerOptions configures a Server.
type ServerOptions struct {
	// Addr is the listen address. Defaults to ":8001".
	Addr string
	// ClientID is the sender ID stamped on messages synthesized from HTTP
	// requests.
	ClientID string
	Logger   logging.Logger
}

// Server binds a provider agent to HTTP. Requests are translated into the
// same messages the orchestrator would deliver, so the agent's negotiation
// logic is shared between both transports.
type Server struct {
	agent  core.Agent
	client string
	logger logging.Logger

	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates an HTTP binding for the given provider agent.
func NewServer(agent core.Agent, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{
		Addr:     ":8001",
		ClientID: "http_client",
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		agent:  agent,
		client: opts.ClientID,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /dispense", s.handleDispense)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the HTTP server until it fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening addr=%s agent=%s", s.server.Addr, s.agent.ID())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agentId":      s.agent.ID(),
		"name":         s.agent.Name(),
		"description":  s.agent.Description(),
		"capabilities": s.agent.Capabilities(),
		"status":       "active",
	})
}

func (s *Server) handleDispense(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		service = DefaultService
	}

	payload := map[string]any{
		core.FieldService: service,
	}
	if proof := r.Header.Get(ProofHeader); proof != "" {
		payload[core.FieldPaymentProof] = proof
	}

	msg := core.NewMessage(s.client, s.agent.ID(), core.KindServiceRequest, payload)

	resp, err := s.agent.HandleMessage(r.Context(), msg)
	if err != nil {
		s.logger.Error("dispense handler failed service=%s: %v", service, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			core.FieldError: err.Error(),
		})

		return
	}

	if resp == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			core.FieldError: "no response from agent",
		})

		return
	}

	writeJSON(w, statusFor(resp.Kind), resp.Payload)
}

// statusFor maps response kinds onto HTTP status codes.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindServiceDelivered:
		return http.StatusOK
	case core.KindPaymentRequired:
		return http.StatusPaymentRequired
	case core.KindPaymentInvalid:
		return http.StatusBadRequest
	case core.KindServiceUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
