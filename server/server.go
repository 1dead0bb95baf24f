package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mnewlive/compliance-connector/connector"
	"github.com/mnewlive/compliance-connector/internal/config"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	connector *connector.Service
	validate  *validator.Validate
}

func New(config config.Config, connectorService *connector.Service) (*Server, error) {
	if connectorService == nil {
		return nil, errors.New("[server.New] connector service is required")
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		connector: connectorService,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Authorization sessions
	s.RegisterRouteFunc("POST "+RouteSessionCreate, s.SessionCreateHandler())

	// Account information authorization outcomes
	s.RegisterRouteFunc("POST "+RouteSessionSuccess, s.SessionSuccessHandler())
	s.RegisterRouteFunc("POST "+RouteSessionFail, s.SessionFailHandler())
	s.RegisterRouteFunc("GET "+RouteSessionConsent, s.SessionConsentHandler())

	// Payment authorization outcomes
	s.RegisterRouteFunc("POST "+RoutePaymentSuccess, s.PaymentSuccessHandler())
	s.RegisterRouteFunc("POST "+RoutePaymentFail, s.PaymentFailHandler())
	s.RegisterRouteFunc("POST "+RoutePaymentFunds, s.PaymentFundsHandler())

	// Consent management
	s.RegisterRouteFunc("POST "+RouteConsentRevoke, s.ConsentRevokeHandler())
	s.RegisterRouteFunc("GET "+RouteUserTokens, s.UserTokensHandler())
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}
