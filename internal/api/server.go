// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/yield-ledger/internal/service"
	"github.com/yield-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// YieldServiceInterface defines the operations of the yield service
type YieldServiceInterface interface {
	TakeSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error)
	AddHolders(ctx context.Context, caller common.Address, holders []common.Address, balances []uint64) (types.SnapshotSummary, error)
	ValidateSnapshot(ctx context.Context, caller common.Address) (types.SnapshotSummary, error)
	CurrentSnapshot(ctx context.Context) types.SnapshotSummary
	Deposit(ctx context.Context, caller common.Address, label string, amount uint64) (types.ReserveView, error)
	WithdrawReserve(ctx context.Context, caller common.Address, amount uint64) (types.ReserveView, error)
	Reserve(ctx context.Context) types.ReserveView
	CreateDistribution(ctx context.Context, caller common.Address, amount uint64) (types.DistributionView, error)
	Payout(ctx context.Context, caller common.Address, id uint64) (*types.PayoutResult, error)
	GetDistribution(ctx context.Context, id uint64) (types.DistributionView, error)
	Claim(ctx context.Context, caller common.Address, id uint64) (uint64, error)
	Claimable(ctx context.Context, holder common.Address) uint64
}

// StakeServiceInterface defines the operations of the stake service
type StakeServiceInterface interface {
	Stake(ctx context.Context, caller common.Address, amount uint64) (types.StakeSummary, error)
	Unstake(ctx context.Context, caller common.Address) (uint64, error)
	ClaimRewards(ctx context.Context, caller common.Address) (uint64, error)
	Summary(ctx context.Context, holder common.Address) types.StakeSummary
	Config(ctx context.Context) service.StakingConfig
	UpdateConfig(ctx context.Context, caller common.Address, apy *uint64, lockPeriod *time.Duration, paused *bool) (service.StakingConfig, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	yieldService YieldServiceInterface
	stakeService StakeServiceInterface
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerMinute int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	yieldService YieldServiceInterface,
	stakeService StakeServiceInterface,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		yieldService: yieldService,
		stakeService: stakeService,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Snapshot endpoints (admin)
	api.HandleFunc("/snapshots", s.handleTakeSnapshot).Methods("POST")
	api.HandleFunc("/snapshots/holders", s.handleAddHolders).Methods("POST")
	api.HandleFunc("/snapshots/validate", s.handleValidateSnapshot).Methods("POST")
	api.HandleFunc("/snapshots/current", s.handleCurrentSnapshot).Methods("GET")

	// Reserve endpoints (admin)
	api.HandleFunc("/reserve", s.handleGetReserve).Methods("GET")
	api.HandleFunc("/reserve/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/reserve/withdrawals", s.handleWithdraw).Methods("POST")

	// Distribution endpoints
	api.HandleFunc("/distributions", s.handleCreateDistribution).Methods("POST")
	api.HandleFunc("/distributions/{id}", s.handleGetDistribution).Methods("GET")
	api.HandleFunc("/distributions/{id}/payout", s.handlePayout).Methods("POST")
	api.HandleFunc("/distributions/{id}/claims", s.handleClaim).Methods("POST")
	api.HandleFunc("/holders/{address}/claimable", s.handleClaimable).Methods("GET")

	// Staking endpoints
	api.HandleFunc("/stakes", s.handleStake).Methods("POST")
	api.HandleFunc("/stakes", s.handleUnstake).Methods("DELETE")
	api.HandleFunc("/stakes/claims", s.handleClaimRewards).Methods("POST")
	api.HandleFunc("/stakes/{address}", s.handleStakeSummary).Methods("GET")
	api.HandleFunc("/staking/config", s.handleGetStakingConfig).Methods("GET")
	api.HandleFunc("/staking/config", s.handleUpdateStakingConfig).Methods("PUT")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "yield-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router, used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}
