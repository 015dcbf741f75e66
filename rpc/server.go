// Package rpc exposes the protocol over HTTP with JSON bodies. Mutating
// requests are serialized behind a single mutex; the engines assume one
// writer at a time.
package rpc

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phoebe87124/appworks-final-project/core/events"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
	"github.com/phoebe87124/appworks-final-project/oracle"
)

// Server wires the protocol engines behind an HTTP API.
type Server struct {
	mu sync.Mutex

	comptroller *comptroller.Comptroller
	pool        *lending.Engine
	nftPools    map[common.Address]*nftpool.Engine
	auctions    *auction.Engine
	prices      *oracle.Simple
	collector   *events.Collector
	log         *slog.Logger

	metrics  *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer constructs the HTTP front end over the protocol engines.
func NewServer(registry *comptroller.Comptroller, pool *lending.Engine, nftPools map[common.Address]*nftpool.Engine, auctions *auction.Engine, prices *oracle.Simple, collector *events.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := prometheus.NewRegistry()
	return &Server{
		comptroller: registry,
		pool:        pool,
		nftPools:    nftPools,
		auctions:    auctions,
		prices:      prices,
		collector:   collector,
		log:         logger,
		metrics:     metrics,
		requests: promauto.With(metrics).NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftlend",
			Name:      "rpc_requests_total",
			Help:      "RPC requests by route and response code.",
		}, []string{"route", "code"}),
		latency: promauto.With(metrics).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftlend",
			Name:      "rpc_request_seconds",
			Help:      "RPC request latency by route.",
		}, []string{"route"}),
	}
}

// Router builds the chi router with all protocol routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/lending", func(r chi.Router) {
			r.Post("/mint", s.handleMint)
			r.Post("/redeem", s.handleRedeem)
			r.Post("/redeem-underlying", s.handleRedeemUnderlying)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/repay-behalf", s.handleRepayBehalf)
			r.Post("/liquidate", s.handleLiquidate)
			r.Get("/market", s.handleMarket)
			r.Get("/position", s.handlePosition)
		})
		r.Route("/nft", func(r chi.Router) {
			r.Post("/mint", s.handleNftMint)
			r.Post("/redeem", s.handleNftRedeem)
			r.Get("/claim", s.handleNftClaim)
		})
		r.Route("/auction", func(r chi.Router) {
			r.Post("/bid", s.handleBid)
			r.Post("/claim", s.handleClaim)
			r.Get("/status", s.handleAuctionStatus)
		})
		r.Route("/comptroller", func(r chi.Router) {
			r.Post("/enter-markets", s.handleEnterMarkets)
			r.Post("/exit-market", s.handleExitMarket)
			r.Get("/liquidity", s.handleLiquidity)
			r.Get("/markets", s.handleMarkets)
		})
		r.Route("/oracle", func(r chi.Router) {
			r.Post("/underlying", s.handleSetUnderlyingPrice)
			r.Post("/nft", s.handleSetNftPrice)
		})
		r.Get("/events", s.handleEvents)
	})
	return r
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.Error("encode response", "route", route, "err", err)
		}
	}
	s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (s *Server) writeError(w http.ResponseWriter, route string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("rpc failure", "route", route, "err", err)
	} else {
		s.log.Debug("rpc rejected", "route", route, "code", code, "err", err)
	}
	s.writeJSON(w, route, status, errorBody{Error: err.Error(), Code: code})
}

func decode(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

// withEngine serializes a mutating call and stamps the pool engine with the
// current block height. One block per second keeps the per-block rate math
// aligned with wall time.
func (s *Server) withEngine(route string, fn func() error) error {
	timer := prometheus.NewTimer(s.latency.WithLabelValues(route))
	defer timer.ObserveDuration()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.SetBlockHeight(uint64(time.Now().Unix()))
	return fn()
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, lending.ErrInvalidAmount
	}
	return v, nil
}
