// Package api exposes the solver's read-only monitoring surface (spec §1
// "Out of scope": wallet connectors, browser UI, and CLI wiring are
// external; this package is the observational counterpart those clients
// would poll — it accepts no order submissions). Grounded in the
// teacher's REST+WebSocket server (pkg/api/server.go), with every
// account/position/order-submission handler dropped since this solver has
// no wallet-facing write surface (spec Non-goals).
package api

import (
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/veilswap/batchsolver/pkg/market"
	"github.com/veilswap/batchsolver/pkg/solver"
)

// Server serves batch/pair/settlement state over REST and WebSocket.
type Server struct {
	driver *solver.Driver
	pairs  *market.Registry
	router *mux.Router
	hub    *Hub
}

// NewServer creates a monitoring API server bound to driver and pairs.
func NewServer(driver *solver.Driver, pairs *market.Registry) *Server {
	s := &Server{
		driver: driver,
		pairs:  pairs,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/pairs", s.handleListPairs).Methods("GET")
	api.HandleFunc("/batches/current", s.handleCurrentBatch).Methods("GET")
	api.HandleFunc("/batches/current/settlements", s.handleCurrentSettlements).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] monitoring server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// BroadcastBatch pushes the current batch summary to WebSocket
// subscribers of the "batch" channel. Called by the solver driver on
// every phase transition.
func (s *Server) BroadcastBatch() {
	s.hub.BroadcastToChannel("batch", BatchUpdate{Type: "batch", Batch: s.batchSummary()})
}

// BroadcastSettlement pushes a settlement summary to subscribers of
// "settlement:<pair_id>". Implements solver.Observer.
func (s *Server) BroadcastSettlement(ev solver.SettlementEvent) {
	summary := SettlementSummary{
		PairID:        ev.PairID,
		ClearingPrice: ev.ClearingPrice,
		MatchedOrders: ev.MatchedOrders,
		ProofBytes:    ev.ProofBytes,
	}
	s.hub.BroadcastToChannel("settlement:"+summary.PairID, SettlementUpdate{Type: "settlement", Settlement: summary})
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs := s.pairs.List()
	out := make([]PairSummary, len(pairs))
	for i, p := range pairs {
		out[i] = PairSummary{
			PairID:    p.ID.String(),
			TokenA:    p.TokenA.Hex(),
			TokenB:    p.TokenB.Hex(),
			IsEERC20A: p.IsEERC20A,
			IsEERC20B: p.IsEERC20B,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.batchSummary())
}

func (s *Server) batchSummary() BatchSummary {
	st := s.driver.State()
	return BatchSummary{
		BatchID:  st.BatchID,
		Deadline: st.Deadline.Unix(),
		Phase:    s.driver.Phase().String(),
		Orders:   st.Len(),
	}
}

func (s *Server) handleCurrentSettlements(w http.ResponseWriter, r *http.Request) {
	settlements := s.driver.LastSettlements()
	out := make([]SettlementSummary, len(settlements))
	for i, st := range settlements {
		ids := make([]string, len(st.MatchedOrderIDs))
		for j, id := range st.MatchedOrderIDs {
			ids[j] = "0x" + hex.EncodeToString(id[:])
		}
		price := "0"
		if st.ClearingPrice != nil {
			price = st.ClearingPrice.String()
		}
		out[i] = SettlementSummary{
			PairID:        st.PairID.String(),
			ClearingPrice: price,
			MatchedOrders: ids,
			ProofBytes:    len(st.SettlementProof),
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
