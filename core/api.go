package core

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes the HTTP and WebSocket surface of §6, bound to
// loopback only. It is a thin adapter: all state lives behind
// ChainManager's API.
type Server struct {
	chain      *ChainManager
	replicator *Replicator
	miner      *Miner

	mu       sync.Mutex
	mining   bool
	mineStop chan struct{}

	router *mux.Router
	srv    *http.Server
}

// NewServer wires routes onto a fresh mux.Router, in the style of the
// teacher's cmd/explorer/server.go.
func NewServer(chain *ChainManager, replicator *Replicator, scheme SignatureScheme) *Server {
	s := &Server{
		chain:      chain,
		replicator: replicator,
		miner:      NewMiner(chain, scheme),
	}
	s.router = mux.NewRouter()
	s.router.Use(loopbackOnly)
	s.router.Use(accessLog)
	s.routes()
	return s
}

// Start launches the HTTP server on addr (expected to be a loopback
// address per §6).
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown stops mining and the HTTP server. Callers should stop the
// replicator and wait on persistence separately, per the shutdown
// ordering in §5.
func (s *Server) Shutdown() {
	s.stopMining()
	if s.srv != nil {
		_ = s.srv.Close()
	}
}

// loopbackOnly rejects any request not originating from 127.0.0.1/::1
// with 401, per §6.
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/assets", s.handleAssets).Methods(http.MethodGet)
	s.router.HandleFunc("/balances/{address}", s.handleBalances(false)).Methods(http.MethodGet)
	s.router.HandleFunc("/balance/{address}/{asset}", s.handleBalance(false)).Methods(http.MethodGet)
	s.router.HandleFunc("/unconfirmedBalances/{address}", s.handleBalances(true)).Methods(http.MethodGet)
	s.router.HandleFunc("/unconfirmedBalance/{address}/{asset}", s.handleBalance(true)).Methods(http.MethodGet)
	s.router.HandleFunc("/minter/{asset}", s.handleMinter(false)).Methods(http.MethodGet)
	s.router.HandleFunc("/unconfirmedMinter/{asset}", s.handleMinter(true)).Methods(http.MethodGet)
	s.router.HandleFunc("/price/{asset}", s.handlePrice(false)).Methods(http.MethodGet)
	s.router.HandleFunc("/unconfirmedPrice/{asset}", s.handlePrice(true)).Methods(http.MethodGet)
	s.router.HandleFunc("/submitMessage", s.handleSubmitMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/mine", s.handleMine).Methods(http.MethodPost)
	s.router.HandleFunc("/minedBlocks", s.handleMinedBlocks).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/{height:[0-9]+}", s.handleBlockAt).Methods(http.MethodGet)
	s.router.HandleFunc("/blockcache", s.handleBlockcache).Methods(http.MethodGet)
	s.router.HandleFunc("/mempool", s.handleMempool).Methods(http.MethodGet)
	s.router.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	s.router.HandleFunc("/peer", s.handleAddPeer).Methods(http.MethodPost)
	s.router.HandleFunc("/listen", s.handleListen)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	if le, ok := err.(*LedgerError); ok {
		writeJSON(w, le.Status, map[string]string{"error": le.Err})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tail := s.chain.TailBlock()
	startHeight := uint64(1)
	if tail != nil {
		startHeight = tail.Height + 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"startHeight": startHeight,
		"timestamp":   time.Now().UnixMilli(),
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.Assets())
}

func (s *Server) handleBalances(unconfirmed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := Address(mux.Vars(r)["address"])
		writeJSON(w, http.StatusOK, s.chain.Balances(addr, unconfirmed))
	}
}

func (s *Server) handleBalance(unconfirmed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		addr := Address(vars["address"])
		asset := vars["asset"]
		writeJSON(w, http.StatusOK, s.chain.Balance(addr, asset, unconfirmed))
	}
}

func (s *Server) handleMinter(unconfirmed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := mux.Vars(r)["asset"]
		addr, claimed := s.chain.Minter(asset, unconfirmed)
		if !claimed {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, addr)
	}
}

func (s *Server) handlePrice(unconfirmed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := mux.Vars(r)["asset"]
		price := s.chain.Price(asset, unconfirmed)
		writeJSON(w, http.StatusOK, price) // nil marshals to JSON null, denoting +Infinity
	}
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var m Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed message"})
		return
	}
	if err := s.chain.SubmitMessage(&m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address *Address `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	if body.Address == nil {
		s.stopMining()
	} else {
		s.startMining(*body.Address)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) startMining(addr Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mining {
		return
	}
	s.mining = true
	s.mineStop = make(chan struct{})
	stop := s.mineStop
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if blk, found, err := s.miner.MineOnce(addr); err != nil {
				logHardError("mine", err)
			} else if found {
				log.Infof("mined new block, height=%d", blk.Height)
			}
		}
	}()
}

func (s *Server) stopMining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mining {
		return
	}
	close(s.mineStop)
	s.mining = false
}

func (s *Server) handleMinedBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.MinedBlocks())
}

func (s *Server) handleBlockAt(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid height"})
		return
	}
	blk, err := s.chain.BlockAt(height)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blk)
}

func (s *Server) handleBlockcache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.BlocksBuffer())
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	blocks, messages := s.chain.MempoolSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks, "messages": messages})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.Peers())
}

func (s *Server) handleAddPeer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	s.replicator.AddPeer(body.URL)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleListen upgrades to a WebSocket and streams every block,
// message, and peer event the node accepts (§6).
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.chain.bus.Subscribe()
	defer unsubscribe()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
