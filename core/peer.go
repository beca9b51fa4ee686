package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// peerConn is one URL's runtime lifecycle state: {disabled -> enabled
// -> disabled}, owning a streaming subscription goroutine and a
// periodic puller goroutine while enabled (§4.6).
type peerConn struct {
	url     string
	enabled bool
	cancel  context.CancelFunc
}

// Replicator is the peer-replication component: outbound gossip
// subscription plus periodic pull synchronization, maintaining a
// live-peer quorum.
type Replicator struct {
	chain   *ChainManager
	client  *http.Client
	dialer  *websocket.Dialer
	selfURL string

	mu    sync.Mutex
	conns map[string]*peerConn
	wg    sync.WaitGroup
}

// NewReplicator constructs a replicator bound to chain. selfURL is
// excluded from peer membership by the chain manager itself.
func NewReplicator(chain *ChainManager, selfURL string) *Replicator {
	return &Replicator{
		chain:   chain,
		client:  &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
		selfURL: selfURL,
		conns:   make(map[string]*peerConn),
	}
}

// Start seeds connection state from the chain manager's current peer
// list and begins the quorum maintenance loop.
func (r *Replicator) Start(ctx context.Context) {
	r.mu.Lock()
	for _, u := range r.chain.Peers() {
		r.conns[u] = &peerConn{url: u}
	}
	r.mu.Unlock()
	r.maintainQuorum()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(PeerPullInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.maintainQuorum()
			}
		}
	}()
}

// AddPeer registers url with the chain manager and the replicator's
// connection table, then tops up the live-peer quorum, which may enable
// the new peer.
func (r *Replicator) AddPeer(url string) {
	if !r.chain.AddPeer(url) {
		return
	}
	r.mu.Lock()
	if _, ok := r.conns[url]; !ok {
		r.conns[url] = &peerConn{url: url}
	}
	r.mu.Unlock()
	r.maintainQuorum()
}

// Stop disables every peer (closing streams, clearing timers) and
// waits for their goroutines to exit, per the graceful-shutdown
// contract in §5.
func (r *Replicator) Stop() {
	r.mu.Lock()
	for _, pc := range r.conns {
		r.disableLocked(pc)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Replicator) enableLocked(pc *peerConn) {
	if pc.enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	pc.enabled = true
	pc.cancel = cancel
	r.wg.Add(2)
	go r.streamLoop(ctx, pc.url)
	go r.pullLoop(ctx, pc.url)
}

func (r *Replicator) disableLocked(pc *peerConn) {
	if !pc.enabled {
		return
	}
	pc.cancel()
	pc.enabled = false
}

// maintainQuorum enables disabled peers, chosen uniformly at random,
// until MinNumLivePeers are enabled or the pool is exhausted (§4.6).
func (r *Replicator) maintainQuorum() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var enabledCount int
	var disabled []*peerConn
	for _, pc := range r.conns {
		if pc.enabled {
			enabledCount++
		} else {
			disabled = append(disabled, pc)
		}
	}
	if enabledCount >= MinNumLivePeers || len(disabled) == 0 {
		return
	}
	rand.Shuffle(len(disabled), func(i, j int) { disabled[i], disabled[j] = disabled[j], disabled[i] })
	for _, pc := range disabled {
		if enabledCount >= MinNumLivePeers {
			break
		}
		r.enableLocked(pc)
		enabledCount++
	}
}

func wsURL(httpURL string) string {
	u := httpURL
	u = strings.TrimSuffix(u, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://") + "/listen"
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://") + "/listen"
	default:
		return u + "/listen"
	}
}

// streamLoop opens a persistent subscription to peer's /listen stream
// and ingests events through the ordinary ingestion API. On error or
// close it retries after PeerRetryDelay, but only while still enabled
// (ctx not cancelled).
func (r *Replicator) streamLoop(ctx context.Context, url string) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, _, err := r.dialer.DialContext(ctx, wsURL(url), nil)
		if err != nil {
			if !sleepOrDone(ctx, PeerRetryDelay) {
				return
			}
			continue
		}
		stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
		r.readEvents(ctx, conn)
		stopClose()
		_ = conn.Close()
		if !sleepOrDone(ctx, PeerRetryDelay) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (r *Replicator) readEvents(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		r.ingestEvent(ev)
	}
}

func (r *Replicator) ingestEvent(ev Event) {
	switch ev.Type {
	case EventBlock:
		if ev.Block != nil {
			if err := r.chain.SubmitBlock(ev.Block); err != nil {
				logHardError("replicator: ingest block", err)
			}
		}
	case EventMessage:
		if ev.Message != nil {
			if err := r.chain.SubmitMessage(ev.Message); err != nil {
				logHardError("replicator: ingest message", err)
			}
		}
	case EventPeer:
		if ev.Peer != "" {
			r.AddPeer(ev.Peer)
		}
	}
}

// pullLoop periodically fetches missing blocks, the remote mempool,
// and the remote peer list, applying each result through the
// ingestion API and ignoring soft errors (§4.6).
func (r *Replicator) pullLoop(ctx context.Context, url string) {
	defer r.wg.Done()
	r.pullOnce(ctx, url)
	ticker := time.NewTicker(PeerPullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pullOnce(ctx, url)
		}
	}
}

func (r *Replicator) pullOnce(ctx context.Context, url string) {
	tail := r.chain.TailBlock()
	var tailHeight uint64
	if tail != nil {
		tailHeight = tail.Height
	}
	start := uint64(1)
	if tailHeight > ChargeSettleBlocks {
		start = tailHeight - ChargeSettleBlocks
	}
	for h := start; ; h++ {
		blk, status, err := r.getBlock(ctx, url, h)
		if err != nil {
			break
		}
		if status == http.StatusNotFound {
			break
		}
		if blk != nil {
			if err := r.chain.SubmitBlock(blk); err != nil {
				logHardError("replicator: pull block", err)
			}
		}
	}
	r.pullMempool(ctx, url)
	r.pullPeers(ctx, url)
}

func (r *Replicator) getBlock(ctx context.Context, base string, height uint64) (*Block, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/blocks/"+strconv.FormatUint(height, 10), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var b Block
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, resp.StatusCode, err
	}
	return &b, resp.StatusCode, nil
}

func (r *Replicator) pullMempool(ctx context.Context, base string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/mempool", nil)
	if err != nil {
		return
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	var body struct {
		Blocks   []*Block   `json:"blocks"`
		Messages []*Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return
	}
	for _, b := range body.Blocks {
		if err := r.chain.SubmitBlock(b); err != nil {
			logHardError("replicator: pull mempool block", err)
		}
	}
	for _, m := range body.Messages {
		if err := r.chain.SubmitMessage(m); err != nil {
			logHardError("replicator: pull mempool message", err)
		}
	}
}

func (r *Replicator) pullPeers(ctx context.Context, base string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+"/peers", nil)
	if err != nil {
		return
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	var urls []string
	if err := json.NewDecoder(resp.Body).Decode(&urls); err != nil {
		return
	}
	for _, u := range urls {
		r.AddPeer(u)
	}
}
