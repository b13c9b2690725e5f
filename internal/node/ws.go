package node

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/pegswap-experiment/pegswap/internal/pegswap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	feedBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// swapFilter narrows the feed to one direction and/or one caller.
type swapFilter struct {
	source, target, caller *common.Address
}

func parseFilter(r *http.Request) (swapFilter, error) {
	var f swapFilter
	q := r.URL.Query()
	for name, dst := range map[string]**common.Address{"source": &f.source, "target": &f.target, "caller": &f.caller} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return f, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
		}
		addr := common.HexToAddress(raw)
		*dst = &addr
	}
	return f, nil
}

func (f swapFilter) match(ev pegswap.TokensSwapped) bool {
	return (f.source == nil || *f.source == ev.Source) &&
		(f.target == nil || *f.target == ev.Target) &&
		(f.caller == nil || *f.caller == ev.Caller)
}

// swapRelay forwards engine swaps to one client. The engine feed blocks
// until every subscriber has taken the event, so the relay drains its
// subscription without ever waiting on the client: when the queue is full
// the subscription is dropped and lagged is closed.
type swapRelay struct {
	queue  chan pegswap.TokensSwapped
	lagged chan struct{}
	quit   chan struct{}
	once   sync.Once
}

func (n *Node) relaySwaps(filter swapFilter, size int) *swapRelay {
	rl := &swapRelay{
		queue:  make(chan pegswap.TokensSwapped, size),
		lagged: make(chan struct{}),
		quit:   make(chan struct{}),
	}
	events := make(chan pegswap.TokensSwapped, size)
	sub := n.engine.Subscribe(events)

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				if !filter.match(ev) {
					continue
				}
				select {
				case rl.queue <- ev:
				default:
					close(rl.lagged)
					return
				}
			case <-sub.Err():
				close(rl.lagged)
				return
			case <-rl.quit:
				return
			}
		}
	}()
	return rl
}

func (rl *swapRelay) stop() {
	rl.once.Do(func() { close(rl.quit) })
}

// handleSwapFeed streams committed swaps to a websocket client until either
// side goes away. A client that lets feedBuffer swaps pile up is disconnected.
func (n *Node) handleSwapFeed(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	relay := n.relaySwaps(filter, feedBuffer)
	defer relay.stop()

	n.log.Debug("swap feed client connected", "remote", r.RemoteAddr)
	closed := make(chan struct{})
	go n.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-relay.queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				n.log.Debug("swap feed write failed", "err", err)
				return
			}
		case <-relay.lagged:
			n.log.Warn("swap feed client fell behind, disconnecting", "remote", r.RemoteAddr)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			n.log.Debug("swap feed client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh. It
// closes done when the connection drops.
func (n *Node) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				n.log.Debug("swap feed read error", "err", err)
			}
			return
		}
	}
}
