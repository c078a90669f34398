package fakechain

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// wsStatusInterval is the period of signature status checks made for
// active subscriptions.
const wsStatusInterval = 5 * time.Millisecond

type (
	notification struct {
		JSONRPC string             `json:"jsonrpc"`
		Method  string             `json:"method"`
		Params  notificationParams `json:"params"`
	}

	notificationParams struct {
		Result       any    `json:"result"`
		Subscription uint64 `json:"subscription"`
	}

	signatureValue struct {
		Err any `json:"err"`
	}

	// wsSession is a single websocket connection. Reads happen in serve,
	// notifications are written by per-subscription goroutines.
	wsSession struct {
		chain *Chain
		conn  *websocket.Conn

		wLock   sync.Mutex
		done    chan struct{}
		wg      sync.WaitGroup
		lastSub uint64
	}
)

// WSHandler serves signatureSubscribe via JSON-RPC over websocket. A single
// signatureNotification is sent once the signature status is known,
// signatureUnsubscribe is accepted silently.
func (c *Chain) WSHandler() http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := &wsSession{chain: c, conn: conn, done: make(chan struct{})}
		s.serve()
	})
}

func (s *wsSession) serve() {
	defer func() {
		close(s.done)
		s.wg.Wait()
		_ = s.conn.Close()
	}()
	for {
		var req request
		if err := s.conn.ReadJSON(&req); err != nil {
			return
		}
		switch req.Method {
		case "signatureSubscribe":
			sig, err := sigParam(req.Params, 0)
			if err != nil {
				s.write(response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: errCodeInvalidParams, Message: err.Error()}})
				continue
			}
			s.lastSub++
			s.write(response{JSONRPC: "2.0", ID: req.ID, Result: s.lastSub})
			s.wg.Add(1)
			go s.notify(s.lastSub, sig)
		case "signatureUnsubscribe":
		default:
			s.write(response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: errCodeMethod, Message: "method not found: " + req.Method}})
		}
	}
}

func (s *wsSession) notify(sub uint64, sig solana.Signature) {
	defer s.wg.Done()
	ticker := time.NewTicker(wsStatusInterval)
	defer ticker.Stop()
	for {
		s.chain.lock.Lock()
		st := s.chain.statuses[sig]
		s.chain.lock.Unlock()
		if st != nil {
			s.write(notification{
				JSONRPC: "2.0",
				Method:  "signatureNotification",
				Params: notificationParams{
					Result:       withContext{Context: rpcContext{Slot: st.Slot}, Value: signatureValue{Err: st.Err}},
					Subscription: sub,
				},
			})
			return
		}
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func (s *wsSession) write(msg any) {
	s.wLock.Lock()
	defer s.wLock.Unlock()
	_ = s.conn.WriteJSON(msg)
}

func sigParam(params []json.RawMessage, i int) (solana.Signature, error) {
	str, err := param[string](params, i)
	if err != nil {
		return solana.Signature{}, err
	}
	return solana.SignatureFromBase58(str)
}
