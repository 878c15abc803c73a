package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"countingchain/core/events"
	"countingchain/core/types"
)

const (
	wsWriteTimeout       = 10 * time.Second
	subscriberBufferSize = 64
)

// CallFrame is the websocket payload for one completed call.
type CallFrame struct {
	CallID    string         `json:"call_id"`
	Height    uint64         `json:"height"`
	Operation string         `json:"operation"`
	Contract  string         `json:"contract,omitempty"`
	Sender    string         `json:"sender"`
	Events    []*types.Event `json:"events"`
	Error     string         `json:"error,omitempty"`
}

func frameFrom(call events.CallCompleted) CallFrame {
	evts := call.Events
	if evts == nil {
		evts = []*types.Event{}
	}
	return CallFrame{
		CallID:    call.CallID,
		Height:    call.Height,
		Operation: call.Operation,
		Contract:  call.Contract,
		Sender:    call.Sender,
		Events:    evts,
		Error:     call.Err,
	}
}

type subscriber struct {
	contract string
	ch       chan events.CallCompleted
}

// touches reports whether call involves the subscriber's contract filter,
// either as the target or through any emitted event.
func (s *subscriber) touches(call events.CallCompleted) bool {
	if s.contract == "" || call.Contract == s.contract {
		return true
	}
	for _, evt := range call.Events {
		if addr, ok := evt.Attr("_contract_address"); ok && addr == s.contract {
			return true
		}
	}
	return false
}

// Broker fans completed calls out to websocket subscribers. It implements
// events.Emitter and never blocks the host: a subscriber whose buffer is full
// misses the frame.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Emit implements events.Emitter.
func (b *Broker) Emit(evt events.Event) {
	call, ok := evt.(events.CallCompleted)
	if !ok {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.touches(call) {
			continue
		}
		select {
		case sub.ch <- call:
		default:
			b.logger.Warn("dropping call frame for slow subscriber",
				slog.String("call_id", call.CallID))
		}
	}
}

// Subscribe registers a listener for calls touching contract, or every call
// when contract is empty. cancel must be called to release it.
func (b *Broker) Subscribe(contract string) (<-chan events.CallCompleted, func()) {
	sub := &subscriber{contract: contract, ch: make(chan events.CallCompleted, subscriberBufferSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	contract := strings.TrimSpace(r.URL.Query().Get("contract"))
	if contract != "" {
		if _, err := s.parseAddress(contract); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Reads are only needed to observe the peer closing.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamCalls(ctx, conn, contract); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Warn("event stream failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamCalls(ctx context.Context, conn *websocket.Conn, contract string) error {
	calls, cancel := s.broker.Subscribe(contract)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case call, ok := <-calls:
			if !ok {
				return nil
			}
			if err := writeFrame(ctx, conn, frameFrom(call)); err != nil {
				return err
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame CallFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
