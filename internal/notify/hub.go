// Package notify fans "something changed" events out to connected clients.
// Events carry no payload; they only tell a client to poll sooner. Polling
// stays the source of truth, so correctness never depends on this hub.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// EventType names what changed. Clients treat every type the same way.
type EventType string

const (
	EvtSessionStarted    EventType = "SessionStarted"
	EvtSessionPaused     EventType = "SessionPaused"
	EvtSessionResumed    EventType = "SessionResumed"
	EvtSessionCompleted  EventType = "SessionCompleted"
	EvtTeamsAssigned     EventType = "TeamsAssigned"
	EvtVoteCast          EventType = "VoteCast"
	EvtLeaderElected     EventType = "LeaderElected"
	EvtRunoffStarted     EventType = "RunoffStarted"
	EvtPhaseAdvanced     EventType = "PhaseAdvanced"
	EvtResponseSubmitted EventType = "ResponseSubmitted"
)

type Event struct {
	SessionID uuid.UUID `json:"sessionId"`
	Type      EventType `json:"type"`
}

type Msg interface{ isHubMsg() }

type Subscribe struct {
	SessionID uuid.UUID
	ClientID  string
	Outbox    chan Event
}

type Unsubscribe struct {
	SessionID uuid.UUID
	ClientID  string
}

type Publish struct {
	Event Event
}

type Shutdown struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (Shutdown) isHubMsg()    {}

// Hub is a single goroutine owning all subscriber state; everything talks
// to it through the inbox.
type Hub struct {
	inbox  chan Msg
	subs   map[uuid.UUID]map[string]chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan Msg, 64),
		subs:   make(map[uuid.UUID]map[string]chan Event),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// PublishEvent is the collaborator surface the services call.
func (h *Hub) PublishEvent(sessionID uuid.UUID, t EventType) {
	select {
	case h.inbox <- Publish{Event: Event{SessionID: sessionID, Type: t}}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				if h.subs[msg.SessionID] == nil {
					h.subs[msg.SessionID] = make(map[string]chan Event)
				}
				h.subs[msg.SessionID][msg.ClientID] = msg.Outbox

			case Unsubscribe:
				if clients := h.subs[msg.SessionID]; clients != nil {
					if ch, ok := clients[msg.ClientID]; ok {
						// Closing unblocks the subscriber's writer loop.
						close(ch)
						delete(clients, msg.ClientID)
					}
					if len(clients) == 0 {
						delete(h.subs, msg.SessionID)
					}
				}

			case Publish:
				h.broadcast(msg.Event)

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	for id, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			// Slow or gone; drop them. They still have the poll loop.
			close(ch)
			delete(h.subs[ev.SessionID], id)
		}
	}
}

func (h *Hub) shutdown() {
	for sid, clients := range h.subs {
		for id, ch := range clients {
			close(ch)
			delete(clients, id)
		}
		delete(h.subs, sid)
	}
	h.cancel()
}
