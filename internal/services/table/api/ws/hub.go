// Package ws pushes battle-log entries to live subscribers.
//
// The push channel is supplementary: clients poll for map state and treat
// pushed entries as a latency optimization, so a dropped subscriber or a
// failed write never blocks an append.
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seralith/wartable/internal/battlemap"
)

const writeWait = 5 * time.Second

// Hub owns the live battle-log subscribers, grouped by campaign.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[uint64]*subscriber
	nextID      atomic.Uint64
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[uint64]*subscriber)}
}

// Subscribe registers a connection for a campaign's log stream and returns
// an unsubscribe handle.
func (h *Hub) Subscribe(campaignID string, conn *websocket.Conn) (unsubscribe func()) {
	id := h.nextID.Add(1)
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	group, ok := h.subscribers[campaignID]
	if !ok {
		group = make(map[uint64]*subscriber)
		h.subscribers[campaignID] = group
	}
	group[id] = sub
	h.mu.Unlock()

	return func() { h.drop(campaignID, id) }
}

func (h *Hub) drop(campaignID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.subscribers[campaignID]
	if !ok {
		return
	}
	delete(group, id)
	if len(group) == 0 {
		delete(h.subscribers, campaignID)
	}
}

// SubscriberCount reports live subscribers for a campaign.
func (h *Hub) SubscriberCount(campaignID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[campaignID])
}

// Broadcast marshals the entry once and writes it to every subscriber of the
// campaign. Subscribers that fail a write are dropped.
func (h *Hub) Broadcast(campaignID string, entry battlemap.BattleLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ws: marshal log entry: %v", err)
		return
	}

	h.mu.Lock()
	group := h.subscribers[campaignID]
	subs := make(map[uint64]*subscriber, len(group))
	for id, sub := range group {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		sub.mu.Lock()
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			log.Printf("ws: drop subscriber %d for %s: %v", id, campaignID, err)
			h.drop(campaignID, id)
			_ = sub.conn.Close()
		}
	}
}
