package socket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// Message is what observers receive and what travels over Redis.
type Message struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
}

const sessionPrefix = "session:"

// SessionChannel names the observer channel for a call room.
func SessionChannel(room string) string {
	return sessionPrefix + room
}

type Hub struct {
	log      *logger.Logger
	nodeID   string
	mu       sync.RWMutex
	channels map[string]map[uuid.UUID]*Client

	relay *RedisRelay
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:      log.With("component", "Hub"),
		nodeID:   uuid.NewString(),
		channels: make(map[string]map[uuid.UUID]*Client),
	}
}

// AttachRelay starts delivering other nodes' messages to local observers
// and relays local publications through r.
func (h *Hub) AttachRelay(r *RedisRelay) error {
	if err := r.listen(h.receiveRemote); err != nil {
		return err
	}
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
	return nil
}

func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[uuid.UUID]*Client)
		}
		h.channels[ch][client.ID] = client
	}
	h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch, clientsMap := range h.channels {
		if _, ok := clientsMap[client.ID]; ok {
			delete(clientsMap, client.ID)
			if len(clientsMap) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

// Subscribers reports how many local clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) localBroadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientsMap, ok := h.channels[msg.Channel]
	if !ok {
		return
	}
	for _, client := range clientsMap {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
		}
	}
}

// receiveRemote handles a message relayed by Redis. Our own publications
// were already delivered locally.
func (h *Hub) receiveRemote(msg Message) {
	if msg.Origin == h.nodeID {
		return
	}
	h.localBroadcast(msg)
}

// Publish delivers payload to local observers of channel and relays it to
// other nodes when Redis is configured. Only the relay can fail.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	msg := Message{Channel: channel, Payload: json.RawMessage(payload), Origin: h.nodeID}
	h.localBroadcast(msg)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Publish(ctx, msg); err != nil {
			h.log.Warn("Failed to publish to Redis", "error", err)
			return err
		}
	}
	return nil
}
