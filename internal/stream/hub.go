package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/logger"
)

// Hub is the single ordered delegate channel. Publish never blocks; one
// dispatcher goroutine delivers events in publish order to every subscribed
// delegate, then to websocket clients and redis. After Close nothing more is
// delivered.
type Hub struct {
	redis    *redis.Client
	channel  string
	instance string
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	subs    []*Subscription

	qmu       sync.Mutex
	cond      *sync.Cond
	queue     []queued
	seq       uint64
	delivered uint64
	epoch     uint64
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	Types map[EventType]bool
	Send  chan []byte
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	hub      *Hub
	delegate Delegate
}

// Swap replaces the subscribed delegate without a gap in delivery. Events not
// yet delivered go to d.
func (s *Subscription) Swap(d Delegate) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.delegate = d
}

func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for i, sub := range s.hub.subs {
		if sub == s {
			s.hub.subs = append(s.hub.subs[:i:i], s.hub.subs[i+1:]...)
			return
		}
	}
}

type queued struct {
	event Event
	epoch uint64
}

type envelope struct {
	Instance string          `json:"instance"`
	Event    json.RawMessage `json:"event"`
}

// NewHub starts the dispatcher. With a redis client, events are also published
// on channel and events published there by other instances reach local
// websocket clients.
func NewHub(redisClient *redis.Client, channel string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:    redisClient,
		channel:  channel,
		instance: uuid.NewString(),
		log:      logger.Component("stream"),
		clients:  map[*Client]struct{}{},
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.qmu)

	if redisClient != nil {
		pubsub := redisClient.Subscribe(ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			h.log.Error().Err(err).Str("channel", channel).Msg("redis subscribe failed")
			_ = pubsub.Close()
		} else {
			go h.subscribeRedis(ctx, pubsub)
		}
	}
	go h.run()
	return h
}

func (h *Hub) Subscribe(d Delegate) *Subscription {
	sub := &Subscription{hub: h, delegate: d}
	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()
	return sub
}

// Register adds a websocket client. An empty type list receives every event.
func (h *Hub) Register(types ...EventType) *Client {
	client := &Client{Send: make(chan []byte, 64)}
	if len(types) > 0 {
		client.Types = map[EventType]bool{}
		for _, t := range types {
			client.Types[t] = true
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// Publish queues e and returns its sequence number, or 0 once closed.
func (h *Hub) Publish(e Event) uint64 {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	if h.closed {
		return 0
	}
	h.seq++
	e.Seq = h.seq
	h.queue = append(h.queue, queued{event: e, epoch: h.epoch})
	h.cond.Broadcast()
	return e.Seq
}

// Drop discards every undelivered event and keeps the hub open. An event being
// delivered stops before its next callback.
func (h *Hub) Drop() {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	h.queue = nil
	h.epoch++
	h.delivered = h.seq
	h.cond.Broadcast()
}

// Sync blocks until every event published before the call was delivered. It
// must not be called from a delegate callback.
func (h *Hub) Sync() {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	target := h.seq
	for h.delivered < target && !h.closed {
		h.cond.Wait()
	}
}

// Close drops undelivered events and stops delivery. A callback already running
// completes; no further callback starts.
func (h *Hub) Close() {
	h.qmu.Lock()
	if h.closed {
		h.qmu.Unlock()
		return
	}
	h.closed = true
	h.queue = nil
	h.cond.Broadcast()
	h.qmu.Unlock()
	h.cancel()
}

// Done is closed when the dispatcher goroutine has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) live(epoch uint64) bool {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	return !h.closed && h.epoch == epoch
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		h.qmu.Lock()
		for len(h.queue) == 0 && !h.closed {
			h.cond.Wait()
		}
		if h.closed {
			h.qmu.Unlock()
			return
		}
		q := h.queue[0]
		h.queue = h.queue[1:]
		h.qmu.Unlock()

		h.deliver(q)

		h.qmu.Lock()
		if q.event.Seq > h.delivered {
			h.delivered = q.event.Seq
		}
		h.cond.Broadcast()
		h.qmu.Unlock()
	}
}

func (h *Hub) deliver(q queued) {
	e := q.event
	h.mu.RLock()
	delegates := make([]Delegate, 0, len(h.subs))
	for _, sub := range h.subs {
		delegates = append(delegates, sub.delegate)
	}
	h.mu.RUnlock()

	for _, d := range delegates {
		if !h.live(q.epoch) {
			return
		}
		h.call(d, e)
	}
	if !h.live(q.epoch) {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(e.Type)).Msg("encode event")
		return
	}
	h.Broadcast(e.Type, payload)

	if h.redis != nil {
		raw, _ := json.Marshal(envelope{Instance: h.instance, Event: payload})
		if err := h.redis.Publish(context.Background(), h.channel, raw).Err(); err != nil {
			h.log.Error().Err(err).Msg("redis publish error")
		}
	}
}

func (h *Hub) call(d Delegate, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("type", string(e.Type)).Msg("delegate callback panicked")
		}
	}()
	Dispatch(d, e)
}

// Broadcast sends an encoded event to local websocket clients without
// blocking; slow clients miss messages.
func (h *Hub) Broadcast(t EventType, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.Types != nil && !client.Types[t] {
			continue
		}
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Instance == h.instance {
				continue
			}
			var head struct {
				Type EventType `json:"type"`
			}
			if err := json.Unmarshal(env.Event, &head); err != nil {
				continue
			}
			h.Broadcast(head.Type, env.Event)
		}
	}
}

// RedisChannel names the fan-out channel for one driver.
func RedisChannel(driverID string) string {
	return "telematics:" + driverID + ":events"
}
