package socketio

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/internal/metrics"
)

const channelPrefix = "rtsv#"

// envelope carries a broadcast between relay instances.
type envelope struct {
	ID     string   `json:"id"`
	Node   string   `json:"node"`
	Rooms  []string `json:"rooms,omitempty"`
	Except []string `json:"except,omitempty"`
	Packet string   `json:"packet"`
}

// RedisAdapter keeps room membership in memory and relays every broadcast
// through Redis pub/sub so sockets connected to other instances receive it.
type RedisAdapter struct {
	*MemoryAdapter

	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	node    string
	logger  zerolog.Logger
	done    chan struct{}
}

// NewRedisAdapter subscribes to the channel of the named namespace and
// starts relaying envelopes published by other nodes to d.
func NewRedisAdapter(ctx context.Context, client *redis.Client, namespace string, d Deliverer, logger zerolog.Logger) *RedisAdapter {
	a := &RedisAdapter{
		MemoryAdapter: NewMemoryAdapter(d),
		client:        client,
		channel:       channelPrefix + namespace,
		node:          ulid.Make().String(),
		done:          make(chan struct{}),
	}
	a.logger = logger.With().Str("component", "backplane").Str("node", a.node).Logger()

	a.pubsub = client.Subscribe(ctx, a.channel)

	// Wait for the subscription confirmation so broadcasts published right
	// after construction are not missed. go-redis resubscribes on its own if
	// this fails.
	receiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.pubsub.Receive(receiveCtx); err != nil {
		a.logger.Warn().Err(err).Str("channel", a.channel).Msg("backplane subscription not confirmed")
	}

	go a.run()

	return a
}

// NewRedisAdapterFactory returns an AdapterFactory backed by client.
func NewRedisAdapterFactory(ctx context.Context, client *redis.Client, logger zerolog.Logger) AdapterFactory {
	return func(ns *Namespace) Adapter {
		return NewRedisAdapter(ctx, client, ns.Name(), ns, logger)
	}
}

// Node returns the identifier this instance stamps on its envelopes.
func (a *RedisAdapter) Node() string {
	return a.node
}

// Broadcast delivers locally, then publishes the packet for other nodes.
func (a *RedisAdapter) Broadcast(packet *Packet, opts BroadcastOptions) (int, error) {
	encoded := packet.Encode()
	delivered := a.deliver(encoded, opts)

	data, err := json.Marshal(envelope{
		ID:     ulid.Make().String(),
		Node:   a.node,
		Rooms:  opts.Rooms,
		Except: opts.Except,
		Packet: string(encoded),
	})
	if err != nil {
		return delivered, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.client.Publish(ctx, a.channel, data).Err(); err != nil {
		metrics.BackplanePublishErrors.Inc()
		a.logger.Error().Err(err).Msg("backplane publish failed")
		return delivered, err
	}

	return delivered, nil
}

func (a *RedisAdapter) run() {
	defer close(a.done)

	for msg := range a.pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			a.logger.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		if env.Node == a.node {
			continue
		}

		metrics.BackplaneEnvelopesReceived.Inc()
		a.deliver([]byte(env.Packet), BroadcastOptions{Rooms: env.Rooms, Except: env.Except})
	}
}

// Close unsubscribes from the backplane and clears local membership.
func (a *RedisAdapter) Close() error {
	err := a.pubsub.Close()
	<-a.done
	a.MemoryAdapter.Close()
	return err
}
