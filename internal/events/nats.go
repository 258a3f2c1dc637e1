package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NatsBridge fans every Bus event out to a NATS subject, on top of the
// required in-process dispatch. Optional: a nil *NatsBridge (or a Bus with
// no bridge attached) just runs the in-process bus alone.
type NatsBridge struct {
	conn   *nats.Conn
	prefix string
}

// NewNatsBridge connects to url (e.g. nats://localhost:4222) and returns a
// bridge publishing under "{prefix}.{stream}".
func NewNatsBridge(url, prefix string) (*NatsBridge, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NatsBridge{conn: conn, prefix: prefix}, nil
}

// Attach subscribes the bridge to every named stream on bus and republishes
// each event to NATS. Marshal failures are logged, not propagated — a
// broken bridge must not affect in-process delivery (§7's "no exception
// crosses the tick boundary" extends to fan-out transports).
func (n *NatsBridge) Attach(bus *Bus, streams ...string) []*Subscription {
	subs := make([]*Subscription, 0, len(streams))
	for _, stream := range streams {
		stream := stream
		subs = append(subs, bus.Subscribe(stream, func(ev Event) {
			n.publish(stream, ev.Payload)
		}))
	}
	return subs
}

func (n *NatsBridge) publish(stream string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("stream", stream).Msg("nats bridge: marshal failed")
		return
	}
	subject := n.prefix + "." + stream
	if err := n.conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("nats bridge: publish failed")
	}
}

// Close flushes pending publishes and closes the connection.
func (n *NatsBridge) Close() {
	_ = n.conn.FlushTimeout(2 * time.Second)
	n.conn.Close()
}
