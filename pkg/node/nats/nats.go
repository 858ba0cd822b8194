// Package nats implements a NATS-backed reference Node: samples are
// published/subscribed as villas.binary-encoded payloads over a
// configured subject, grounded on the teacher's pkg/nats client wrapper
// (connection management, reconnect handling, subscription tracking).
package nats

import (
	"encoding/json"
	"fmt"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	"github.com/govillas/villasd/pkg/format"
	"github.com/govillas/villasd/pkg/node"
	"github.com/govillas/villasd/pkg/sample"
	"github.com/govillas/villasd/pkg/signal"
	"github.com/govillas/villasd/pkg/vlog"
)

// Config is the Parse-level JSON configuration.
type Config struct {
	Address string `json:"address"`
	Subject string `json:"subject"`
	Queue   string `json:"queue"`
}

// Node publishes/subscribes villas.binary frames over a NATS subject.
// Write publishes synchronously (non-blocking from NATS's perspective:
// the client library buffers internally); Read drains an internal
// channel fed by the subscription callback, so the node never blocks
// inside a NATS library callback itself (spec §5: hooks/transports
// must not block the delivery path).
type Node struct {
	node.Base

	cfg    Config
	conn   *natsgo.Conn
	sub    *natsgo.Subscription
	codec  *format.Binary
	inbox  chan []byte
	closed sync.Once
}

func New(name string, vectorize int, sigs signal.List) *Node {
	n := &Node{inbox: make(chan []byte, 256)}
	n.Nam = name
	n.Vec = vectorize
	n.Sigs = sigs
	return n
}

func (n *Node) Parse(raw json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	n.cfg = cfg
	return nil
}

func (n *Node) Check() error {
	if n.cfg.Address == "" {
		return fmt.Errorf("nats node %q: address is required", n.Nam)
	}
	if n.cfg.Subject == "" {
		return fmt.Errorf("nats node %q: subject is required", n.Nam)
	}
	return nil
}

func (n *Node) Prepare() error {
	n.codec = format.NewBinary(n.Sigs, false, false)
	return nil
}

func (n *Node) Start() error {
	conn, err := natsgo.Connect(n.cfg.Address,
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				vlog.Warnf("nats node %q disconnected: %v", n.Nam, err)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			vlog.Infof("nats node %q reconnected to %s", n.Nam, nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats node %q: connect: %w", n.Nam, err)
	}
	n.conn = conn

	handler := func(msg *natsgo.Msg) {
		select {
		case n.inbox <- msg.Data:
		default:
			vlog.Warnf("nats node %q: inbox full, dropping message", n.Nam)
		}
	}

	var sub *natsgo.Subscription
	if n.cfg.Queue != "" {
		sub, err = conn.QueueSubscribe(n.cfg.Subject, n.cfg.Queue, handler)
	} else {
		sub, err = conn.Subscribe(n.cfg.Subject, handler)
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("nats node %q: subscribe: %w", n.Nam, err)
	}
	n.sub = sub
	return nil
}

func (n *Node) Stop() error {
	n.closed.Do(func() {
		if n.sub != nil {
			_ = n.sub.Unsubscribe()
		}
		if n.conn != nil {
			n.conn.Close()
		}
		close(n.inbox)
	})
	return nil
}

func (n *Node) Read(pool *sample.Pool, out []*sample.Sample) (int, int, error) {
	got := 0
	for got < len(out) {
		var buf []byte
		select {
		case b, ok := <-n.inbox:
			if !ok {
				return got, got, nil
			}
			buf = b
		default:
			if got > 0 {
				return got, got, nil
			}
			b, ok := <-n.inbox
			if !ok {
				return got, got, nil
			}
			buf = b
		}

		slot := make([]*sample.Sample, 1)
		if pool.Alloc(1, slot) == 0 {
			break
		}
		if _, _, err := n.codec.Scan(buf, slot); err != nil {
			slot[0].Decref()
			continue
		}
		out[got] = slot[0]
		got++
	}
	return got, got, nil
}

func (n *Node) Write(in []*sample.Sample) (int, error) {
	if n.conn == nil {
		return 0, fmt.Errorf("nats node %q: not started", n.Nam)
	}
	buf := make([]byte, 64*1024)
	written, err := n.codec.Print(buf, in)
	if err != nil {
		return 0, err
	}
	if err := n.conn.Publish(n.cfg.Subject, buf[:written]); err != nil {
		return 0, fmt.Errorf("nats node %q: publish: %w", n.Nam, err)
	}
	return len(in), nil
}
