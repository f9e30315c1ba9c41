package sdk

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
)

// Subscription is a change stream opened by Client.Watch.
type Subscription struct {
	conn net.Conn
	done chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// Watch opens a dedicated connection on which the daemon reports every change
// to uri, or to any setting when uri is observer.All. fn runs on the
// subscription's goroutine and must not call Close. The stream ends on Close
// or when the connection breaks, and is not reopened.
func (c *Client) Watch(ctx context.Context, uri string, fn func(schema.Change)) (*Subscription, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, net.ErrClosed
	}
	if err := checkName(uri); err != nil {
		return nil, err
	}

	conn, reader, err := c.dial()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	resp, err := roundTrip(conn, reader, "WATCH "+uri)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if resp != "OK" {
		_ = conn.Close()
		if msg, ok := strings.CutPrefix(resp, "ERR "); ok {
			return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	_ = conn.SetDeadline(time.Time{})

	sub := &Subscription{conn: conn, done: make(chan struct{})}
	go sub.run(reader, fn, c.log)
	return sub, nil
}

func (s *Subscription) run(reader *bufio.Reader, fn func(schema.Change), log zerolog.Logger) {
	defer close(s.done)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			}
			s.mu.Unlock()
			return
		}
		line = strings.TrimSpace(line)
		c, ok := parseChange(line)
		if !ok {
			log.Debug().Str("line", line).Msg("ignoring unexpected watch line")
			continue
		}
		fn(c)
	}
}

// parseChange decodes "CHANGED <ns> <user> <name>".
func parseChange(line string) (schema.Change, bool) {
	parts := strings.Fields(line)
	if len(parts) != 4 || parts[0] != "CHANGED" {
		return schema.Change{}, false
	}
	ns, err := schema.ParseNamespace(parts[1])
	if err != nil {
		return schema.Change{}, false
	}
	user, err := schema.ParseUserID(parts[2])
	if err != nil {
		return schema.Change{}, false
	}
	return schema.Change{Namespace: ns, Name: parts[3], User: user}, true
}

// Done is closed once the stream has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the stream ended. It is nil while the stream runs and after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the stream and waits for its goroutine to exit.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = fmt.Fprintln(s.conn, "QUIT")
	err := s.conn.Close()
	<-s.done
	return err
}

// Bus returns a local bus fed by a stream of every change on the daemon, so
// observers register on it as they would on the embedded provider's bus. The
// stream is opened on first use; once it has ended the next call opens a new
// one.
func (c *Client) Bus(ctx context.Context) (*observer.Bus, error) {
	c.busMu.Lock()
	defer c.busMu.Unlock()

	if c.sub != nil {
		select {
		case <-c.sub.Done():
			c.log.Warn().Err(c.sub.Err()).Msg("change stream ended, reopening")
			c.sub = nil
		default:
			return c.bus, nil
		}
	}

	bus := c.bus
	if bus == nil {
		bus = observer.NewBus(c.log)
	}
	sub, err := c.Watch(ctx, observer.All, bus.Notify)
	if err != nil {
		if c.bus == nil {
			bus.Close()
		}
		return nil, err
	}
	c.bus, c.sub = bus, sub
	return bus, nil
}

func (c *Client) closeBus() {
	c.busMu.Lock()
	defer c.busMu.Unlock()
	if c.sub != nil {
		_ = c.sub.Close()
		c.sub = nil
	}
	if c.bus != nil {
		c.bus.Close()
		c.bus = nil
	}
}

// BusFor returns the change notification bus of store: the embedded
// provider's own bus, or a client's streamed one.
func BusFor(ctx context.Context, store Store) (*observer.Bus, error) {
	switch s := store.(type) {
	case interface {
		Bus(context.Context) (*observer.Bus, error)
	}:
		return s.Bus(ctx)
	case interface{ Bus() *observer.Bus }:
		return s.Bus(), nil
	}
	return nil, ErrNoNotifications
}
