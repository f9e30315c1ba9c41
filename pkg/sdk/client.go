// Package sdk provides the client-side library for talking to the settings daemon.
// It supports both remote connections via TCP/TLS and local embedded mode.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Token is sent with AUTH after every (re)connect when set.
	Token      string
	// DisableTLS falls back to plain TCP.
	DisableTLS bool
	// Timeout bounds a single request. Defaults to 30 seconds.
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client is a remote client for the settings daemon.
// It implements Store and hardware.Remote.
type Client struct {
	addr   string
	opts   ClientOptions
	log    zerolog.Logger
	conn   net.Conn
	reader *bufio.Reader
	closed bool
	mu     sync.Mutex // Protects concurrent access to the connection

	busMu sync.Mutex
	bus   *observer.Bus
	sub   *Subscription
}

var (
	_ Store           = (*Client)(nil)
	_ hardware.Remote = (*Client)(nil)
)

// Connect establishes a connection to a remote settings daemon, TLS-encrypted
// unless opts.DisableTLS is set.
func Connect(addr string, opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{
		addr: addr,
		opts: opts,
		log:  opts.Logger.With().Str("component", "sdk").Str("addr", addr).Logger(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

// reconnect must be called with c.mu held.
func (c *Client) reconnect() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	conn, reader, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = reader
	return nil
}

// dial opens and authenticates a new connection to the daemon.
func (c *Client) dial() (net.Conn, *bufio.Reader, error) {
	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if c.opts.DisableTLS {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true, // The daemon uses a self-signed certificate
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}
	if err != nil {
		return nil, nil, err
	}

	reader := bufio.NewReader(conn)
	if c.opts.Token != "" {
		_ = conn.SetDeadline(time.Now().Add(c.opts.Timeout))
		resp, err := roundTrip(conn, reader, "AUTH "+c.opts.Token)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("authenticate: %w", err)
		}
		if strings.HasPrefix(resp, "ERR") {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("authenticate: %w: %s", ErrRemote, strings.TrimPrefix(resp, "ERR "))
		}
	}
	return conn, reader, nil
}

func roundTrip(conn net.Conn, reader *bufio.Reader, cmd string) (string, error) {
	if _, err := fmt.Fprint(conn, cmd+"\n"); err != nil {
		return "", err
	}
	resp, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// Internal helper for TCP communication. A request is sent at most once: a
// broken exchange drops the connection and returns the error, and the next
// request dials again. ERR replies are returned as they are.
func (c *Client) sendAndReceive(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", net.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// 1. Ensure we have a connection
	if c.conn == nil {
		if err := c.reconnect(); err != nil {
			return "", fmt.Errorf("reconnect failed: %w", err)
		}
	}

	// 2. Set deadlines for the operation
	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	// 3. Exchange; the daemon may have applied the command even when the
	// reply never arrived, so it is not sent again.
	resp, err := roundTrip(c.conn, c.reader, cmd)
	if err != nil {
		c.log.Debug().Err(err).Msg("request failed, dropping connection")
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
		return "", err
	}
	if strings.HasPrefix(resp, "ERR") {
		return "", fmt.Errorf("%w: %s", ErrRemote, strings.TrimPrefix(resp, "ERR "))
	}
	return resp, nil
}

func command(verb string, ns schema.Namespace) string {
	return verb + "_" + strings.ToUpper(ns.String())
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return ErrInvalidName
	}
	return nil
}

func decodeOK(resp string, v any) error {
	payload, ok := strings.CutPrefix(resp, "OK ")
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	return json.Unmarshal([]byte(payload), v)
}

func (c *Client) read(ctx context.Context, verb string, ns schema.Namespace, name string, user schema.UserID) (string, bool, error) {
	if err := checkName(name); err != nil {
		return "", false, err
	}
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("%s %d %s", command(verb, ns), user, name))
	if err != nil {
		return "", false, err
	}
	if resp == "NONE" {
		return "", false, nil
	}
	var value string
	if err := decodeOK(resp, &value); err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Call reads a setting through the daemon's fast path.
func (c *Client) Call(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (string, bool, error) {
	return c.read(ctx, "GET", ns, name, user)
}

// Query reads a setting through the daemon's table query.
func (c *Client) Query(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) (string, bool, error) {
	return c.read(ctx, "QUERY", ns, name, user)
}

func (c *Client) Put(ctx context.Context, ns schema.Namespace, name, value string, user schema.UserID) error {
	if err := checkName(name); err != nil {
		return err
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = c.sendAndReceive(ctx, fmt.Sprintf("%s %d %s %s", command("PUT", ns), user, name, jsonData))
	return err
}

func (c *Client) Delete(ctx context.Context, ns schema.Namespace, name string, user schema.UserID) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := c.sendAndReceive(ctx, fmt.Sprintf("%s %d %s", command("DELETE", ns), user, name))
	return err
}

func (c *Client) Version(ctx context.Context, ns schema.Namespace) (int64, error) {
	resp, err := c.sendAndReceive(ctx, command("VERSION", ns))
	if err != nil {
		return 0, err
	}
	payload, ok := strings.CutPrefix(resp, "OK ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	return strconv.ParseInt(payload, 10, 64)
}

func (c *Client) List(ctx context.Context, ns schema.Namespace, user schema.UserID) (map[string]string, error) {
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("%s %d", command("LIST", ns), user))
	if err != nil {
		return nil, err
	}
	var all map[string]string
	if err := decodeOK(resp, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (c *Client) Migrate(ctx context.Context, user schema.UserID) error {
	_, err := c.sendAndReceive(ctx, fmt.Sprintf("MIGRATE %d", user))
	return err
}

// SupportedFeatures returns the daemon's hardware feature bitmask.
func (c *Client) SupportedFeatures(ctx context.Context) (int, error) {
	resp, err := c.sendAndReceive(ctx, "HW_FEATURES")
	if err != nil {
		return 0, err
	}
	payload, ok := strings.CutPrefix(resp, "OK ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	return strconv.Atoi(payload)
}

func (c *Client) Get(ctx context.Context, f hardware.Feature) (bool, error) {
	resp, err := c.sendAndReceive(ctx, "HW_GET "+f.String())
	if err != nil {
		return false, err
	}
	return parseBoolReply(resp)
}

func (c *Client) Set(ctx context.Context, f hardware.Feature, enable bool) (bool, error) {
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("HW_SET %s %t", f, enable))
	if err != nil {
		return false, err
	}
	return parseBoolReply(resp)
}

func (c *Client) VibratorIntensity(ctx context.Context) (hardware.Intensity, error) {
	var in hardware.Intensity
	resp, err := c.sendAndReceive(ctx, "HW_VIBRATOR")
	if err != nil {
		return in, err
	}
	err = decodeOK(resp, &in)
	return in, err
}

func (c *Client) SetVibratorIntensity(ctx context.Context, level int) (bool, error) {
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("HW_VIBRATOR_SET %d", level))
	if err != nil {
		return false, err
	}
	return parseBoolReply(resp)
}

func (c *Client) TouchscreenGestures(ctx context.Context) ([]hardware.Gesture, error) {
	resp, err := c.sendAndReceive(ctx, "HW_GESTURES")
	if err != nil {
		return nil, err
	}
	var gestures []hardware.Gesture
	if err := decodeOK(resp, &gestures); err != nil {
		return nil, err
	}
	return gestures, nil
}

func (c *Client) SetTouchscreenGestureEnabled(ctx context.Context, id int, enable bool) (bool, error) {
	resp, err := c.sendAndReceive(ctx, fmt.Sprintf("HW_GESTURE_SET %d %t", id, enable))
	if err != nil {
		return false, err
	}
	return parseBoolReply(resp)
}

func parseBoolReply(resp string) (bool, error) {
	payload, ok := strings.CutPrefix(resp, "OK ")
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnexpectedReply, resp)
	}
	return strconv.ParseBool(payload)
}

// Close says goodbye to the daemon and drops the connection.
func (c *Client) Close() error {
	c.closeBus()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	_, _ = fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}
