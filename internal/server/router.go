// Package server exposes a settings provider over a line-oriented TCP protocol.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/internal/engine"
	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/observer"
	"github.com/evervolv/evsettings/pkg/schema"
)

// Permission gates a class of commands.
type Permission string

const (
	PermRead        Permission = "read"
	PermWrite       Permission = "write"
	PermWriteSecure Permission = "write_secure"
	PermHardware    Permission = "hardware"
)

// AllPermissions is granted to every connection when no tokens are configured.
var AllPermissions = []Permission{PermRead, PermWrite, PermWriteSecure, PermHardware}

var errPermission = errors.New("permission denied")

// ParsePermissions maps configured permission names onto Permissions.
func ParsePermissions(names []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(names))
	for _, name := range names {
		p := Permission(strings.ToLower(strings.TrimSpace(name)))
		switch p {
		case PermRead, PermWrite, PermWriteSecure, PermHardware:
			perms = append(perms, p)
		default:
			return nil, fmt.Errorf("unknown permission %q", name)
		}
	}
	return perms, nil
}

// Options configures a Router.
type Options struct {
	// Tokens maps an AUTH token to the permissions it grants. When empty every
	// connection gets AllPermissions.
	Tokens      map[string][]Permission
	// Hardware serves the HW_* commands. Nil disables them.
	Hardware    hardware.Remote
	// Bus feeds WATCH streams. Defaults to the store's bus when it has one.
	Bus         *observer.Bus
	// WatchBuffer bounds the changes queued for one WATCH stream. A stream
	// that falls further behind is closed.
	WatchBuffer int

	MaxConns     int
	ConnDeadline time.Duration
	IdleTimeout  time.Duration
	Logger       zerolog.Logger
}

type Router struct {
	store  engine.Store
	hw     hardware.Remote
	bus    *observer.Bus
	tokens map[string]mapset.Set[Permission]
	log    zerolog.Logger
	cert   *tls.Certificate

	maxConns     int
	connDeadline time.Duration
	idleTimeout  time.Duration
	watchBuffer  int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

func NewRouter(store engine.Store, opts Options) *Router {
	tokens := make(map[string]mapset.Set[Permission], len(opts.Tokens))
	for token, perms := range opts.Tokens {
		tokens[token] = mapset.NewSet(perms...)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 100 // Max 100 concurrent connections
	}
	if opts.ConnDeadline <= 0 {
		opts.ConnDeadline = 5 * time.Minute
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Second
	}
	if opts.WatchBuffer <= 0 {
		opts.WatchBuffer = 256
	}
	if opts.Bus == nil {
		if n, ok := store.(interface{ Bus() *observer.Bus }); ok {
			opts.Bus = n.Bus()
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		store:        store,
		hw:           opts.Hardware,
		bus:          opts.Bus,
		tokens:       tokens,
		log:          opts.Logger.With().Str("component", "router").Logger(),
		maxConns:     opts.MaxConns,
		connDeadline: opts.ConnDeadline,
		idleTimeout:  opts.IdleTimeout,
		watchBuffer:  opts.WatchBuffer,
		ctx:          ctx,
		cancel:       cancel,
		conns:        make(map[net.Conn]struct{}),
	}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Listen starts the TCP server on addr and serves until Stop is called.
func (r *Router) Listen(addr string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", addr, config)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()

	if len(r.tokens) == 0 {
		r.log.Warn().Msg("no auth tokens configured, every connection is fully privileged")
	}
	r.log.Info().Str("addr", listener.Addr().String()).Bool("tls", r.cert != nil).Msg("listening")

	semaphore := make(chan struct{}, r.maxConns)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.isStopped() {
				return nil
			}
			r.log.Debug().Err(err).Msg("accept failed")
			continue
		}

		// Bound the lifetime of every connection to prevent resource exhaustion
		_ = conn.SetDeadline(time.Now().Add(r.connDeadline))

		if !r.track(conn) {
			_ = conn.Close()
			return nil
		}
		r.wg.Add(1)
		go func(c net.Conn) {
			defer r.wg.Done()
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				r.untrack(c)
				_ = c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Addr returns the listening address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Stop closes the listener and every open connection and waits for the
// connection handlers to return.
func (r *Router) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.cancel()
	var err error
	if r.listener != nil {
		err = r.listener.Close()
	}
	for c := range r.conns {
		_ = c.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	return err
}

func (r *Router) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

func (r *Router) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

type session struct {
	perms mapset.Set[Permission]
}

func (r *Router) newSession() *session {
	if len(r.tokens) == 0 {
		return &session{perms: mapset.NewSet(AllPermissions...)}
	}
	return &session{perms: mapset.NewSet[Permission]()}
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	s := r.newSession()

	for {
		// Set a deadline for the next command
		_ = conn.SetReadDeadline(time.Now().Add(r.idleTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection closed")
			}
			return
		}

		line = strings.TrimSpace(line)
		if fields := strings.Fields(line); len(fields) > 0 && strings.EqualFold(fields[0], "WATCH") {
			if !r.watch(conn, reader, s, fields[1:]) {
				return
			}
			continue
		}

		reply, quit := r.exec(r.ctx, s, line)
		if quit {
			return
		}
		if reply == "" {
			continue
		}
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

// watch serves WATCH [<uri>]. The connection receives one
// "CHANGED <ns> <user> <name>" line per matching change until the peer sends
// UNWATCH, which is answered with OK and returns the connection to command
// mode. It reports whether the connection is still usable.
func (r *Router) watch(conn net.Conn, reader *bufio.Reader, s *session, args []string) bool {
	send := func(line string) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(r.idleTimeout))
		_, err := fmt.Fprintln(conn, line)
		return err == nil
	}

	// 1. Validate
	if !s.perms.Contains(PermRead) {
		return send(errReply(errPermission))
	}
	if r.bus == nil {
		return send("ERR change notification unavailable")
	}
	uri := observer.All
	switch len(args) {
	case 0:
	case 1:
		uri = args[0]
	default:
		return send(usage("WATCH [<uri>]"))
	}

	// 2. Register; a stream that can't keep up is dropped rather than
	// stalling the bus.
	changes := make(chan schema.Change, r.watchBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	reg := r.bus.Register(uri, func(c schema.Change) {
		select {
		case changes <- c:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer r.bus.Unregister(reg)

	// 3. Streams are long lived; only writes are bounded.
	_ = conn.SetReadDeadline(time.Time{})
	if !send("OK") {
		return false
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				readErr <- err
				return
			}
			line = strings.TrimSpace(line)
			select {
			case lines <- line:
			case <-done:
				return
			}
			if cmd := strings.ToUpper(line); cmd == "UNWATCH" || cmd == "QUIT" {
				return
			}
		}
	}()

	// 4. Pump
	for {
		select {
		case c := <-changes:
			if !send(fmt.Sprintf("CHANGED %s %d %s", c.Namespace, c.User, c.Name)) {
				return false
			}
		case <-overflow:
			r.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("watcher fell behind, closing")
			return false
		case <-readErr:
			return false
		case <-r.ctx.Done():
			return false
		case line := <-lines:
			switch strings.ToUpper(line) {
			case "UNWATCH":
				_ = conn.SetDeadline(time.Now().Add(r.connDeadline))
				return send("OK")
			case "QUIT":
				return false
			case "PING":
				if !send("PONG") {
					return false
				}
			default:
				if !send("ERR connection is watching") {
					return false
				}
			}
		}
	}
}

// exec runs one command line and returns the reply line.
func (r *Router) exec(ctx context.Context, s *session, line string) (string, bool) {
	parts := strings.Fields(line)
	if len(parts) < 1 {
		return "", false
	}

	command := strings.ToUpper(parts[0])
	verb, suffix, _ := strings.Cut(command, "_")

	switch command {
	case "PING":
		return "PONG", false
	case "QUIT":
		return "", true
	case "AUTH":
		if len(parts) != 2 {
			return usage("AUTH <token>"), false
		}
		if len(r.tokens) == 0 {
			return "OK " + strings.Join(permNames(s.perms), ","), false
		}
		perms, ok := r.tokens[parts[1]]
		if !ok {
			return "ERR invalid token", false
		}
		s.perms = perms.Clone()
		return "OK " + strings.Join(permNames(s.perms), ","), false
	case "MIGRATE":
		if len(parts) != 2 {
			return usage("MIGRATE <user>"), false
		}
		return r.migrate(ctx, s, parts[1]), false
	case "HW_FEATURES", "HW_GET", "HW_SET", "HW_VIBRATOR", "HW_VIBRATOR_SET", "HW_GESTURES", "HW_GESTURE_SET":
		return r.hardware(ctx, s, command, parts[1:]), false
	}

	switch verb {
	case "GET", "QUERY", "PUT", "DELETE", "LIST", "VERSION":
		ns, err := schema.ParseNamespace(strings.ToLower(suffix))
		if err != nil {
			return errReply(err), false
		}
		return r.settings(ctx, s, verb, ns, line, parts[1:]), false
	}
	return "ERR unknown command " + command, false
}

func (r *Router) settings(ctx context.Context, s *session, verb string, ns schema.Namespace, line string, args []string) string {
	switch verb {
	case "GET", "QUERY":
		if len(args) != 2 {
			return usage(verb + "_" + strings.ToUpper(ns.String()) + " <user> <name>")
		}
		if !s.perms.Contains(PermRead) {
			return errReply(errPermission)
		}
		user, err := schema.ParseUserID(args[0])
		if err != nil {
			return errReply(err)
		}
		read := r.store.Call
		if verb == "QUERY" {
			read = r.store.Query
		}
		value, found, err := read(ctx, ns, args[1], user)
		if err != nil {
			return errReply(err)
		}
		if !found {
			return "NONE"
		}
		return okJSON(value)

	case "PUT":
		// The JSON value may contain spaces, so split the raw line.
		fields := strings.SplitN(line, " ", 4)
		if len(fields) != 4 {
			return usage("PUT_" + strings.ToUpper(ns.String()) + " <user> <name> <json>")
		}
		if !s.perms.Contains(writePermission(ns)) {
			return errReply(errPermission)
		}
		user, err := schema.ParseUserID(fields[1])
		if err != nil {
			return errReply(err)
		}
		var value string
		if err := json.Unmarshal([]byte(fields[3]), &value); err != nil {
			return "ERR invalid json value"
		}
		if err := r.store.Put(ctx, ns, fields[2], value, user); err != nil {
			return errReply(err)
		}
		return "OK"

	case "DELETE":
		if len(args) != 2 {
			return usage("DELETE_" + strings.ToUpper(ns.String()) + " <user> <name>")
		}
		if !s.perms.Contains(writePermission(ns)) {
			return errReply(errPermission)
		}
		user, err := schema.ParseUserID(args[0])
		if err != nil {
			return errReply(err)
		}
		if err := r.store.Delete(ctx, ns, args[1], user); err != nil {
			return errReply(err)
		}
		return "OK"

	case "LIST":
		if len(args) != 1 {
			return usage("LIST_" + strings.ToUpper(ns.String()) + " <user>")
		}
		if !s.perms.Contains(PermRead) {
			return errReply(errPermission)
		}
		user, err := schema.ParseUserID(args[0])
		if err != nil {
			return errReply(err)
		}
		all, err := r.store.List(ctx, ns, user)
		if err != nil {
			return errReply(err)
		}
		return okJSON(all)

	case "VERSION":
		if !s.perms.Contains(PermRead) {
			return errReply(errPermission)
		}
		v, err := r.store.Version(ctx, ns)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.FormatInt(v, 10)
	}
	return "ERR unknown command " + verb
}

func (r *Router) migrate(ctx context.Context, s *session, rawUser string) string {
	if !s.perms.Contains(PermWriteSecure) {
		return errReply(errPermission)
	}
	user, err := schema.ParseUserID(rawUser)
	if err != nil {
		return errReply(err)
	}
	if err := r.store.Migrate(ctx, user); err != nil {
		return errReply(err)
	}
	return "OK"
}

func (r *Router) hardware(ctx context.Context, s *session, command string, args []string) string {
	if !s.perms.Contains(PermHardware) {
		return errReply(errPermission)
	}
	if r.hw == nil {
		return "ERR hardware service unavailable"
	}

	switch command {
	case "HW_FEATURES":
		mask, err := r.hw.SupportedFeatures(ctx)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.Itoa(mask)

	case "HW_GET":
		if len(args) != 1 {
			return usage("HW_GET <FEATURE>")
		}
		f, ok := hardware.ParseFeature(strings.ToUpper(args[0]))
		if !ok {
			return "ERR unknown feature " + args[0]
		}
		enabled, err := r.hw.Get(ctx, f)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.FormatBool(enabled)

	case "HW_SET":
		if len(args) != 2 {
			return usage("HW_SET <FEATURE> <bool>")
		}
		f, ok := hardware.ParseFeature(strings.ToUpper(args[0]))
		if !ok {
			return "ERR unknown feature " + args[0]
		}
		enable, err := strconv.ParseBool(args[1])
		if err != nil {
			return "ERR invalid bool " + args[1]
		}
		applied, err := r.hw.Set(ctx, f, enable)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.FormatBool(applied)

	case "HW_VIBRATOR":
		in, err := r.hw.VibratorIntensity(ctx)
		if err != nil {
			return errReply(err)
		}
		return okJSON(in)

	case "HW_VIBRATOR_SET":
		if len(args) != 1 {
			return usage("HW_VIBRATOR_SET <level>")
		}
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return "ERR invalid level " + args[0]
		}
		applied, err := r.hw.SetVibratorIntensity(ctx, level)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.FormatBool(applied)

	case "HW_GESTURES":
		gestures, err := r.hw.TouchscreenGestures(ctx)
		if err != nil {
			return errReply(err)
		}
		if gestures == nil {
			gestures = []hardware.Gesture{}
		}
		return okJSON(gestures)

	case "HW_GESTURE_SET":
		if len(args) != 2 {
			return usage("HW_GESTURE_SET <id> <bool>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return "ERR invalid gesture id " + args[0]
		}
		enable, err := strconv.ParseBool(args[1])
		if err != nil {
			return "ERR invalid bool " + args[1]
		}
		applied, err := r.hw.SetTouchscreenGestureEnabled(ctx, id, enable)
		if err != nil {
			return errReply(err)
		}
		return "OK " + strconv.FormatBool(applied)
	}
	return "ERR unknown command " + command
}

// writePermission returns what a write to ns requires. Only the System
// table is writable with the plain write permission.
func writePermission(ns schema.Namespace) Permission {
	if ns == schema.System {
		return PermWrite
	}
	return PermWriteSecure
}

func permNames(perms mapset.Set[Permission]) []string {
	out := make([]string, 0, perms.Cardinality())
	for _, p := range AllPermissions {
		if perms.Contains(p) {
			out = append(out, string(p))
		}
	}
	return out
}

func okJSON(v any) string {
	res, err := json.Marshal(v)
	if err != nil {
		return "ERR internal error"
	}
	return "OK " + string(res)
}

func errReply(err error) string {
	// Replies are single lines.
	return "ERR " + strings.ReplaceAll(err.Error(), "\n", " ")
}

func usage(form string) string {
	return "ERR usage: " + form
}
