// Package listener runs the unconnected state machine and owns the
// connection table: the UDP socket, the handshake dispatch for
// datagrams from addresses with no established stream, and the
// periodic drivers that keep every established stream's windows
// moving: one read loop plus ticked maintenance loops over a
// mutex-guarded table.
package listener

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"raknet-core/config"
	"raknet-core/events"
	"raknet-core/message"
	"raknet-core/metrics"
	"raknet-core/protocol"
	"raknet-core/status"
	"raknet-core/stream"
)

// blockEntry records why and until when an address is blocked.
type blockEntry struct {
	until  time.Time
	reason events.BlockReason
}

type rateCounter struct {
	windowStart time.Time
	count       int
}

// Listener binds one UDP socket and mediates between unconnected
// (handshake) traffic and the per-connection Streams it hands
// established traffic off to.
type Listener struct {
	conn   *net.UDPConn
	bus    *events.Bus
	log    *logrus.Logger
	metric *metrics.Metrics
	status *status.Status
	guid   uint64
	cfg    config.Config

	mu             sync.RWMutex
	connections    map[string]*stream.Stream
	handles        map[events.Handle]*stream.Stream
	blocked        map[string]blockEntry
	packetsPerSec  map[string]*rateCounter
	invalidPackets map[string]int
	nextHandle     events.Handle

	running bool
}

// New binds cfg.Host:cfg.Port and constructs a Listener ready for Serve. The
// server GUID is a random 64-bit value generated once at
// construction.
func New(cfg config.Config, bus *events.Bus, log *logrus.Logger, m *metrics.Metrics) (*Listener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(cfg.Host), Port: cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: bind failed: %w", err)
	}

	guid := rand.Uint64()
	l := &Listener{
		conn:           conn,
		bus:            bus,
		log:            log,
		metric:         m,
		guid:           guid,
		cfg:            cfg,
		connections:    make(map[string]*stream.Stream),
		handles:        make(map[events.Handle]*stream.Stream),
		blocked:        make(map[string]blockEntry),
		packetsPerSec:  make(map[string]*rateCounter),
		invalidPackets: make(map[string]int),
	}
	bus.Subscribe(events.Disconnect, func(e events.Event) {
		l.forget(e.Handle, e.DisconnectCause)
	})
	bus.Subscribe(events.Latency, func(e events.Event) {
		m.RTT.Observe(e.Latency.Seconds())
	})

	l.status = status.Default(guid, uint16(cfg.Port))
	l.status.PrimaryMotd = cfg.PrimaryMotd
	l.status.SecondaryMotd = cfg.SecondaryMotd
	l.status.Protocol = cfg.Protocol
	l.status.Version = cfg.Version
	l.status.MaxPlayers = cfg.MaxPlayers
	l.status.Gamemode = cfg.Gamemode
	l.status.Build()

	return l, nil
}

// LocalAddr returns the socket's bound address.
func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// GUID returns the server's session GUID.
func (l *Listener) GUID() uint64 { return l.guid }

// Serve starts the read loop and the four periodic drivers and
// blocks until Close is called.
func (l *Listener) Serve() error {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	l.log.WithField("addr", l.LocalAddr().String()).Info("listener: serving")

	go l.ackFlushLoop()
	go l.datagramFlushLoop()
	go l.timeoutSweepLoop()
	go l.statusRefreshLoop()

	return l.readLoop()
}

// Close stops the read loop and the periodic drivers and releases the
// socket.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	return l.conn.Close()
}

func (l *Listener) isRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Listener) readLoop() error {
	buf := make([]byte, protocol.MaxMTUSize)
	for l.isRunning() {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if l.isRunning() {
				l.log.WithError(err).Debug("listener: read error")
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		l.metric.DatagramsIn.Inc()
		l.metric.BytesIn.Add(float64(n))

		go l.handlePacket(data, addr)
	}
	return nil
}

// handlePacket applies the ingress order: blocked check, route to an
// established stream, or else rate limit and fall through to the
// unconnected handshake dispatch.
func (l *Listener) handlePacket(data []byte, addr *net.UDPAddr) {
	key := addr.String()

	if l.checkBlocked(key) {
		return
	}

	if s := l.streamFor(key); s != nil {
		if err := s.Receive(data); err != nil {
			l.log.WithError(err).WithField("addr", key).Debug("listener: connected decode error")
			l.countInvalid(key, addr)
		}
		return
	}

	if l.checkPacketSpam(key, addr) {
		return
	}

	if err := l.handleUnconnected(data, addr); err != nil {
		l.log.WithError(err).WithField("addr", key).Debug("listener: unconnected decode error")
		l.countInvalid(key, addr)
	}
}

func (l *Listener) streamFor(key string) *stream.Stream {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connections[key]
}

// checkBlocked reports whether key is still within its block expiry,
// removing the entry once it has lapsed.
func (l *Listener) checkBlocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.blocked[key]
	if !ok {
		return false
	}
	if time.Now().Before(entry.until) {
		return true
	}
	delete(l.blocked, key)
	return false
}

// checkPacketSpam increments the per-second counter for key and blocks
// it once MaxMsgsPerSec is reached within the current 1s window.
func (l *Listener) checkPacketSpam(key string, addr *net.UDPAddr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rc, ok := l.packetsPerSec[key]
	now := time.Now()
	if !ok || now.Sub(rc.windowStart) >= time.Second {
		l.packetsPerSec[key] = &rateCounter{windowStart: now, count: 1}
		return false
	}

	rc.count++
	if rc.count >= protocol.MaxMsgsPerSec {
		delete(l.packetsPerSec, key)
		l.blockLocked(key, addr, events.PacketSpam)
		return true
	}
	return false
}

// countInvalid tracks malformed packets per address, blocking once
// MaxInvalidMsgs is reached.
func (l *Listener) countInvalid(key string, addr *net.UDPAddr) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.invalidPackets[key] + 1
	if n >= protocol.MaxInvalidMsgs {
		delete(l.invalidPackets, key)
		l.blockLocked(key, addr, events.MalformedPackets)
		return
	}
	l.invalidPackets[key] = n
}

func (l *Listener) blockLocked(key string, addr *net.UDPAddr, reason events.BlockReason) {
	l.blocked[key] = blockEntry{until: time.Now().Add(protocol.RaknetBlockDur), reason: reason}
	l.metric.Blocks.WithLabelValues(reason.String()).Inc()
	l.bus.Publish(events.Event{
		Kind: events.Blocked, Addr: addr,
		BlockCause: reason, BlockDuration: protocol.RaknetBlockDur,
	})
}

// ackFlushLoop, datagramFlushLoop, timeoutSweepLoop, statusRefreshLoop
// are the four periodic drivers, each ticking at
// protocol.RaknetTPS except the timeout sweep, which only needs to
// notice staleness against the configured idle timeout.

func (l *Listener) ackFlushLoop() {
	ticker := time.NewTicker(protocol.RaknetTPS)
	defer ticker.Stop()
	for l.isRunning() {
		<-ticker.C
		for key, s := range l.snapshotStreamsByKey() {
			if err := s.AckFlush(); err != nil {
				l.log.WithError(err).WithField("addr", key).Warn("listener: ack flush failed")
				l.disconnect(key, s, events.ServerDisconnect)
			}
		}
	}
}

func (l *Listener) datagramFlushLoop() {
	ticker := time.NewTicker(protocol.RaknetTPS)
	defer ticker.Stop()
	for l.isRunning() {
		<-ticker.C
		for key, s := range l.snapshotStreamsByKey() {
			if err := s.DatagramFlush(); err != nil {
				l.log.WithError(err).WithField("addr", key).Warn("listener: datagram flush failed")
				l.disconnect(key, s, events.ServerDisconnect)
			}
		}
	}
}

func (l *Listener) timeoutSweepLoop() {
	ticker := time.NewTicker(protocol.RaknetCheckTimeout)
	defer ticker.Stop()
	for l.isRunning() {
		<-ticker.C
		now := time.Now()
		for key, s := range l.snapshotStreamsByKey() {
			if s.TimedOut(now, l.cfg.ConnectionTimeout) {
				l.disconnect(key, s, events.ClientTimeout)
			}
		}
	}
}

func (l *Listener) statusRefreshLoop() {
	ticker := time.NewTicker(protocol.RaknetTPS)
	defer ticker.Stop()
	for l.isRunning() {
		<-ticker.C
		l.mu.Lock()
		l.status.OnlinePlayers = len(l.connections)
		l.status.Build()
		l.mu.Unlock()
	}
}

func (l *Listener) snapshotStreams() []*stream.Stream {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*stream.Stream, 0, len(l.connections))
	for _, s := range l.connections {
		out = append(out, s)
	}
	return out
}

func (l *Listener) snapshotStreamsByKey() map[string]*stream.Stream {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*stream.Stream, len(l.connections))
	for k, s := range l.connections {
		out[k] = s
	}
	return out
}

func (l *Listener) disconnect(key string, s *stream.Stream, reason events.DisconnectReason) {
	l.mu.Lock()
	var handle events.Handle
	found := false
	for h, v := range l.handles {
		if v == s {
			handle = h
			found = true
			break
		}
	}
	if found {
		delete(l.handles, handle)
		delete(l.connections, key)
		l.metric.ConnectionsActive.Dec()
	}
	l.mu.Unlock()

	if found {
		l.metric.Disconnects.WithLabelValues(reason.String()).Inc()
		l.bus.Publish(events.Event{Kind: events.Disconnect, Addr: s.Addr, Handle: handle, DisconnectCause: reason})
	}
}

// forget removes a connection whose Disconnect event originated inside
// its own stream (a peer-sent DisconnectNotification) rather than from
// the listener's own sweep, keeping the table consistent with the
// events the host observes. It no-ops when the listener already tore
// the connection down itself.
func (l *Listener) forget(h events.Handle, reason events.DisconnectReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.handles[h]
	if !ok {
		return
	}
	delete(l.handles, h)
	delete(l.connections, s.Addr.String())
	l.metric.ConnectionsActive.Dec()
	l.metric.Disconnects.WithLabelValues(reason.String()).Inc()
}

// Dispatch executes a host-issued command against the stream it
// targets: OutgoingBatch wraps Payload in
// a GamePacket and sends it ReliableOrdered; GracefulDisconnect tears
// the connection down immediately.
func (l *Listener) Dispatch(cmd events.Command) error {
	l.mu.RLock()
	s, ok := l.handles[cmd.Handle]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("listener: no connection for handle %d", cmd.Handle)
	}

	switch cmd.Kind {
	case events.OutgoingBatch:
		l.metric.DatagramsOut.Inc()
		l.metric.BytesOut.Add(float64(len(cmd.Payload)))
		return s.Send(message.GamePacket{Data: cmd.Payload}, protocol.ReliableOrdered)
	case events.GracefulDisconnect:
		key := s.Addr.String()
		if err := s.GracefulDisconnect(); err != nil {
			return err
		}
		l.disconnect(key, s, events.ServerDisconnect)
		return nil
	}
	return fmt.Errorf("listener: unknown command kind %v", cmd.Kind)
}
