// Package discovery tracks the UPnP devices alive on the network.
package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tr1v3r/pkg/log"
	"golang.org/x/sync/singleflight"

	"github.com/tr1v3r/rctl/internal/monitoring"
	"github.com/tr1v3r/rctl/internal/ssdp"
	"github.com/tr1v3r/rctl/internal/upnp"
)

// Transport delivers raw SSDP messages.
type Transport interface {
	Listen(ctx context.Context) (<-chan string, error)
	Search(ctx context.Context, target string, window time.Duration) (<-chan string, error)
}

// Fetcher retrieves the description behind an advertised LOCATION.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*upnp.Device, error)
}

type Config struct {
	SearchTarget string
	SearchWindow time.Duration

	// DefaultMaxAge replaces an absent or zero max-age, in MaxAgeUnit.
	DefaultMaxAge int
	MaxAgeUnit    time.Duration

	// Targets lists the NT/ST types admitted, compared without version.
	// "ssdp:all" admits everything.
	Targets []string
}

func (c Config) withDefaults() Config {
	if c.SearchTarget == "" {
		c.SearchTarget = "ssdp:all"
	}
	if c.SearchWindow <= 0 {
		c.SearchWindow = 3 * time.Second
	}
	if c.DefaultMaxAge <= 0 {
		c.DefaultMaxAge = 1800
	}
	if c.MaxAgeUnit <= 0 {
		c.MaxAgeUnit = time.Second
	}
	if len(c.Targets) == 0 {
		c.Targets = []string{upnp.MediaRendererType, upnp.MediaServerType}
	}
	return c
}

type entry struct {
	device *upnp.Device
	timer  *time.Timer
	gen    uint64
}

// Engine maintains the set of known devices keyed by USN and publishes
// Available and Gone events to its subscribers.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config

	transport Transport
	fetcher   Fetcher
	fetches   singleflight.Group

	mu      sync.Mutex
	known   map[string]*entry
	pending map[string]struct{}
	subs    map[string]*Subscription

	wg sync.WaitGroup
}

func New(cfg Config, transport Transport, fetcher Fetcher) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg.withDefaults(),
		transport: transport,
		fetcher:   fetcher,
		known:     make(map[string]*entry),
		pending:   make(map[string]struct{}),
		subs:      make(map[string]*Subscription),
	}
}

// Start listens for notifications and issues one active search. It returns
// once listening has begun; the search runs in the background.
func (e *Engine) Start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, e.cancel)

	msgs, err := e.transport.Listen(e.ctx)
	if err != nil {
		stop()
		return err
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		for raw := range msgs {
			e.HandleMessage(raw)
		}
	}()
	go func() {
		defer e.wg.Done()
		if err := e.Search(e.ctx); err != nil {
			log.CtxError(e.ctx, "initial search fail: %v", err)
		}
	}()
	return nil
}

// Search issues an M-SEARCH and processes the responses until the search
// window closes.
func (e *Engine) Search(ctx context.Context) error {
	resp, err := e.transport.Search(ctx, e.cfg.SearchTarget, e.cfg.SearchWindow)
	if err != nil {
		return err
	}
	for raw := range resp {
		e.HandleMessage(raw)
	}
	return nil
}

// Close stops discovery, cancels all expiry timers and ends every
// subscription. Known devices are dropped without Gone events.
func (e *Engine) Close() {
	e.cancel()

	e.mu.Lock()
	for usn, ent := range e.known {
		ent.timer.Stop()
		delete(e.known, usn)
	}
	clear(e.pending)
	subs := e.subs
	e.subs = make(map[string]*Subscription)
	e.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	e.wg.Wait()
}

// HandleMessage parses and applies one raw SSDP message. Malformed messages
// are logged and dropped.
func (e *Engine) HandleMessage(raw string) {
	adv, err := ssdp.Parse(raw)
	if err != nil {
		monitoring.GetMetrics().RecordAdvertisementError()
		log.CtxDebug(e.ctx, "drop ssdp message: %v", err)
		return
	}
	e.Handle(adv)
}

// Handle applies one advertisement to the known set.
func (e *Engine) Handle(adv *ssdp.Advertisement) {
	if adv.Subtype == ssdp.ByeBye {
		e.remove(adv.USN, 0, "byebye")
		return
	}
	if !e.admits(adv.Type) {
		return
	}

	ttl := e.lifetime(adv.MaxAge)

	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.known[adv.USN]; ok {
		e.arm(adv.USN, ent, ttl)
		return
	}
	if _, ok := e.pending[adv.USN]; ok {
		return
	}
	if adv.Subtype == ssdp.Update {
		log.CtxDebug(e.ctx, "ignore update for unknown usn %s", adv.USN)
		return
	}
	if e.ctx.Err() != nil {
		return
	}

	e.pending[adv.USN] = struct{}{}
	e.wg.Add(1)
	go e.fetch(adv.USN, adv.Location, ttl)
}

func (e *Engine) fetch(usn, location string, ttl time.Duration) {
	defer e.wg.Done()

	v, err, _ := e.fetches.Do(location, func() (any, error) {
		return e.fetcher.Fetch(e.ctx, location)
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[usn]; !ok {
		// withdrawn while fetching
		return
	}
	delete(e.pending, usn)

	if err != nil {
		log.CtxInfo(e.ctx, "warning: fetch description %s for %s fail: %v", location, usn, err)
		return
	}
	if _, ok := e.known[usn]; ok {
		return
	}

	dev := v.(*upnp.Device)
	ent := &entry{device: dev}
	e.known[usn] = ent
	e.arm(usn, ent, ttl)

	monitoring.GetMetrics().RecordDeviceAvailable()
	log.CtxInfo(e.ctx, "device available: %s usn=%s", dev, usn)
	e.publish(Event{Type: Available, USN: usn, Device: dev})
}

// arm replaces the expiry timer of ent. Caller holds e.mu.
func (e *Engine) arm(usn string, ent *entry, ttl time.Duration) {
	if ent.timer != nil {
		ent.timer.Stop()
	}
	ent.gen++
	gen := ent.gen
	ent.timer = time.AfterFunc(ttl, func() { e.remove(usn, gen, "expired") })
}

// remove drops usn from the known set. A non-zero gen only matches the
// timer generation that scheduled it.
func (e *Engine) remove(usn string, gen uint64, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// a bye-bye also cancels an in-flight fetch
	delete(e.pending, usn)

	ent, ok := e.known[usn]
	if !ok || (gen != 0 && ent.gen != gen) {
		return
	}
	ent.timer.Stop()
	delete(e.known, usn)

	monitoring.GetMetrics().RecordDeviceGone()
	log.CtxInfo(e.ctx, "device gone (%s): %s usn=%s", reason, ent.device, usn)
	e.publish(Event{Type: Gone, USN: usn, Device: ent.device})
}

func (e *Engine) lifetime(maxAge int) time.Duration {
	if maxAge <= 0 {
		maxAge = e.cfg.DefaultMaxAge
	}
	return time.Duration(maxAge) * e.cfg.MaxAgeUnit
}

func (e *Engine) admits(typ string) bool {
	base, _ := upnp.SplitType(strings.TrimSpace(typ))
	for _, t := range e.cfg.Targets {
		if strings.EqualFold(t, "ssdp:all") {
			return true
		}
		tb, _ := upnp.SplitType(t)
		if strings.EqualFold(tb, base) {
			return true
		}
	}
	return false
}

// DiscoveredDevices returns a snapshot of the known devices keyed by USN.
func (e *Engine) DiscoveredDevices() map[string]*upnp.Device {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]*upnp.Device, len(e.known))
	for usn, ent := range e.known {
		out[usn] = ent.device
	}
	return out
}

// Device returns the device known under usn.
func (e *Engine) Device(usn string) (*upnp.Device, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.known[usn]; ok {
		return ent.device, true
	}
	return nil, false
}

// Find returns the known devices matching pred.
func (e *Engine) Find(pred func(*upnp.Device) bool) []*upnp.Device {
	var out []*upnp.Device
	for _, dev := range e.DiscoveredDevices() {
		if pred(dev) {
			out = append(out, dev)
		}
	}
	return out
}

// ByName matches a device by UDN, UUID or case-insensitive friendly name.
func ByName(name string) func(*upnp.Device) bool {
	return func(d *upnp.Device) bool {
		return d.UDN == name || strings.TrimPrefix(d.UDN, "uuid:") == name || strings.EqualFold(d.FriendlyName, name)
	}
}

// ByType matches devices of the given type, ignoring version.
func ByType(deviceType string) func(*upnp.Device) bool {
	want, _ := upnp.SplitType(deviceType)
	return func(d *upnp.Device) bool { return strings.EqualFold(d.DeviceType, want) }
}
