package dlna

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/rctl/internal/didl"
	"github.com/tr1v3r/rctl/internal/upnp"
)

type TransportState int

const (
	Stopped TransportState = iota
	Playing
	Paused
	Transitioning
	NoMediaPresent
)

func (s TransportState) String() string {
	switch s {
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED_PLAYBACK"
	case Transitioning:
		return "TRANSITIONING"
	case NoMediaPresent:
		return "NO_MEDIA_PRESENT"
	default:
		return "STOPPED"
	}
}

// ParseTransportState maps a CurrentTransportState value. Unknown states
// are reported as Stopped.
func ParseTransportState(s string) TransportState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STOPPED":
		return Stopped
	case "PLAYING":
		return Playing
	case "PAUSED_PLAYBACK", "PAUSED_RECORDING":
		return Paused
	case "TRANSITIONING":
		return Transitioning
	case "NO_MEDIA_PRESENT":
		return NoMediaPresent
	default:
		log.Info("warning: unknown transport state %q, assuming STOPPED", s)
		return Stopped
	}
}

// Position is the playback position of the current track.
type Position struct {
	Track    int
	URI      string
	Duration time.Duration
	Elapsed  time.Duration
}

// MediaRenderer controls playback on an AVTransport.
type MediaRenderer struct {
	Device       *upnp.Device
	InstanceID   uint32
	PollInterval time.Duration

	av *upnp.AVTransport
	rc *upnp.RenderingControl
	cm *upnp.ConnectionManager

	pollMu sync.Mutex
	poll   *poller
	nextID uint64
}

func NewMediaRenderer(dev *upnp.Device) (*MediaRenderer, error) {
	av, ok := upnp.ServiceOf[*upnp.AVTransport](dev)
	if !ok {
		return nil, fmt.Errorf("%s: AVTransport: %w", dev.FriendlyName, ErrNoService)
	}
	r := &MediaRenderer{Device: dev, PollInterval: time.Second, av: av}
	r.rc, _ = upnp.ServiceOf[*upnp.RenderingControl](dev)
	r.cm, _ = upnp.ServiceOf[*upnp.ConnectionManager](dev)
	return r, nil
}

// Open loads obj into the renderer without starting playback.
func (r *MediaRenderer) Open(ctx context.Context, obj didl.Object) error {
	if !didl.IsItem(obj) {
		return r.wrap("SetAVTransportURI", fmt.Errorf("open %q: %w", obj.Common().Title, ErrNotPlayable))
	}
	res := SelectResource(obj)
	if res == nil {
		return r.wrap("SetAVTransportURI", fmt.Errorf("open %q: %w", obj.Common().Title, ErrNoResource))
	}
	meta, err := didl.Metadata(obj, res)
	if err != nil {
		return r.wrap("SetAVTransportURI", fmt.Errorf("open %q: %w", obj.Common().Title, err))
	}
	return r.av.SetAVTransportURI(ctx, r.InstanceID, res.URI, meta)
}

// OpenURL loads a bare URL with optional DIDL-Lite metadata.
func (r *MediaRenderer) OpenURL(ctx context.Context, uri, metadata string) error {
	return r.av.SetAVTransportURI(ctx, r.InstanceID, uri, metadata)
}

// SelectResource picks the resource to play: the widest one for images,
// the first one otherwise.
func SelectResource(obj didl.Object) *didl.Resource {
	item := didl.ItemOf(obj)
	if item == nil || len(item.Resources) == 0 {
		return nil
	}
	best := &item.Resources[0]
	if !didl.IsImage(obj) {
		return best
	}
	for i := range item.Resources[1:] {
		if r := &item.Resources[i+1]; r.Resolution.Width > best.Resolution.Width {
			best = r
		}
	}
	return best
}

func (r *MediaRenderer) Play(ctx context.Context) error  { return r.av.Play(ctx, r.InstanceID, "1") }
func (r *MediaRenderer) Pause(ctx context.Context) error { return r.av.Pause(ctx, r.InstanceID) }
func (r *MediaRenderer) Stop(ctx context.Context) error  { return r.av.Stop(ctx, r.InstanceID) }

// Seek jumps to an absolute offset in the current track.
func (r *MediaRenderer) Seek(ctx context.Context, to time.Duration) error {
	return r.av.Seek(ctx, r.InstanceID, didl.FormatDuration(to))
}

func (r *MediaRenderer) GetCurrentState(ctx context.Context) (TransportState, error) {
	info, err := r.av.GetTransportInfo(ctx, r.InstanceID)
	if err != nil {
		return Stopped, err
	}
	return ParseTransportState(info.State), nil
}

func (r *MediaRenderer) GetCurrentPosition(ctx context.Context) (*Position, error) {
	info, err := r.av.GetPositionInfo(ctx, r.InstanceID)
	if err != nil {
		return nil, err
	}
	pos := &Position{Track: info.Track, URI: info.TrackURI}
	if pos.Duration, err = positionTime(info.TrackDuration); err != nil {
		return nil, r.wrap("GetPositionInfo", err)
	}
	if pos.Elapsed, err = positionTime(info.RelTime); err != nil {
		return nil, r.wrap("GetPositionInfo", err)
	}
	return pos, nil
}

func (r *MediaRenderer) GetMediaInfo(ctx context.Context) (*upnp.MediaInfo, error) {
	return r.av.GetMediaInfo(ctx, r.InstanceID)
}

func (r *MediaRenderer) wrap(action string, err error) error {
	return &upnp.ActionError{Device: r.Device.FriendlyName, Service: r.av.ServiceType, Action: action, Err: err}
}

// positionTime parses a position field. Renderers that do not track a
// value report NOT_IMPLEMENTED or nothing, both read as zero.
func positionTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NOT_IMPLEMENTED") {
		return 0, nil
	}
	return didl.ParseDuration(s)
}

func (r *MediaRenderer) rendering() (*upnp.RenderingControl, error) {
	if r.rc == nil {
		return nil, fmt.Errorf("%s: RenderingControl: %w", r.Device.FriendlyName, ErrNoService)
	}
	return r.rc, nil
}

func (r *MediaRenderer) Volume(ctx context.Context) (int, error) {
	rc, err := r.rendering()
	if err != nil {
		return 0, err
	}
	return rc.GetVolume(ctx, r.InstanceID)
}

func (r *MediaRenderer) SetVolume(ctx context.Context, v int) error {
	rc, err := r.rendering()
	if err != nil {
		return err
	}
	return rc.SetVolume(ctx, r.InstanceID, v)
}

func (r *MediaRenderer) Mute(ctx context.Context) (bool, error) {
	rc, err := r.rendering()
	if err != nil {
		return false, err
	}
	return rc.GetMute(ctx, r.InstanceID)
}

func (r *MediaRenderer) SetMute(ctx context.Context, m bool) error {
	rc, err := r.rendering()
	if err != nil {
		return err
	}
	return rc.SetMute(ctx, r.InstanceID, m)
}

// Supports reports whether the renderer's sink protocols accept mimeType.
// Renderers without a ConnectionManager are assumed to accept anything.
func (r *MediaRenderer) Supports(ctx context.Context, mimeType string) (bool, error) {
	if r.cm == nil {
		return true, nil
	}
	info, err := r.cm.GetProtocolInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Supports(mimeType), nil
}
