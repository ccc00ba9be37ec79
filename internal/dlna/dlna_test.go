package dlna

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tr1v3r/rctl/internal/didl"
	"github.com/tr1v3r/rctl/internal/upnp"
)

const description = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaRenderer:1</deviceType>
    <friendlyName>Living Room</friendlyName>
    <manufacturer>Acme</manufacturer>
    <UDN>uuid:5c6a2b1e-0f7d-4d8e-9a3b-1c2d3e4f5a6b</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <controlURL>/ctl/avt</controlURL>
        <eventSubURL>/evt/avt</eventSubURL>
        <SCPDURL>/avt.xml</SCPDURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:RenderingControl</serviceId>
        <controlURL>/ctl/rc</controlURL>
        <eventSubURL>/evt/rc</eventSubURL>
        <SCPDURL>/rc.xml</SCPDURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
        <controlURL>/ctl/cd</controlURL>
        <eventSubURL>/evt/cd</eventSubURL>
        <SCPDURL>/cd.xml</SCPDURL>
      </service>
    </serviceList>
  </device>
</root>`

type call struct {
	action string
	body   string
}

// fakeDevice answers SOAP actions with canned replies. A reply is the
// inner XML of the response element; a *upnp.ServiceError becomes a fault.
type fakeDevice struct {
	mu      sync.Mutex
	calls   []call
	replies map[string]func(body string) (string, error)
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_, _ = io.WriteString(w, description)
		return
	}
	body, _ := io.ReadAll(r.Body)
	serviceType, action, _ := strings.Cut(strings.Trim(r.Header.Get("SOAPACTION"), `"`), "#")

	d.mu.Lock()
	d.calls = append(d.calls, call{action: action, body: string(body)})
	reply := d.replies[action]
	d.mu.Unlock()

	inner := ""
	if reply != nil {
		var err error
		inner, err = reply(string(body))
		var se *upnp.ServiceError
		if errors.As(err, &se) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring><detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0"><errorCode>%d</errorCode><errorDescription>%s</errorDescription></UPnPError></detail></s:Fault></s:Body></s:Envelope>`, se.Code, se.Description)
			return
		}
	}
	fmt.Fprintf(w, `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body><u:%sResponse xmlns:u="%s">%s</u:%sResponse></s:Body></s:Envelope>`, action, serviceType, inner, action)
}

func (d *fakeDevice) reply(action string, f func(body string) (string, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies[action] = f
}

func (d *fakeDevice) last(action string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.calls) - 1; i >= 0; i-- {
		if d.calls[i].action == action {
			return d.calls[i].body
		}
	}
	return ""
}

func (d *fakeDevice) count(action string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.action == action {
			n++
		}
	}
	return n
}

func arg(body, name string) string {
	_, rest, ok := strings.Cut(body, "<"+name+">")
	if !ok {
		return ""
	}
	v, _, _ := strings.Cut(rest, "</"+name+">")
	return html.UnescapeString(v)
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func didlDoc(inner string) string {
	return escape(`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">` + inner + `</DIDL-Lite>`)
}

func fixed(inner string) func(string) (string, error) {
	return func(string) (string, error) { return inner, nil }
}

func newDevice(t *testing.T) (*fakeDevice, *upnp.Device) {
	t.Helper()
	fd := &fakeDevice{replies: make(map[string]func(string) (string, error))}
	srv := httptest.NewServer(fd)
	t.Cleanup(srv.Close)

	dev, err := upnp.NewFetcher(upnp.NewClient(srv.Client(), "rctl-test")).Fetch(context.Background(), srv.URL+"/desc.xml")
	require.NoError(t, err)
	return fd, dev
}

func newRenderer(t *testing.T) (*fakeDevice, *MediaRenderer) {
	t.Helper()
	fd, dev := newDevice(t)
	r, err := NewMediaRenderer(dev)
	require.NoError(t, err)
	return fd, r
}

func newServer(t *testing.T) (*fakeDevice, *MediaServer) {
	t.Helper()
	fd, dev := newDevice(t)
	s, err := NewMediaServer(dev)
	require.NoError(t, err)
	return fd, s
}

func TestOpenImagePicksWidest(t *testing.T) {
	fd, r := newRenderer(t)

	photo := &didl.Photo{}
	photo.ID, photo.Title = "p1", "Beach"
	photo.Resources = []didl.Resource{
		{URI: "http://nas/small.jpg", ProtocolInfo: "http-get:*:image/jpeg:*", Resolution: didl.Resolution{Width: 160, Height: 120}},
		{URI: "http://nas/large.jpg", ProtocolInfo: "http-get:*:image/jpeg:*", Resolution: didl.Resolution{Width: 4000, Height: 3000}},
		{URI: "http://nas/medium.jpg", ProtocolInfo: "http-get:*:image/jpeg:*", Resolution: didl.Resolution{Width: 1024, Height: 768}},
	}

	require.NoError(t, r.Open(context.Background(), photo))
	body := fd.last("SetAVTransportURI")
	assert.Equal(t, "http://nas/large.jpg", arg(body, "CurrentURI"))
	assert.Equal(t, "0", arg(body, "InstanceID"))
	assert.Contains(t, arg(body, "CurrentURIMetaData"), "Beach")
}

func TestOpenTrackPicksFirst(t *testing.T) {
	fd, r := newRenderer(t)

	track := &didl.MusicTrack{}
	track.Title = "Song"
	track.Resources = []didl.Resource{
		{URI: "http://nas/a.flac", Resolution: didl.Resolution{Width: 1}},
		{URI: "http://nas/a.mp3", Resolution: didl.Resolution{Width: 9}},
	}
	require.NoError(t, r.Open(context.Background(), track))
	assert.Equal(t, "http://nas/a.flac", arg(fd.last("SetAVTransportURI"), "CurrentURI"))

	assert.ErrorIs(t, r.Open(context.Background(), &didl.Container{}), ErrNotPlayable)
	assert.ErrorIs(t, r.Open(context.Background(), &didl.MusicTrack{}), ErrNoResource)
}

func TestOpenErrorsCarryContext(t *testing.T) {
	_, r := newRenderer(t)

	for _, obj := range []didl.Object{&didl.Container{}, &didl.MusicTrack{}} {
		err := r.Open(context.Background(), obj)
		var ae *upnp.ActionError
		require.True(t, errors.As(err, &ae), "got %v", err)
		assert.Equal(t, "Living Room", ae.Device)
		assert.Equal(t, "SetAVTransportURI", ae.Action)
		assert.Equal(t, upnp.AVTransportType, ae.Service)
	}
}

func TestPlaybackControls(t *testing.T) {
	fd, r := newRenderer(t)
	ctx := context.Background()

	require.NoError(t, r.Play(ctx))
	assert.Equal(t, "1", arg(fd.last("Play"), "Speed"))
	require.NoError(t, r.Pause(ctx))
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Seek(ctx, 90*time.Second))
	assert.Equal(t, "00:01:30", arg(fd.last("Seek"), "Target"))
	assert.Equal(t, "REL_TIME", arg(fd.last("Seek"), "Unit"))
}

func TestPlayFault(t *testing.T) {
	fd, r := newRenderer(t)
	fd.reply("Play", func(string) (string, error) {
		return "", &upnp.ServiceError{Code: 701, Description: "Transition not available"}
	})

	err := r.Play(context.Background())
	require.Error(t, err)

	var se *upnp.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 701, se.Code)
	assert.Equal(t, "Transition not available", se.Description)

	var ae *upnp.ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Living Room", ae.Device)
	assert.Equal(t, "Play", ae.Action)
	assert.True(t, upnp.IsServiceError(err, 701))
}

func TestGetCurrentState(t *testing.T) {
	fd, r := newRenderer(t)
	tests := []struct {
		wire string
		want TransportState
	}{
		{"PLAYING", Playing},
		{"PAUSED_PLAYBACK", Paused},
		{"TRANSITIONING", Transitioning},
		{"NO_MEDIA_PRESENT", NoMediaPresent},
		{"STOPPED", Stopped},
		{"WARMING_UP", Stopped},
	}
	for _, tt := range tests {
		fd.reply("GetTransportInfo", fixed("<CurrentTransportState>"+tt.wire+"</CurrentTransportState><CurrentTransportStatus>OK</CurrentTransportStatus><CurrentSpeed>1</CurrentSpeed>"))
		got, err := r.GetCurrentState(context.Background())
		require.NoError(t, err, tt.wire)
		assert.Equal(t, tt.want, got, tt.wire)
	}
}

func TestGetCurrentPosition(t *testing.T) {
	fd, r := newRenderer(t)

	fd.reply("GetPositionInfo", fixed("<Track>2</Track><TrackDuration>0:04:00</TrackDuration><TrackURI>http://nas/a.mp3</TrackURI><RelTime>0:01:02</RelTime><AbsTime>NOT_IMPLEMENTED</AbsTime>"))
	pos, err := r.GetCurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Track)
	assert.Equal(t, 4*time.Minute, pos.Duration)
	assert.Equal(t, 62*time.Second, pos.Elapsed)
	assert.Equal(t, "http://nas/a.mp3", pos.URI)

	fd.reply("GetPositionInfo", fixed("<Track>0</Track><TrackDuration>NOT_IMPLEMENTED</TrackDuration><RelTime></RelTime>"))
	pos, err = r.GetCurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pos.Duration)
	assert.Zero(t, pos.Elapsed)

	fd.reply("GetPositionInfo", fixed("<Track>1</Track><TrackDuration>soon</TrackDuration>"))
	_, err = r.GetCurrentPosition(context.Background())
	assert.ErrorIs(t, err, upnp.ErrBadFormat)
}

func TestVolume(t *testing.T) {
	fd, r := newRenderer(t)
	ctx := context.Background()

	require.NoError(t, r.SetVolume(ctx, 150))
	assert.Equal(t, "100", arg(fd.last("SetVolume"), "DesiredVolume"))
	assert.Equal(t, "Master", arg(fd.last("SetVolume"), "Channel"))

	fd.reply("GetVolume", fixed("<CurrentVolume>35</CurrentVolume>"))
	v, err := r.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, v)

	fd.reply("GetMute", fixed("<CurrentMute>1</CurrentMute>"))
	m, err := r.Mute(ctx)
	require.NoError(t, err)
	assert.True(t, m)
}

func TestBrowseContainersFirstAcrossPages(t *testing.T) {
	fd, s := newServer(t)
	fd.reply("Browse", func(body string) (string, error) {
		if arg(body, "StartingIndex") == "0" {
			return "<Result>" + didlDoc(
				`<item id="i1" parentID="0"><dc:title>One</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class><res>http://nas/1.mp3</res></item>`+
					`<container id="c1" parentID="0" childCount="3"><dc:title>Music</dc:title><upnp:class>object.container.storageFolder</upnp:class></container>`,
			) + "</Result><NumberReturned>2</NumberReturned><TotalMatches>3</TotalMatches><UpdateID>9</UpdateID>", nil
		}
		return "<Result>" + didlDoc(
			`<container id="c2" parentID="0"><dc:title>Photos</dc:title><upnp:class>object.container.album.photoAlbum</upnp:class></container>`,
		) + "</Result><NumberReturned>1</NumberReturned><TotalMatches>3</TotalMatches><UpdateID>9</UpdateID>", nil
	})

	objs, err := s.Browse(context.Background(), "0", "")
	require.NoError(t, err)

	var ids []string
	for _, o := range objs {
		ids = append(ids, o.Common().ID)
	}
	assert.Equal(t, []string{"c1", "c2", "i1"}, ids)
	assert.Equal(t, 2, fd.count("Browse"))
	assert.Equal(t, upnp.BrowseDirectChildren, arg(fd.last("Browse"), "BrowseFlag"))
	assert.Equal(t, "*", arg(fd.last("Browse"), "Filter"))
}

func TestBrowseBadResult(t *testing.T) {
	fd, s := newServer(t)
	fd.reply("Browse", fixed("<Result>"+didlDoc(`<item id="i1"><upnp:class>object.item</upnp:class><res size="huge">http://x</res></item>`)+"</Result><NumberReturned>1</NumberReturned><TotalMatches>1</TotalMatches>"))

	_, err := s.Browse(context.Background(), "0", "*")
	require.Error(t, err)
	assert.ErrorIs(t, err, upnp.ErrBadFormat)

	var ae *upnp.ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Browse", ae.Action)
}

func TestGetItemAndContainerInfo(t *testing.T) {
	fd, s := newServer(t)
	fd.reply("Browse", func(body string) (string, error) {
		switch arg(body, "ObjectID") {
		case "c1":
			return "<Result>" + didlDoc(`<container id="c1" childCount="2"><dc:title>Music</dc:title><upnp:class>object.container</upnp:class></container>`) + "</Result><NumberReturned>1</NumberReturned><TotalMatches>1</TotalMatches>", nil
		case "i1":
			return "<Result>" + didlDoc(`<item id="i1"><dc:title>Clip</dc:title><upnp:class>object.item.videoItem.movie</upnp:class></item>`) + "</Result><NumberReturned>1</NumberReturned><TotalMatches>1</TotalMatches>", nil
		}
		return "", &upnp.ServiceError{Code: 701, Description: "No such object"}
	})
	ctx := context.Background()

	c, err := s.GetContainerInfo(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, didl.ContainerOf(c).ChildCount)
	assert.Equal(t, upnp.BrowseMetadata, arg(fd.last("Browse"), "BrowseFlag"))

	i, err := s.GetItemInfo(ctx, "i1")
	require.NoError(t, err)
	assert.IsType(t, &didl.Movie{}, i)

	_, err = s.GetItemInfo(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetContainerInfo(ctx, "nope")
	assert.True(t, upnp.IsServiceError(err, 701))
}

func TestSearchDedupesByTitle(t *testing.T) {
	fd, s := newServer(t)
	fd.reply("Search", fixed("<Result>"+didlDoc(
		`<item id="a"><dc:title>Blue</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class></item>`+
			`<item id="b"><dc:title>Green</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class></item>`+
			`<item id="c"><dc:title>Blue</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class></item>`+
			`<item id="d"><dc:title>Podcast</dc:title><upnp:class>object.item.audioItem</upnp:class></item>`,
	)+"</Result><NumberReturned>4</NumberReturned><TotalMatches>4</TotalMatches>"))

	tracks, err := Search[*didl.MusicTrack](context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "a", tracks[0].ID)
	assert.Equal(t, "b", tracks[1].ID)

	body := fd.last("Search")
	assert.Equal(t, `upnp:class derivedfrom "object.item.audioItem.musicTrack"`, arg(body, "SearchCriteria"))
	assert.Equal(t, "0", arg(body, "ContainerID"))
}

func TestSearchKeepsDerivedClasses(t *testing.T) {
	fd, s := newServer(t)
	fd.reply("Search", fixed("<Result>"+didlDoc(
		`<item id="a"><dc:title>Blue</dc:title><upnp:class>object.item.audioItem.musicTrack</upnp:class><upnp:artist>Ann</upnp:artist></item>`+
			`<item id="d"><dc:title>Podcast</dc:title><upnp:class>object.item.audioItem</upnp:class></item>`+
			`<item id="v"><dc:title>Clip</dc:title><upnp:class>object.item.videoItem</upnp:class></item>`,
	)+"</Result><NumberReturned>3</NumberReturned><TotalMatches>3</TotalMatches>"))

	audio, err := Search[*didl.AudioItem](context.Background(), s)
	require.NoError(t, err)
	require.Len(t, audio, 2)
	assert.Equal(t, "a", audio[0].ID)
	assert.Equal(t, "object.item.audioItem.musicTrack", audio[0].Class)
	assert.Equal(t, "d", audio[1].ID)
	assert.Equal(t, `upnp:class derivedfrom "object.item.audioItem"`, arg(fd.last("Search"), "SearchCriteria"))

	items, err := Search[*didl.Item](context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestMissingService(t *testing.T) {
	_, err := NewMediaServer(&upnp.Device{FriendlyName: "bare"})
	assert.ErrorIs(t, err, ErrNoService)
	_, err = NewMediaRenderer(&upnp.Device{FriendlyName: "bare"})
	assert.ErrorIs(t, err, ErrNoService)
}

func TestWatchStartsAndStops(t *testing.T) {
	fd, r := newRenderer(t)
	r.PollInterval = 10 * time.Millisecond
	fd.reply("GetTransportInfo", fixed("<CurrentTransportState>PLAYING</CurrentTransportState>"))
	fd.reply("GetPositionInfo", fixed("<Track>1</Track><TrackDuration>0:03:00</TrackDuration><RelTime>0:00:05</RelTime>"))

	a, cancelA := r.Watch()
	b, cancelB := r.Watch()
	assert.True(t, r.watching())

	for _, ch := range []<-chan Status{a, b} {
		select {
		case st := <-ch:
			require.NoError(t, st.Err)
			assert.Equal(t, Playing, st.State)
			assert.Equal(t, 5*time.Second, st.Position.Elapsed)
		case <-time.After(2 * time.Second):
			t.Fatal("no status")
		}
	}

	cancelA()
	assert.True(t, r.watching())
	cancelB()
	cancelB()
	assert.False(t, r.watching())

	_, open := <-b
	for open {
		_, open = <-b
	}

	polls := fd.count("GetTransportInfo")
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, fd.count("GetTransportInfo"), polls+1)
}

func (r *MediaRenderer) watching() bool {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()
	return r.poll != nil
}
