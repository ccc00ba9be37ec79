package upnp

import (
	"context"
	"strconv"
)

// AVTransport wraps urn:schemas-upnp-org:service:AVTransport.
type AVTransport struct{ *Service }

func (s *AVTransport) Descriptor() *Service { return s.Service }

// TransportInfo is the GetTransportInfo reply.
type TransportInfo struct {
	State  string
	Status string
	Speed  string
}

// PositionInfo is the GetPositionInfo reply. Times are left in their wire
// format (H+:MM:SS[.F+] or NOT_IMPLEMENTED).
type PositionInfo struct {
	Track         int
	TrackDuration string
	TrackMetaData string
	TrackURI      string
	RelTime       string
	AbsTime       string
}

// MediaInfo is the GetMediaInfo reply.
type MediaInfo struct {
	NrTracks           int
	MediaDuration      string
	CurrentURI         string
	CurrentURIMetaData string
	NextURI            string
	PlayMedium         string
}

func instance(id uint32) Arg { return Arg{Name: "InstanceID", Value: strconv.FormatUint(uint64(id), 10)} }

func (s *AVTransport) SetAVTransportURI(ctx context.Context, id uint32, uri, metadata string) error {
	_, err := s.Invoke(ctx, "SetAVTransportURI",
		instance(id),
		Arg{Name: "CurrentURI", Value: uri},
		Arg{Name: "CurrentURIMetaData", Value: metadata},
	)
	return err
}

func (s *AVTransport) Play(ctx context.Context, id uint32, speed string) error {
	if speed == "" {
		speed = "1"
	}
	_, err := s.Invoke(ctx, "Play", instance(id), Arg{Name: "Speed", Value: speed})
	return err
}

func (s *AVTransport) Pause(ctx context.Context, id uint32) error {
	_, err := s.Invoke(ctx, "Pause", instance(id))
	return err
}

func (s *AVTransport) Stop(ctx context.Context, id uint32) error {
	_, err := s.Invoke(ctx, "Stop", instance(id))
	return err
}

// Seek moves to target using the REL_TIME unit.
func (s *AVTransport) Seek(ctx context.Context, id uint32, target string) error {
	_, err := s.Invoke(ctx, "Seek",
		instance(id),
		Arg{Name: "Unit", Value: "REL_TIME"},
		Arg{Name: "Target", Value: target},
	)
	return err
}

func (s *AVTransport) GetTransportInfo(ctx context.Context, id uint32) (*TransportInfo, error) {
	res, err := s.Invoke(ctx, "GetTransportInfo", instance(id))
	if err != nil {
		return nil, err
	}
	return &TransportInfo{
		State:  res.Get("CurrentTransportState"),
		Status: res.Get("CurrentTransportStatus"),
		Speed:  res.Get("CurrentSpeed"),
	}, nil
}

func (s *AVTransport) GetPositionInfo(ctx context.Context, id uint32) (*PositionInfo, error) {
	res, err := s.Invoke(ctx, "GetPositionInfo", instance(id))
	if err != nil {
		return nil, err
	}
	info := &PositionInfo{
		TrackDuration: res.Get("TrackDuration"),
		TrackMetaData: res.Get("TrackMetaData"),
		TrackURI:      res.Get("TrackURI"),
		RelTime:       res.Get("RelTime"),
		AbsTime:       res.Get("AbsTime"),
	}
	if _, ok := res.Lookup("Track"); ok {
		if info.Track, err = res.Int("Track"); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (s *AVTransport) GetMediaInfo(ctx context.Context, id uint32) (*MediaInfo, error) {
	res, err := s.Invoke(ctx, "GetMediaInfo", instance(id))
	if err != nil {
		return nil, err
	}
	info := &MediaInfo{
		MediaDuration:      res.Get("MediaDuration"),
		CurrentURI:         res.Get("CurrentURI"),
		CurrentURIMetaData: res.Get("CurrentURIMetaData"),
		NextURI:            res.Get("NextURI"),
		PlayMedium:         res.Get("PlayMedium"),
	}
	if _, ok := res.Lookup("NrTracks"); ok {
		if info.NrTracks, err = res.Int("NrTracks"); err != nil {
			return nil, err
		}
	}
	return info, nil
}
