package upnp

import (
	"context"
	"strconv"
	"strings"
)

// RenderingControl wraps urn:schemas-upnp-org:service:RenderingControl.
type RenderingControl struct{ *Service }

func (s *RenderingControl) Descriptor() *Service { return s.Service }

const masterChannel = "Master"

func (s *RenderingControl) GetVolume(ctx context.Context, id uint32) (int, error) {
	res, err := s.Invoke(ctx, "GetVolume", instance(id), Arg{Name: "Channel", Value: masterChannel})
	if err != nil {
		return 0, err
	}
	return res.Int("CurrentVolume")
}

// SetVolume clamps v to 0..100.
func (s *RenderingControl) SetVolume(ctx context.Context, id uint32, v int) error {
	v = max(0, min(v, 100))
	_, err := s.Invoke(ctx, "SetVolume",
		instance(id),
		Arg{Name: "Channel", Value: masterChannel},
		Arg{Name: "DesiredVolume", Value: strconv.Itoa(v)},
	)
	return err
}

func (s *RenderingControl) GetMute(ctx context.Context, id uint32) (bool, error) {
	res, err := s.Invoke(ctx, "GetMute", instance(id), Arg{Name: "Channel", Value: masterChannel})
	if err != nil {
		return false, err
	}
	v, ok := res.Lookup("CurrentMute")
	if !ok {
		return false, MissingError("CurrentMute")
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, FormatError("CurrentMute", v, nil)
	}
}

func (s *RenderingControl) SetMute(ctx context.Context, id uint32, m bool) error {
	val := "0"
	if m {
		val = "1"
	}
	_, err := s.Invoke(ctx, "SetMute",
		instance(id),
		Arg{Name: "Channel", Value: masterChannel},
		Arg{Name: "DesiredMute", Value: val},
	)
	return err
}
