package upnp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tr1v3r/pkg/log"
)

const (
	MediaRendererType = "urn:schemas-upnp-org:device:MediaRenderer:1"
	MediaServerType   = "urn:schemas-upnp-org:device:MediaServer:1"

	AVTransportType       = "urn:schemas-upnp-org:service:AVTransport:1"
	RenderingType         = "urn:schemas-upnp-org:service:RenderingControl:1"
	ConnectionManagerType = "urn:schemas-upnp-org:service:ConnectionManager:1"
	ContentDirectoryType  = "urn:schemas-upnp-org:service:ContentDirectory:1"
)

// Version is a major.minor device or service version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Icon describes one device icon.
type Icon struct {
	MimeType string
	Width    int
	Height   int
	Depth    int
	URL      string
}

// Service is one service endpoint of a device.
type Service struct {
	ServiceType string
	ServiceID   string
	ControlURL  string
	EventSubURL string
	SCPDURL     string

	device string
	client *Client
}

// Invoke calls action on the service, wrapping failures with device and
// action context.
func (s *Service) Invoke(ctx context.Context, action string, args ...Arg) (Result, error) {
	if s.client == nil {
		return nil, &ActionError{Device: s.device, Service: s.ServiceType, Action: action, Args: args, Err: errors.New("service has no client")}
	}
	res, err := s.client.Invoke(ctx, s.ControlURL, s.ServiceType, action, args...)
	if err != nil {
		return nil, &ActionError{Device: s.device, Service: s.ServiceType, Action: action, Args: args, Err: err}
	}
	return res, nil
}

// Binding is a typed wrapper around a Service.
type Binding interface {
	Descriptor() *Service
}

// ServiceFactory maps a service descriptor to a typed wrapper. A nil result
// drops the service from the device.
type ServiceFactory func(*Service) Binding

// Device is an immutable description of a discovered device.
type Device struct {
	UDN          string
	DeviceType   string
	Version      Version
	FriendlyName string
	Manufacturer string
	ModelName    string
	Address      string
	Location     string
	Icons        []Icon
	Services     []Binding
}

// UUID returns the UUID part of the UDN.
func (d *Device) UUID() (uuid.UUID, error) {
	return uuid.Parse(strings.TrimPrefix(d.UDN, "uuid:"))
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s %s)", d.FriendlyName, d.DeviceType, d.UDN)
}

// ServiceOf returns the first service of d bound to T.
func ServiceOf[T Binding](d *Device) (T, bool) {
	for _, b := range d.Services {
		if t, ok := b.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

type descRoot struct {
	XMLName xml.Name   `xml:"root"`
	URLBase string     `xml:"URLBase"`
	Devices []descNode `xml:"device"`
}

type descNode struct {
	DeviceType   string `xml:"deviceType"`
	FriendlyName string `xml:"friendlyName"`
	Manufacturer string `xml:"manufacturer"`
	ModelName    string `xml:"modelName"`
	UDN          string `xml:"UDN"`
	Icons        []struct {
		MimeType *string `xml:"mimetype"`
		Width    *string `xml:"width"`
		Height   *string `xml:"height"`
		Depth    *string `xml:"depth"`
		URL      *string `xml:"url"`
	} `xml:"iconList>icon"`
	Services []struct {
		ServiceType string `xml:"serviceType"`
		ServiceID   string `xml:"serviceId"`
		SCPDURL     string `xml:"SCPDURL"`
		ControlURL  string `xml:"controlURL"`
		EventSubURL string `xml:"eventSubURL"`
	} `xml:"serviceList>service"`
}

// ParseDescription builds a Device from a device description document
// fetched from location. host is the host:port the description came from.
func ParseDescription(data []byte, location, host string, factory ServiceFactory) (*Device, error) {
	var r descRoot
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, FormatError("root", "", err)
	}
	if len(r.Devices) == 0 {
		return nil, MissingError("device")
	}
	node := r.Devices[0]
	if strings.TrimSpace(node.UDN) == "" {
		return nil, MissingError("UDN")
	}

	base, err := baseURL(r.URLBase, host)
	if err != nil {
		return nil, err
	}

	devType, version := parseDeviceType(strings.TrimSpace(node.DeviceType))
	dev := &Device{
		UDN:          strings.TrimSpace(node.UDN),
		DeviceType:   devType,
		Version:      version,
		FriendlyName: strings.TrimSpace(node.FriendlyName),
		Manufacturer: strings.TrimSpace(node.Manufacturer),
		ModelName:    strings.TrimSpace(node.ModelName),
		Address:      host,
		Location:     location,
	}

	for i, ic := range node.Icons {
		icon, err := parseIcon(base, ic.MimeType, ic.Width, ic.Height, ic.Depth, ic.URL)
		if err != nil {
			return nil, fmt.Errorf("icon %d: %w", i, err)
		}
		dev.Icons = append(dev.Icons, icon)
	}

	for _, s := range node.Services {
		svc := &Service{
			ServiceType: strings.TrimSpace(s.ServiceType),
			ServiceID:   strings.TrimSpace(s.ServiceID),
			device:      dev.FriendlyName,
		}
		if svc.ControlURL, err = resolve(base, s.ControlURL); err != nil {
			return nil, err
		}
		if svc.EventSubURL, err = resolve(base, s.EventSubURL); err != nil {
			return nil, err
		}
		if svc.SCPDURL, err = resolve(base, s.SCPDURL); err != nil {
			return nil, err
		}
		if factory == nil {
			continue
		}
		if b := factory(svc); b != nil {
			dev.Services = append(dev.Services, b)
		}
	}
	return dev, nil
}

func baseURL(urlBase, host string) (*url.URL, error) {
	raw := strings.TrimSpace(urlBase)
	if raw == "" {
		raw = "http://" + host
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, FormatError("URLBase", raw, err)
	}
	return u, nil
}

func resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", FormatError("url", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

func parseIcon(base *url.URL, mime, width, height, depth, rawURL *string) (Icon, error) {
	var (
		icon Icon
		err  error
	)
	for _, f := range []struct {
		name string
		val  *string
	}{{"mimetype", mime}, {"width", width}, {"height", height}, {"depth", depth}, {"url", rawURL}} {
		if f.val == nil {
			return Icon{}, MissingError(f.name)
		}
	}
	icon.MimeType = strings.TrimSpace(*mime)
	if icon.Width, err = atoi("width", *width); err != nil {
		return Icon{}, err
	}
	if icon.Height, err = atoi("height", *height); err != nil {
		return Icon{}, err
	}
	if icon.Depth, err = atoi("depth", *depth); err != nil {
		return Icon{}, err
	}
	if icon.URL, err = resolve(base, *rawURL); err != nil {
		return Icon{}, err
	}
	return icon, nil
}

func atoi(field, v string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, FormatError(field, v, err)
	}
	return i, nil
}

// SplitType splits "urn:...:Name:1.0" into the type and its version suffix.
func SplitType(s string) (string, string) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

func parseDeviceType(s string) (string, Version) {
	typ, ver := SplitType(s)
	v := Version{Major: 1}

	major, minor, hasMinor := strings.Cut(ver, ".")
	if m, err := strconv.Atoi(major); err == nil {
		v.Major = m
	} else {
		log.Info("warning: device type %q has no integer major version, assuming 1", s)
	}
	if hasMinor {
		if m, err := strconv.Atoi(minor); err == nil {
			v.Minor = m
		}
	}
	return typ, v
}
