package ssdp

import (
	"strconv"
	"strings"

	"github.com/tr1v3r/rctl/internal/upnp"
)

// Kind distinguishes multicast notifications from unicast search responses.
type Kind int

const (
	KindNotify Kind = iota
	KindSearchResponse
)

func (k Kind) String() string {
	if k == KindNotify {
		return "notify"
	}
	return "search-response"
}

// Subtype is the NTS of a notification. Search responses are Alive.
type Subtype int

const (
	Alive Subtype = iota
	ByeBye
	Update
)

func (s Subtype) String() string {
	switch s {
	case Alive:
		return "ssdp:alive"
	case ByeBye:
		return "ssdp:byebye"
	case Update:
		return "ssdp:update"
	default:
		return "unknown"
	}
}

// Advertisement is a parsed NOTIFY or search response.
type Advertisement struct {
	Kind     Kind
	USN      string
	Type     string // NT for notifications, ST for search responses
	Subtype  Subtype
	MaxAge   int
	Location string
	Server   string

	BootID     int
	NextBootID int
	ConfigID   int
	SearchPort int
}

// Header is a parsed SSDP header block. Names are upper case.
type Header map[string]string

func (h Header) required(name string) (string, error) {
	v, ok := h[name]
	if !ok {
		return "", upnp.MissingError(name)
	}
	return v, nil
}

func (h Header) lenientInt(name string) int {
	i, err := strconv.Atoi(strings.TrimSpace(h[name]))
	if err != nil {
		return 0
	}
	return i
}

// ParseHeader splits raw into its start line and header fields.
func ParseHeader(raw string) (string, Header) {
	lines := strings.FieldsFunc(raw, func(r rune) bool { return r == '\r' || r == '\n' })
	if len(lines) == 0 {
		return "", Header{}
	}

	h := make(Header, len(lines)-1)
	for _, ln := range lines[1:] {
		name, value, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		h[strings.ToUpper(strings.TrimSpace(name))] = strings.TrimLeft(value, " \t")
	}
	return lines[0], h
}

// Parse converts a raw SSDP message into an Advertisement.
func Parse(raw string) (*Advertisement, error) {
	start, h := ParseHeader(raw)
	if start == "" {
		return nil, upnp.MissingError("start line")
	}

	var (
		adv = &Advertisement{
			Server:     h["SERVER"],
			BootID:     h.lenientInt("BOOTID.UPNP.ORG"),
			NextBootID: h.lenientInt("NEXTBOOTID.UPNP.ORG"),
			ConfigID:   h.lenientInt("CONFIGID.UPNP.ORG"),
			SearchPort: h.lenientInt("SEARCHPORT.UPNP.ORG"),
		}
		err error
	)

	if adv.USN, err = h.required("USN"); err != nil {
		return nil, err
	}

	if strings.HasPrefix(strings.ToLower(start), "notify") {
		adv.Kind = KindNotify
		if adv.Type, err = h.required("NT"); err != nil {
			return nil, err
		}
		var nts string
		if nts, err = h.required("NTS"); err != nil {
			return nil, err
		}
		if adv.Subtype, err = parseSubtype(nts); err != nil {
			return nil, err
		}
		if adv.Subtype == ByeBye {
			return adv, nil
		}
	} else {
		adv.Kind = KindSearchResponse
		adv.Subtype = Alive
		if adv.Type, err = h.required("ST"); err != nil {
			return nil, err
		}
	}

	if adv.Location, err = h.required("LOCATION"); err != nil {
		return nil, err
	}
	if adv.MaxAge, err = parseMaxAge(h["CACHE-CONTROL"]); err != nil {
		return nil, err
	}
	return adv, nil
}

func parseSubtype(nts string) (Subtype, error) {
	switch strings.ToLower(strings.TrimSpace(nts)) {
	case "ssdp:alive":
		return Alive, nil
	case "ssdp:byebye":
		return ByeBye, nil
	case "ssdp:update":
		return Update, nil
	default:
		return 0, upnp.FormatError("NTS", nts, nil)
	}
}

// parseMaxAge reads "max-age=<seconds>". An absent or empty value is 0.
func parseMaxAge(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	parts := strings.Split(v, "=")
	if len(parts) != 2 {
		return 0, upnp.FormatError("CACHE-CONTROL", v, nil)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, upnp.FormatError("CACHE-CONTROL", v, err)
	}
	return n, nil
}
