package didl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tr1v3r/rctl/internal/upnp"
)

// Resource is one <res> element of an item.
type Resource struct {
	URI             string
	ProtocolInfo    string
	Size            uint64
	Duration        time.Duration
	Bitrate         uint
	SampleFrequency uint
	BitsPerSample   uint
	NrAudioChannels uint
	ColorDepth      uint
	Resolution      Resolution
	Protection      string
	ImportURI       string

	// Attributes keeps every attribute of the element as received.
	Attributes map[string]string
}

// MimeType returns the third field of the protocolInfo.
func (r *Resource) MimeType() string {
	parts := strings.SplitN(r.ProtocolInfo, ":", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// Resolution is a WIDTHxHEIGHT pixel size.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return Resolution{}, upnp.FormatError("resolution", s, nil)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, upnp.FormatError("resolution", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, upnp.FormatError("resolution", s, err)
	}
	return Resolution{Width: width, Height: height}, nil
}

// ParseDuration parses "H+:MM:SS[.F+]" or "H+:MM:SS[.F0/F1]".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, upnp.FormatError("duration", s, nil)
	}

	h, err := digits(parts[0], 1, 0)
	if err != nil {
		return 0, upnp.FormatError("duration", s, err)
	}
	m, err := digits(parts[1], 1, 2)
	if err != nil || m > 59 {
		return 0, upnp.FormatError("duration", s, err)
	}
	sec, frac, hasFrac := strings.Cut(parts[2], ".")
	secs, err := digits(sec, 1, 2)
	if err != nil || secs > 59 {
		return 0, upnp.FormatError("duration", s, err)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(secs)*time.Second
	if hasFrac {
		f, err := fraction(frac)
		if err != nil {
			return 0, upnp.FormatError("duration", s, err)
		}
		d += f
	}
	return d, nil
}

func digits(s string, minLen, maxLen int) (int, error) {
	if len(s) < minLen || (maxLen > 0 && len(s) > maxLen) {
		return 0, fmt.Errorf("field %q has wrong length", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("field %q is not numeric", s)
		}
	}
	return strconv.Atoi(s)
}

func fraction(s string) (time.Duration, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := digits(num, 1, 0)
		if err != nil {
			return 0, err
		}
		dd, err := digits(den, 1, 0)
		if err != nil || dd == 0 || n >= dd {
			return 0, fmt.Errorf("bad fraction %q", s)
		}
		return time.Duration(n) * time.Second / time.Duration(dd), nil
	}
	if _, err := digits(s, 1, 0); err != nil {
		return 0, err
	}
	if len(s) > 9 {
		s = s[:9]
	}
	ns, _ := strconv.Atoi(s + strings.Repeat("0", 9-len(s)))
	return time.Duration(ns), nil
}

// FormatDuration renders d as "HH:MM:SS", adding ".mmm" when d has
// millisecond precision.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00:00"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	ms := int(d % time.Second / time.Millisecond)
	if ms == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
