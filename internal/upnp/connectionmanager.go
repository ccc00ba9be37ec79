package upnp

import (
	"context"
	"strings"
)

// ConnectionManager wraps urn:schemas-upnp-org:service:ConnectionManager.
type ConnectionManager struct{ *Service }

func (s *ConnectionManager) Descriptor() *Service { return s.Service }

// ProtocolInfo lists the protocolInfo strings a device can source and sink.
type ProtocolInfo struct {
	Source []string
	Sink   []string
}

func (s *ConnectionManager) GetProtocolInfo(ctx context.Context) (*ProtocolInfo, error) {
	res, err := s.Invoke(ctx, "GetProtocolInfo")
	if err != nil {
		return nil, err
	}
	return &ProtocolInfo{
		Source: splitList(res.Get("Source")),
		Sink:   splitList(res.Get("Sink")),
	}, nil
}

// Supports reports whether any sink entry accepts mimeType.
func (p *ProtocolInfo) Supports(mimeType string) bool {
	for _, s := range p.Sink {
		// http-get:*:video/mp4:*
		parts := strings.SplitN(s, ":", 4)
		if len(parts) < 3 {
			continue
		}
		if parts[2] == "*" || strings.EqualFold(parts[2], mimeType) {
			return true
		}
		if typ, sub, ok := strings.Cut(parts[2], "/"); ok && sub == "*" && strings.HasPrefix(mimeType, typ+"/") {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
