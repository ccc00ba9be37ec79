package upnp

import "strings"

// DefaultServices binds the AV services this package knows about and drops
// everything else.
func DefaultServices(client *Client) ServiceFactory {
	return func(s *Service) Binding {
		s.client = client

		typ, _ := SplitType(s.ServiceType)
		switch {
		case strings.EqualFold(typ, avTransportBase):
			return &AVTransport{s}
		case strings.EqualFold(typ, contentDirectoryBase):
			return &ContentDirectory{s}
		case strings.EqualFold(typ, renderingBase):
			return &RenderingControl{s}
		case strings.EqualFold(typ, connectionManagerBase):
			return &ConnectionManager{s}
		default:
			return nil
		}
	}
}

var (
	avTransportBase, _       = SplitType(AVTransportType)
	contentDirectoryBase, _  = SplitType(ContentDirectoryType)
	renderingBase, _         = SplitType(RenderingType)
	connectionManagerBase, _ = SplitType(ConnectionManagerType)
)
