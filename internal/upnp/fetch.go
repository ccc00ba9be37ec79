package upnp

import (
	"context"
	"net/url"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/rctl/internal/monitoring"
)

// Fetcher downloads device descriptions and binds their services.
type Fetcher struct {
	Client  *Client
	Factory ServiceFactory
}

// NewFetcher returns a Fetcher binding the default AV services to client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{Client: client, Factory: DefaultServices(client)}
}

// Fetch retrieves and parses the description at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (dev *Device, err error) {
	defer func() { monitoring.GetMetrics().RecordDescriptionFetch(err) }()

	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return nil, FormatError("LOCATION", location, err)
	}

	data, err := f.Client.Get(ctx, location)
	if err != nil {
		return nil, err
	}
	if dev, err = ParseDescription(data, location, u.Host, f.Factory); err != nil {
		return nil, err
	}
	log.CtxDebug(ctx, "fetched description %s: %s services=%d", location, dev, len(dev.Services))
	return dev, nil
}
