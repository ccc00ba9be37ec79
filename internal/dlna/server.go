// Package dlna exposes MediaServer and MediaRenderer devices as typed
// facades over their UPnP services.
package dlna

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tr1v3r/rctl/internal/didl"
	"github.com/tr1v3r/rctl/internal/upnp"
)

var (
	ErrNoService   = errors.New("device does not provide the required service")
	ErrNotFound    = errors.New("object not found")
	ErrNotPlayable = errors.New("object is not a playable item")
	ErrNoResource  = errors.New("item has no resource")
)

const pageSize = 200

// Page is one slice of a Browse or Search reply.
type Page struct {
	Objects        []didl.Object
	NumberReturned int
	TotalMatches   int
	UpdateID       int
}

// MediaServer browses and searches a ContentDirectory.
type MediaServer struct {
	Device *upnp.Device

	cd *upnp.ContentDirectory
}

func NewMediaServer(dev *upnp.Device) (*MediaServer, error) {
	cd, ok := upnp.ServiceOf[*upnp.ContentDirectory](dev)
	if !ok {
		return nil, fmt.Errorf("%s: ContentDirectory: %w", dev.FriendlyName, ErrNoService)
	}
	return &MediaServer{Device: dev, cd: cd}, nil
}

// wrap attaches device and action context to a parse failure of a reply.
func (s *MediaServer) wrap(action string, err error, args ...upnp.Arg) error {
	return &upnp.ActionError{Device: s.Device.FriendlyName, Service: s.cd.ServiceType, Action: action, Args: args, Err: err}
}

// BrowsePage returns one page of the direct children of containerID.
func (s *MediaServer) BrowsePage(ctx context.Context, containerID, filter string, start, count int) (*Page, error) {
	res, err := s.cd.Browse(ctx, upnp.BrowseRequest{
		ObjectID:       containerID,
		BrowseFlag:     upnp.BrowseDirectChildren,
		Filter:         filter,
		StartingIndex:  start,
		RequestedCount: count,
	})
	if err != nil {
		return nil, err
	}
	return s.page("Browse", res, upnp.Arg{Name: "ObjectID", Value: containerID}, upnp.Arg{Name: "StartingIndex", Value: strconv.Itoa(start)})
}

func (s *MediaServer) page(action string, res *upnp.BrowseResult, args ...upnp.Arg) (*Page, error) {
	objs, err := didl.ParseDocument([]byte(res.Result))
	if err != nil {
		return nil, s.wrap(action, err, args...)
	}
	return &Page{
		Objects:        objs,
		NumberReturned: res.NumberReturned,
		TotalMatches:   res.TotalMatches,
		UpdateID:       res.UpdateID,
	}, nil
}

// Browse returns every direct child of containerID, following pages until
// the server reports no more matches. Containers precede items.
func (s *MediaServer) Browse(ctx context.Context, containerID, filter string) ([]didl.Object, error) {
	return collect(func(start int) (*Page, error) {
		return s.BrowsePage(ctx, containerID, filter, start, pageSize)
	})
}

func collect(fetch func(start int) (*Page, error)) ([]didl.Object, error) {
	var containers, items []didl.Object
	for start := 0; ; {
		p, err := fetch(start)
		if err != nil {
			return nil, err
		}
		for _, o := range p.Objects {
			if didl.IsContainer(o) {
				containers = append(containers, o)
			} else {
				items = append(items, o)
			}
		}
		n := p.NumberReturned
		if n == 0 {
			n = len(p.Objects)
		}
		start += n
		if n == 0 || p.TotalMatches == 0 || start >= p.TotalMatches {
			break
		}
	}
	return append(containers, items...), nil
}

func (s *MediaServer) metadata(ctx context.Context, id string) (didl.Object, error) {
	res, err := s.cd.Browse(ctx, upnp.BrowseRequest{ObjectID: id, BrowseFlag: upnp.BrowseMetadata})
	if err != nil {
		return nil, err
	}
	p, err := s.page("Browse", res, upnp.Arg{Name: "ObjectID", Value: id}, upnp.Arg{Name: "BrowseFlag", Value: upnp.BrowseMetadata})
	if err != nil {
		return nil, err
	}
	if len(p.Objects) == 0 {
		return nil, s.wrap("Browse", ErrNotFound, upnp.Arg{Name: "ObjectID", Value: id})
	}
	return p.Objects[0], nil
}

// GetContainerInfo returns the metadata of container id.
func (s *MediaServer) GetContainerInfo(ctx context.Context, id string) (didl.Object, error) {
	o, err := s.metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !didl.IsContainer(o) {
		return nil, s.wrap("Browse", fmt.Errorf("%s is a %s: %w", id, o.Kind(), ErrNotFound), upnp.Arg{Name: "ObjectID", Value: id})
	}
	return o, nil
}

// GetItemInfo returns the metadata of item id.
func (s *MediaServer) GetItemInfo(ctx context.Context, id string) (didl.Object, error) {
	o, err := s.metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !didl.IsItem(o) {
		return nil, s.wrap("Browse", fmt.Errorf("%s is a %s: %w", id, o.Kind(), ErrNotFound), upnp.Arg{Name: "ObjectID", Value: id})
	}
	return o, nil
}

// SearchPage runs one Search request with raw criteria.
func (s *MediaServer) SearchPage(ctx context.Context, containerID, criteria string, start, count int) (*Page, error) {
	res, err := s.cd.Search(ctx, upnp.SearchRequest{
		ContainerID:    containerID,
		SearchCriteria: criteria,
		StartingIndex:  start,
		RequestedCount: count,
	})
	if err != nil {
		return nil, err
	}
	return s.page("Search", res, upnp.Arg{Name: "ContainerID", Value: containerID}, upnp.Arg{Name: "SearchCriteria", Value: criteria})
}

// Search returns every object below the root whose class derives from the
// class of T. Objects sharing a title are reported once, first one wins.
// T must be a variant pointer such as *didl.AudioItem; objects of a more
// derived variant are returned through their T part (see didl.As).
func Search[T didl.Object](ctx context.Context, s *MediaServer) ([]T, error) {
	var zero T
	if any(zero) == nil {
		return nil, errors.New("search needs a concrete object type")
	}
	criteria := fmt.Sprintf("upnp:class derivedfrom %q", didl.ClassOf(zero.Kind()))

	objs, err := collect(func(start int) (*Page, error) {
		return s.SearchPage(ctx, "0", criteria, start, pageSize)
	})
	if err != nil {
		return nil, err
	}

	var (
		out  []T
		seen = make(map[string]struct{}, len(objs))
	)
	for _, o := range objs {
		t, ok := didl.As[T](o)
		if !ok {
			continue
		}
		title := o.Common().Title
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
