package upnp

import (
	"context"
	"strconv"
)

// ContentDirectory wraps urn:schemas-upnp-org:service:ContentDirectory.
type ContentDirectory struct{ *Service }

func (s *ContentDirectory) Descriptor() *Service { return s.Service }

const (
	BrowseMetadata       = "BrowseMetadata"
	BrowseDirectChildren = "BrowseDirectChildren"
)

// BrowseResult is the raw reply of Browse and Search. Result is a
// DIDL-Lite document.
type BrowseResult struct {
	Result         string
	NumberReturned int
	TotalMatches   int
	UpdateID       int
}

// BrowseRequest holds the Browse arguments.
type BrowseRequest struct {
	ObjectID       string
	BrowseFlag     string
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   string
}

func (s *ContentDirectory) Browse(ctx context.Context, req BrowseRequest) (*BrowseResult, error) {
	if req.Filter == "" {
		req.Filter = "*"
	}
	res, err := s.Invoke(ctx, "Browse",
		Arg{Name: "ObjectID", Value: req.ObjectID},
		Arg{Name: "BrowseFlag", Value: req.BrowseFlag},
		Arg{Name: "Filter", Value: req.Filter},
		Arg{Name: "StartingIndex", Value: strconv.Itoa(req.StartingIndex)},
		Arg{Name: "RequestedCount", Value: strconv.Itoa(req.RequestedCount)},
		Arg{Name: "SortCriteria", Value: req.SortCriteria},
	)
	if err != nil {
		return nil, err
	}
	return browseResult(res)
}

// SearchRequest holds the Search arguments.
type SearchRequest struct {
	ContainerID    string
	SearchCriteria string
	Filter         string
	StartingIndex  int
	RequestedCount int
	SortCriteria   string
}

func (s *ContentDirectory) Search(ctx context.Context, req SearchRequest) (*BrowseResult, error) {
	if req.Filter == "" {
		req.Filter = "*"
	}
	res, err := s.Invoke(ctx, "Search",
		Arg{Name: "ContainerID", Value: req.ContainerID},
		Arg{Name: "SearchCriteria", Value: req.SearchCriteria},
		Arg{Name: "Filter", Value: req.Filter},
		Arg{Name: "StartingIndex", Value: strconv.Itoa(req.StartingIndex)},
		Arg{Name: "RequestedCount", Value: strconv.Itoa(req.RequestedCount)},
		Arg{Name: "SortCriteria", Value: req.SortCriteria},
	)
	if err != nil {
		return nil, err
	}
	return browseResult(res)
}

func browseResult(res Result) (*BrowseResult, error) {
	out := &BrowseResult{Result: res.Get("Result")}
	var err error
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"NumberReturned", &out.NumberReturned},
		{"TotalMatches", &out.TotalMatches},
		{"UpdateID", &out.UpdateID},
	} {
		if _, ok := res.Lookup(f.name); !ok {
			continue
		}
		if *f.dst, err = res.Int(f.name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
