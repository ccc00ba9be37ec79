package didl

import (
	"encoding/xml"
	"strconv"
)

type metaDocument struct {
	XMLName   xml.Name   `xml:"urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/ DIDL-Lite"`
	XMLNSDC   string     `xml:"xmlns:dc,attr"`
	XMLNSUPnP string     `xml:"xmlns:upnp,attr"`
	XMLNSDLNA string     `xml:"xmlns:dlna,attr"`
	Items     []metaItem `xml:"item"`
}

type metaItem struct {
	ID         string `xml:"id,attr"`
	ParentID   string `xml:"parentID,attr"`
	Restricted string `xml:"restricted,attr"`

	Title       string    `xml:"dc:title"`
	Creator     string    `xml:"dc:creator,omitempty"`
	Class       string    `xml:"upnp:class"`
	Artist      string    `xml:"upnp:artist,omitempty"`
	Album       string    `xml:"upnp:album,omitempty"`
	AlbumArtURI string    `xml:"upnp:albumArtURI,omitempty"`
	Res         []metaRes `xml:"res"`
}

type metaRes struct {
	ProtocolInfo string `xml:"protocolInfo,attr"`
	Size         string `xml:"size,attr,omitempty"`
	Duration     string `xml:"duration,attr,omitempty"`
	Resolution   string `xml:"resolution,attr,omitempty"`
	URI          string `xml:",chardata"`
}

// Metadata renders a single-item DIDL-Lite document describing obj played
// from res, as sent in CurrentURIMetaData.
func Metadata(obj Object, res *Resource) (string, error) {
	b := obj.Common()
	it := metaItem{
		ID:         b.ID,
		ParentID:   b.ParentID,
		Restricted: "1",
		Title:      b.Title,
		Creator:    b.Creator,
		Class:      b.Class,
	}
	if it.Class == "" {
		it.Class = ClassOf(obj.Kind())
	}
	if !b.Restricted {
		it.Restricted = "0"
	}

	switch o := obj.(type) {
	case *MusicTrack:
		it.Artist, it.Album, it.AlbumArtURI = o.Artist, o.Album, o.AlbumArtURI
	case *Photo:
		it.Album = o.Album
	}

	if res != nil {
		r := metaRes{ProtocolInfo: res.ProtocolInfo, URI: res.URI}
		if res.Size > 0 {
			r.Size = strconv.FormatUint(res.Size, 10)
		}
		if res.Duration > 0 {
			r.Duration = FormatDuration(res.Duration)
		}
		if res.Resolution.Width > 0 && res.Resolution.Height > 0 {
			r.Resolution = res.Resolution.String()
		}
		it.Res = append(it.Res, r)
	}

	doc := metaDocument{
		XMLNSDC:   NamespaceDC,
		XMLNSUPnP: NamespaceUPnP,
		XMLNSDLNA: NamespaceDLNA,
		Items:     []metaItem{it},
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
