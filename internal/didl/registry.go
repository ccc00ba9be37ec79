package didl

import (
	"errors"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/tr1v3r/rctl/internal/upnp"
)

// setter assigns one raw attribute or element value to a field of O.
type setter[O any] func(O, string) error

// table maps a qualified attribute or element name to its setter.
type table[O any] map[string]setter[O]

// with returns a copy of t extended by more. Keys in more win.
func (t table[O]) with(more table[O]) table[O] {
	out := make(table[O], len(t)+len(more))
	maps.Copy(out, t)
	maps.Copy(out, more)
	return out
}

// field builds a setter that parses the raw value with parse and stores it
// through ptr. Empty values leave the field untouched.
func field[O, T any](name string, parse func(string) (T, error), ptr func(O) *T) setter[O] {
	return func(o O, raw string) error {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		v, err := parse(raw)
		if err != nil {
			var pe *upnp.ParseError
			if errors.As(err, &pe) {
				return err
			}
			return upnp.FormatError(name, raw, err)
		}
		*ptr(o) = v
		return nil
	}
}

func text[O any](ptr func(O) *string) setter[O] {
	return func(o O, raw string) error {
		*ptr(o) = strings.TrimSpace(raw)
		return nil
	}
}

func parseInt(s string) (int, error)       { return strconv.Atoi(s) }
func parseInt64(s string) (int64, error)   { return strconv.ParseInt(s, 10, 64) }
func parseUint64(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func parseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 0)
	return uint(v), err
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

func audioOf(o Object) *AudioItem { return o.(interface{ audio() *AudioItem }).audio() }
func videoOf(o Object) *VideoItem { return o.(interface{ video() *VideoItem }).video() }
func imageOf(o Object) *ImageItem { return o.(interface{ image() *ImageItem }).image() }
func albumOf(o Object) *Album     { return o.(interface{ album() *Album }).album() }
func genreOf(o Object) *Genre     { return o.(interface{ genre() *Genre }).genre() }
func personOf(o Object) *Person   { return o.(interface{ person() *Person }).person() }

var resourceFields = table[*Resource]{
	"protocolInfo":    text(func(r *Resource) *string { return &r.ProtocolInfo }),
	"protection":      text(func(r *Resource) *string { return &r.Protection }),
	"importUri":       text(func(r *Resource) *string { return &r.ImportURI }),
	"size":            field("size", parseUint64, func(r *Resource) *uint64 { return &r.Size }),
	"duration":        field("duration", ParseDuration, func(r *Resource) *time.Duration { return &r.Duration }),
	"bitrate":         field("bitrate", parseUint, func(r *Resource) *uint { return &r.Bitrate }),
	"sampleFrequency": field("sampleFrequency", parseUint, func(r *Resource) *uint { return &r.SampleFrequency }),
	"bitsPerSample":   field("bitsPerSample", parseUint, func(r *Resource) *uint { return &r.BitsPerSample }),
	"nrAudioChannels": field("nrAudioChannels", parseUint, func(r *Resource) *uint { return &r.NrAudioChannels }),
	"colorDepth":      field("colorDepth", parseUint, func(r *Resource) *uint { return &r.ColorDepth }),
	"resolution":      field("resolution", ParseResolution, func(r *Resource) *Resolution { return &r.Resolution }),
}

var (
	baseFields = table[Object]{
		"id":         text(func(o Object) *string { return &o.Common().ID }),
		"parentID":   text(func(o Object) *string { return &o.Common().ParentID }),
		"restricted": field("restricted", parseBool, func(o Object) *bool { return &o.Common().Restricted }),
		"dc:title":   text(func(o Object) *string { return &o.Common().Title }),
		"dc:creator": text(func(o Object) *string { return &o.Common().Creator }),
	}

	itemFields = baseFields.with(table[Object]{
		"refID": text(func(o Object) *string { return &ItemOf(o).RefID }),
	})

	audioItemFields = itemFields.with(table[Object]{
		"upnp:genre":           text(func(o Object) *string { return &audioOf(o).Genre }),
		"dc:description":       text(func(o Object) *string { return &audioOf(o).Description }),
		"upnp:longDescription": text(func(o Object) *string { return &audioOf(o).LongDescription }),
		"dc:publisher":         text(func(o Object) *string { return &audioOf(o).Publisher }),
		"dc:language":          text(func(o Object) *string { return &audioOf(o).Language }),
		"dc:rights":            text(func(o Object) *string { return &audioOf(o).Rights }),
	})

	musicTrackFields = audioItemFields.with(table[Object]{
		"upnp:artist":              text(func(o Object) *string { return &o.(*MusicTrack).Artist }),
		"upnp:album":               text(func(o Object) *string { return &o.(*MusicTrack).Album }),
		"upnp:originalTrackNumber": field("upnp:originalTrackNumber", parseInt, func(o Object) *int { return &o.(*MusicTrack).OriginalTrackNumber }),
		"dc:date":                  text(func(o Object) *string { return &o.(*MusicTrack).Date }),
		"upnp:albumArtURI":         text(func(o Object) *string { return &o.(*MusicTrack).AlbumArtURI }),
	})

	audioBroadcastFields = audioItemFields.with(table[Object]{
		"upnp:region":         text(func(o Object) *string { return &o.(*AudioBroadcast).Region }),
		"upnp:radioCallSign":  text(func(o Object) *string { return &o.(*AudioBroadcast).RadioCallSign }),
		"upnp:radioStationID": text(func(o Object) *string { return &o.(*AudioBroadcast).RadioStationID }),
		"upnp:channelNr":      field("upnp:channelNr", parseInt, func(o Object) *int { return &o.(*AudioBroadcast).ChannelNr }),
	})

	videoItemFields = itemFields.with(table[Object]{
		"upnp:genre":           text(func(o Object) *string { return &videoOf(o).Genre }),
		"dc:description":       text(func(o Object) *string { return &videoOf(o).Description }),
		"upnp:longDescription": text(func(o Object) *string { return &videoOf(o).LongDescription }),
		"upnp:producer":        text(func(o Object) *string { return &videoOf(o).Producer }),
		"upnp:rating":          text(func(o Object) *string { return &videoOf(o).Rating }),
		"upnp:actor":           text(func(o Object) *string { return &videoOf(o).Actor }),
		"upnp:director":        text(func(o Object) *string { return &videoOf(o).Director }),
		"dc:publisher":         text(func(o Object) *string { return &videoOf(o).Publisher }),
		"dc:language":          text(func(o Object) *string { return &videoOf(o).Language }),
	})

	movieFields = videoItemFields.with(table[Object]{
		"upnp:storageMedium": text(func(o Object) *string { return &o.(*Movie).StorageMedium }),
		"upnp:DVDRegionCode": field("upnp:DVDRegionCode", parseInt, func(o Object) *int { return &o.(*Movie).DVDRegionCode }),
	})

	imageItemFields = itemFields.with(table[Object]{
		"dc:description":       text(func(o Object) *string { return &imageOf(o).Description }),
		"upnp:longDescription": text(func(o Object) *string { return &imageOf(o).LongDescription }),
		"upnp:storageMedium":   text(func(o Object) *string { return &imageOf(o).StorageMedium }),
		"upnp:rating":          text(func(o Object) *string { return &imageOf(o).Rating }),
		"dc:date":              text(func(o Object) *string { return &imageOf(o).Date }),
		"dc:rights":            text(func(o Object) *string { return &imageOf(o).Rights }),
	})

	photoFields = imageItemFields.with(table[Object]{
		"upnp:album": text(func(o Object) *string { return &o.(*Photo).Album }),
	})

	playlistItemFields = itemFields.with(table[Object]{
		"upnp:artist":    text(func(o Object) *string { return &o.(*PlaylistItem).Artist }),
		"upnp:genre":     text(func(o Object) *string { return &o.(*PlaylistItem).Genre }),
		"dc:description": text(func(o Object) *string { return &o.(*PlaylistItem).Description }),
		"dc:date":        text(func(o Object) *string { return &o.(*PlaylistItem).Date }),
		"dc:language":    text(func(o Object) *string { return &o.(*PlaylistItem).Language }),
	})

	containerFields = baseFields.with(table[Object]{
		"childCount": field("childCount", parseInt, func(o Object) *int { return &ContainerOf(o).ChildCount }),
		"searchable": field("searchable", parseBool, func(o Object) *bool { return &ContainerOf(o).Searchable }),
	})

	albumFields = containerFields.with(table[Object]{
		"upnp:storageMedium":   text(func(o Object) *string { return &albumOf(o).StorageMedium }),
		"dc:description":       text(func(o Object) *string { return &albumOf(o).Description }),
		"upnp:longDescription": text(func(o Object) *string { return &albumOf(o).LongDescription }),
		"dc:publisher":         text(func(o Object) *string { return &albumOf(o).Publisher }),
		"dc:contributor":       text(func(o Object) *string { return &albumOf(o).Contributor }),
		"dc:date":              text(func(o Object) *string { return &albumOf(o).Date }),
		"dc:rights":            text(func(o Object) *string { return &albumOf(o).Rights }),
	})

	musicAlbumFields = albumFields.with(table[Object]{
		"upnp:artist":      text(func(o Object) *string { return &o.(*MusicAlbum).Artist }),
		"upnp:genre":       text(func(o Object) *string { return &o.(*MusicAlbum).Genre }),
		"upnp:producer":    text(func(o Object) *string { return &o.(*MusicAlbum).Producer }),
		"upnp:albumArtURI": text(func(o Object) *string { return &o.(*MusicAlbum).AlbumArtURI }),
		"upnp:toc":         text(func(o Object) *string { return &o.(*MusicAlbum).TOC }),
	})

	genreFields = containerFields.with(table[Object]{
		"dc:description":       text(func(o Object) *string { return &genreOf(o).Description }),
		"upnp:longDescription": text(func(o Object) *string { return &genreOf(o).LongDescription }),
	})

	personFields = containerFields.with(table[Object]{
		"dc:language": text(func(o Object) *string { return &personOf(o).Language }),
	})

	musicArtistFields = personFields.with(table[Object]{
		"upnp:genre":                text(func(o Object) *string { return &o.(*MusicArtist).Genre }),
		"upnp:artistDiscographyURI": text(func(o Object) *string { return &o.(*MusicArtist).ArtistDiscographyURI }),
	})

	playlistContainerFields = containerFields.with(table[Object]{
		"upnp:artist":    text(func(o Object) *string { return &o.(*PlaylistContainer).Artist }),
		"upnp:genre":     text(func(o Object) *string { return &o.(*PlaylistContainer).Genre }),
		"dc:description": text(func(o Object) *string { return &o.(*PlaylistContainer).Description }),
		"dc:date":        text(func(o Object) *string { return &o.(*PlaylistContainer).Date }),
	})

	storageFolderFields = containerFields.with(table[Object]{
		"upnp:storageUsed": field("upnp:storageUsed", parseInt64, func(o Object) *int64 { return &o.(*StorageFolder).StorageUsed }),
	})
)

type registration struct {
	class  string
	kind   Kind
	create func() Object
	fields table[Object]
}

var registry = []registration{
	{"object.item", KindItem, func() Object { return new(Item) }, itemFields},
	{"object.item.audioItem", KindAudioItem, func() Object { return new(AudioItem) }, audioItemFields},
	{"object.item.audioItem.musicTrack", KindMusicTrack, func() Object { return new(MusicTrack) }, musicTrackFields},
	{"object.item.audioItem.audioBroadcast", KindAudioBroadcast, func() Object { return new(AudioBroadcast) }, audioBroadcastFields},
	{"object.item.videoItem", KindVideoItem, func() Object { return new(VideoItem) }, videoItemFields},
	{"object.item.videoItem.movie", KindMovie, func() Object { return new(Movie) }, movieFields},
	{"object.item.imageItem", KindImageItem, func() Object { return new(ImageItem) }, imageItemFields},
	{"object.item.imageItem.photo", KindPhoto, func() Object { return new(Photo) }, photoFields},
	{"object.item.playlistItem", KindPlaylistItem, func() Object { return new(PlaylistItem) }, playlistItemFields},

	{"object.container", KindContainer, func() Object { return new(Container) }, containerFields},
	{"object.container.album", KindAlbum, func() Object { return new(Album) }, albumFields},
	{"object.container.album.musicAlbum", KindMusicAlbum, func() Object { return new(MusicAlbum) }, musicAlbumFields},
	{"object.container.album.photoAlbum", KindPhotoAlbum, func() Object { return new(PhotoAlbum) }, albumFields},
	{"object.container.genre", KindGenre, func() Object { return new(Genre) }, genreFields},
	{"object.container.genre.musicGenre", KindMusicGenre, func() Object { return new(MusicGenre) }, genreFields},
	{"object.container.person", KindPerson, func() Object { return new(Person) }, personFields},
	{"object.container.person.musicArtist", KindMusicArtist, func() Object { return new(MusicArtist) }, musicArtistFields},
	{"object.container.playlistContainer", KindPlaylistContainer, func() Object { return new(PlaylistContainer) }, playlistContainerFields},
	{"object.container.storageFolder", KindStorageFolder, func() Object { return new(StorageFolder) }, storageFolderFields},
}

// lookup returns the registration with the longest class prefix of class,
// compared case-insensitively and on dot boundaries.
func lookup(class string) (*registration, bool) {
	c := strings.ToLower(strings.TrimSpace(class))

	var best *registration
	for i := range registry {
		r := &registry[i]
		p := strings.ToLower(r.class)
		if !strings.HasPrefix(c, p) || (len(c) > len(p) && c[len(p)] != '.') {
			continue
		}
		if best == nil || len(r.class) > len(best.class) {
			best = r
		}
	}
	return best, best != nil
}

// ClassOf returns the upnp:class registered for k.
func ClassOf(k Kind) string {
	for _, r := range registry {
		if r.kind == k {
			return r.class
		}
	}
	return ""
}

func (k Kind) String() string {
	c := ClassOf(k)
	if i := strings.LastIndex(c, "."); i >= 0 {
		return c[i+1:]
	}
	return "unknown"
}
