// Package didl parses DIDL-Lite documents into typed media objects.
//
// Every object is one of a closed set of variants. The variant is picked by
// the longest registered upnp:class prefix; objects whose class matches no
// registration are dropped.
package didl

import "strings"

// Kind identifies an object variant.
type Kind int

const (
	KindItem Kind = iota
	KindAudioItem
	KindMusicTrack
	KindAudioBroadcast
	KindVideoItem
	KindMovie
	KindImageItem
	KindPhoto
	KindPlaylistItem

	KindContainer
	KindAlbum
	KindMusicAlbum
	KindPhotoAlbum
	KindGenre
	KindMusicGenre
	KindPerson
	KindMusicArtist
	KindPlaylistContainer
	KindStorageFolder
)

// Object is implemented by every variant.
type Object interface {
	Kind() Kind
	Common() *Base
}

// Base holds the fields shared by items and containers.
type Base struct {
	ID         string
	ParentID   string // "-1" for the root container
	Title      string
	Creator    string
	Class      string
	Restricted bool
}

func (b *Base) Common() *Base { return b }

// IsItem reports whether o is a playable leaf.
func IsItem(o Object) bool {
	_, ok := o.(interface{ AsItem() *Item })
	return ok
}

// IsContainer reports whether o is browsable.
func IsContainer(o Object) bool {
	_, ok := o.(interface{ AsContainer() *Container })
	return ok
}

// IsImage reports whether o is an image item.
func IsImage(o Object) bool {
	_, ok := o.(interface{ image() *ImageItem })
	return ok
}

// ItemOf returns the item part of o, or nil for containers.
func ItemOf(o Object) *Item {
	if it, ok := o.(interface{ AsItem() *Item }); ok {
		return it.AsItem()
	}
	return nil
}

// ContainerOf returns the container part of o, or nil for items.
func ContainerOf(o Object) *Container {
	if c, ok := o.(interface{ AsContainer() *Container }); ok {
		return c.AsContainer()
	}
	return nil
}

// DerivesFrom reports whether the class of k equals the class of base or
// extends it by further segments.
func DerivesFrom(k, base Kind) bool {
	c, b := ClassOf(k), ClassOf(base)
	return c == b || (b != "" && strings.HasPrefix(c, b+"."))
}

// As returns o viewed as T when the variant of o is T or derives from it.
// A derived object is returned through its embedded T part, so the result
// shares fields with o and keeps the received Class.
func As[T Object](o Object) (T, bool) {
	if t, ok := o.(T); ok {
		return t, true
	}
	var zero T
	if o == nil || any(zero) == nil || !DerivesFrom(o.Kind(), zero.Kind()) {
		return zero, false
	}

	var view Object
	switch any(zero).(type) {
	case *Item:
		view = ItemOf(o)
	case *Container:
		view = ContainerOf(o)
	case *AudioItem:
		view = audioOf(o)
	case *VideoItem:
		view = videoOf(o)
	case *ImageItem:
		view = imageOf(o)
	case *Album:
		view = albumOf(o)
	case *Genre:
		view = genreOf(o)
	case *Person:
		view = personOf(o)
	default:
		return zero, false
	}
	t, ok := view.(T)
	return t, ok
}

// Item is object.item.
type Item struct {
	Base
	RefID     string
	Resources []Resource
}

func (*Item) Kind() Kind      { return KindItem }
func (i *Item) AsItem() *Item { return i }

type AudioItem struct {
	Item
	Genre           string
	Description     string
	LongDescription string
	Publisher       string
	Language        string
	Rights          string
}

func (*AudioItem) Kind() Kind          { return KindAudioItem }
func (a *AudioItem) audio() *AudioItem { return a }

type MusicTrack struct {
	AudioItem
	Artist              string
	Album               string
	OriginalTrackNumber int
	Date                string
	AlbumArtURI         string
}

func (*MusicTrack) Kind() Kind { return KindMusicTrack }

type AudioBroadcast struct {
	AudioItem
	Region         string
	RadioCallSign  string
	RadioStationID string
	ChannelNr      int
}

func (*AudioBroadcast) Kind() Kind { return KindAudioBroadcast }

type VideoItem struct {
	Item
	Genre           string
	Description     string
	LongDescription string
	Producer        string
	Rating          string
	Actor           string
	Director        string
	Publisher       string
	Language        string
}

func (*VideoItem) Kind() Kind          { return KindVideoItem }
func (v *VideoItem) video() *VideoItem { return v }

type Movie struct {
	VideoItem
	StorageMedium string
	DVDRegionCode int
}

func (*Movie) Kind() Kind { return KindMovie }

type ImageItem struct {
	Item
	Description     string
	LongDescription string
	StorageMedium   string
	Rating          string
	Date            string
	Rights          string
}

func (*ImageItem) Kind() Kind          { return KindImageItem }
func (i *ImageItem) image() *ImageItem { return i }

type Photo struct {
	ImageItem
	Album string
}

func (*Photo) Kind() Kind { return KindPhoto }

type PlaylistItem struct {
	Item
	Artist      string
	Genre       string
	Description string
	Date        string
	Language    string
}

func (*PlaylistItem) Kind() Kind { return KindPlaylistItem }

// Container is object.container.
type Container struct {
	Base
	ChildCount int
	Searchable bool
}

func (*Container) Kind() Kind                { return KindContainer }
func (c *Container) AsContainer() *Container { return c }

type Album struct {
	Container
	StorageMedium   string
	Description     string
	LongDescription string
	Publisher       string
	Contributor     string
	Date            string
	Rights          string
}

func (*Album) Kind() Kind      { return KindAlbum }
func (a *Album) album() *Album { return a }

type MusicAlbum struct {
	Album
	Artist      string
	Genre       string
	Producer    string
	AlbumArtURI string
	TOC         string
}

func (*MusicAlbum) Kind() Kind { return KindMusicAlbum }

type PhotoAlbum struct {
	Album
}

func (*PhotoAlbum) Kind() Kind { return KindPhotoAlbum }

type Genre struct {
	Container
	Description     string
	LongDescription string
}

func (*Genre) Kind() Kind      { return KindGenre }
func (g *Genre) genre() *Genre { return g }

type MusicGenre struct {
	Genre
}

func (*MusicGenre) Kind() Kind { return KindMusicGenre }

type Person struct {
	Container
	Language string
}

func (*Person) Kind() Kind        { return KindPerson }
func (p *Person) person() *Person { return p }

type MusicArtist struct {
	Person
	Genre                string
	ArtistDiscographyURI string
}

func (*MusicArtist) Kind() Kind { return KindMusicArtist }

type PlaylistContainer struct {
	Container
	Artist      string
	Genre       string
	Description string
	Date        string
}

func (*PlaylistContainer) Kind() Kind { return KindPlaylistContainer }

type StorageFolder struct {
	Container
	StorageUsed int64
}

func (*StorageFolder) Kind() Kind { return KindStorageFolder }
