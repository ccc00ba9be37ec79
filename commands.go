package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tr1v3r/rctl/internal/didl"
	"github.com/tr1v3r/rctl/internal/discovery"
	"github.com/tr1v3r/rctl/internal/dlna"
	"github.com/tr1v3r/rctl/internal/upnp"
)

var errUsage = errors.New("bad arguments")

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "print devices as they appear and disappear",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "every", Usage: "repeat the M-SEARCH at this period, 0 searches once"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := newEngine(loadConfig(cmd))
			defer eng.Close()

			sub := eng.Subscribe()
			defer sub.Cancel()
			if err := eng.Start(ctx); err != nil {
				return err
			}

			var tick <-chan time.Time
			if every := cmd.Duration("every"); every > 0 {
				t := time.NewTicker(every)
				defer t.Stop()
				tick = t.C
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick:
					go func() { _ = eng.Search(ctx) }()
				case ev, ok := <-sub.Events():
					if !ok {
						return nil
					}
					if ev.Device != nil {
						fmt.Printf("%-9s %s\t%s\n", ev.Type, ev.USN, ev.Device)
					} else {
						fmt.Printf("%-9s %s\n", ev.Type, ev.USN)
					}
				}
			}
		},
	}
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "list the devices answering one search window",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := loadConfig(cmd)
			eng := newEngine(cfg)
			defer eng.Close()

			if err := settle(ctx, eng, cfg.SearchWindow); err != nil {
				return err
			}
			devs := unique(eng.Find(func(*upnp.Device) bool { return true }))
			if len(devs) == 0 {
				fmt.Println("no devices found")
				return nil
			}
			for _, d := range devs {
				fmt.Printf("%-24s %-14s %s  %s\n", d.FriendlyName, shortType(d.DeviceType), d.UDN, d.Address)
			}
			return nil
		},
	}
}

func browseCommand() *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "list the children of a media server container",
		ArgsUsage: "<server> [container-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 {
				return fmt.Errorf("browse: server name required: %w", errUsage)
			}
			id := cmd.Args().Get(1)
			if id == "" {
				id = "0"
			}
			return withServer(ctx, cmd, cmd.Args().First(), func(srv *dlna.MediaServer) error {
				objs, err := srv.Browse(ctx, id, "*")
				if err != nil {
					return err
				}
				for _, o := range objs {
					printObject(o)
				}
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "list every object of a kind on a media server",
		ArgsUsage: "<server> <track|audio|video|movie|image|photo|album|artist|genre|playlist>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 2 {
				return fmt.Errorf("search: server and kind required: %w", errUsage)
			}
			kind := strings.ToLower(cmd.Args().Get(1))
			return withServer(ctx, cmd, cmd.Args().First(), func(srv *dlna.MediaServer) error {
				var (
					objs []didl.Object
					err  error
				)
				switch kind {
				case "track":
					objs, err = searchAs[*didl.MusicTrack](ctx, srv)
				case "audio":
					objs, err = searchAs[*didl.AudioItem](ctx, srv)
				case "video":
					objs, err = searchAs[*didl.VideoItem](ctx, srv)
				case "movie":
					objs, err = searchAs[*didl.Movie](ctx, srv)
				case "image":
					objs, err = searchAs[*didl.ImageItem](ctx, srv)
				case "photo":
					objs, err = searchAs[*didl.Photo](ctx, srv)
				case "album":
					objs, err = searchAs[*didl.MusicAlbum](ctx, srv)
				case "artist":
					objs, err = searchAs[*didl.MusicArtist](ctx, srv)
				case "genre":
					objs, err = searchAs[*didl.MusicGenre](ctx, srv)
				case "playlist":
					objs, err = searchAs[*didl.PlaylistContainer](ctx, srv)
				default:
					return fmt.Errorf("search: unknown kind %q: %w", kind, errUsage)
				}
				if err != nil {
					return err
				}
				for _, o := range objs {
					printObject(o)
				}
				return nil
			})
		},
	}
}

func searchAs[T didl.Object](ctx context.Context, srv *dlna.MediaServer) ([]didl.Object, error) {
	found, err := dlna.Search[T](ctx, srv)
	if err != nil {
		return nil, err
	}
	out := make([]didl.Object, len(found))
	for i, o := range found {
		out[i] = o
	}
	return out, nil
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "load a URL or a media server item into a renderer and start playback",
		ArgsUsage: "<renderer> <url|object-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "treat the argument as an object id on this media server"},
			&cli.StringFlag{Name: "title", Usage: "title sent with a bare URL"},
			&cli.StringFlag{Name: "mime", Usage: "mime type of a bare URL, guessed from its extension when empty"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 2 {
				return fmt.Errorf("play: renderer and media required: %w", errUsage)
			}
			target := cmd.Args().Get(1)

			return withDevices(ctx, cmd, func(eng *discovery.Engine) error {
				dev, err := resolve(eng, cmd.Args().First(), upnp.MediaRendererType)
				if err != nil {
					return err
				}
				r, err := dlna.NewMediaRenderer(dev)
				if err != nil {
					return err
				}

				if name := cmd.String("server"); name != "" {
					sdev, err := resolve(eng, name, upnp.MediaServerType)
					if err != nil {
						return err
					}
					srv, err := dlna.NewMediaServer(sdev)
					if err != nil {
						return err
					}
					obj, err := srv.GetItemInfo(ctx, target)
					if err != nil {
						return err
					}
					if err := r.Open(ctx, obj); err != nil {
						return err
					}
				} else if err := openURL(ctx, r, target, cmd.String("title"), cmd.String("mime")); err != nil {
					return err
				}

				if err := r.Play(ctx); err != nil {
					return err
				}
				fmt.Printf("playing on %s\n", dev.FriendlyName)
				return nil
			})
		},
	}
}

// openURL loads uri with metadata describing it as an item of the kind its
// mime type suggests.
func openURL(ctx context.Context, r *dlna.MediaRenderer, uri, title, mimeType string) error {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(path.Ext(strings.SplitN(uri, "?", 2)[0]))
	}
	if title == "" {
		title = path.Base(uri)
	}
	if mimeType == "" {
		return r.OpenURL(ctx, uri, "")
	}
	if ok, err := r.Supports(ctx, mimeType); err == nil && !ok {
		return fmt.Errorf("%s does not accept %s", r.Device.FriendlyName, mimeType)
	}

	res := didl.Resource{URI: uri, ProtocolInfo: "http-get:*:" + mimeType + ":*"}
	item := didl.Item{Base: didl.Base{ID: "0", ParentID: "-1", Title: title, Restricted: true}, Resources: []didl.Resource{res}}

	var obj didl.Object
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		obj = &didl.MusicTrack{AudioItem: didl.AudioItem{Item: item}}
	case strings.HasPrefix(mimeType, "video/"):
		obj = &didl.VideoItem{Item: item}
	case strings.HasPrefix(mimeType, "image/"):
		obj = &didl.Photo{ImageItem: didl.ImageItem{Item: item}}
	default:
		obj = &item
	}
	return r.Open(ctx, obj)
}

func transportCommand(name, usage string, do func(*dlna.MediaRenderer, context.Context) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<renderer>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRenderer(ctx, cmd, func(r *dlna.MediaRenderer) error {
				return do(r, ctx)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show the transport state and position of a renderer",
		ArgsUsage: "<renderer>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "keep polling until interrupted"},
			&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "poll period with --watch"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRenderer(ctx, cmd, func(r *dlna.MediaRenderer) error {
				if !cmd.Bool("watch") {
					state, err := r.GetCurrentState(ctx)
					if err != nil {
						return err
					}
					pos, err := r.GetCurrentPosition(ctx)
					printStatus(dlna.Status{State: state, Position: pos, Err: err})
					if info, err := r.GetMediaInfo(ctx); err == nil && info.CurrentURI != "" {
						fmt.Printf("uri: %s\n", info.CurrentURI)
					}
					return nil
				}

				if d := cmd.Duration("interval"); d > 0 {
					r.PollInterval = d
				}
				updates, stop := r.Watch()
				defer stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case st, ok := <-updates:
						if !ok {
							return nil
						}
						printStatus(st)
					}
				}
			})
		},
	}
}

func volumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "volume",
		Usage:     "show or set the volume of a renderer",
		ArgsUsage: "<renderer> [0-100|mute|unmute]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			arg := strings.ToLower(cmd.Args().Get(1))
			return withRenderer(ctx, cmd, func(r *dlna.MediaRenderer) error {
				switch arg {
				case "":
					v, err := r.Volume(ctx)
					if err != nil {
						return err
					}
					muted, err := r.Mute(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("volume %d muted=%t\n", v, muted)
					return nil
				case "mute", "unmute":
					return r.SetMute(ctx, arg == "mute")
				}
				v, err := strconv.Atoi(arg)
				if err != nil || v < 0 || v > 100 {
					return fmt.Errorf("volume: %q is not a level: %w", arg, errUsage)
				}
				return r.SetVolume(ctx, v)
			})
		},
	}
}

// withDevices runs fn once discovery has settled for one search window.
func withDevices(ctx context.Context, cmd *cli.Command, fn func(*discovery.Engine) error) error {
	cfg := loadConfig(cmd)
	eng := newEngine(cfg)
	defer eng.Close()

	if err := settle(ctx, eng, cfg.SearchWindow); err != nil {
		return err
	}
	return fn(eng)
}

func withServer(ctx context.Context, cmd *cli.Command, name string, fn func(*dlna.MediaServer) error) error {
	return withDevices(ctx, cmd, func(eng *discovery.Engine) error {
		dev, err := resolve(eng, name, upnp.MediaServerType)
		if err != nil {
			return err
		}
		srv, err := dlna.NewMediaServer(dev)
		if err != nil {
			return err
		}
		return fn(srv)
	})
}

func withRenderer(ctx context.Context, cmd *cli.Command, fn func(*dlna.MediaRenderer) error) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("%s: renderer name required: %w", cmd.Name, errUsage)
	}
	return withDevices(ctx, cmd, func(eng *discovery.Engine) error {
		dev, err := resolve(eng, cmd.Args().First(), upnp.MediaRendererType)
		if err != nil {
			return err
		}
		r, err := dlna.NewMediaRenderer(dev)
		if err != nil {
			return err
		}
		return fn(r)
	})
}

// resolve picks the single device of deviceType matching name. An empty
// name is accepted when exactly one such device is known.
func resolve(eng *discovery.Engine, name, deviceType string) (*upnp.Device, error) {
	isType := discovery.ByType(deviceType)
	match := func(d *upnp.Device) bool { return isType(d) }
	if name != "" {
		byName := discovery.ByName(name)
		match = func(d *upnp.Device) bool { return isType(d) && byName(d) }
	}

	devs := unique(eng.Find(match))
	switch {
	case len(devs) == 1:
		return devs[0], nil
	case len(devs) == 0:
		return nil, fmt.Errorf("no %s named %q found", shortType(deviceType), name)
	default:
		names := make([]string, len(devs))
		for i, d := range devs {
			names[i] = d.FriendlyName + " " + d.UDN
		}
		return nil, fmt.Errorf("%q matches %d devices: %s", name, len(devs), strings.Join(names, ", "))
	}
}

// unique collapses the per-USN entries of one device and sorts by name.
func unique(devs []*upnp.Device) []*upnp.Device {
	seen := make(map[string]struct{}, len(devs))
	out := devs[:0]
	for _, d := range devs {
		if _, ok := seen[d.UDN]; ok {
			continue
		}
		seen[d.UDN] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FriendlyName != out[j].FriendlyName {
			return out[i].FriendlyName < out[j].FriendlyName
		}
		return out[i].UDN < out[j].UDN
	})
	return out
}

func shortType(t string) string {
	typ, _ := upnp.SplitType(t)
	return typ[strings.LastIndex(typ, ":")+1:]
}

func printObject(o didl.Object) {
	b := o.Common()
	kind := o.Kind().String()
	if b.Class != "" {
		kind = b.Class[strings.LastIndex(b.Class, ".")+1:]
	}
	line := fmt.Sprintf("%-18s %-24s %s", kind, b.ID, b.Title)
	if res := dlna.SelectResource(o); res != nil {
		line += "\t" + res.URI
	}
	fmt.Println(line)
}

func printStatus(st dlna.Status) {
	if st.Err != nil {
		fmt.Printf("%s (error: %v)\n", st.State, st.Err)
		return
	}
	if st.Position == nil {
		fmt.Println(st.State)
		return
	}
	fmt.Printf("%s track %d %s/%s\n", st.State, st.Position.Track,
		didl.FormatDuration(st.Position.Elapsed), didl.FormatDuration(st.Position.Duration))
}
