package didl

import (
	"encoding/xml"
	"strings"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/rctl/internal/upnp"
)

const (
	NamespaceDIDL = "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
	NamespaceDC   = "http://purl.org/dc/elements/1.1/"
	NamespaceUPnP = "urn:schemas-upnp-org:metadata-1-0/upnp/"
	NamespaceDLNA = "urn:schemas-dlna-org:metadata-1-0/"
)

// node is a generic XML element. Namespaces are kept in XMLName.Space and
// resolved by qualify.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// qualify maps a decoded name to the "prefix:local" form used by the field
// tables. Undeclared prefixes arrive verbatim in Space and pass through.
func qualify(n xml.Name) string {
	switch n.Space {
	case "", NamespaceDIDL:
		return n.Local
	case NamespaceDC:
		return "dc:" + n.Local
	case NamespaceUPnP:
		return "upnp:" + n.Local
	case NamespaceDLNA:
		return "dlna:" + n.Local
	default:
		return n.Space + ":" + n.Local
	}
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// ParseObject parses a single <item> or <container> element. It returns a
// nil Object without error when the element's class is not registered.
func ParseObject(data []byte) (Object, error) {
	var n node
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, upnp.FormatError("DIDL-Lite", "", err)
	}
	if l := n.XMLName.Local; l != "item" && l != "container" {
		// a whole document with a single object is accepted too
		objs, err := parseTree(n)
		if err != nil || len(objs) == 0 {
			return nil, err
		}
		return objs[0], nil
	}
	return build(n)
}

// ParseDocument parses a DIDL-Lite document into its objects. Containers
// come first, then items, each group in document order. Objects of
// unregistered classes are dropped.
func ParseDocument(data []byte) ([]Object, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, upnp.FormatError("DIDL-Lite", "", err)
	}
	return parseTree(root)
}

func parseTree(root node) ([]Object, error) {
	var containers, items []node
	var walk func(n node)
	walk = func(n node) {
		switch n.XMLName.Local {
		case "container":
			containers = append(containers, n)
		case "item":
			items = append(items, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)

	objs := make([]Object, 0, len(containers)+len(items))
	for _, n := range append(containers, items...) {
		o, err := build(n)
		if err != nil {
			return nil, err
		}
		if o != nil {
			objs = append(objs, o)
		}
	}
	return objs, nil
}

func build(n node) (Object, error) {
	var class string
	for _, c := range n.Children {
		if qualify(c.XMLName) == "upnp:class" {
			class = strings.TrimSpace(c.Text)
			break
		}
	}
	reg, ok := lookup(class)
	if !ok {
		log.Debug("didl: dropping object with unregistered class %q", class)
		return nil, nil
	}

	obj := reg.create()
	obj.Common().Class = class

	for _, a := range n.Attrs {
		if isNamespaceDecl(a) {
			continue
		}
		if set, ok := reg.fields[qualify(a.Name)]; ok {
			if err := set(obj, a.Value); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range n.Children {
		name := qualify(c.XMLName)
		if name == "res" {
			item := ItemOf(obj)
			if item == nil {
				continue
			}
			res, err := parseResource(c)
			if err != nil {
				return nil, err
			}
			item.Resources = append(item.Resources, res)
			continue
		}
		if set, ok := reg.fields[name]; ok {
			if err := set(obj, c.Text); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

func parseResource(n node) (Resource, error) {
	res := Resource{
		URI:        strings.TrimSpace(n.Text),
		Attributes: make(map[string]string, len(n.Attrs)),
	}
	for _, a := range n.Attrs {
		if isNamespaceDecl(a) {
			continue
		}
		name := qualify(a.Name)
		res.Attributes[name] = a.Value
		if set, ok := resourceFields[name]; ok {
			if err := set(&res, a.Value); err != nil {
				return Resource{}, err
			}
		}
	}
	return res, nil
}
