// Package sound reads the starter and shutoff sound catalog.
package sound

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Sound is one catalog entry. EventName is the identifier used in the
// exported sound events; PrettyName is for display.
type Sound struct {
	EventName  string `xml:"EventName,attr" json:"event_name"`
	PrettyName string `xml:"PrettyName,attr" json:"pretty_name"`
}

// Catalog lists sounds in file order.
type Catalog []Sound

type document struct {
	Sounds []Sound `xml:",any"`
}

// Parse reads a catalog: a root element whose child elements each carry
// EventName and PrettyName attributes. Children without an EventName are
// rejected.
func Parse(r io.Reader) (Catalog, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing sound catalog: %w", err)
	}
	for i, s := range doc.Sounds {
		if s.EventName == "" {
			return nil, fmt.Errorf("sound %d has no EventName", i)
		}
		if s.PrettyName == "" {
			doc.Sounds[i].PrettyName = s.EventName
		}
	}
	return Catalog(doc.Sounds), nil
}

// Load parses the catalog at path.
func Load(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// At returns entry i, or an error naming the valid range.
func (c Catalog) At(i int) (Sound, error) {
	if i < 0 || i >= len(c) {
		return Sound{}, fmt.Errorf("starter sound %d out of range 0..%d", i, len(c)-1)
	}
	return c[i], nil
}

// Lookup finds an entry by event name.
func (c Catalog) Lookup(eventName string) (Sound, bool) {
	for _, s := range c {
		if s.EventName == eventName {
			return s, true
		}
	}
	return Sound{}, false
}
