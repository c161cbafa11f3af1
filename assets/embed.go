// Package assets embeds the demo scenes shown when no detector or camera is
// available.
package assets

import (
	"bytes"
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/media"
)

// DemoAssetsJSON contains the raw demo scene catalog.
//
//go:embed demo_assets.json
var DemoAssetsJSON []byte

type catalogFile struct {
	Weights []string          `json:"weights"`
	Scenes  []media.DemoAsset `json:"scenes"`
}

// Catalog is the read-only set of demo scenes, in file order.
type Catalog struct {
	scenes  []media.DemoAsset
	byID    map[string]int
	weights []string
}

// LoadCatalog decodes the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(DemoAssetsJSON)
}

// ParseCatalog decodes a catalog document. Scene ids must be unique and
// every detection box well formed.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, errors.New("demo catalog is empty")
	}
	var f catalogFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode demo catalog")
	}
	c := &Catalog{scenes: f.Scenes, byID: make(map[string]int, len(f.Scenes)), weights: f.Weights}
	for i, s := range f.Scenes {
		if s.ID == "" {
			return nil, errors.Errorf("demo scene %d has no id", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, errors.Errorf("duplicate demo scene %q", s.ID)
		}
		for _, d := range s.Detections {
			if !d.Valid() {
				return nil, errors.Errorf("demo scene %q: invalid detection %+v", s.ID, d)
			}
		}
		c.byID[s.ID] = i
	}
	return c, nil
}

// Asset returns the scene with the given id.
func (c *Catalog) Asset(id string) (media.DemoAsset, bool) {
	if c == nil {
		return media.DemoAsset{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return media.DemoAsset{}, false
	}
	return c.scenes[i], true
}

// List returns all scenes in file order.
func (c *Catalog) List() []media.DemoAsset {
	if c == nil {
		return nil
	}
	return append([]media.DemoAsset(nil), c.scenes...)
}

// Weights returns the weight names the offline backend starts with.
func (c *Catalog) Weights() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.weights...)
}
