package assets

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"

	"github.com/soocke/vision-live-go/domain/media"
)

func TestLoadCatalog_EmbeddedScenes(t *testing.T) {
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := lo.Map(c.List(), func(a media.DemoAsset, _ int) string { return a.ID })
	if diff := cmp.Diff([]string{"sample1", "sample2", "sample3"}, ids); diff != "" {
		t.Fatalf("scene ids (-want +got):\n%s", diff)
	}
	street, ok := c.Asset("sample1")
	if !ok || street.Name != "Street Scene" || len(street.Detections) != 4 {
		t.Fatalf("unexpected street scene %+v", street)
	}
	for _, s := range c.List() {
		for _, d := range s.Detections {
			if d.Box[2] > float64(s.Width) || d.Box[3] > float64(s.Height) {
				t.Fatalf("%s: box %v outside %dx%d", s.ID, d.Box, s.Width, s.Height)
			}
		}
	}
	if _, ok := c.Asset("sample9"); ok {
		t.Fatalf("unknown id resolved")
	}
	if len(c.Weights()) != 4 {
		t.Fatalf("expected 4 demo weights, got %v", c.Weights())
	}
}

func TestParseCatalog_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":     ``,
		"duplicate": `{"scenes":[{"id":"a"},{"id":"a"}]}`,
		"no id":     `{"scenes":[{"name":"x"}]}`,
		"bad box":   `{"scenes":[{"id":"a","detections":[{"box":[1,1,1,5],"label":"x","confidence":0.5}]}]}`,
		"unknown":   `{"scenes":[],"extra":true}`,
	}
	for name, doc := range cases {
		if _, err := ParseCatalog([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
