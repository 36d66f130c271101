package app

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/bookmarkd/api/internal/config"
	"github.com/bookmarkd/api/internal/imagecache"
)

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(dir, "bookmarkd.db")
	cfg.Storage.Mode = mode
	cfg.Storage.LocalDir = filepath.Join(dir, "previews")
	cfg.Screenshot.Local.Enabled = false
	return cfg
}

func TestNewPipeline_Persistent(t *testing.T) {
	p, err := NewPipeline(testConfig(t, "persistent"))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	if p.Mode != imagecache.ModePersistent || !p.Cache.HasLocal() || p.Cache.HasRemote() {
		t.Errorf("mode=%s local=%v remote=%v", p.Mode, p.Cache.HasLocal(), p.Cache.HasRemote())
	}
	want := []string{"cache", "extract", "swatch"}
	if got := p.Resolver.Strategies(); !slices.Equal(got, want) {
		t.Errorf("Strategies() = %v, want %v", got, want)
	}
}

func TestNewPipeline_Ephemeral(t *testing.T) {
	p, err := NewPipeline(testConfig(t, "ephemeral"))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	if p.Cache.Durable() {
		t.Error("ephemeral mode without an object store should not be durable")
	}
	want := []string{"extract", "swatch"}
	if got := p.Resolver.Strategies(); !slices.Equal(got, want) {
		t.Errorf("Strategies() = %v, want %v", got, want)
	}
}

func TestNewPipeline_ObjectStore(t *testing.T) {
	cfg := testConfig(t, "ephemeral")
	cfg.ObjectStore.Endpoint = "127.0.0.1:9000"
	cfg.ObjectStore.Bucket = "previews"
	cfg.ObjectStore.UseSSL = false
	cfg.ObjectStore.PathStyle = true

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	defer p.Close()

	if !p.Cache.HasRemote() || p.Cache.HasLocal() {
		t.Errorf("local=%v remote=%v, want remote only", p.Cache.HasLocal(), p.Cache.HasRemote())
	}
}

func TestNew_NoMediaWithoutDisk(t *testing.T) {
	a, err := New(testConfig(t, "ephemeral"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.DB.Close()

	if a.Cache.Local() != nil {
		t.Error("ephemeral app should have no disk tier")
	}
	if a.RateLimiter == nil {
		t.Error("rate limiting is enabled by default")
	}
}

func TestOverrides(t *testing.T) {
	got := overrides([]config.OverrideConfig{{Host: "example.com", Title: "Example", Image: "https://cdn.example.com/card.png"}})
	ov, ok := got.Match("https://www.example.com/post")
	if !ok || ov.Title != "Example" || ov.Image != "https://cdn.example.com/card.png" {
		t.Errorf("Match = %+v, %v", ov, ok)
	}
}
