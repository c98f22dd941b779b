package watchfeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tripartite-ai/consensus-core/internal/config"
	"github.com/tripartite-ai/consensus-core/internal/embedding"
	"github.com/tripartite-ai/consensus-core/internal/knowledge"
)

func openVault(t *testing.T) *knowledge.Vault {
	t.Helper()
	embedder := embedding.NewHashEmbedder(16)
	vaultCfg := config.VaultConfig{EmbeddingDim: 16, MaxScan: 1000, OverFetch: 4}
	chunkCfg := config.ChunkConfig{Strategy: "paragraph", MinChunkFloor: 20, ParagraphOverlap: 5}
	v, err := knowledge.OpenMemory(vaultCfg, chunkCfg, embedder)
	if err != nil {
		t.Fatalf("open memory vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestDefaultDocTyperClassifiesByExtension(t *testing.T) {
	cases := map[string]string{
		"main.go":   "code",
		"README.md": "docs",
		"data.json": "other",
	}
	for path, want := range cases {
		if got := DefaultDocTyper(path); got != want {
			t.Errorf("DefaultDocTyper(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFeedIndexesScheduledFileOnFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("A short note about goroutines and channels in Go."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	v := openVault(t)
	feed := New(v, dir, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	// Give the watcher a moment to register directories before scheduling
	// a reindex directly, exercising the debounced path deterministically
	// rather than racing on filesystem notification delivery.
	time.Sleep(10 * time.Millisecond)
	feed.schedule(ctx, path)
	feed.mu.Lock()
	timer := feed.timer
	feed.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	feed.flush(ctx)

	cancel()
	<-done
}
