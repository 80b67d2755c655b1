package io

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestIOSourceLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.js", "app.listen()")
	writeFile(t, root, "server/edge/edge.routes.js", "export default {}")
	writeFile(t, root, "node_modules/express/index.js", "module.exports = {}")

	l := NewIOSourceLoader(root)
	paths, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(paths)
	want := []string{"server.js", "server/edge/edge.routes.js"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("List() = %v, want %v", paths, want)
	}

	got, err := l.Read(context.Background(), "server/edge/edge.routes.js")
	if err != nil || string(got) != "export default {}" {
		t.Fatalf("Read() = %q, %v", got, err)
	}

	// server.js was never read, so removing it is visible; the routes file is cached
	if err := os.Remove(filepath.Join(root, "server.js")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := l.Read(context.Background(), "server.js"); err == nil {
		t.Fatal("expected error reading a file that was never cached")
	}
	if _, err := l.Read(context.Background(), "server/edge/edge.routes.js"); err != nil {
		t.Fatalf("cached Read() error = %v", err)
	}
}
