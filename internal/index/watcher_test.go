package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_ExternalEditUpdatesCatalog(t *testing.T) {
	db := testDB(t)
	root, src := testSource(t)
	_, _ = src.Create("site")
	_ = Sync(db, src, quietLogger())
	before, _ := db.GetChecksum("site")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, src, root, quietLogger(), func(kind, name string) {
		mu.Lock()
		events = append(events, kind+":"+name)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "site", "index.html"), []byte("<h1>edited outside</h1>"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("site")
		return cs != "" && cs != before
	}, "external edit not picked up by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "updated:site" {
				return true
			}
		}
		return false
	}, "expected updated:site callback")
}

func TestWatcher_NewProjectDirIndexed(t *testing.T) {
	db := testDB(t)
	root, src := testSource(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, src, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if _, err := src.Create("fresh"); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("fresh")
		return cs != ""
	}, "project created on disk not indexed by watcher")
}

func TestWatcher_RemovedProjectDropped(t *testing.T) {
	db := testDB(t)
	root, src := testSource(t)
	_, _ = src.Create("doomed")
	_ = Sync(db, src, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, src, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.RemoveAll(filepath.Join(root, "doomed"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("doomed")
		return cs == ""
	}, "removed project still in catalog")
}

func TestSplitEventIgnoresHidden(t *testing.T) {
	root := "/data/projects"
	cases := []struct {
		abs, project, file string
		ok                 bool
	}{
		{"/data/projects/site", "site", "", true},
		{"/data/projects/site/index.html", "site", "index.html", true},
		{"/data/projects/.stage-site-1/index.html", "", "", false},
		{"/data/projects/site/.pagesmith-tmp-123", "", "", false},
		{"/data/projects/site/a/b", "", "", false},
		{"/data/projects", "", "", false},
	}
	for _, c := range cases {
		p, f, ok := splitEvent(root, filepath.FromSlash(c.abs))
		if p != c.project || f != c.file || ok != c.ok {
			t.Errorf("splitEvent(%q) = %q %q %v", c.abs, p, f, ok)
		}
	}
}
