package feed

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/store"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return logrus.NewEntry(l)
}

func entries(ids ...string) []compose.Entry {
	out := make([]compose.Entry, len(ids))
	for i, id := range ids {
		out[i] = compose.Entry{ID: id}
	}
	return out
}

func ids(es []compose.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type failingSource struct{ err error }

func (f failingSource) Name() string                                  { return "failing" }
func (f failingSource) Load(context.Context) ([]compose.Entry, error) { return nil, f.err }

func TestPoolRefreshKeepsSourceOrder(t *testing.T) {
	p := NewPool(0, quietLog(),
		NewStaticSource("one", entries("a", "b")...),
		NewStaticSource("two", entries("c")...),
	)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(p.Snapshot()); !equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("snapshot = %v", got)
	}
	if p.Len() != 3 || p.Updated().IsZero() {
		t.Fatalf("len %d, updated %v", p.Len(), p.Updated())
	}
}

func TestPoolMaxEntries(t *testing.T) {
	p := NewPool(2, quietLog(), NewStaticSource("s", entries("a", "b", "c")...))
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(p.Snapshot()); !equal(got, []string{"a", "b"}) {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestPoolSkipsFailingSource(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(0, quietLog(), failingSource{boom}, NewStaticSource("s", entries("a")...))
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ids(p.Snapshot()); !equal(got, []string{"a"}) {
		t.Fatalf("snapshot = %v", got)
	}
}

func TestPoolKeepsEntriesWhenAllSourcesFail(t *testing.T) {
	boom := errors.New("boom")
	static := NewStaticSource("s", entries("a")...)
	p := NewPool(0, quietLog(), static)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.sources = []Source{failingSource{boom}}
	if err := p.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if got := ids(p.Snapshot()); !equal(got, []string{"a"}) {
		t.Fatalf("snapshot = %v after failed refresh", got)
	}

	if err := NewPool(0, quietLog()).Refresh(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("error = %v, want ErrNoSources", err)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	p := NewPool(0, quietLog(), NewStaticSource("s", entries("a", "b")...))
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := p.Snapshot()
	snap[0].ID = "changed"
	if p.Snapshot()[0].ID != "a" {
		t.Fatal("snapshot shares storage with the pool")
	}
}

func TestSubscribe(t *testing.T) {
	p := NewPool(0, quietLog(), NewStaticSource("s", entries("a")...))
	updates, cancel := p.Subscribe()

	for i := 0; i < 3; i++ {
		if err := p.Refresh(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no update signal")
	}
	select {
	case <-updates:
		t.Fatal("signals did not coalesce")
	default:
	}

	cancel()
	cancel()
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-updates:
		t.Fatal("signal after cancel")
	default:
	}
}

func TestRunStopsWithContext(t *testing.T) {
	p := NewPool(0, quietLog(), NewStaticSource("s", entries("a")...))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(time.Second)
	for p.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial refresh did not happen")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 90, G: 120, B: 150, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	strip := filepath.Join(dir, "b-strip")
	if err := os.Mkdir(strip, 0o755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, filepath.Join(strip, "2.png"), 30, 10)
	writeImage(t, filepath.Join(strip, "1.png"), 20, 10)
	writeImage(t, filepath.Join(dir, "a-single.jpg"), 40, 40)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "c-empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(dir, store.New(store.PNG, quietLog()), quietLog())
	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(got))
	}
	if got[0].Title != "a-single" || len(got[0].Images) != 1 {
		t.Fatalf("first entry %q with %d images", got[0].Title, len(got[0].Images))
	}
	if got[1].Title != "b-strip" || len(got[1].Images) != 2 {
		t.Fatalf("second entry %q with %d images", got[1].Title, len(got[1].Images))
	}
	if w := got[1].Images[0].Width(); w != 20 {
		t.Fatalf("strip images not in lexical order: first is %d wide", w)
	}

	if _, err := NewDirSource(filepath.Join(dir, "missing"), store.New(nil, nil), quietLog()).Load(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMongoDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.NewGray(image.Rect(0, 0, 12, 7)), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	s := &MongoSource{store: store.New(store.QOI, quietLog()), log: quietLog()}
	img, err := s.decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if w, h := img.Dimensions(); w != 12 || h != 7 {
		t.Fatalf("decoded %dx%d", w, h)
	}
	if _, err := s.decode([]byte("junk")); err == nil {
		t.Fatal("expected error for junk bytes")
	}
}

func TestOrder(t *testing.T) {
	for _, s := range []string{"ranked", "shuffle"} {
		o, err := ParseOrder(s)
		if err != nil || string(o) != s {
			t.Fatalf("ParseOrder(%q) = %q, %v", s, o, err)
		}
	}
	if _, err := ParseOrder("newest"); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("error = %v, want ErrUnknownOrder", err)
	}

	if got := ids(OrderRanked.Arrange(entries("a", "b", "c"))); !equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("ranked = %v", got)
	}
	shuffled := ids(OrderShuffle.Arrange(entries("a", "b", "c", "d", "e")))
	seen := map[string]bool{}
	for _, id := range shuffled {
		seen[id] = true
	}
	if len(shuffled) != 5 || len(seen) != 5 {
		t.Fatalf("shuffle lost entries: %v", shuffled)
	}
}
