package project

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/storage"
)

func testStore(t *testing.T, multi bool) *Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return NewStore(fs, multi)
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Demo", "Demo"},
		{"  My Blog!  ", "My_Blog"},
		{"a/../b", "a_b"},
		{"café menu", "caf_menu"},
		{"--rf", "rf"},
		{strings.Repeat("x", 100), strings.Repeat("x", maxNameLen)},
	}
	for _, c := range cases {
		got, err := Sanitize(c.in)
		if err != nil {
			t.Fatalf("Sanitize(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"", "   ", "///", "!!!"} {
		if _, err := Sanitize(bad); !errors.Is(err, apperr.ErrRejected) {
			t.Errorf("Sanitize(%q) err = %v, want ErrRejected", bad, err)
		}
	}
}

func TestCreateThenReadReturnsTemplate(t *testing.T) {
	s := testStore(t, true)
	p, err := s.Create("Demo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "Demo" || p.Title != "Demo" {
		t.Errorf("project = %+v", p)
	}
	for _, slot := range []models.Slot{models.SlotPage, models.SlotServer} {
		want, _ := Template(slot, "Demo")
		got, err := s.Read("Demo", slot)
		if err != nil {
			t.Fatalf("Read %s: %v", slot, err)
		}
		if got != want {
			t.Errorf("slot %s does not match starter template", slot)
		}
	}
}

func TestCreateDuplicateSanitizedName(t *testing.T) {
	s := testStore(t, false)
	if _, err := s.Create("My Blog"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := s.Create("My/Blog")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
}

func TestReadMissingIsEmpty(t *testing.T) {
	s := testStore(t, false)
	got, err := s.Read("ghost", models.SlotPage)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestServerSlotDisabledInSingleFileMode(t *testing.T) {
	s := testStore(t, false)
	_, _ = s.Create("solo")
	if _, err := s.Read("solo", models.SlotServer); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWriteAndList(t *testing.T) {
	s := testStore(t, false)
	for _, n := range []string{"zeta", "alpha"} {
		if _, err := s.Create(n); err != nil {
			t.Fatalf("Create %s: %v", n, err)
		}
	}
	if err := s.Write("alpha", models.SlotPage, "<h1>Hi</h1>"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("alpha", models.SlotPage)
	if got != "<h1>Hi</h1>" {
		t.Errorf("Read = %q", got)
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Errorf("List = %v", names)
	}
}

func TestReplaceAllSwapsEverySlot(t *testing.T) {
	s := testStore(t, true)
	_, _ = s.Create("swap")
	err := s.ReplaceAll("swap", models.Artifacts{
		models.SlotPage:   "<p>restored</p>",
		models.SlotServer: "print('restored')",
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, _ := s.Artifacts("swap")
	if got[models.SlotPage] != "<p>restored</p>" || got[models.SlotServer] != "print('restored')" {
		t.Errorf("artifacts = %v", got)
	}
	names, _ := s.List()
	if !reflect.DeepEqual(names, []string{"swap"}) {
		t.Errorf("stage or old dirs leaked: %v", names)
	}
}

func TestReplaceAllRecreatesDeletedProject(t *testing.T) {
	s := testStore(t, false)
	_, _ = s.Create("phoenix")
	if err := s.Delete("phoenix"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("phoenix") {
		t.Fatal("project should be gone")
	}
	if err := s.ReplaceAll("phoenix", models.Artifacts{models.SlotPage: "<p>back</p>"}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, _ := s.Read("phoenix", models.SlotPage)
	if got != "<p>back</p>" {
		t.Errorf("Read = %q", got)
	}
}

func TestDeleteMissing(t *testing.T) {
	s := testStore(t, false)
	if err := s.Delete("nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
