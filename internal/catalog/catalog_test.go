package catalog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjstillabower/station-watch/internal/models"
)

func TestLoad_ParsesRecords(t *testing.T) {
	src := "066214 Sydney\n066037 Sydney_Airport\n061055 Newcastle\n"
	c, err := Load(strings.NewReader(src), 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	got := c.Records()
	want := models.StationRecord{ID: "066037", Name: "Sydney_Airport"}
	if got[1] != want {
		t.Errorf("Records()[1] = %+v, want %+v", got[1], want)
	}
	if c.Truncated() {
		t.Error("Truncated() = true, want false")
	}
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{name: "empty line", src: "\n066214 Sydney\n", want: 1},
		{name: "single token", src: "066214\n061055 Newcastle\n", want: 1},
		{name: "three tokens", src: "066214 Sydney Airport\n", want: 0},
		{name: "whitespace only", src: "   \t \n", want: 0},
		{name: "tabs between tokens", src: "066214\tSydney\n", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(strings.NewReader(tt.src), 0)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if c.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", c.Len(), tt.want)
			}
		})
	}
}

func TestLoad_SkipsOverlongLines(t *testing.T) {
	huge := strings.Repeat("x", 100*1024)
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "between records", src: "1 Moree\n" + huge + "\n2 Sydney\n", want: []string{"Moree", "Sydney"}},
		{name: "two tokens", src: "1 " + huge + "\n2 Sydney\n", want: []string{"Sydney"}},
		{name: "final line without newline", src: "1 Moree\n9 " + huge, want: []string{"Moree"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(strings.NewReader(tt.src), 0)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			got := c.Records()
			if len(got) != len(tt.want) {
				t.Fatalf("Len() = %d, want %d", len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("Records()[%d].Name = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestLoad_ReadErrorIsUnavailable(t *testing.T) {
	_, err := Load(io.MultiReader(strings.NewReader("1 Moree\n"), errReader{}), 0)
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Load() error = %v, want ErrCatalogUnavailable", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestLoad_TruncatesAtMax(t *testing.T) {
	src := "1 a\n2 b\nbad\n3 c\n"
	c, err := Load(strings.NewReader(src), 2)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if !c.Truncated() {
		t.Error("Truncated() = false, want true")
	}
}

func TestLoad_ExactlyMaxIsNotTruncated(t *testing.T) {
	c, err := Load(strings.NewReader("1 a\n2 b\n"), 2)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Truncated() {
		t.Error("Truncated() = true, want false when source holds exactly max records")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"), 0)
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("LoadFile() error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestLoadFile_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station_data.txt")
	if err := os.WriteFile(path, []byte("066214 Sydney\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadFile(path, 0)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if id, _ := c.FindIDByName("sydney"); id != "066214" {
		t.Errorf("FindIDByName() = %q, want 066214", id)
	}
}

func TestFindIDByName(t *testing.T) {
	c := New(
		models.StationRecord{ID: "066214", Name: "Sydney Airport"},
		models.StationRecord{ID: "061055", Name: "Newcastle"},
		models.StationRecord{ID: "999999", Name: "newcastle"},
	)

	tests := []struct {
		name    string
		lookup  string
		want    string
		wantErr error
	}{
		{name: "exact", lookup: "Sydney Airport", want: "066214"},
		{name: "lower", lookup: "sydney airport", want: "066214"},
		{name: "upper", lookup: "SYDNEY AIRPORT", want: "066214"},
		{name: "first duplicate wins", lookup: "NEWCASTLE", want: "061055"},
		{name: "prefix is not a match", lookup: "Sydney", wantErr: ErrNotFound},
		{name: "unknown", lookup: "Perth", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FindIDByName(tt.lookup)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindIDByName(%q) error = %v, want %v", tt.lookup, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindIDByName(%q) error = %v", tt.lookup, err)
			}
			if got != tt.want {
				t.Errorf("FindIDByName(%q) = %q, want %q", tt.lookup, got, tt.want)
			}
		})
	}
}

func TestRecords_ReturnsCopy(t *testing.T) {
	c := New(models.StationRecord{ID: "1", Name: "a"})
	recs := c.Records()
	recs[0].Name = "changed"
	if c.Records()[0].Name != "a" {
		t.Error("Records() exposed internal slice")
	}
}
