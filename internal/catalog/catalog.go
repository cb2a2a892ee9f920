package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kjstillabower/station-watch/internal/models"
)

const (
	// DefaultMaxStations caps how many records a catalog holds.
	DefaultMaxStations = 100
	// MaxLineLen bounds line length; Load skips lines of MaxLineLen bytes or more.
	MaxLineLen = 4096
)

var (
	// ErrCatalogUnavailable is returned when the station directory cannot be opened or read.
	ErrCatalogUnavailable = errors.New("station catalog unavailable")
	// ErrNotFound is returned when no catalog record matches a name.
	ErrNotFound = errors.New("station not found")
)

// Catalog is the read-only directory of known stations. Safe for concurrent
// readers once Load returns.
type Catalog struct {
	records   []models.StationRecord
	truncated bool
}

// New builds a catalog from records already in memory. Names may contain
// spaces here, unlike the line format read by Load.
func New(records ...models.StationRecord) *Catalog {
	c := &Catalog{records: make([]models.StationRecord, len(records))}
	copy(c.records, records)
	return c
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, max int) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer f.Close()
	return Load(f, max)
}

// Load reads "id name" records, one per line. Lines without exactly two tokens
// are skipped, as are lines of MaxLineLen bytes or more. At most max records are
// kept (DefaultMaxStations when max <= 0); Truncated reports whether any were
// dropped.
func Load(r io.Reader, max int) (*Catalog, error) {
	if max <= 0 {
		max = DefaultMaxStations
	}
	c := &Catalog{}
	br := bufio.NewReaderSize(r, MaxLineLen)
	for {
		line, overlong, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		if overlong {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if len(c.records) == max {
			c.truncated = true
			break
		}
		c.records = append(c.records, models.StationRecord{ID: fields[0], Name: fields[1]})
	}
	return c, nil
}

// readLine returns the next line without its terminator. A line that does not
// fit the reader's buffer is consumed and reported as overlong.
func readLine(br *bufio.Reader) (string, bool, error) {
	line, isPrefix, err := br.ReadLine()
	if err != nil {
		return "", false, err
	}
	if !isPrefix {
		return string(line), false, nil
	}
	for isPrefix {
		_, isPrefix, err = br.ReadLine()
		if err == io.EOF {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}
	}
	return "", true, nil
}

// FindIDByName returns the id of the first record whose name matches,
// ignoring case.
func (c *Catalog) FindIDByName(name string) (string, error) {
	rec, err := c.Lookup(name)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Lookup is FindIDByName returning the whole record, so callers can keep the
// catalog's spelling of the name.
func (c *Catalog) Lookup(name string) (models.StationRecord, error) {
	for _, rec := range c.records {
		if strings.EqualFold(rec.Name, name) {
			return rec, nil
		}
	}
	return models.StationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Records returns a copy of the records in file order.
func (c *Catalog) Records() []models.StationRecord {
	out := make([]models.StationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of loaded records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Truncated reports whether the source held more valid records than the cap.
func (c *Catalog) Truncated() bool {
	return c.truncated
}
