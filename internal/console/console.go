package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/catalog"
	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/validation"
	"github.com/kjstillabower/station-watch/internal/watchlist"
)

// Menu choices. 8 and 9 are bulk operations left off the printed menu.
const (
	choiceList      = 1
	choiceAdd       = 2
	choiceRemove    = 3
	choicePrint     = 4
	choiceQuit      = 5
	choiceAddAll    = 8
	choiceRemoveAll = 9
)

const menu = `
Menu:
1. Show available stations
2. Add [station]
3. Remove [station]
4. Print
5. Quit
Choose a number: `

// Console is the operator command loop. It reads one command per line from
// in and writes prompts and results to out.
type Console struct {
	in        *bufio.Scanner
	out       io.Writer
	catalog   *catalog.Catalog
	watchlist *watchlist.Watchlist
	logger    *zap.Logger
}

// New returns a Console over the given catalog and watchlist.
func New(in io.Reader, out io.Writer, cat *catalog.Catalog, wl *watchlist.Watchlist, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		in:        bufio.NewScanner(in),
		out:       out,
		catalog:   cat,
		watchlist: wl,
		logger:    logger,
	}
}

// Run prompts until the operator quits, input ends, or ctx is done.
// Quit and end of input return nil.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("%s", menu)

		line, ok := c.readLine()
		if !ok {
			c.printf("\nExiting\n")
			return c.inputErr()
		}
		if line == "" {
			continue
		}
		choice, err := strconv.Atoi(line)
		if err != nil {
			c.printf("invalid input. Please enter a number.\n")
			continue
		}

		if quit := c.dispatch(choice); quit {
			return nil
		}
	}
}

func (c *Console) dispatch(choice int) (quit bool) {
	switch choice {
	case choiceList:
		c.listStations()
	case choiceAdd:
		c.addStation()
	case choiceRemove:
		c.removeStation()
	case choicePrint:
		c.printWatchlist()
	case choiceQuit:
		c.printf("Exiting\n")
		return true
	case choiceAddAll:
		n := c.watchlist.AddAll(c.catalog.Records())
		c.logger.Info("added all catalog stations", zap.Int("added", n))
		c.printf("%d stations added\n", n)
	case choiceRemoveAll:
		n := c.removeAllCatalogStations()
		c.logger.Info("removed all catalog stations", zap.Int("removed", n))
		c.printf("%d stations removed\n", n)
	default:
		c.printf("\nInvalid number. Try again\n")
	}
	return false
}

func (c *Console) listStations() {
	c.printf("Available stations:\n")
	for _, rec := range c.catalog.Records() {
		c.printf("%s\n", rec.Name)
	}
}

func (c *Console) addStation() {
	name, ok := c.promptName("Enter station name to add: ")
	if !ok {
		return
	}
	rec, err := c.catalog.Lookup(name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.printf("\nStation not found\n")
			return
		}
		c.logger.Error("catalog lookup failed", zap.String("station", name), zap.Error(err))
		return
	}

	switch c.watchlist.Add(rec.Name, rec.ID) {
	case watchlist.Added:
		c.logger.Info("station added", zap.String("station", rec.Name), zap.String("station_id", rec.ID))
		c.printf("%s added to the watchlist.\n", rec.Name)
	case watchlist.AlreadyPresent:
		c.printf("\n[%s] already added\n", rec.Name)
	}
}

func (c *Console) removeStation() {
	name, ok := c.promptName("Enter station name to remove: ")
	if !ok {
		return
	}
	switch c.watchlist.Remove(name) {
	case watchlist.Removed:
		c.logger.Info("station removed", zap.String("station", name))
		c.printf("%s removed from the watchlist.\n", name)
	case watchlist.NotFound:
		c.printf("\nStation %s not found\n", name)
	}
}

// removeAllCatalogStations removes every catalog station by name, so entries
// added under a name the catalog no longer holds stay put.
func (c *Console) removeAllCatalogStations() int {
	n := 0
	for _, rec := range c.catalog.Records() {
		if c.watchlist.Remove(rec.Name) == watchlist.Removed {
			n++
		}
	}
	return n
}

// printWatchlist reads the list in one locked pass, emptiness included.
func (c *Console) printWatchlist() {
	printed := 0
	c.watchlist.ForEach(func(e *models.WatchEntry) {
		c.printf("%s", FormatEntry(*e))
		printed++
	})
	if printed == 0 {
		c.printf("Watchlist is empty\n")
	}
}

// FormatEntry renders one watchlist entry the way option 4 prints it.
func FormatEntry(e models.WatchEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Station: < %s >\n", e.Name)
	fmt.Fprintf(&b, "\tTemperature: %.2f°C\n", e.TemperatureC)
	fmt.Fprintf(&b, "\tHumidity: %d%%\n", e.HumidityPct)
	fmt.Fprintf(&b, "\tRain since 9am: %s\n", e.RainTrace)
	return b.String()
}

// promptName asks for a station name and validates it. ok is false when
// input ended or the name was rejected (the reason is printed).
func (c *Console) promptName(prompt string) (string, bool) {
	c.printf("%s", prompt)
	line, ok := c.readLine()
	if !ok {
		return "", false
	}
	name, err := validation.ValidateStationName(line, validation.MaxNameLen)
	if err != nil {
		c.printf("Invalid station name: %v\n", err)
		return "", false
	}
	return name, true
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) inputErr() error {
	if err := c.in.Err(); err != nil {
		return fmt.Errorf("read operator input: %w", err)
	}
	return nil
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Debug("console write failed", zap.Error(err))
	}
}
