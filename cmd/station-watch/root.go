package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/catalog"
	"github.com/kjstillabower/station-watch/internal/config"
)

const longHelp = `Watch Bureau of Meteorology observation stations from the terminal.

A background refresher polls every station on the watchlist each refresh
interval and whenever a station is added; the menu lists catalog stations,
adds and removes stations, and prints the latest readings.`

var exampleUsage = strings.TrimSpace(`
  station-watch
  station-watch --env prod --catalog /etc/station-watch/station_data.txt
  station-watch stations
`)

type rootOptions struct {
	env         string
	catalogPath string
}

// loadConfig reads config/{env}.yaml and applies the --catalog override.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	env := o.env
	if env == "" {
		env = os.Getenv("ENV_NAME")
	}
	cfg, err := config.LoadEnv(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.catalogPath != "" {
		cfg.CatalogPath = o.catalogPath
	}
	return cfg, nil
}

func newRootCmd(in io.Reader, out io.Writer, logger *zap.Logger) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "station-watch",
		Short:         "Poll weather stations in the background while you manage a watchlist",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), cfg, in, out, logger)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.env, "env", "", "config environment; reads config/<env>.yaml (default $ENV_NAME or dev)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "station catalog file (overrides catalog.path and $STATION_CATALOG)")

	root.AddCommand(newStationsCmd(opts, out))
	return root
}

func newStationsCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "Print the station catalog and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.LoadFile(cfg.CatalogPath, cfg.CatalogMaxStations)
			if err != nil {
				return err
			}
			for _, rec := range cat.Records() {
				fmt.Fprintf(out, "%s\t%s\n", rec.ID, rec.Name)
			}
			if cat.Truncated() {
				fmt.Fprintf(out, "(catalog truncated at %d stations)\n", cfg.CatalogMaxStations)
			}
			return nil
		},
	}
}
