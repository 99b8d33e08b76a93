/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP. If not, see <http://www.gnu.org/licenses/>.
*/

// Package ef5lakeutil holds the configuration and command-line plumbing
// for cmd/ef5lake: a Cfg type embedding *viper.Viper, a basin manifest
// parsed with BurntSushi/toml, and the cobra command tree wired up here.
package ef5lakeutil

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Cfg holds the command tree and bound configuration for cmd/ef5lake: an
// embedded *viper.Viper plus one *cobra.Command field per subcommand.
type Cfg struct {
	*viper.Viper

	Root, runCmd, carveCmd, gaugesCmd *cobra.Command
}

// InitializeConfig builds the full command tree: Root with a persistent
// --config flag bound to viper, and the run/carve/gauges subcommands.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "ef5lake",
		Short: "A lake-routing coupling model for distributed hydrologic simulation.",
		Long: `ef5lake simulates reservoir/lake storage and outflow coupled to a routed
river network. Use the subcommands below to drive a run from a basin
manifest (--config), carve a node set, or manage gauge relationships.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}
	cfg.Root.PersistentFlags().String("config", "", "path to the basin manifest (TOML)")
	cfg.BindPFlag("config", cfg.Root.PersistentFlags().Lookup("config"))

	cfg.runCmd = &cobra.Command{
		Use:               "run",
		Short:             "Run a lake-routing simulation from begin to end.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cfg)
		},
	}
	cfg.runCmd.Flags().String("gauges", "", "path to the gauges table (name,lat,lon)")
	cfg.BindPFlag("gauges", cfg.runCmd.Flags().Lookup("gauges"))

	cfg.carveCmd = &cobra.Command{
		Use:               "carve",
		Short:             "Build and report the node set and lake locations for a basin manifest, without stepping.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCarve(cfg)
		},
	}
	cfg.carveCmd.Flags().String("gauges", "", "path to the gauges table (name,lat,lon)")
	cfg.BindPFlag("gauges", cfg.carveCmd.Flags().Lookup("gauges"))

	cfg.gaugesCmd = &cobra.Command{
		Use:               "gauges",
		Short:             "Print the area-weighted gauge averages of a constant field, for manifest validation.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGauges(cfg)
		},
	}
	cfg.gaugesCmd.Flags().String("gauges", "", "path to the gauges table (name,lat,lon)")
	cfg.BindPFlag("gauges", cfg.gaugesCmd.Flags().Lookup("gauges"))

	cfg.Root.AddCommand(cfg.runCmd, cfg.carveCmd, cfg.gaugesCmd)
	return cfg
}

// setConfig reads the manifest named by --config into cfg's viper
// instance.
func setConfig(cfg *Cfg) error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		cfg.SetConfigType("toml")
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ef5lakeutil: problem reading configuration file: %w", err)
		}
	}
	return nil
}

func manifestPath(cfg *Cfg) (string, error) {
	path := cfg.GetString("config")
	if path == "" {
		return "", fmt.Errorf("ef5lakeutil: --config must name a basin manifest")
	}
	return path, nil
}

func runSimulation(cfg *Cfg) error {
	path, err := manifestPath(cfg)
	if err != nil {
		return err
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		return err
	}
	basin, err := BuildBasin(manifest, cfg.GetString("gauges"))
	if err != nil {
		return err
	}
	run, err := NewRun(basin, manifest, ZeroForcing{}, ZeroRouting{})
	if err != nil {
		return err
	}
	logrus.WithField("config", path).Info("ef5lake: starting run")
	return run.Simulate()
}

func runCarve(cfg *Cfg) error {
	path, err := manifestPath(cfg)
	if err != nil {
		return err
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		return err
	}
	basin, err := BuildBasin(manifest, cfg.GetString("gauges"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "carved %d nodes, %d gauges, %d lakes\n",
		len(basin.Nodes.Nodes), len(basin.Nodes.Gauges), len(basin.Lakes.All()))
	for _, lake := range basin.Lakes.All() {
		if lake.Disabled {
			fmt.Fprintf(os.Stdout, "  %s: disabled (outside grid)\n", lake.Name)
			continue
		}
		fmt.Fprintf(os.Stdout, "  %s: cell (%d,%d), node %d, %d upstream neighbors\n",
			lake.Name, lake.XCell, lake.YCell, lake.NodeIndex, len(lake.UpstreamNeighbors))
	}
	return nil
}

func runGauges(cfg *Cfg) error {
	path, err := manifestPath(cfg)
	if err != nil {
		return err
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		return err
	}
	basin, err := BuildBasin(manifest, cfg.GetString("gauges"))
	if err != nil {
		return err
	}
	ones := make([]float64, len(basin.Nodes.Nodes))
	for i := range ones {
		ones[i] = 1
	}
	avg := basin.Gauges.GaugeAverage(basin.Nodes, ones)
	for i, g := range basin.Nodes.Gauges {
		fmt.Fprintf(os.Stdout, "%s: %g\n", g.Name, avg[i])
	}
	return nil
}
