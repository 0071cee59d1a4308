/*
Copyright © 2025 The Knot Language Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"knotlang.dev/knot/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "knot",
	Short: "The knot configuration language toolchain",
	Long: `knot compiles, queries and serves knot configuration sources.

Workspaces are discovered from knot.work and knot.mod settings files;
single .k files compile on their own.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		cobra.CheckErr(err)
		viper.AddConfigPath(filepath.Join(cwd, ".config"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("knot")
	}
	if err := viper.ReadInConfig(); err == nil {
		pterm.Debug.Println("Using config file: ", viper.ConfigFileUsed())
	}
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		pterm.EnableDebugMessages()
		logging.SetDebugEnabled(true)
	}
	if viper.GetBool("quiet") {
		logging.SetQuietEnabled(true)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default is $CWD/.config/knot.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug output")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress info output")
	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))
	cobra.CheckErr(viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet")))
}
