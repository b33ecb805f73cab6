// Copyright © 2024-2025 The bacmatch Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "bacmatch",
	Short: "Identify bacteria from sequences with BLAST and rank candidate matches",
	Long: fmt.Sprintf(`
   bacmatch: identify bacteria from sequences with BLAST and rank candidate matches

 Version: v%s

 A query is first checked for exact matches: single hits with percent identity
 >= --exact-match-threshold and covering >= --match-len-threshold of the query.
 Otherwise, hits of each reference are aggregated into a length-weighted average
 identity, and references with values >= --high-prob-threshold are probable matches.

 Thresholds and the BLAST database can also be set in a TOML config file
 (see "bacmatch utils default-config") or environment variables with
 the prefix BACMATCH_, e.g., BACMATCH_HIGH_PROB_THRESHOLD=96.2.

`, VERSION),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	defaultThreads := runtime.NumCPU()

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads,
		formatFlagUsage("Number of CPU cores to use. By default, it uses all available cores."))

	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage("Do not print any verbose information. But you can write them to a file with --log."))

	RootCmd.PersistentFlags().StringP("infile-list", "X", "",
		formatFlagUsage("File of input file list (one file per line). If given, they are appended to files from CLI arguments."))

	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Log file."))

	RootCmd.PersistentFlags().StringP("config", "", "",
		formatFlagUsage(`Config file in TOML format. By default, "./bacmatch.toml" or "~/.config/bacmatch/bacmatch.toml" is used if existed.`))

	RootCmd.CompletionOptions.DisableDefaultCmd = true

	RootCmd.SetUsageTemplate(usageTemplate(""))
}

// configName is the base name of the default config file.
const configName = "bacmatch"

// initConfig makes viper read the config file and environment variables.
// Values of flags given in the command line always have a higher priority.
func initConfig(cmd *cobra.Command) {
	cfgFile := getFlagString(cmd, "config")
	if cfgFile != "" {
		file, err := homedir.Expand(cfgFile)
		checkError(err)
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")

		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	setConfigDefaults(viper.GetViper())

	viper.SetEnvPrefix("BACMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			checkError(fmt.Errorf("failed to read config file: %s", err))
		}
	} else if !getFlagBool(cmd, "quiet") {
		log.Infof("using config file: %s", viper.ConfigFileUsed())
	}
}

// bindFlags binds flags of a command to viper keys with the same names.
// It should be called in the Run function, as different commands may
// have flags of the same names.
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			checkError(fmt.Errorf("flag not defined: %s", name))
		}
		checkError(viper.BindPFlag(name, f))
	}
}
