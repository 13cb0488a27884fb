/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "goami",
	Short: "Conservative mapping between non-matching surface meshes",
	Long: `
Builds the Arbitrary Mesh Interface between two surface patches: for every
face, the faces of the other patch it overlaps and the overlap areas, then
transfers fields through them without losing their integral.

goami map -I interface.yaml -n 4
goami demo --shape cylinder`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch p := viper.GetString("profile"); p {
		case "":
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."))
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."))
		default:
			fmt.Printf("unknown profile %q, have [cpu mem]\n", p)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.goami.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "write a pprof profile of the run: cpu or mem")
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".goami" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".goami")
	}
	viper.SetEnvPrefix("GOAMI")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
