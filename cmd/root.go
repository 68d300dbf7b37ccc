// Package cmd is for command line interactions with sciatac_demux
package cmd

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
)

var (
	cfgFile    string
	cpuprofile string
	memprofile string

	cpuprofileFile *os.File
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "sciatac_demux",
	Short: `Demultiplex sci-ATAC-seq reads by their combinatorial barcodes.
Reads are assigned to samples by their tagmentation and PCR barcodes`,
	Version:            "0.1.0",
	SilenceUsage:       true,
	PersistentPreRunE:  startProfiling,
	PersistentPostRunE: stopProfiling,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "read settings from `file` (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	rootCmd.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to `file`")
}

// initConfig reads the settings file, if any. Flags override it.
func initConfig() {
	config.SetDefaults(viper.GetViper())
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("could not read config file %s: %v", cfgFile, err)
	}
	log.Printf("using settings from %s", viper.ConfigFileUsed())
}

// bindFlags binds the flags of the command being run to their viper
// keys. Subcommands share key names, so binding happens per run rather
// than in init.
func bindFlags(cmd *cobra.Command, keys []string) error {
	for _, key := range keys {
		f := cmd.Flags().Lookup(key)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "binding flag --%s", key)
		}
	}
	return nil
}

func startProfiling(cmd *cobra.Command, args []string) error {
	if cpuprofile == "" {
		return nil
	}
	f, err := os.Create(cpuprofile)
	if err != nil {
		return errors.Wrap(err, "could not create CPU profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, "could not start CPU profile")
	}
	cpuprofileFile = f
	return nil
}

func stopProfiling(cmd *cobra.Command, args []string) error {
	if cpuprofileFile != nil {
		pprof.StopCPUProfile()
		cpuprofileFile.Close()
	}
	if memprofile == "" {
		return nil
	}
	f, err := os.Create(memprofile)
	if err != nil {
		return errors.Wrap(err, "could not create memory profile")
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	return errors.Wrap(pprof.WriteHeapProfile(f), "could not write memory profile")
}
