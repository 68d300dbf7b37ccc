package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/demux"
)

var (
	orientationSkip    int64
	orientationExamine int64
)

// orientationCmd guesses whether an instrument reads i5 reverse complemented.
var orientationCmd = &cobra.Command{
	Use:   "orientation",
	Short: "Guess whether the run's i5 barcodes are reverse complemented",
	Long: `Correct the PCR i5 barcode of a window of R1 reads against the whitelist
and its reverse complement, and print the fraction that corrected in each
orientation. Use the result to set --p5-rc.`,
	Example: "  sciatac_demux orientation --r1 Undetermined_S0_L001_R1_001.fastq.gz --profile nextera.yaml",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, settingKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New(viper.GetViper())
		if err != nil {
			return err
		}
		if c.R1 == "" || c.Profile == "" {
			return config.Errorf("--r1 and --profile are required")
		}
		p, err := chemistry.LoadProfile(c.Profile, c.TwoLevel, c.Wells384, false)
		if err != nil {
			return err
		}
		res, err := demux.ProbeOrientation(c.R1, p, c.MaxMismatches, orientationSkip, orientationExamine)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "examined\t%d\nfrac_fwd\t%.4f\nfrac_rev\t%.4f\np5_rc\t%t\n",
			res.Examined, res.ForwardFraction(), res.ReverseFraction(), res.P5RC())
		return nil
	},
}

func init() {
	f := orientationCmd.Flags()
	f.String("r1", "", "R1 FASTQ `file` (plain or gzipped)")
	f.String("profile", "", "chemistry profile `file` with the four whitelists")
	f.Bool("two-level-indexed-tn5", false, "two-level indexed Tn5 chemistry")
	f.Bool("wells-384", false, "384 well barcode sets")
	f.Int("max-mismatches", 2, "maximum substitutions corrected per barcode")
	f.Int64Var(&orientationSkip, "skip", 1000000, "reads to skip before examining")
	f.Int64Var(&orientationExamine, "examine", 10000, "reads to examine")

	rootCmd.AddCommand(orientationCmd)
}
