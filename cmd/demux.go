package cmd

import (
	"context"
	"time"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/demux"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/layout"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/samplesheet"
)

// settingKeys are the viper keys that may be set by flags.
var settingKeys = []string{
	"r1", "r2", "manifest", "profile", "out-dir", "run-name", "lane",
	"two-level-indexed-tn5", "wells-384", "p5-rc", "well-ids", "recipe",
	"no-mask", "collision-policy", "max-mismatches", "allow-n",
	"threads", "chunk-size", "compress", "min-valid-fraction",
}

// demuxCmd splits a paired run into one pair of FASTQ files per sample.
var demuxCmd = &cobra.Command{
	Use:   "demux",
	Short: "Assign read pairs to samples and write per-sample FASTQ files",
	Long: `Demultiplex a paired-end sci-ATAC-seq run.

The four barcodes of every read are taken from the end of its R1 name,
corrected against the chemistry profile's whitelists and looked up in the
sample manifest. Assigned pairs are written to
<out-dir>/<sample>-<run-name>_<lane>_R{1,2}.fastq[.gz]; run statistics and
count tables are written next to them.`,
	Example: "  sciatac_demux demux --r1 Undetermined_S0_L001_R1_001.fastq.gz --r2 Undetermined_S0_L001_R2_001.fastq.gz \\\n" +
		"    --manifest samples.json --profile nextera.yaml --out-dir out --threads 8",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, settingKeys)
	},
	RunE: runDemux,
}

func init() {
	f := demuxCmd.Flags()
	addTableFlags(demuxCmd)
	f.String("r1", "", "R1 FASTQ `file` (plain or gzipped)")
	f.String("r2", "", "R2 FASTQ `file` (plain or gzipped)")
	f.String("out-dir", ".", "output directory")
	f.String("run-name", "RUN001", "run name used in output file names")
	f.String("lane", "", "lane used in output file names (default: from the R1 file name)")
	f.Bool("well-ids", false, "label reads with plate wells instead of barcode sequences")
	f.Int("recipe", 0, "read layout recipe, overriding the one chosen by the chemistry flags")
	f.Int("max-mismatches", 2, "maximum substitutions corrected per barcode")
	f.Bool("allow-n", true, "allow N in corrected barcodes")
	f.Int("threads", 1, "number of chunks classified concurrently")
	f.Int("chunk-size", 10000, "read pairs per chunk")
	f.Bool("compress", true, "gzip the sample outputs after a successful run")
	f.Float64("min-valid-fraction", 0.05, "fail the run when fewer reads than this have four valid barcodes")

	rootCmd.AddCommand(demuxCmd)
}

// addTableFlags adds the flags needed to compile the sample table.
func addTableFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("manifest", "", "sample manifest `file` (json)")
	f.String("profile", "", "chemistry profile `file` with the four whitelists")
	f.Bool("two-level-indexed-tn5", false, "two-level indexed Tn5 chemistry")
	f.Bool("wells-384", false, "384 well barcode sets")
	f.Bool("p5-rc", false, "the instrument reads i5 reverse complemented")
	f.Bool("no-mask", false, "key samples on all four channels")
	f.String("collision-policy", config.PolicyLastWins, "what to do when samples share a barcode combination: last-wins, reject or unassigned")
}

// loadTable reads the profile and manifest named by c and compiles them.
func loadTable(c *config.Config) (*chemistry.Profile, *samplesheet.Table, error) {
	p, err := chemistry.LoadProfile(c.Profile, c.TwoLevel, c.Wells384, c.P5RC)
	if err != nil {
		return nil, nil, err
	}
	samples, err := samplesheet.LoadManifest(c.Manifest)
	if err != nil {
		return nil, nil, err
	}
	policy, err := samplesheet.ParsePolicy(c.CollisionPolicy)
	if err != nil {
		return nil, nil, err
	}
	t, err := samplesheet.Compile(samples, p.Whitelists, samplesheet.Options{NoMask: c.NoMask, Policy: policy})
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

func runDemux(cmd *cobra.Command, args []string) error {
	start := time.Now()
	c, err := config.New(viper.GetViper())
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	p, table, err := loadTable(c)
	if err != nil {
		return err
	}
	recipe, err := layout.ForProfile(p, c.Recipe)
	if err != nil {
		return err
	}
	e, err := demux.New(p, recipe, table, demux.Options{
		OutDir:           c.OutDir,
		RunName:          c.RunName,
		Lane:             c.Lane,
		WellIDs:          c.WellIDs,
		MaxMismatches:    c.MaxMismatches,
		AllowN:           c.AllowN,
		Threads:          c.Threads,
		ChunkSize:        c.ChunkSize,
		MinValidFraction: c.MinValidFraction,
		Compress:         c.Compress,
	})
	if err != nil {
		return err
	}
	stats, err := e.Run(context.Background(), c.R1, c.R2)
	if err != nil {
		return err
	}
	log.Printf("%d of %d read pairs had four valid barcodes, %d were assigned to %d samples; done in %v",
		stats.AllBarcodes, stats.TotalInput, stats.AllBarcodes-stats.NotSpecified, len(table.Samples()), time.Since(start))
	return nil
}
