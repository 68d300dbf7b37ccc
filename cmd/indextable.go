package cmd

import (
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/samplesheet"
)

var indexTableCmd = &cobra.Command{
	Use:   "index-table",
	Short: "Print the barcode combinations each sample is keyed on",
	Long: `Compile the sample manifest against the chemistry profile and print one
line per lookup key: the sample, the key's barcodes and its 1-based index in
each channel. Channels that do not tell samples apart are shown as '*'
unless --no-mask is given.`,
	Example: "  sciatac_demux index-table --manifest samples.json --profile nextera.yaml",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, settingKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New(viper.GetViper())
		if err != nil {
			return err
		}
		if c.Manifest == "" || c.Profile == "" {
			return config.Errorf("--manifest and --profile are required")
		}
		p, t, err := loadTable(c)
		if err != nil {
			return err
		}
		return writeIndexTable(cmd.OutOrStdout(), p, t)
	},
}

func init() {
	addTableFlags(indexTableCmd)
	rootCmd.AddCommand(indexTableCmd)
}

// writeIndexTable writes the entries of t as a TSV. Ambiguous keys are
// listed with an empty sample.
func writeIndexTable(out io.Writer, p *chemistry.Profile, t *samplesheet.Table) error {
	w := tsv.NewWriter(out)
	w.WriteString("sample")
	w.WriteString("barcodes")
	for _, ch := range chemistry.KeyOrder {
		w.WriteString(ch.String())
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, e := range t.Entries() {
		w.WriteString(e.Sample)
		var seqs []string
		for _, ch := range chemistry.KeyOrder {
			if e.Key[ch] < 0 {
				seqs = append(seqs, "*")
				continue
			}
			seqs = append(seqs, p.Whitelists[ch][e.Key[ch]])
		}
		w.WriteString(strings.Join(seqs, "_"))
		for _, ch := range chemistry.KeyOrder {
			if e.Key[ch] < 0 {
				w.WriteString("*")
				continue
			}
			w.WriteString(strconv.Itoa(int(e.Key[ch]) + 1))
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
