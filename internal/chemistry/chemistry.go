// Package chemistry describes the barcode channels of a combinatorial
// indexing library and the whitelists used to read them.
package chemistry

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/well"
)

// Channel is one of the four barcodes carried by every read.
type Channel int

// Channels in the order their segments appear in a read name.
const (
	TagI7 Channel = iota
	PCRI7
	PCRI5
	TagI5

	NumChannels = 4
)

// Channels lists every channel in read name order.
var Channels = [NumChannels]Channel{TagI7, PCRI7, PCRI5, TagI5}

// KeyOrder is the channel order of sample lookup keys.
var KeyOrder = [NumChannels]Channel{PCRI7, TagI7, TagI5, PCRI5}

var channelNames = [NumChannels]string{"tagmentation_i7", "pcr_i7", "pcr_i5", "tagmentation_i5"}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// IsI5 reports whether the channel is read from the P5 side.
func (c Channel) IsI5() bool { return c == PCRI5 || c == TagI5 }

// Profile is the barcode configuration of a run: one whitelist per channel
// in canonical (forward) orientation plus the flags that decide how the
// barcodes appear in reads.
type Profile struct {
	Name string
	// Whitelists is indexed by Channel.
	Whitelists [NumChannels][]string
	// TwoLevel selects two-level indexed Tn5 chemistry instead of three-level.
	TwoLevel bool
	// Wells384 selects the 384 well barcode sets.
	Wells384 bool
	// P5RC is set for instruments that read the i5 index reverse complemented.
	P5RC bool
}

type profileFile struct {
	Name           string   `mapstructure:"name"`
	TagmentationI7 []string `mapstructure:"tagmentation_i7"`
	PCRI7          []string `mapstructure:"pcr_i7"`
	PCRI5          []string `mapstructure:"pcr_i5"`
	TagmentationI5 []string `mapstructure:"tagmentation_i5"`
}

// LoadProfile reads the four whitelists from a yaml, json or toml file
// with keys tagmentation_i7, pcr_i7, pcr_i5 and tagmentation_i5.
func LoadProfile(path string, twoLevel, wells384, p5RC bool) (*Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading chemistry profile %s", path)
	}
	var f profileFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, errors.Wrapf(err, "decoding chemistry profile %s", path)
	}
	p := &Profile{
		Name:     f.Name,
		TwoLevel: twoLevel,
		Wells384: wells384,
		P5RC:     p5RC,
	}
	p.Whitelists[TagI7] = f.TagmentationI7
	p.Whitelists[PCRI7] = f.PCRI7
	p.Whitelists[PCRI5] = f.PCRI5
	p.Whitelists[TagI5] = f.TagmentationI5
	if p.Name == "" {
		p.Name = path
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "chemistry profile %s", path)
	}
	return p, nil
}

// Validate checks that the flags are consistent with each other and with
// the whitelists.
func (p *Profile) Validate() error {
	if p.TwoLevel && p.Wells384 {
		return config.Errorf("there is no 384 well barcode set for two-level indexed Tn5; two-level and 384 wells are mutually exclusive")
	}
	for _, ch := range Channels {
		wl := p.Whitelists[ch]
		if len(wl) == 0 {
			return config.Errorf("empty %s whitelist", ch)
		}
		if len(wl) > well.MaxSlots {
			return config.Errorf("%s whitelist has %d entries, at most %d are supported", ch, len(wl), well.MaxSlots)
		}
		if p.Wells384 && len(wl) != well.MaxSlots {
			return config.Errorf("384 well run but the %s whitelist has %d entries", ch, len(wl))
		}
	}
	return nil
}

// BarcodeLen returns the length of the channel's barcodes.
func (p *Profile) BarcodeLen(ch Channel) int {
	if len(p.Whitelists[ch]) == 0 {
		return 0
	}
	return len(p.Whitelists[ch][0])
}

// Oriented returns the channel's whitelist as it appears in reads. On P5
// reverse complement instruments the i5 barcodes are reverse complemented;
// entry i of the result always corresponds to entry i of the canonical
// whitelist.
func (p *Profile) Oriented(ch Channel) []string {
	wl := p.Whitelists[ch]
	if !p.P5RC || !ch.IsI5() {
		return wl
	}
	out := make([]string, len(wl))
	for i, s := range wl {
		out[i] = ReverseComplement(s)
	}
	return out
}

var complement = [256]byte{'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G', 'N': 'N'}

// ReverseComplement returns the reverse complement of an ACGTN sequence.
// Other bytes complement to N.
func ReverseComplement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := complement[s[len(s)-1-i]]
		if c == 0 {
			c = 'N'
		}
		out[i] = c
	}
	return string(out)
}
