// Package samplesheet loads the sample manifest of a run and compiles it
// into the table that assigns corrected barcodes to samples.
package samplesheet

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/Altius/stampipes/programs/sciatac_demux/config"
	"github.com/Altius/stampipes/programs/sciatac_demux/internal/chemistry"
)

// Sample is one manifest entry: the barcode slots allowed for the sample
// in each channel. Indices are 0-based positions in the channel whitelist
// and are indexed by chemistry.Channel.
type Sample struct {
	ID      string
	Indices [chemistry.NumChannels][]int
}

// manifestFile is the normalized manifest: index ranges already expanded
// to 1-based integers.
type manifestFile struct {
	Samples []struct {
		SampleID       string `json:"sample_id"`
		TagmentationI7 []int  `json:"tagmentation_i7"`
		PCRI7          []int  `json:"pcr_i7"`
		PCRI5          []int  `json:"pcr_i5"`
		TagmentationI5 []int  `json:"tagmentation_i5"`
	} `json:"samples"`
}

// LoadManifest reads a normalized JSON manifest.
func LoadManifest(filename string) ([]Sample, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}
	samples, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", filename)
	}
	return samples, nil
}

// ParseManifest decodes a normalized manifest and converts its 1-based
// indices to 0-based ones.
func ParseManifest(data []byte) ([]Sample, error) {
	var m manifestFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, config.Errorf("malformed manifest: %v", err)
	}
	seen := make(map[string]bool, len(m.Samples))
	samples := make([]Sample, 0, len(m.Samples))
	for _, ms := range m.Samples {
		id := strings.TrimSpace(ms.SampleID)
		if id == "" {
			return nil, config.Errorf("manifest sample without a sample_id")
		}
		if strings.ContainsAny(id, "/\\") {
			return nil, config.Errorf("sample id %q is not usable in a file name", id)
		}
		if seen[id] {
			return nil, config.Errorf("sample %s is listed more than once", id)
		}
		seen[id] = true

		s := Sample{ID: id}
		s.Indices[chemistry.TagI7] = ms.TagmentationI7
		s.Indices[chemistry.PCRI7] = ms.PCRI7
		s.Indices[chemistry.PCRI5] = ms.PCRI5
		s.Indices[chemistry.TagI5] = ms.TagmentationI5
		for _, ch := range chemistry.Channels {
			zero := make([]int, len(s.Indices[ch]))
			for i, v := range s.Indices[ch] {
				if v < 1 {
					return nil, config.Errorf("sample %s: %s index %d is not a 1-based index", id, ch, v)
				}
				zero[i] = v - 1
			}
			s.Indices[ch] = zero
		}
		samples = append(samples, s)
	}
	return samples, nil
}
