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
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/align"
	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/spf13/viper"
)

// keys shared by flags, the config file, and environment variables.
const (
	keyDB         = "db"
	keyBlastn     = "blastn"
	keyTimeout    = "timeout"
	keyExactMatch = "exact-match-threshold"
	keyMatchLen   = "match-len-threshold"
	keyHighProb   = "high-prob-threshold"
)

// Config is the content of a config file.
type Config struct {
	DB      string `toml:"db" comment:"Path prefix of the BLAST nucleotide database."`
	Blastn  string `toml:"blastn" comment:"Path of blastn."`
	Timeout string `toml:"timeout" comment:"Maximum time of aligning a query, 0 for no limit."`

	ExactMatch float64 `toml:"exact-match-threshold" comment:"Minimum percent identity of an exact match."`
	MatchLen   float64 `toml:"match-len-threshold" comment:"Minimum fraction of the query length an exact match should cover."`
	HighProb   float64 `toml:"high-prob-threshold" comment:"Minimum length-weighted average identity of a probable match."`
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	return &Config{
		DB:      "",
		Blastn:  align.DefaultOptions.Bin,
		Timeout: align.DefaultOptions.Timeout.String(),

		ExactMatch: matcher.DefaultThresholds.ExactMatch,
		MatchLen:   matcher.DefaultThresholds.MatchLen,
		HighProb:   matcher.DefaultThresholds.HighProb,
	}
}

// MarshalTOML returns the config in TOML format.
func (c *Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(c)
}

// setConfigDefaults sets the default values of all keys.
func setConfigDefaults(v *viper.Viper) {
	c := defaultConfig()
	v.SetDefault(keyDB, c.DB)
	v.SetDefault(keyBlastn, c.Blastn)
	v.SetDefault(keyTimeout, c.Timeout)
	v.SetDefault(keyExactMatch, c.ExactMatch)
	v.SetDefault(keyMatchLen, c.MatchLen)
	v.SetDefault(keyHighProb, c.HighProb)
}

// thresholdsFromConfig returns validated thresholds.
func thresholdsFromConfig(v *viper.Viper) (matcher.Thresholds, error) {
	th := matcher.Thresholds{
		ExactMatch: v.GetFloat64(keyExactMatch),
		MatchLen:   v.GetFloat64(keyMatchLen),
		HighProb:   v.GetFloat64(keyHighProb),
	}
	return th, th.Validate()
}

// alignOptionsFromConfig returns aligner options, the number of threads
// is not part of the config.
func alignOptionsFromConfig(v *viper.Viper) (align.Options, error) {
	opt := align.DefaultOptions

	db, err := homedir.Expand(v.GetString(keyDB))
	if err != nil {
		return opt, errors.Wrap(err, keyDB)
	}
	if db == "" {
		return opt, errors.Errorf("BLAST database not given, please set it with flag -d/--db or in the config file")
	}
	opt.DB = db

	bin, err := homedir.Expand(v.GetString(keyBlastn))
	if err != nil {
		return opt, errors.Wrap(err, keyBlastn)
	}
	if bin != "" {
		opt.Bin = bin
	}

	// GetDuration would silently return 0 for an invalid value.
	if s := v.GetString(keyTimeout); s != "" {
		timeout, err := time.ParseDuration(s)
		if err != nil {
			return opt, errors.Wrapf(err, "invalid timeout: %s", s)
		}
		if timeout < 0 {
			return opt, errors.Errorf("negative timeout: %s", s)
		}
		opt.Timeout = timeout
	}
	return opt, nil
}
