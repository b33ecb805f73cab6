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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/align"
	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	c.DB = "/data/blastdb/refs"

	data, err := c.MarshalTOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "high-prob-threshold")

	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))

	th, err := thresholdsFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, matcher.DefaultThresholds, th)

	opt, err := alignOptionsFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/blastdb/refs", opt.DB)
	assert.Equal(t, align.DefaultOptions.Bin, opt.Bin)
	assert.Equal(t, align.DefaultOptions.Timeout, opt.Timeout)
}

func newTestViper() *viper.Viper {
	v := viper.New()
	setConfigDefaults(v)
	v.SetEnvPrefix("BACMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BACMATCH_HIGH_PROB_THRESHOLD", "96.2")
	t.Setenv("BACMATCH_DB", "refs")
	t.Setenv("BACMATCH_TIMEOUT", "90s")

	v := newTestViper()

	th, err := thresholdsFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 96.2, th.HighProb)
	assert.Equal(t, matcher.DefaultThresholds.ExactMatch, th.ExactMatch)
	assert.Equal(t, matcher.DefaultThresholds.MatchLen, th.MatchLen)

	opt, err := alignOptionsFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "refs", opt.DB)
	assert.Equal(t, 90*time.Second, opt.Timeout)
}

func TestConfigInvalid(t *testing.T) {
	v := newTestViper()

	_, err := alignOptionsFromConfig(v)
	assert.Error(t, err, "missing database")

	v.Set(keyDB, "refs")
	v.Set(keyTimeout, "ten minutes")
	_, err = alignOptionsFromConfig(v)
	assert.Error(t, err)

	v.Set(keyTimeout, "-1m")
	_, err = alignOptionsFromConfig(v)
	assert.Error(t, err)

	v.Set(keyTimeout, "0")
	opt, err := alignOptionsFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), opt.Timeout)

	v.Set(keyMatchLen, 1.5)
	_, err = thresholdsFromConfig(v)
	assert.True(t, errors.Is(err, matcher.ErrInvalidThresholds))
}
