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

package matcher

import (
	"math"

	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/hits"
)

// ErrInvalidThresholds means a threshold is out of its valid range.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Thresholds controls how hits are classified.
type Thresholds struct {
	// Minimum percent identity of an exact match, in (0, 100].
	ExactMatch float64 `toml:"exact-match-threshold" yaml:"exact-match-threshold" mapstructure:"exact-match-threshold"`
	// Minimum fraction of the query length an exact match should cover, in (0, 1].
	MatchLen float64 `toml:"match-len-threshold" yaml:"match-len-threshold" mapstructure:"match-len-threshold"`
	// Minimum length-weighted average identity of a probable match, in [0, 100].
	HighProb float64 `toml:"high-prob-threshold" yaml:"high-prob-threshold" mapstructure:"high-prob-threshold"`
}

// DefaultThresholds is the default thresholds.
var DefaultThresholds = Thresholds{
	ExactMatch: 99.9,
	MatchLen:   0.9,
	HighProb:   94,
}

// Validate checks the ranges of the thresholds.
func (th Thresholds) Validate() error {
	if !(th.ExactMatch > 0 && th.ExactMatch <= 100) {
		return errors.Wrapf(ErrInvalidThresholds, "exact match threshold should be in range of (0, 100]: %v", th.ExactMatch)
	}
	if !(th.MatchLen > 0 && th.MatchLen <= 1) {
		return errors.Wrapf(ErrInvalidThresholds, "match length threshold should be in range of (0, 1]: %v", th.MatchLen)
	}
	if !(th.HighProb >= 0 && th.HighProb <= 100) {
		return errors.Wrapf(ErrInvalidThresholds, "high probability threshold should be in range of [0, 100]: %v", th.HighProb)
	}
	return nil
}

// epsilon absorbs the rounding error of qlen*MatchLen,
// e.g., 1000*0.9 should need 900 bases, not 901.
const epsilon = 1e-9

// MinAlignLen returns the minimum alignment length of an exact match
// for a query of qlen bases, i.e., ceil(qlen * MatchLen).
func (th Thresholds) MinAlignLen(qlen int) int {
	return int(math.Ceil(float64(qlen)*th.MatchLen - epsilon))
}

// IsExact tells whether a single hit is conclusive for a query of qlen bases.
func (th Thresholds) IsExact(h *hits.Hit, qlen int) bool {
	return h.PIdent >= th.ExactMatch && h.Length >= th.MinAlignLen(qlen)
}
