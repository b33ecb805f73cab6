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

package util

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"github.com/twotwotwo/sorts/sortutil"
	"github.com/zeebo/wyhash"
)

// HashSeed is the seed of content hashes.
var HashSeed uint64 = 1

// FileHash returns the hash value of the (decompressed) content of a file.
// Files with the same content, e.g., a sequence uploaded twice, have the
// same hash value.
func FileHash(file string) (uint64, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return 0, errors.Wrap(err, file)
	}
	defer fh.Close()

	data, err := io.ReadAll(fh)
	if err != nil {
		return 0, errors.Wrap(err, file)
	}
	return wyhash.Hash(data, HashSeed), nil
}

// UniqUint64s removes duplicates in a uint64 list, the list is sorted.
func UniqUint64s(list *[]uint64) {
	if len(*list) == 0 || len(*list) == 1 {
		return
	}

	sortutil.Uint64s(*list)

	var i, j int
	var p, v uint64
	var flag bool
	p = (*list)[0]
	for i = 1; i < len(*list); i++ {
		v = (*list)[i]
		if v == p {
			if !flag {
				j = i // mark insertion position
				flag = true
			}
			continue
		}

		if flag { // need to insert to previous position
			(*list)[j] = v
			j++
		}
		p = v
	}
	if j > 0 {
		*list = (*list)[:j]
	}
}

// GroupByHash groups indexes of hash values by distinct values.
// Groups are in the order of first appearance, and indexes in a group
// are in ascending order.
func GroupByHash(hashes []uint64) [][]int {
	uniq := append(make([]uint64, 0, len(hashes)), hashes...)
	UniqUint64s(&uniq)

	groups := make([][]int, len(uniq))
	order := make([]int, 0, len(uniq))
	var j int
	for i, h := range hashes {
		j = sort.Search(len(uniq), func(k int) bool { return uniq[k] >= h })
		if groups[j] == nil {
			order = append(order, j)
		}
		groups[j] = append(groups[j], i)
	}

	sorted := make([][]int, len(order))
	for i, j := range order {
		sorted[i] = groups[j]
	}
	return sorted
}
