// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package operation

import (
	"bytes"

	"github.com/google/btree"
)

type sortItem struct {
	key   Key
	entry Entry
}

func lessSortItem(a, b sortItem) bool {
	if c := bytes.Compare(a.key[:], b.key[:]); c != 0 {
		return c < 0
	}
	return a.entry.RWC < b.entry.RWC
}

// Sorted returns the log of target ordered by key and then by rw counter,
// which is the order the state circuit consumes it in.
func (c *Container) Sorted(target Target) []Entry {
	entries := c.Entries(target)
	tree := btree.NewG[sortItem](32, lessSortItem)
	for _, e := range entries {
		tree.ReplaceOrInsert(sortItem{key: e.Op.Key(), entry: e})
	}
	out := make([]Entry, 0, tree.Len())
	tree.Ascend(func(item sortItem) bool {
		out = append(out, item.entry)
		return true
	})
	return out
}
