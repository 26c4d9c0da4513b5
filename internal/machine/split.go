package machine

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

// Splits enumerates every way to fill the unknown parts (mask[i] false)
// so that the parts, concatenated in order, equal target. Known parts are
// read from parts[i]. Each yielded slice holds the unknown parts in order
// and is owned by the caller.
//
// Cuts fall on rune boundaries. The enumeration is finite and can only be
// restarted by ranging over the sequence again.
func Splits(target string, mask []bool, parts []string) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		// tail[i] is the total length of known parts from i on, and
		// lastUnknown[i] reports that no unknown part follows i.
		tail := make([]int, len(mask)+1)
		lastUnknown := make([]bool, len(mask)+1)
		lastUnknown[len(mask)] = true
		for i := len(mask) - 1; i >= 0; i-- {
			tail[i] = tail[i+1]
			lastUnknown[i] = lastUnknown[i+1]
			if mask[i] {
				tail[i] += len(parts[i])
			} else {
				lastUnknown[i] = false
			}
		}

		out := make([]string, 0, len(mask))
		var walk func(i, pos int) bool
		walk = func(i, pos int) bool {
			if i == len(mask) {
				if pos != len(target) {
					return true
				}
				return yield(slices.Clone(out))
			}
			rest := target[pos:]
			if mask[i] {
				if !strings.HasPrefix(rest, parts[i]) {
					return true
				}
				return walk(i+1, pos+len(parts[i]))
			}
			if lastUnknown[i+1] {
				// The remaining known parts fix this part's length.
				end := len(target) - tail[i+1]
				if end < pos || (end < len(target) && !utf8.RuneStart(target[end])) {
					return true
				}
				out = append(out, target[pos:end])
				ok := walk(i+1, end)
				out = out[:len(out)-1]
				return ok
			}
			for _, cut := range runeCuts(rest) {
				out = append(out, rest[:cut])
				ok := walk(i+1, pos+cut)
				out = out[:len(out)-1]
				if !ok {
					return false
				}
			}
			return true
		}
		walk(0, 0)
	}
}
