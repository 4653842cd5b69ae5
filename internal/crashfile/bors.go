package crashfile

import (
	"strconv"
	"strings"
)

// borsPrefix starts the subject line of every bors merge commit on the
// rust-lang/rust main branch: "Auto merge of #147900 - user:branch, r=reviewer".
const borsPrefix = "Auto merge of #"

// PRNumber extracts the pull request number from a bors merge commit
// message. Returns false for commits that are not bors merges; a "#NNN"
// mentioned elsewhere in the message does not count.
func PRNumber(message string) (uint64, bool) {
	idx := strings.Index(message, borsPrefix)
	if idx < 0 {
		return 0, false
	}
	rest := message[idx+len(borsPrefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
