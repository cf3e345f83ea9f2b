package conversation

import "strings"

var (
	messageOpen  = "<" + tagMessage + ">"
	messageClose = "</" + tagMessage + ">"
)

// MessageFilter passes through only the content of the first <message> section
// of a reply that arrives in chunks. Tags may be split across chunk boundaries.
type MessageFilter struct {
	pending string
	inside  bool
	done    bool
}

// Feed consumes the next raw chunk and returns the displayable part of it.
func (f *MessageFilter) Feed(chunk string) string {
	if f.done {
		return ""
	}

	f.pending += chunk

	if !f.inside {
		i := strings.Index(f.pending, messageOpen)
		if i < 0 {
			f.pending = f.pending[len(f.pending)-partialSuffix(f.pending, messageOpen):]
			return ""
		}

		f.pending = f.pending[i+len(messageOpen):]
		f.inside = true
	}

	if i := strings.Index(f.pending, messageClose); i >= 0 {
		out := f.pending[:i]
		f.pending = ""
		f.done = true

		return out
	}

	keep := partialSuffix(f.pending, messageClose)
	out := f.pending[:len(f.pending)-keep]
	f.pending = f.pending[len(f.pending)-keep:]

	return out
}

// partialSuffix returns the length of the longest suffix of s that is a proper prefix of tag.
func partialSuffix(s, tag string) int {
	for n := min(len(s), len(tag)-1); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}

	return 0
}
