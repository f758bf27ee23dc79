package uploads

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to an ASCII file name without path parts.
// Whitespace becomes underscores and leading or trailing dots are removed.
// The result may be empty.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var ascii strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			ascii.WriteRune(r)
		}
	}

	s := strings.NewReplacer("/", " ", `\`, " ").Replace(ascii.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	return strings.Trim(s, "._")
}

// StagedKey names a staged object. requestID keeps concurrent uploads of the
// same user apart.
func StagedKey(username, requestID, filename string) string {
	owner := SecureFilename(username)
	if owner == "" {
		owner = "user"
	}
	return fmt.Sprintf("%s_%s_%s", owner, requestID, filename)
}
