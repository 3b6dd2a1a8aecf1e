package export

import (
	"bytes"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

var (
	diffHeader = []byte("diff --git ")
	signature  = []byte("\n-- \n")
)

// TouchedFiles lists the repository paths changed by a mail patch or a
// unified diff, in order of appearance. Deleted files are reported under
// their old name.
func TouchedFiles(patch []byte) ([]string, error) {
	body := diffBody(patch)
	if len(body) == 0 {
		return nil, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff(body)
	if err != nil {
		// Fall back to the git headers, which is all wiggle needs
		return headerFiles(body), nil
	}

	var files []string
	seen := map[string]bool{}
	for _, fd := range fileDiffs {
		name := stripPrefix(fd.NewName)
		if fd.NewName == "" || fd.NewName == "/dev/null" {
			name = stripPrefix(fd.OrigName)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		files = append(files, name)
	}
	if len(files) == 0 {
		return headerFiles(body), nil
	}
	return files, nil
}

// diffBody drops the mail headers, message and diffstat before the first
// file header, and the "-- " version signature format-patch appends
func diffBody(patch []byte) []byte {
	start := bytes.Index(patch, diffHeader)
	if start < 0 {
		return nil
	}
	body := patch[start:]
	if end := bytes.LastIndex(body, signature); end >= 0 {
		body = body[:end+1]
	}
	return body
}

func headerFiles(body []byte) []string {
	var files []string
	seen := map[string]bool{}
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, string(diffHeader)) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, string(diffHeader)))
		if len(fields) == 0 {
			continue
		}
		name := stripPrefix(fields[0])
		if !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	}
	return files
}

func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
