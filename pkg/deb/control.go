package deb

import (
	"bufio"
	"io"
	"strings"
)

// ControlFields is the parsed form of a Debian control file: an ordered
// key/value map. Debian control files are RFC-822-like: "Key: value" lines,
// with continuation lines indented by at least one space or tab.
type ControlFields struct {
	order  []string
	values map[string]string
}

// Get looks up a field case-sensitively by its canonical capitalized name
// (e.g. "Package", "Pre-Depends").
func (c *ControlFields) Get(key string) string {
	return c.values[key]
}

// parseControl parses the RFC-822-style stanza found in a .deb's control
// member. Only the first stanza is consumed; .deb control files never
// carry more than one.
func parseControl(r io.Reader) (*ControlFields, error) {
	fields := &ControlFields{values: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentKey string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentKey == "" {
				continue
			}
			cont := strings.TrimPrefix(line, " ")
			if cont == "." {
				cont = ""
			}
			fields.values[currentKey] += "\n" + cont
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if _, exists := fields.values[key]; !exists {
			fields.order = append(fields.order, key)
		}
		fields.values[key] = value
		currentKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}
