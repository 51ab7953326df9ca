package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io"
	"os"
	"strings"
)

//go:embed censored/words.txt
var censoredFolder embed.FS

// LoadWords returns the censored word list. When path is empty the embedded
// default list is used.
func LoadWords(path string) ([]string, error) {
	if path == "" {
		data, err := censoredFolder.ReadFile("censored/words.txt")
		if err != nil {
			return nil, err
		}
		return parseWords(bytes.NewReader(data))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseWords(f)
}

func parseWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}
