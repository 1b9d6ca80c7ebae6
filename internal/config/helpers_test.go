package config

import (
	"os"
	"strings"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0644)
}
