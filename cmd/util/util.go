// File: cmd/util/util.go
// Author: momentics <momentics@gmail.com>
//
// Flag wrapping and environment setup shared by the commands.

package util

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-relay/api"
)

const (
	// Version of the relay binary.
	Version = "0.3.0"

	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix prefixes every environment override, e.g. HIOLOAD_CLIENT_PORT.
	EnvPrefix = "hioload"
)

var startedAt = time.Now()

// ServiceInfo describes the running binary.
func ServiceInfo() api.ServiceInfo {
	return api.ServiceInfo{Name: "hioload-relay", Version: Version, StartedAt: startedAt}
}

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// InitEnv loads .env files and routes HIOLOAD_* variables through viper.
func InitEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
