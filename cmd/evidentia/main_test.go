package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"

	"github.com/jonathan/evidentia/internal/logging"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	// Try to load .env file - ignore error if it doesn't exist (CI environment)
	_ = godotenv.Load()
	homedir.DisableCache = true
	logging.SetOutput(io.Discard)

	os.Exit(m.Run())
}

// offline points HOME at an empty directory and clears credentials so every
// command runs without a model or search backend.
func offline(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "MODEL_PROVIDER", "GEMINI_MODEL",
		"SEARCH_API_PROVIDER", "SEARCH_API_KEY", "TAVILY_API_KEY",
		"GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_CX", "DATABASE_URL",
		"LOG_LEVEL", "LOG_FORMAT", "PORT",
	} {
		t.Setenv(name, "")
	}
}

// execute runs a fresh command tree and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
