package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/profile"
	"github.com/JonMunkholm/flatload/internal/source"
)

// Preview row limits.
const (
	defaultPreviewRows = 20
	maxPreviewRows     = 1000
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parserConfig applies query parameters over the configured defaults.
func parserConfig(defaults *config.ParserConfig, q url.Values) (flatfile.Config, error) {
	base, err := defaults.Flatfile()
	if err != nil {
		return flatfile.Config{}, err
	}
	return profile.Override(base, q)
}

// sourceOptions reads encoding and compression, falling back to the
// configured encoding.
func sourceOptions(defaults *config.ParserConfig, q url.Values) (source.Options, error) {
	opts := source.Options{Encoding: defaults.Encoding}
	if q.Has("encoding") {
		opts.Encoding = q.Get("encoding")
	}
	c, err := source.ParseCompression(q.Get("compression"))
	if err != nil {
		return source.Options{}, err
	}
	opts.Compression = c
	return opts, nil
}
