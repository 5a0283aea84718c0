package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/profile"
	"github.com/JonMunkholm/flatload/internal/source"
)

// parserFlags registers the parser settings shared by the file commands.
type parserFlags struct {
	fs          *flag.FlagSet
	profile     string
	encoding    string
	compression string
}

var overrideFlags = []struct {
	name  string
	usage string
}{
	{profile.KeyDelimiter, `column delimiter ("tab", "pipe" and "space" are accepted)`},
	{profile.KeyQualifier, `text qualifier, "none" disables quoting`},
	{profile.KeyEscape, "escape character"},
	{profile.KeyComment, "comment leader"},
	{profile.KeyWidths, "comma-separated column widths (fixed-width mode)"},
	{profile.KeyHeader, "first row is a header (true/false)"},
	{profile.KeyTrim, "trim field whitespace (true/false)"},
	{profile.KeyStrip, "strip control characters (true/false)"},
	{profile.KeySkipEmpty, "skip empty rows (true/false)"},
	{profile.KeySkip, "skip this many leading data rows"},
	{profile.KeyMax, "stop after this many data rows"},
	{profile.KeyExpected, "required column count"},
	{profile.KeyBuffer, "parser buffer size in bytes"},
}

func newParserFlags(name string) *parserFlags {
	pf := &parserFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	pf.fs.StringVar(&pf.profile, "profile", "", "YAML parser profile")
	pf.fs.StringVar(&pf.encoding, "encoding", "", "text encoding label (default PARSER_ENCODING or utf-8)")
	pf.fs.StringVar(&pf.compression, "compression", "", "gzip, bzip2, xz, zstd or none (default: from extension)")
	for _, f := range overrideFlags {
		pf.fs.String(f.name, "", f.usage)
	}
	return pf
}

// parse parses args and checks the positional count.
func (pf *parserFlags) parse(args []string, positional ...string) ([]string, error) {
	if err := pf.fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if pf.fs.NArg() != len(positional) {
		return nil, fmt.Errorf("%w: flatload %s [flags] %v", errUsage, pf.fs.Name(), positional)
	}
	return pf.fs.Args(), nil
}

// config resolves environment defaults, the profile and explicit flags.
func (pf *parserFlags) config(cfg *config.Config) (flatfile.Config, error) {
	var base flatfile.Config
	var err error
	if pf.profile != "" {
		base, err = profile.LoadFile(pf.profile)
	} else {
		base, err = cfg.Parser.Flatfile()
	}
	if err != nil {
		return flatfile.Config{}, err
	}

	values := url.Values{}
	pf.fs.Visit(func(f *flag.Flag) {
		for _, o := range overrideFlags {
			if o.name == f.Name {
				values.Set(f.Name, f.Value.String())
			}
		}
	})
	return profile.Override(base, values)
}

// open builds a parser over path, "-" meaning standard input.
func (pf *parserFlags) open(cfg *config.Config, path string) (*flatfile.Parser, *source.Reader, error) {
	pcfg, err := pf.config(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := source.Options{Encoding: cfg.Parser.Encoding}
	if pf.encoding != "" {
		opts.Encoding = pf.encoding
	}
	if opts.Compression, err = source.ParseCompression(pf.compression); err != nil {
		return nil, nil, err
	}

	var r *source.Reader
	if path == "-" {
		r, err = source.NewReader(os.Stdin, opts)
	} else {
		r, err = source.Open(path, opts)
	}
	if err != nil {
		return nil, nil, err
	}

	p, err := flatfile.New(pcfg)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	if err := p.SetDataSource(r); err != nil {
		r.Close()
		return nil, nil, err
	}
	return p, r, nil
}
