// Package dumpurl builds dump listing and file URLs from the configured
// templates. Everything in here is pure string and URL construction.
package dumpurl

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cperrin88/wikidumps/pkg/dumpdate"
	"github.com/cperrin88/wikidumps/pkg/errors"
)

// Builder turns a language, dump date and file name into URLs below BaseURL.
type Builder struct {
	base      *url.URL
	directory Template
	fileName  Template
}

// NewBuilder parses baseURL and validates both templates up front.
func NewBuilder(baseURL string, directory, fileName Template) (*Builder, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBaseURL, err.Error())
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URL", errors.ErrBaseURL, baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if err := directory.Validate(KeyLangcode); err != nil {
		return nil, err
	}
	if err := fileName.Validate(KeyLangcode, KeyDate, KeyFilename, KeyFiletype); err != nil {
		return nil, err
	}
	return &Builder{base: base, directory: directory, fileName: fileName}, nil
}

// LanguageDirectory returns the directory path of a language relative to the base URL.
func (b *Builder) LanguageDirectory(language string) (string, error) {
	dir, err := b.directory.Expand(map[string]string{KeyLangcode: language})
	if err != nil {
		return "", err
	}
	return strings.Trim(dir, "/"), nil
}

// ListingURL returns the URL of the page listing all dump dates of a language.
func (b *Builder) ListingURL(language string) (*url.URL, error) {
	dir, err := b.LanguageDirectory(language)
	if err != nil {
		return nil, err
	}
	return b.resolve(dir + "/")
}

// FileName expands the file name template.
func (b *Builder) FileName(language string, date dumpdate.Date, filename, filetype string) (string, error) {
	return b.fileName.Expand(map[string]string{
		KeyLangcode: language,
		KeyDate:     date.String(),
		KeyFilename: filename,
		KeyFiletype: filetype,
	})
}

// FileURL returns the absolute URL of one dump file:
// <base>/<language directory>/<YYYYMMDD>/<file name>.
func (b *Builder) FileURL(language string, date dumpdate.Date, filename, filetype string) (*url.URL, error) {
	dir, err := b.LanguageDirectory(language)
	if err != nil {
		return nil, err
	}
	name, err := b.FileName(language, date, filename, filetype)
	if err != nil {
		return nil, err
	}
	// path.Join would climb out of the date directory.
	if name == "." || name == ".." {
		return nil, fmt.Errorf("%w: file name %q is not a file", errors.ErrTemplate, name)
	}
	return b.resolve(path.Join(dir, date.String(), name))
}

func (b *Builder) resolve(rel string) (*url.URL, error) {
	if strings.HasPrefix(rel, "/") || strings.Contains(rel, "://") {
		return nil, fmt.Errorf("%w: %q must be relative to base_url", errors.ErrTemplate, rel)
	}
	return b.base.ResolveReference(&url.URL{Path: rel}), nil
}
