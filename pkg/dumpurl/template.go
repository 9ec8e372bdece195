package dumpurl

import (
	"fmt"
	"strings"

	"github.com/cperrin88/wikidumps/pkg/errors"
)

// Placeholder keys understood by the templates.
const (
	KeyLangcode = "langcode"
	KeyDate     = "date"
	KeyFilename = "filename"
	KeyFiletype = "filetype"
)

// TemplateError reports a template that cannot be expanded. It is a
// configuration defect and matches errors.ErrTemplate.
type TemplateError struct {
	Template string
	Key      string
	Reason   string
}

func (e *TemplateError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("template %q: unknown placeholder {%s}", e.Template, e.Key)
	}
	return fmt.Sprintf("template %q: %s", e.Template, e.Reason)
}

// Is makes TemplateError match errors.ErrTemplate and its categories.
func (e *TemplateError) Is(target error) bool {
	return target == errors.ErrTemplate || target == errors.ErrConfiguration
}

// Template is a string with {name} placeholders. Doubled braces are literal.
type Template string

type segment struct {
	text string
	key  string
}

func (t Template) parse() ([]segment, error) {
	s := string(t)
	var segs []segment
	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, &TemplateError{Template: s, Reason: "unclosed '{'"}
			}
			key := s[i+1 : i+1+end]
			if key == "" || strings.ContainsAny(key, "{ ") {
				return nil, &TemplateError{Template: s, Reason: fmt.Sprintf("malformed placeholder %q", key)}
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{text: lit.String()})
				lit.Reset()
			}
			segs = append(segs, segment{key: key})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &TemplateError{Template: s, Reason: "unmatched '}'"}
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{text: lit.String()})
	}
	return segs, nil
}

// Expand substitutes vars into the template. A placeholder without a value in
// vars is a TemplateError.
func (t Template) Expand(vars map[string]string) (string, error) {
	segs, err := t.parse()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range segs {
		if seg.key == "" {
			b.WriteString(seg.text)
			continue
		}
		v, ok := vars[seg.key]
		if !ok {
			return "", &TemplateError{Template: string(t), Key: seg.key}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Validate checks that the template parses and only references allowed keys.
func (t Template) Validate(allowed ...string) error {
	segs, err := t.parse()
	if err != nil {
		return err
	}
	for _, seg := range segs {
		if seg.key == "" {
			continue
		}
		found := false
		for _, a := range allowed {
			if a == seg.key {
				found = true
				break
			}
		}
		if !found {
			return &TemplateError{Template: string(t), Key: seg.key}
		}
	}
	return nil
}
