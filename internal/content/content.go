// Package content contains transformers to sanitize and render user-authored
// place text. Names are reduced to plain text; descriptions are stored as
// Markdown and rendered to sanitized HTML on the way out.
package content

import (
	"bytes"
	"fmt"
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	// Individual transformers.
	normalizeNewlines = NormalizeNewlines()
	stripMarkup       = StripMarkup()
	trimWhitespace    = TrimWhitespace()
	markdownToHTML    = MarkdownToHTML()
	sanitizeHTML      = SanitizeHTML()

	// Pre-composed pipelines.
	plainTextPipeline   = Chain(normalizeNewlines, stripMarkup, trimWhitespace)
	descriptionPipeline = Chain(normalizeNewlines, trimWhitespace)
	renderPipeline      = Chain(markdownToHTML, sanitizeHTML)

	// Trailing whitespace on lines can cause issues and is never intentional.
	trailingWhitespace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Transformer modifies content, returning modified content or an error.
type Transformer interface {
	// Transform modifies input, returning modified content or an error.
	Transform(input []byte) ([]byte, error)
}

// TransformerFunc is a [Transformer] that can be represented just by the
// [Transform] method.
type TransformerFunc func(input []byte) ([]byte, error)

// Transform satisfies [Transformer].
func (fn TransformerFunc) Transform(input []byte) ([]byte, error) { return fn(input) }

// Chain chains together a set of transformers, failing fast if any transformer
// in the chain errors.
func Chain(transformers ...Transformer) TransformerFunc {
	return func(input []byte) ([]byte, error) {
		var err error
		for _, transformer := range transformers {
			input, err = transformer.Transform(input)
			if err != nil {
				return nil, err
			}
		}
		return input, nil
	}
}

// PlainText reduces input to unmarked plain text with surrounding whitespace
// removed.
func PlainText(input string) string {
	output, _ := plainTextPipeline([]byte(input)) // the pipeline cannot fail
	return string(output)
}

// Description normalizes a Markdown description for storage.
func Description(input string) string {
	output, _ := descriptionPipeline([]byte(input)) // the pipeline cannot fail
	return string(output)
}

// RenderDescription converts a stored Markdown description into sanitized
// HTML.
func RenderDescription(input string) (string, error) {
	output, err := renderPipeline([]byte(input))
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// NormalizeNewlines converts Windows and classic Mac line endings to Unix
// line endings.
func NormalizeNewlines() TransformerFunc {
	return func(input []byte) ([]byte, error) {
		input = bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n"))
		return bytes.ReplaceAll(input, []byte("\r"), []byte("\n")), nil
	}
}

// TrimWhitespace removes trailing whitespace from every line as well as
// leading and trailing whitespace from the whole input.
func TrimWhitespace() TransformerFunc {
	return func(input []byte) ([]byte, error) {
		return bytes.TrimSpace(trailingWhitespace.ReplaceAll(input, nil)), nil
	}
}

// StripMarkup removes every HTML element from input, leaving its text. The
// contents of script and style elements are dropped entirely.
func StripMarkup() TransformerFunc {
	policy := bluemonday.StrictPolicy()
	return func(input []byte) ([]byte, error) {
		// the policy escapes what remains; names are stored unescaped
		return []byte(html.UnescapeString(string(policy.SanitizeBytes(input)))), nil
	}
}

// MarkdownToHTML converts a CommonMark Markdown input into HTML. Raw HTML in
// the input is omitted, but the produced HTML is _not_ sanitized.
func MarkdownToHTML() TransformerFunc {
	markdown := goldmark.New(
		goldmark.WithExtensions(
			extension.Linkify,
			extension.Table,
			extension.Strikethrough,
		),
	)

	return func(input []byte) ([]byte, error) {
		output := &bytes.Buffer{}
		if err := markdown.Convert(input, output); err != nil {
			return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
		}
		return output.Bytes(), nil
	}
}

// SanitizeHTML applies sanitization rules to HTML input, stripping unsupported
// tags and attributes.
func SanitizeHTML() TransformerFunc {
	htmlSanitizer := sanitizer()
	return func(input []byte) ([]byte, error) {
		return htmlSanitizer.SanitizeBytes(input), nil
	}
}

// sanitizer is a narrowing of [bluemonday.UGCPolicy] to the elements Markdown
// produces. Differences:
//
//   - Target _blank and noreferrer for links
//   - No figure/image elements (to avoid hot-linking)
//   - No headings; a description is a fragment of a larger page
func sanitizer() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()

	policy.AllowStandardURLs()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	policy.AllowElements(
		"blockquote",
		"br",
		"code",
		"del",
		"em",
		"hr",
		"p",
		"pre",
		"strong",
	)

	policy.AllowAttrs("href").
		OnElements("a")

	policy.AllowLists()
	policy.AllowTables()

	return policy
}
