package store

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("not found")

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Page is a 1-based page window.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw values into a valid window.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// likePattern escapes LIKE wildcards so user input only matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
