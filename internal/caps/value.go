package caps

import (
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the capability value union.
type Kind int

// Capability value kinds.
const (
	KindAtom Kind = iota
	KindRange
	KindChoice
)

// Fraction is a rational value kept as raw text. Den is empty for plain
// numerals.
type Fraction struct {
	Num string
	Den string
}

// ParseFraction splits "num/den" text into a Fraction. Text without a slash
// becomes a plain numeral.
func ParseFraction(s string) Fraction {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		return Fraction{Num: strings.TrimSpace(num), Den: strings.TrimSpace(den)}
	}
	return Fraction{Num: s}
}

// Float derives the numeric value. A zero or non-numeric denominator yields
// NaN rather than an error; callers exclude such values.
func (f Fraction) Float() float64 {
	num, err := strconv.ParseFloat(f.Num, 64)
	if err != nil {
		return math.NaN()
	}
	if f.Den == "" {
		return num
	}
	den, err := strconv.ParseFloat(f.Den, 64)
	if err != nil || den == 0 {
		return math.NaN()
	}
	return num / den
}

// Value is a capability parameter value: a single atom, a min/max range, or
// an ordered choice list. Only width/height/framerate are interpreted when
// deriving capture formats; everything else is carried opaquely.
type Value struct {
	Kind   Kind
	Atom   string
	Min    Fraction
	Max    Fraction
	Step   string
	Choice []string
}

// Cap is one capability line: a media type plus its parameters.
type Cap struct {
	Media  string
	Params map[string]Value
}

// CaptureFormat is a resolved, usable capture configuration.
type CaptureFormat struct {
	PixelFormat string  `json:"pixel_format"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
}

// PropertyMap is a nested property tree built from dotted-path assignments.
type PropertyMap map[string]any

// Set assigns a dotted path, creating intermediate maps as needed. An
// intermediate segment that currently holds a leaf value is replaced by a map.
func (p PropertyMap) Set(path, value string) {
	parts := strings.Split(path, ".")
	current := p
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(PropertyMap)
		if !ok {
			next = make(PropertyMap)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Get looks up a dotted path, returning the leaf string if present.
func (p PropertyMap) Get(path string) (string, bool) {
	parts := strings.Split(path, ".")
	current := p
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(PropertyMap)
		if !ok {
			return "", false
		}
		current = next
	}
	s, ok := current[parts[len(parts)-1]].(string)
	return s, ok
}

// Device is one discovered capture source with its usable formats.
type Device struct {
	Name       string          `json:"name"`
	Class      string          `json:"class"`
	Path       string          `json:"path"`
	Caps       []Cap           `json:"-"`
	Properties PropertyMap     `json:"-"`
	Formats    []CaptureFormat `json:"formats"`
}
