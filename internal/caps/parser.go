// Package caps parses the line-block output of the device enumeration tool
// (gst-device-monitor) into typed devices with usable capture formats, and
// selects formats against resolution constraints.
package caps

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"camfleet/internal/logging"
)

var logger = logging.GetLogger("caps")

// lineKind classifies one input line independent of surrounding context.
type lineKind int

const (
	lineBlank lineKind = iota
	lineDevice
	lineField
	lineProperty
	lineLaunch
	lineText
)

var (
	deviceRe = regexp.MustCompile(`^Device found:`)
	fieldRe  = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9.\-]*)\s*:\s?(.*)$`)
	propRe   = regexp.MustCompile(`^\s*([A-Za-z0-9._\-]+)\s*=\s*(.*)$`)
	launchRe = regexp.MustCompile(`^\s*\(?gst-launch`)
	paramRe  = regexp.MustCompile(`^([A-Za-z0-9._\-]+)=(?:\(([A-Za-z]+)\))?(.*)$`)
	hintRe   = regexp.MustCompile(`^\(([A-Za-z]+)\)`)
)

// classifyLine is a pure function of the line's text; it never consults
// parser state.
func classifyLine(line string) (kind lineKind, key, value string) {
	if strings.TrimSpace(line) == "" {
		return lineBlank, "", ""
	}
	if deviceRe.MatchString(line) {
		return lineDevice, "", ""
	}
	if launchRe.MatchString(line) {
		return lineLaunch, "", ""
	}
	if m := fieldRe.FindStringSubmatch(line); m != nil {
		return lineField, strings.ToLower(m[1]), strings.TrimSpace(m[2])
	}
	if m := propRe.FindStringSubmatch(line); m != nil {
		return lineProperty, m[1], strings.TrimSpace(m[2])
	}
	return lineText, "", strings.TrimSpace(line)
}

// fieldContext tracks the open "label : value" block while scanning a device.
type fieldContext struct {
	name  string
	props bool
}

// rawDevice accumulates fields before post-processing.
type rawDevice struct {
	fields     map[string][]string
	properties PropertyMap
}

// ParseMonitorOutput parses enumeration tool output into devices. Devices
// that yield no usable capture format are dropped. Returns an empty slice for
// empty or unrecognizable input; parsing never fails on a malformed line.
func ParseMonitorOutput(text string) []Device {
	var devices []Device
	var current *rawDevice
	var field *fieldContext

	flush := func() {
		if current == nil {
			return
		}
		if d, ok := finishDevice(current); ok {
			devices = append(devices, d)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		// Literal tabs widen to fixed spaces so indentation compares stably.
		line = strings.ReplaceAll(line, "\t", "        ")

		kind, key, value := classifyLine(line)
		switch kind {
		case lineDevice:
			flush()
			current = &rawDevice{
				fields:     make(map[string][]string),
				properties: make(PropertyMap),
			}
			field = nil

		case lineField:
			if current == nil {
				continue
			}
			field = &fieldContext{name: key, props: key == "properties"}
			if !field.props && value != "" {
				current.fields[key] = append(current.fields[key], value)
			}

		case lineProperty:
			if current == nil || field == nil || !field.props {
				continue
			}
			current.properties.Set(key, value)

		case lineLaunch:
			field = nil

		case lineText:
			if current == nil || field == nil || field.props {
				continue
			}
			current.fields[field.name] = append(current.fields[field.name], value)

		case lineBlank:
			// skipped inside list fields
		}
	}
	flush()

	return devices
}

// finishDevice post-processes an accumulated device: caps strings become
// structured Caps, and the device is kept only if at least one cap resolves
// to a usable capture format.
func finishDevice(raw *rawDevice) (Device, bool) {
	d := Device{
		Name:       firstField(raw, "name"),
		Class:      firstField(raw, "class"),
		Properties: raw.properties,
	}

	d.Path, _ = raw.properties.Get("device.path")
	if d.Path == "" {
		d.Path, _ = raw.properties.Get("object.path")
	}

	for _, rawCap := range raw.fields["caps"] {
		c, err := ParseCapLine(rawCap)
		if err != nil {
			logger.Warn("Malformed capability line", "caps", rawCap, "error", err)
		}
		d.Caps = append(d.Caps, c)
		if format, ok := deriveFormat(c); ok {
			d.Formats = append(d.Formats, format)
		}
	}

	return d, len(d.Formats) > 0
}

func firstField(raw *rawDevice, name string) string {
	if values := raw.fields[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// ParseCapLine parses one capability string, e.g.
//
//	video/x-raw, format=YUY2, width=640, height=480, framerate=(fraction)30/1
//
// A malformed parameter list returns the cap with an empty parameter set and
// the error; the caller logs and continues.
func ParseCapLine(raw string) (Cap, error) {
	raw = strings.TrimSpace(raw)
	media, rest, found := strings.Cut(raw, ",")
	if !found {
		// No type/parameter separator: the cap contributes nothing.
		return Cap{Media: strings.TrimSpace(raw), Params: map[string]Value{}}, nil
	}

	c := Cap{Media: strings.TrimSpace(media), Params: map[string]Value{}}
	params, err := parseParams(rest)
	if err != nil {
		return Cap{Media: c.Media, Params: map[string]Value{}}, err
	}
	c.Params = params
	return c, nil
}

// parseParams consumes a comma-separated parameter list recursively: each
// step matches name=(hint)rest, dispatches on the first rune of rest
// ({ choice, [ range, otherwise atom), and recurses on the remainder.
func parseParams(s string) (map[string]Value, error) {
	params := make(map[string]Value)
	rest := strings.TrimLeft(s, ", ;")

	for rest != "" {
		m := paramRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("unrecognized parameter text %q", rest)
		}
		name, tail := m[1], m[3]

		var value Value
		var remainder string
		var err error
		switch {
		case strings.HasPrefix(tail, "{"):
			value, remainder, err = parseChoice(tail)
		case strings.HasPrefix(tail, "["):
			value, remainder, err = parseRange(tail)
		default:
			value, remainder = parseAtom(tail)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}

		params[name] = value
		rest = strings.TrimLeft(remainder, ", ;")
	}

	return params, nil
}

// parseChoice parses a brace-delimited ordered value list.
func parseChoice(s string) (Value, string, error) {
	end := strings.Index(s, "}")
	if end < 0 {
		return Value{}, "", fmt.Errorf("unterminated choice list")
	}

	var entries []string
	for _, part := range strings.Split(s[1:end], ",") {
		part = strings.TrimSpace(hintRe.ReplaceAllString(strings.TrimSpace(part), ""))
		if part != "" {
			entries = append(entries, part)
		}
	}
	return Value{Kind: KindChoice, Choice: entries}, s[end+1:], nil
}

// parseRange parses a bracket-delimited "min[/den], max[/den][, step]" range.
func parseRange(s string) (Value, string, error) {
	end := strings.Index(s, "]")
	if end < 0 {
		return Value{}, "", fmt.Errorf("unterminated range")
	}

	parts := strings.Split(s[1:end], ",")
	if len(parts) < 2 {
		return Value{}, "", fmt.Errorf("range needs min and max, got %q", s[1:end])
	}

	value := Value{
		Kind: KindRange,
		Min:  ParseFraction(hintRe.ReplaceAllString(strings.TrimSpace(parts[0]), "")),
		Max:  ParseFraction(hintRe.ReplaceAllString(strings.TrimSpace(parts[1]), "")),
	}
	if len(parts) >= 3 {
		value.Step = strings.TrimSpace(parts[2])
	}
	return value, s[end+1:], nil
}

// parseAtom consumes a bare value up to the next comma, semicolon, or space.
func parseAtom(s string) (Value, string) {
	if idx := strings.IndexAny(s, ",; "); idx >= 0 {
		return Value{Kind: KindAtom, Atom: s[:idx]}, s[idx:]
	}
	return Value{Kind: KindAtom, Atom: s}, ""
}

// deriveFormat resolves a cap into a usable capture format: a pixel tag, a
// positive numeric width and height, and a finite positive frame rate from
// either a fraction atom or a range max. Anything else is unusable.
func deriveFormat(c Cap) (CaptureFormat, bool) {
	pixel := c.Media
	if v, ok := c.Params["format"]; ok && v.Kind == KindAtom && v.Atom != "" {
		pixel = v.Atom
	}

	width, ok := atomInt(c.Params["width"])
	if !ok || width <= 0 {
		return CaptureFormat{}, false
	}
	height, ok := atomInt(c.Params["height"])
	if !ok || height <= 0 {
		return CaptureFormat{}, false
	}

	v, ok := c.Params["framerate"]
	if !ok {
		return CaptureFormat{}, false
	}
	var fps float64
	switch v.Kind {
	case KindAtom:
		fps = ParseFraction(v.Atom).Float()
	case KindRange:
		fps = v.Max.Float()
	default:
		return CaptureFormat{}, false
	}
	// NaN comparisons are false, so this also excludes bad denominators.
	if !(fps > 0) {
		return CaptureFormat{}, false
	}

	return CaptureFormat{PixelFormat: pixel, Width: width, Height: height, FPS: fps}, true
}

func atomInt(v Value) (int, bool) {
	if v.Kind != KindAtom {
		return 0, false
	}
	n, err := strconv.Atoi(v.Atom)
	if err != nil {
		return 0, false
	}
	return n, true
}
