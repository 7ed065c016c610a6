package relay

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Ecowitt bookkeeping fields.
const (
	PasskeyField     = "PASSKEY"
	StationTypeField = "stationtype"
)

// Fields the station sends with every update that never describe an accessory.
var baselineIgnored = []string{
	PasskeyField,
	"dateutc",
	"freq",
	"model",
	StationTypeField,
}

// Class is the outcome of classifying an inbound field key.
type Class int

const (
	Unmapped Class = iota
	Ignored
	Mapped
)

func (c Class) String() string {
	switch c {
	case Unmapped:
		return "unmapped"
	case Ignored:
		return "ignored"
	case Mapped:
		return "mapped"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Policy decides which fields are forwarded and under which accessory name.
// It is immutable once built.
type Policy struct {
	names  map[string]string
	ignore map[string]struct{}
}

// NewPolicy builds a policy from a field key to accessory name mapping and
// a list of additional keys to ignore. The inputs are copied.
func NewPolicy(names map[string]string, ignore []string) *Policy {
	p := &Policy{
		names:  make(map[string]string, len(names)),
		ignore: make(map[string]struct{}, len(baselineIgnored)+len(ignore)),
	}
	for k, name := range names {
		p.names[k] = name
	}
	for _, k := range baselineIgnored {
		p.ignore[k] = struct{}{}
	}
	for _, k := range ignore {
		p.ignore[k] = struct{}{}
	}
	return p
}

// Classify returns the class of key and, for mapped keys, the accessory name.
// Ignored keys win over mapped ones.
func (p *Policy) Classify(key string) (Class, string) {
	if _, ok := p.ignore[key]; ok {
		return Ignored, ""
	}
	name, ok := p.names[key]
	if !ok {
		return Unmapped, ""
	}
	return Mapped, name
}

// IgnoredKeys returns the ignore set in sorted order.
func (p *Policy) IgnoredKeys() []string {
	keys := make([]string, 0, len(p.ignore))
	for k := range p.ignore {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Transform converts a raw station value to the value sent downstream.
// Fahrenheit temperatures (temp*f) become Celsius with two decimals, every
// other key passes through untouched.
func Transform(key, raw string) (string, error) {
	if !isFahrenheit(key) {
		return raw, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", fmt.Errorf("relay: %s is not a temperature: %w", key, err)
	}
	return strconv.FormatFloat((f-32.0)/1.8, 'f', 2, 64), nil
}

func isFahrenheit(key string) bool {
	return strings.HasPrefix(key, "temp") && strings.HasSuffix(key, "f")
}
