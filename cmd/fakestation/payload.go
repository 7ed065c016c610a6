package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
)

// Field is one name/value pair of a station update.
type Field struct {
	Name  string
	Value string
}

// PayloadOptions describes the station being faked.
type PayloadOptions struct {
	MAC    string
	Random bool       // Replace the sample values with random ones
	Metric bool       // hPa and Celsius instead of inHg and Fahrenheit
	Now    time.Time  // dateutc
	Rand   *rand.Rand // Source for Random; nil uses the global source
}

// Passkey is the uppercase hex MD5 of the uppercase MAC, as the gateway sends it.
func Passkey(mac string) string {
	sum := md5.Sum([]byte(strings.ToUpper(mac)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// BuildPayload returns the fields of a GW1000 update in upload order.
func BuildPayload(opts PayloadOptions) []Field {
	value := func(name, sample string) string { return sample }
	if opts.Random {
		value = func(name, _ string) string { return randomValue(opts.Rand, name) }
	}

	fields := []Field{
		{"PASSKEY", Passkey(opts.MAC)},
		{"dateutc", opts.Now.UTC().Format("2006-01-02 15:04:05")},
		{"freq", "915M"},
		{"model", "GW1000_Pro"},
		{"stationtype", "GW1000B_V1.6.8"},
		{"humidityin", value("humidityin", "64")},
		{"humidity", value("humidity", "72")},
		{"wh26batt", value("wh26batt", "0")},
	}

	if opts.Metric {
		fields = append(fields,
			Field{"baromabshpa", value("baromabshpa", "951.4")},
			Field{"baromrelhpa", value("baromrelhpa", "951.4")},
			Field{"tempinc", value("tempinc", "12.5")},
			Field{"tempc", value("tempc", "23.3")},
		)
	} else {
		fields = append(fields,
			Field{"baromabsin", value("baromabsin", "28.700")},
			Field{"baromrelin", value("baromrelin", "28.700")},
			Field{"tempinf", value("tempinf", "-3.5")},
			Field{"tempf", value("tempf", "84.2")},
		)
	}

	for n := 1; n <= 8; n++ {
		if opts.Metric {
			name := fmt.Sprintf("temp%dc", n)
			fields = append(fields, Field{name, value(name, fmt.Sprintf("%.2f", 30.1+float64(n)))})
		} else {
			name := fmt.Sprintf("temp%df", n)
			fields = append(fields, Field{name, value(name, fmt.Sprintf("%.2f", 70.4+float64(n)))})
		}
		fields = append(fields,
			Field{fmt.Sprintf("humidity%d", n), value(fmt.Sprintf("humidity%d", n), fmt.Sprint(10+n))},
			Field{fmt.Sprintf("batt%d", n), value(fmt.Sprintf("batt%d", n), "0")},
			Field{fmt.Sprintf("soilmoisture%d", n), value(fmt.Sprintf("soilmoisture%d", n), fmt.Sprint(n))},
			Field{fmt.Sprintf("soilbatt%d", n), value(fmt.Sprintf("soilbatt%d", n), "1.5")},
		)
	}
	return fields
}

// Encode urlencodes fields as a form body, keeping the gateway's field order.
func Encode(fields []Field) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return sb.String()
}

// randomValue picks a plausible reading for the field name.
func randomValue(r *rand.Rand, name string) string {
	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}
	between := func(lo, hi int) int { return lo + intN(hi-lo) }

	switch {
	case strings.HasPrefix(name, "baro") && strings.HasSuffix(name, "in"):
		return fmt.Sprintf("%.2f", float64(between(2800, 3200))/100)
	case strings.HasPrefix(name, "baro") && strings.HasSuffix(name, "hpa"):
		return fmt.Sprintf("%.1f", float64(between(9482, 10833))/10)
	case strings.HasPrefix(name, "temp") && strings.HasSuffix(name, "f"):
		return fmt.Sprintf("%.2f", float64(between(-2000, 12000))/100)
	case strings.HasPrefix(name, "temp") && strings.HasSuffix(name, "c"):
		return fmt.Sprintf("%.2f", float64(between(-2889, 4889))/100)
	case strings.HasPrefix(name, "batt") || strings.HasSuffix(name, "batt"):
		return fmt.Sprint(between(0, 2))
	case strings.HasPrefix(name, "soilbatt"):
		return fmt.Sprintf("%.1f", float64(between(1, 16))/10)
	default:
		return fmt.Sprint(between(0, 101))
	}
}
