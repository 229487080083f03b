// Package stationfeed parses the KMA hourly surface observation text feed
// (kma_sfctm2) into an irradiance sample.
//
// The feed is a comment header (lines starting with '#') followed by
// whitespace-delimited data lines whose first token is a 12-digit
// YYYYMMDDHHmm timestamp. The column layout drifts between stations and
// firmware revisions, so the irradiance column is located by two rules: a
// positional rule anchored on a 4-digit marker token, then a plausibility scan
// over every decimal token on the line.
package stationfeed

import (
	"bufio"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/greensync-weather/internal/common"
	"github.com/i474232898/greensync-weather/internal/weather"
)

const (
	RulePrimary  = "primary-offset"
	RuleFallback = "fallback-scan"
)

// Config holds the empirically tuned constants of both rules.
type Config struct {
	CommentMarker string
	// MarkerDigits is the width of the marker token that precedes the
	// irradiance column by MarkerOffset tokens.
	MarkerDigits int
	MarkerOffset int
	// MissingSentinel is the feed's documented missing-value marker.
	MissingSentinel float64

	PlausibleMin float64
	PlausibleMax float64
	// ExcludedValue is a flag/unit artifact that is never a real reading.
	ExcludedValue float64
}

// DefaultConfig returns the constants observed on the KMA feed.
func DefaultConfig() Config {
	return Config{
		CommentMarker:   "#",
		MarkerDigits:    4,
		MarkerOffset:    2,
		MissingSentinel: -9,
		PlausibleMin:    0.5,
		PlausibleMax:    10,
		ExcludedValue:   1.0,
	}
}

// Rule extracts an irradiance value from the tokens of a data line.
type Rule interface {
	Name() string
	Extract(tokens []string) (float64, bool)
}

// PrimaryOffsetRule reads the token MarkerOffset positions after the first
// MarkerDigits-wide numeric token.
type PrimaryOffsetRule struct {
	cfg Config
}

func NewPrimaryOffsetRule(cfg Config) PrimaryOffsetRule {
	return PrimaryOffsetRule{cfg: cfg}
}

func (r PrimaryOffsetRule) Name() string { return RulePrimary }

func (r PrimaryOffsetRule) Extract(tokens []string) (float64, bool) {
	// tokens[0] is the timestamp.
	for i := 1; i < len(tokens); i++ {
		if !common.IsDigits(tokens[i], r.cfg.MarkerDigits) {
			continue
		}
		target := i + r.cfg.MarkerOffset
		if target >= len(tokens) {
			return 0, false
		}
		v, err := strconv.ParseFloat(tokens[target], 64)
		if err != nil || !isUsable(v) || v == r.cfg.MissingSentinel {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// FallbackScanRule picks the largest decimal token in the plausible range.
type FallbackScanRule struct {
	cfg Config
}

func NewFallbackScanRule(cfg Config) FallbackScanRule {
	return FallbackScanRule{cfg: cfg}
}

func (r FallbackScanRule) Name() string { return RuleFallback }

func (r FallbackScanRule) Extract(tokens []string) (float64, bool) {
	best := 0.0
	found := false
	for _, tok := range tokens {
		if !strings.Contains(tok, ".") {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || !isUsable(v) {
			continue
		}
		if v < r.cfg.PlausibleMin || v > r.cfg.PlausibleMax || v == r.cfg.ExcludedValue {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

func isUsable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Parser applies its rules in order to the first data line of a feed body.
type Parser struct {
	cfg   Config
	rules []Rule
	loc   *time.Location
}

// NewParser builds a Parser with the primary rule followed by the fallback
// scan. loc is the timezone the feed's timestamps are expressed in.
func NewParser(cfg Config, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		cfg:   cfg,
		rules: []Rule{NewPrimaryOffsetRule(cfg), NewFallbackScanRule(cfg)},
		loc:   loc,
	}
}

// Parse is pure: the same input always yields the same sample.
func (p *Parser) Parse(raw string) weather.IrradianceSample {
	tokens, ok := p.dataLine(raw)
	if !ok {
		return weather.IrradianceSample{}
	}

	var ts time.Time
	if t, err := time.ParseInLocation(common.StampLayout, tokens[0], p.loc); err == nil {
		ts = t
	}

	for _, rule := range p.rules {
		if v, ok := rule.Extract(tokens); ok {
			return weather.IrradianceSample{
				Value:           v,
				Success:         true,
				SourceTimestamp: ts,
				Rule:            rule.Name(),
			}
		}
	}
	return weather.IrradianceSample{SourceTimestamp: ts}
}

// dataLine returns the tokens of the first line led by a 12-digit timestamp.
func (p *Parser) dataLine(raw string) ([]string, bool) {
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || common.HasAnyPrefix(line, p.cfg.CommentMarker) {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) > 0 && common.IsStamp(tokens[0]) {
			return tokens, true
		}
	}
	return nil, false
}
