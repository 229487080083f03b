package stationfeed

import (
	"testing"
	"time"
)

const header = `#START7777
#--------------------------------------------------------------------------------------------------
#  YYMMDDHHMI STN  WD   WS GST  GST  GST     PA     PS PT    PR    TA    TD    HM    PV     RN
#--------------------------------------------------------------------------------------------------
`

func TestParsePrimaryRule(t *testing.T) {
	p := NewParser(DefaultConfig(), time.UTC)

	raw := header + "202501151300 108 0012 3 2.45 SI 7.5 0.8\n#7777END\n"
	got := p.Parse(raw)

	if !got.Success {
		t.Fatalf("expected success, got %+v", got)
	}
	if got.Value != 2.45 {
		t.Fatalf("expected 2.45, got %v", got.Value)
	}
	if got.Rule != RulePrimary {
		t.Fatalf("expected primary rule, got %q", got.Rule)
	}
	want := time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC)
	if !got.SourceTimestamp.Equal(want) {
		t.Fatalf("expected source timestamp %v, got %v", want, got.SourceTimestamp)
	}
}

func TestParseSentinelFallsBackToScan(t *testing.T) {
	p := NewParser(DefaultConfig(), time.UTC)

	raw := "202501151300 108 0012 3 -9 0.3 4.5 1.0 7.20 12.5\n"
	got := p.Parse(raw)

	if !got.Success || got.Rule != RuleFallback {
		t.Fatalf("expected fallback success, got %+v", got)
	}
	if got.Value != 7.2 {
		t.Fatalf("expected 7.2, got %v", got.Value)
	}
}

func TestParseNoUsableValue(t *testing.T) {
	p := NewParser(DefaultConfig(), time.UTC)

	cases := map[string]string{
		"empty":        "",
		"comments":     "# only a header\n#7777END\n",
		"no data line": "20250115 108 0012 3 2.45\n",
		"only flags":   "202501151300 108 0012 3 -9 1.0 0.2 15.5\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if got := p.Parse(raw); got.Success {
				t.Fatalf("expected failure, got %+v", got)
			}
		})
	}
}

func TestParseUsesFirstDataLine(t *testing.T) {
	p := NewParser(DefaultConfig(), time.UTC)

	raw := "\n   \n# comment\n202501151200 108 0012 3 1.75\n202501151300 108 0012 3 2.45\n"
	got := p.Parse(raw)
	if got.Value != 1.75 {
		t.Fatalf("expected value from first data line, got %v", got.Value)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	p := NewParser(DefaultConfig(), time.UTC)
	raw := header + "202501151300 108 0012 3 -9 3.3 4.4\n"

	first := p.Parse(raw)
	second := p.Parse(raw)
	if first != second {
		t.Fatalf("parse is not idempotent: %+v vs %+v", first, second)
	}
}

func TestPrimaryOffsetRule(t *testing.T) {
	r := NewPrimaryOffsetRule(DefaultConfig())

	tests := []struct {
		name   string
		tokens []string
		want   float64
		ok     bool
	}{
		{"value at offset", []string{"202501151300", "0012", "3", "2.45"}, 2.45, true},
		{"integer value", []string{"202501151300", "0012", "3", "2"}, 2, true},
		{"sentinel", []string{"202501151300", "0012", "3", "-9"}, 0, false},
		{"not a number", []string{"202501151300", "0012", "3", "SI"}, 0, false},
		{"offset out of range", []string{"202501151300", "0012", "3"}, 0, false},
		{"no marker", []string{"202501151300", "108", "3", "2.45"}, 0, false},
		{"negative", []string{"202501151300", "0012", "3", "-0.5"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Extract(tt.tokens)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Extract(%v) = %v, %v; want %v, %v", tt.tokens, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFallbackScanRule(t *testing.T) {
	r := NewFallbackScanRule(DefaultConfig())

	got, ok := r.Extract([]string{"202501151300", "0.5", "10.0", "10.5", "1.0", "3"})
	if !ok || got != 10 {
		t.Fatalf("expected 10 from inclusive bounds, got %v, %v", got, ok)
	}

	if _, ok := r.Extract([]string{"202501151300", "5", "NaN", "1.0"}); ok {
		t.Fatal("expected no candidate without a decimal token in range")
	}
}

func TestFallbackScanRuleCustomConstants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcludedValue = 2.0
	cfg.PlausibleMax = 20
	r := NewFallbackScanRule(cfg)

	got, ok := r.Extract([]string{"1.0", "2.0", "15.5"})
	if !ok || got != 15.5 {
		t.Fatalf("expected 15.5, got %v, %v", got, ok)
	}
}
