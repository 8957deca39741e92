package models

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func validRecord() Record {
	return Record{
		ID:          NamespacedID(SourceBinance, "1001"),
		Source:      SourceBinance,
		Title:       "Binance Will List Example Token",
		Category:    CategoryListing,
		Importance:  ImportanceHigh,
		PublishTime: time.Now(),
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{"valid record", func(r *Record) {}, false},
		{"missing ID", func(r *Record) { r.ID = "" }, true},
		{"missing source", func(r *Record) { r.Source = "" }, true},
		{"missing title", func(r *Record) { r.Title = "" }, true},
		{"missing category", func(r *Record) { r.Category = "" }, true},
		{"unknown importance", func(r *Record) { r.Importance = "critical" }, true},
		{"zero publish time", func(r *Record) { r.PublishTime = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNamespacedID(t *testing.T) {
	if got := NamespacedID(SourceBinance, "12345"); got != "binance_12345" {
		t.Errorf("NamespacedID() = %q, want %q", got, "binance_12345")
	}
	// Identical native IDs from different sources must never collide.
	if NamespacedID(SourceBinance, "1") == NamespacedID(SourceOKX, "1") {
		t.Error("IDs from different sources collided")
	}
}

func TestSummarize(t *testing.T) {
	short := "A short body."
	if got := Summarize("  " + short + "  "); got != short {
		t.Errorf("Summarize() = %q, want trimmed original", got)
	}

	long := strings.Repeat("x", MaxSummaryLen+50)
	got := Summarize(long)
	if len(got) != MaxSummaryLen+3 {
		t.Errorf("Summarize() length = %d, want %d", len(got), MaxSummaryLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Summarize() = %q, want ellipsis suffix", got)
	}
}

// Truncation must count characters and never cut a multi-byte character in
// half; upstream announcement bodies are frequently Chinese.
func TestSummarizeMultiByteText(t *testing.T) {
	cjk := "a" + strings.Repeat("维", MaxSummaryLen+20)
	got := Summarize(cjk)
	if !utf8.ValidString(got) {
		t.Fatalf("Summarize() produced invalid UTF-8 ending %q", got[len(got)-9:])
	}
	if n := utf8.RuneCountInString(got); n != MaxSummaryLen+3 {
		t.Errorf("Summarize() rune count = %d, want %d", n, MaxSummaryLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Summarize() = %q, want ellipsis suffix", got)
	}

	// A CJK body within the character bound is returned untouched even though
	// its byte length is far past MaxSummaryLen.
	within := strings.Repeat("快", MaxSummaryLen)
	if got := Summarize(within); got != within {
		t.Errorf("Summarize() truncated a %d-character body", MaxSummaryLen)
	}
}

func TestImportanceOrdering(t *testing.T) {
	if !(ImportanceLow.Rank() < ImportanceMedium.Rank() && ImportanceMedium.Rank() < ImportanceHigh.Rank()) {
		t.Error("importance levels are not strictly ordered low < medium < high")
	}
	if Importance("bogus").Rank() != 0 {
		t.Error("unknown importance should rank below low")
	}

	if !ImportanceHigh.AtLeast(ImportanceMedium) {
		t.Error("high should satisfy a medium floor")
	}
	if ImportanceLow.AtLeast(ImportanceMedium) {
		t.Error("low should not satisfy a medium floor")
	}
	if !ImportanceMedium.AtLeast(ImportanceMedium) {
		t.Error("a level should satisfy its own floor")
	}
}

func TestConditionMet(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		current   float64
		target    float64
		want      bool
	}{
		{"above met", ConditionAbove, 50100, 50000, true},
		{"above met at boundary", ConditionAbove, 50000, 50000, true},
		{"above not met", ConditionAbove, 49999, 50000, false},
		{"below met", ConditionBelow, 49000, 50000, true},
		{"below met at boundary", ConditionBelow, 50000, 50000, true},
		{"below not met", ConditionBelow, 50001, 50000, false},
		{"crosses_above behaves as above", ConditionCrossesAbove, 50100, 50000, true},
		{"crosses_below behaves as below", ConditionCrossesBelow, 49000, 50000, true},
		{"unknown condition never fires", Condition("sideways"), 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.condition.Met(tt.current, tt.target); got != tt.want {
				t.Errorf("Met(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestPriceAlertValidate(t *testing.T) {
	now := time.Now()
	valid := PriceAlert{
		ID:          "a1",
		UserID:      "u1",
		Symbol:      "BTCUSDT",
		TargetPrice: 50000,
		Condition:   ConditionAbove,
		IsActive:    true,
		CreatedAt:   now,
	}

	tests := []struct {
		name    string
		mutate  func(*PriceAlert)
		wantErr bool
	}{
		{"valid alert", func(a *PriceAlert) {}, false},
		{"missing ID", func(a *PriceAlert) { a.ID = "" }, true},
		{"missing user", func(a *PriceAlert) { a.UserID = "" }, true},
		{"missing symbol", func(a *PriceAlert) { a.Symbol = "" }, true},
		{"zero target price", func(a *PriceAlert) { a.TargetPrice = 0 }, true},
		{"negative target price", func(a *PriceAlert) { a.TargetPrice = -1 }, true},
		{"bad condition", func(a *PriceAlert) { a.Condition = "sideways" }, true},
		{"triggered without timestamp", func(a *PriceAlert) { a.IsTriggered = true }, true},
		{"triggered with timestamp", func(a *PriceAlert) { a.IsTriggered = true; a.TriggeredAt = &now }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilterSignature(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("equal filters produce equal signatures", func(t *testing.T) {
		a := Filter{Sources: []Source{SourceBinance, SourceOKX}, Importance: ImportanceHigh, Limit: 10}
		b := Filter{Sources: []Source{SourceBinance, SourceOKX}, Importance: ImportanceHigh, Limit: 10}
		if a.Signature() != b.Signature() {
			t.Error("identical filters produced different signatures")
		}
	})

	t.Run("list order does not change the signature", func(t *testing.T) {
		a := Filter{Sources: []Source{SourceBinance, SourceOKX}, Tags: []string{"x", "y"}}
		b := Filter{Sources: []Source{SourceOKX, SourceBinance}, Tags: []string{"y", "x"}}
		if a.Signature() != b.Signature() {
			t.Error("element order changed the signature")
		}
	})

	t.Run("distinct filters differ", func(t *testing.T) {
		seen := map[string]Filter{}
		filters := []Filter{
			{},
			{Limit: 10},
			{Offset: 10},
			{HotOnly: true},
			{Importance: ImportanceHigh},
			{Importance: ImportanceHigh, ImportanceMode: ImportanceFloor},
			{Sources: []Source{SourceBinance}},
			{Categories: []Category{CategoryListing}},
			{Symbols: []string{"BTC"}},
			{Tags: []string{"BTC"}},
			{From: base},
			{To: base},
		}
		for _, f := range filters {
			sig := f.Signature()
			if prev, dup := seen[sig]; dup {
				t.Errorf("filters %+v and %+v collided on %q", prev, f, sig)
			}
			seen[sig] = f
		}
	})
}

func TestFilterMode(t *testing.T) {
	if (Filter{}).Mode() != ImportanceExact {
		t.Error("unset mode should default to exact")
	}
	if (Filter{ImportanceMode: ImportanceFloor}).Mode() != ImportanceFloor {
		t.Error("floor mode not honored")
	}
	if (Filter{ImportanceMode: "bogus"}).Mode() != ImportanceExact {
		t.Error("unknown mode should fall back to exact")
	}
}
