package forecast

import (
	"testing"
	"time"
)

func conditionSample(hour int, condition string) Attribute {
	return Attribute{
		Datetime:  time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Condition: condition,
	}
}

func TestNightAwareCondition(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		isNight   bool
		want      string
	}{
		{"sunny by day", "sunny", false, "sunny"},
		{"sunny at night", "sunny", true, "clear-night"},
		{"partlycloudy at night", "partlycloudy", true, "clear-night"},
		{"windy variant at night", "windy-variant", true, "clear-night"},
		{"rainy at night stays", "rainy", true, "rainy"},
		{"clear-night passes through", "clear-night", true, "clear-night"},
		{"underscore normalized", "Clear_Night", true, "clear-night"},
		{"unknown condition unchanged at night", "dust", true, "dust"},
		{"unknown condition unchanged by day", "dust", false, "dust"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NightAwareCondition(tt.condition, tt.isNight); got != tt.want {
				t.Errorf("NightAwareCondition(%q, %v) = %q, want %q", tt.condition, tt.isNight, got, tt.want)
			}
		})
	}
}

func TestGroupByConditionEmpty(t *testing.T) {
	if got := GroupByCondition(nil, nil); len(got) != 0 {
		t.Errorf("GroupByCondition(nil) = %v, want empty", got)
	}
}

func TestGroupByConditionSingleSample(t *testing.T) {
	got := GroupByCondition([]Attribute{conditionSample(10, "cloudy")}, nil)
	if len(got) != 1 {
		t.Fatalf("span count = %d, want 1", len(got))
	}
	want := Span{Condition: "cloudy", StartIndex: 0, EndIndex: 0, Count: 1}
	if got[0] != want {
		t.Errorf("span = %+v, want %+v", got[0], want)
	}
}

func TestGroupByConditionUniformRun(t *testing.T) {
	seq := make([]Attribute, 6)
	for i := range seq {
		seq[i] = conditionSample(10+i, "sunny")
	}

	got := GroupByCondition(seq, nil)
	if len(got) != 1 {
		t.Fatalf("span count = %d, want 1", len(got))
	}
	want := Span{Condition: "sunny", StartIndex: 0, EndIndex: 5, Count: 6}
	if got[0] != want {
		t.Errorf("span = %+v, want %+v", got[0], want)
	}
}

func TestGroupByConditionSplits(t *testing.T) {
	seq := []Attribute{
		conditionSample(10, "sunny"),
		conditionSample(11, "sunny"),
		conditionSample(12, "rainy"),
		conditionSample(13, "rainy"),
		conditionSample(14, "rainy"),
		conditionSample(15, "cloudy"),
	}

	got := GroupByCondition(seq, nil)
	want := []Span{
		{Condition: "sunny", StartIndex: 0, EndIndex: 1, Count: 2},
		{Condition: "rainy", StartIndex: 2, EndIndex: 4, Count: 3},
		{Condition: "cloudy", StartIndex: 5, EndIndex: 5, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("span count = %d, want %d", len(got), len(want))
	}
	total := 0
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, got[i], want[i])
		}
		total += got[i].Count
	}
	if total != len(seq) {
		t.Errorf("span counts sum to %d, want %d", total, len(seq))
	}
}

func TestGroupByConditionNightTransition(t *testing.T) {
	// Same raw condition, but the second sample falls after sunset: the
	// night-aware value changes to clear-night and a new span starts.
	seq := []Attribute{
		conditionSample(18, "sunny"),
		conditionSample(21, "sunny"),
	}
	nightAt := func(at time.Time) bool { return at.Hour() >= 20 }

	got := GroupByCondition(seq, nightAt)
	if len(got) != 2 {
		t.Fatalf("span count = %d, want 2", len(got))
	}
	for i, span := range got {
		if span.Condition != "sunny" {
			t.Errorf("span %d condition = %q, want raw %q", i, span.Condition, "sunny")
		}
		if span.Count != 1 {
			t.Errorf("span %d count = %d, want 1", i, span.Count)
		}
	}
}

func TestGroupByConditionNightSafeNoSplit(t *testing.T) {
	// Rainy renders the same day or night, so crossing sunset keeps one span.
	seq := []Attribute{
		conditionSample(18, "rainy"),
		conditionSample(21, "rainy"),
	}
	nightAt := func(at time.Time) bool { return at.Hour() >= 20 }

	got := GroupByCondition(seq, nightAt)
	if len(got) != 1 {
		t.Fatalf("span count = %d, want 1", len(got))
	}
	if got[0].Count != 2 {
		t.Errorf("span count = %d, want 2", got[0].Count)
	}
}
