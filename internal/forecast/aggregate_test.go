package forecast

import (
	"testing"
	"time"
)

func hourlySample(hour int, temp float64) Attribute {
	t := temp
	return Attribute{
		Datetime:    time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Temperature: &t,
	}
}

func withUV(a Attribute, uv float64) Attribute {
	a.UVIndex = &uv
	return a
}

func withApparent(a Attribute, at float64) Attribute {
	a.ApparentTemperature = &at
	return a
}

func TestAggregateIdentity(t *testing.T) {
	seq := []Attribute{hourlySample(10, 20), hourlySample(11, 21), hourlySample(12, 22)}

	for _, groupSize := range []int{0, 1} {
		got := Aggregate(seq, groupSize)
		if len(got) != len(seq) {
			t.Fatalf("Aggregate(seq, %d) length = %d, want %d", groupSize, len(got), len(seq))
		}
		for i := range got {
			if !got[i].Datetime.Equal(seq[i].Datetime) {
				t.Errorf("Aggregate(seq, %d)[%d].Datetime = %v, want %v", groupSize, i, got[i].Datetime, seq[i].Datetime)
			}
			if got[i].GroupEndtime != nil {
				t.Errorf("Aggregate(seq, %d)[%d].GroupEndtime set on identity output", groupSize, i)
			}
		}
	}
}

func TestAggregateBucketCount(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		groupSize int
		want      int
	}{
		{"even split", 6, 2, 3},
		{"even split of three", 6, 3, 2},
		{"remainder kept", 7, 3, 3},
		{"group larger than sequence", 2, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := make([]Attribute, tt.length)
			for i := range seq {
				seq[i] = hourlySample(i, float64(i))
			}
			got := Aggregate(seq, tt.groupSize)
			if len(got) != tt.want {
				t.Fatalf("Aggregate length = %d, want %d", len(got), tt.want)
			}
			// No samples dropped: bucket windows cover the whole sequence.
			covered := 0
			for i, bucket := range got {
				start := i * tt.groupSize
				end := start + tt.groupSize
				if end > tt.length {
					end = tt.length
				}
				covered += end - start
				if !bucket.Datetime.Equal(seq[start].Datetime) {
					t.Errorf("bucket %d starts at %v, want %v", i, bucket.Datetime, seq[start].Datetime)
				}
			}
			if covered != tt.length {
				t.Errorf("buckets cover %d samples, want %d", covered, tt.length)
			}
		})
	}
}

func TestAggregateUVIndexMax(t *testing.T) {
	seq := []Attribute{
		withUV(hourlySample(10, 20), 3),
		withUV(hourlySample(11, 21), 5),
		withUV(hourlySample(12, 22), 7),
		withUV(hourlySample(13, 23), 8),
	}

	got := Aggregate(seq, 2)
	if len(got) != 2 {
		t.Fatalf("Aggregate length = %d, want 2", len(got))
	}
	if got[0].UVIndex == nil || *got[0].UVIndex != 5 {
		t.Errorf("first bucket uv_index = %v, want 5", got[0].UVIndex)
	}
	if got[1].UVIndex == nil || *got[1].UVIndex != 8 {
		t.Errorf("second bucket uv_index = %v, want 8", got[1].UVIndex)
	}
}

func TestAggregateUVIndexPartiallyMissing(t *testing.T) {
	seq := []Attribute{
		withUV(hourlySample(10, 20), 3),
		hourlySample(11, 21),
		withUV(hourlySample(12, 22), 7),
		hourlySample(13, 23),
	}

	got := Aggregate(seq, 2)
	if got[0].UVIndex == nil || *got[0].UVIndex != 3 {
		t.Errorf("first bucket uv_index = %v, want 3", got[0].UVIndex)
	}
	if got[1].UVIndex == nil || *got[1].UVIndex != 7 {
		t.Errorf("second bucket uv_index = %v, want 7", got[1].UVIndex)
	}
}

func TestAggregateUVIndexAllMissing(t *testing.T) {
	got := Aggregate([]Attribute{hourlySample(10, 20), hourlySample(11, 21)}, 2)
	if len(got) != 1 {
		t.Fatalf("Aggregate length = %d, want 1", len(got))
	}
	if got[0].UVIndex != nil {
		t.Errorf("uv_index = %v, want omitted", *got[0].UVIndex)
	}
}

func TestAggregateApparentTemperatureMean(t *testing.T) {
	seq := []Attribute{
		withApparent(hourlySample(10, 20), 18),
		withApparent(hourlySample(11, 21), 19),
		withApparent(hourlySample(12, 22), 21),
		withApparent(hourlySample(13, 23), 22),
	}

	got := Aggregate(seq, 2)
	if got[0].ApparentTemperature == nil || *got[0].ApparentTemperature != 18.5 {
		t.Errorf("first bucket apparent_temperature = %v, want 18.5", got[0].ApparentTemperature)
	}
	if got[1].ApparentTemperature == nil || *got[1].ApparentTemperature != 21.5 {
		t.Errorf("second bucket apparent_temperature = %v, want 21.5", got[1].ApparentTemperature)
	}
}

func TestAggregateApparentTemperatureSparse(t *testing.T) {
	// Mean is over defined values only; an all-missing bucket omits the field.
	seq := []Attribute{
		withApparent(hourlySample(10, 20), 18),
		hourlySample(11, 21),
		hourlySample(12, 22),
		hourlySample(13, 23),
	}

	got := Aggregate(seq, 2)
	if got[0].ApparentTemperature == nil || *got[0].ApparentTemperature != 18 {
		t.Errorf("first bucket apparent_temperature = %v, want 18", got[0].ApparentTemperature)
	}
	if got[1].ApparentTemperature != nil {
		t.Errorf("second bucket apparent_temperature = %v, want omitted", *got[1].ApparentTemperature)
	}
}

func TestAggregateRepresentativeFields(t *testing.T) {
	cond := func(a Attribute, c string) Attribute {
		a.Condition = c
		return a
	}
	seq := []Attribute{
		cond(hourlySample(10, 20), "sunny"),
		cond(hourlySample(11, 25), "rainy"),
	}

	got := Aggregate(seq, 2)
	if got[0].Condition != "sunny" {
		t.Errorf("condition = %q, want first sample's %q", got[0].Condition, "sunny")
	}
	if got[0].Temperature == nil || *got[0].Temperature != 20 {
		t.Errorf("temperature = %v, want first sample's 20", got[0].Temperature)
	}
}

func TestAggregateGroupEndtime(t *testing.T) {
	seq := []Attribute{hourlySample(10, 20), hourlySample(11, 21)}

	got := Aggregate(seq, 2)
	if got[0].GroupEndtime == nil {
		t.Fatal("group endtime missing")
	}
	want := time.Date(2024, 1, 1, 11, 59, 59, int(999*time.Millisecond), time.UTC)
	if !got[0].GroupEndtime.Equal(want) {
		t.Errorf("group endtime = %v, want %v", got[0].GroupEndtime, want)
	}
}

func TestAggregateAlreadyAggregatedInput(t *testing.T) {
	// Re-aggregating keeps the last bucket's real end time.
	end := time.Date(2024, 1, 1, 13, 59, 59, int(999*time.Millisecond), time.UTC)
	seq := []Attribute{hourlySample(10, 20), hourlySample(12, 21)}
	seq[1].GroupEndtime = &end

	got := Aggregate(seq, 2)
	if got[0].GroupEndtime == nil || !got[0].GroupEndtime.Equal(end) {
		t.Errorf("group endtime = %v, want %v", got[0].GroupEndtime, end)
	}
}
