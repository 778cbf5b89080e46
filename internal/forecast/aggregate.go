package forecast

import "time"

// Aggregate compresses an hourly sequence into buckets of groupSize
// consecutive samples, one output record per bucket. A groupSize of 1 (or
// less) is the identity. The final bucket keeps the remainder when the
// length does not divide evenly; samples are never dropped.
//
// Each bucket's record takes its base fields from the first sample. Two
// fields combine across the bucket: uv_index is the maximum of the defined
// values (peak exposure matters more than the average) and
// apparent_temperature is the mean of the defined values. When no sample
// in a bucket defines the field it is omitted from the output, not zeroed.
func Aggregate(seq []Attribute, groupSize int) []Attribute {
	if groupSize <= 1 || len(seq) == 0 {
		return seq
	}

	out := make([]Attribute, 0, (len(seq)+groupSize-1)/groupSize)
	for start := 0; start < len(seq); start += groupSize {
		end := start + groupSize
		if end > len(seq) {
			end = len(seq)
		}
		out = append(out, aggregateBucket(seq[start:end]))
	}
	return out
}

func aggregateBucket(bucket []Attribute) Attribute {
	agg := bucket[0]

	last := bucket[len(bucket)-1]
	endTime := EndOfHour(last.Datetime)
	if last.GroupEndtime != nil {
		// Already-aggregated input keeps its real bucket end so that
		// sunrise/sunset window tests stay correct.
		endTime = *last.GroupEndtime
	}
	agg.GroupEndtime = &endTime

	var maxUV *float64
	var apparentSum float64
	apparentCount := 0
	for _, sample := range bucket {
		if sample.UVIndex != nil && (maxUV == nil || *sample.UVIndex > *maxUV) {
			v := *sample.UVIndex
			maxUV = &v
		}
		if sample.ApparentTemperature != nil {
			apparentSum += *sample.ApparentTemperature
			apparentCount++
		}
	}

	agg.UVIndex = maxUV
	agg.ApparentTemperature = nil
	if apparentCount > 0 {
		mean := apparentSum / float64(apparentCount)
		agg.ApparentTemperature = &mean
	}

	return agg
}

// EndOfHour returns the last representable instant of the hour containing t.
func EndOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 59, 59, int(999*time.Millisecond), t.Location())
}
