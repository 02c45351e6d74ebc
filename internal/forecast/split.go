package forecast

// ChronoSplit is a time-ordered partition: every Test row is later than every Train row.
type ChronoSplit struct {
	Train []FeatureRow
	Test  []FeatureRow
}

// TrainSize returns ceil(0.8*n) computed exactly, capped so that at least one
// row is left for testing.
func TrainSize(n int) int {
	if n < MinFeatureRows {
		return n
	}
	train := (8*n + 9) / 10
	if train >= n {
		train = n - 1
	}
	return train
}

// SplitChronological partitions rows without reordering them.
func SplitChronological(rows []FeatureRow) ChronoSplit {
	cut := TrainSize(len(rows))
	return ChronoSplit{
		Train: rows[:cut:cut],
		Test:  rows[cut:],
	}
}
