package lib

import "testing"

func TestAverageInt64(t *testing.T) {
	avg := &AverageInt64{}
	for i := int64(1); i <= 100; i++ {
		avg.Add(i)
	}
	if x := avg.Samples(); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	} else if x = avg.Min(); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	} else if x = avg.Max(); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	} else if x = avg.Sum(); x != 5050 {
		t.Errorf("expected %v, got %v", 5050, x)
	} else if x = avg.Mean(); x != 50 {
		t.Errorf("expected %v, got %v", 50, x)
	}
	if x := avg.Variance(); x < 833 || x > 834 {
		t.Errorf("unexpected variance %v", x)
	}
	if x := avg.SD(); x < 28.8 || x > 28.9 {
		t.Errorf("unexpected sd %v", x)
	}
	stats := avg.Stats()
	if x := stats["samples"].(int64); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	}
}

func TestAverageInt64Empty(t *testing.T) {
	avg := &AverageInt64{}
	if x := avg.Mean(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if y := avg.Variance(); y != 0 {
		t.Errorf("expected %v, got %v", 0, y)
	} else if z := avg.SD(); z != 0 {
		t.Errorf("expected %v, got %v", 0, z)
	}
}

func TestAverageInt64Negative(t *testing.T) {
	avg := &AverageInt64{}
	avg.Add(-10)
	avg.Add(10)
	if x := avg.Min(); x != -10 {
		t.Errorf("expected %v, got %v", -10, x)
	} else if x = avg.Max(); x != 10 {
		t.Errorf("expected %v, got %v", 10, x)
	} else if x = avg.Mean(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
}

func BenchmarkAvgint64Add(b *testing.B) {
	avg := &AverageInt64{}
	for i := 0; i < b.N; i++ {
		avg.Add(int64(i))
	}
}
