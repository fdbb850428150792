package sparsenet

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Statistics records one row per training batch.
type Statistics struct {
	Loss     []float32
	Accuracy []float32
	Count    []int
}

func makeStatistics() Statistics {
	return Statistics{
		Loss:     make([]float32, 0, 64),
		Accuracy: make([]float32, 0, 64),
		Count:    make([]int, 0, 64),
	}
}

func (s *Statistics) update(loss float32, correct, count int) {
	var acc float32
	if count > 0 {
		acc = float32(correct) / float32(count)
	}
	s.Loss = append(s.Loss, loss)
	s.Accuracy = append(s.Accuracy, acc)
	s.Count = append(s.Count, count)
}

// Batches returns the number of recorded batches.
func (s *Statistics) Batches() int { return len(s.Loss) }

// Dump writes the statistics as CSV, one row per batch.
func (s *Statistics) Dump(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"batch", "loss", "accuracy", "count"}); err != nil {
		return err
	}
	records := make([][]string, 0, len(s.Loss))
	for i := range s.Loss {
		records = append(records, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(s.Loss[i]), 'f', 4, 32),
			strconv.FormatFloat(float64(s.Accuracy[i]), 'f', 3, 32),
			strconv.Itoa(s.Count[i]),
		})
	}
	return cw.WriteAll(records)
}
