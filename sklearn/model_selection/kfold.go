package model_selection

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter. Without shuffling the
// folds are consecutive blocks and the first n%k folds hold one extra row.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for n samples.
func (kf *KFold) Split(n int) ([]CVFold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewPipelineError(errors.KindDataQuality, "KFold.Split",
			"cannot make %d folds from %d samples", kf.NSplits, n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewSource(kf.RandomSeed))
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	start := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		end := start + size
		test := append([]int(nil), indices[start:end]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)
		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
		start = end
	}
	return folds, nil
}

// CVResult stores the per-fold scores of one parameter combination
type CVResult struct {
	Params     map[string]interface{}
	TestScores []float64
	Errors     []error
	Rank       int
}

// GetMeanScore returns the mean test score, NaN if any fold failed
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, score := range cv.TestScores {
		sum += score
	}
	return sum / float64(len(cv.TestScores))
}

// GetStdScore returns the population standard deviation of the test scores
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0.0
	}
	mean := cv.GetMeanScore()
	sumSq := 0.0
	for _, score := range cv.TestScores {
		diff := score - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(cv.TestScores)))
}

// Failed reports whether any fold of the combination failed.
func (cv *CVResult) Failed() bool {
	for _, err := range cv.Errors {
		if err != nil {
			return true
		}
	}
	return false
}
