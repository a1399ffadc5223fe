package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	DefaultTestRatio       = 0.2
	DefaultSeed      int64 = 42
)

var (
	ErrInvalidRatio   = errors.New("test ratio must be in the open interval (0, 1)")
	ErrEmptyPartition = errors.New("split leaves a partition empty")
)

// Counts returns the partition sizes for n rows. The test side is rounded up,
// so 0.2 of 7 rows is 2 test rows and 5 train rows.
func Counts(n int, testRatio float64) (nTrain, nTest int, err error) {
	if !(testRatio > 0 && testRatio < 1) {
		return 0, 0, fmt.Errorf("%w: got %g", ErrInvalidRatio, testRatio)
	}
	nTest = int(math.Ceil(testRatio * float64(n)))
	nTrain = n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return 0, 0, fmt.Errorf("%w: %d rows with test ratio %g gives %d train and %d test rows",
			ErrEmptyPartition, n, testRatio, nTrain, nTest)
	}
	return nTrain, nTest, nil
}

// TrainTestSplit shuffles the row indices [0, n) once with a generator seeded
// by seed and assigns the first nTest of the permutation to test and the rest
// to train. The result depends only on n, testRatio and seed.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int, err error) {
	_, nTest, err := Counts(n, testRatio)
	if err != nil {
		return nil, nil, err
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
