// Package verify compares encoder outputs and checksums converted files
package verify

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
)

// Report summarizes the element-wise difference between two outputs
type Report struct {
	MeanAbsDiff float64
	MaxAbsDiff  float64
	Count       int
}

// Compare computes element-wise absolute differences between two outputs
// of equal length.
func Compare(a, b []float32) (Report, error) {
	if len(a) != len(b) {
		return Report{}, fmt.Errorf("length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return Report{}, fmt.Errorf("empty outputs")
	}

	var sum, max float64
	for i := range a {
		diff := math.Abs(float64(a[i]) - float64(b[i]))
		sum += diff
		if diff > max {
			max = diff
		}
	}

	return Report{
		MeanAbsDiff: sum / float64(len(a)),
		MaxAbsDiff:  max,
		Count:       len(a),
	}, nil
}

// Within reports whether the outputs agree within tol on every element
func (r Report) Within(tol float64) bool {
	return r.MaxAbsDiff <= tol
}

// MD5Sum returns the hex MD5 digest of a file
func MD5Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
