package tables

import (
	"fmt"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/kshedden/gonpy"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// ReadKinshipMatrix reads a square .npy kinship-coefficient matrix (e.g.
// PCAngsd output) whose rows and columns follow ids. Each upper-triangle
// entry becomes one kinship record.
func ReadKinshipMatrix(r io.Reader, ids []string) ([]cohort.KinshipRecord, Stats, error) {
	stats := Stats{Table: "kinship"}

	npy, err := gonpy.NewReader(r)
	if err != nil {
		return nil, stats, pfx.Err(err)
	}
	if len(npy.Shape) != 2 || npy.Shape[0] != npy.Shape[1] {
		return nil, stats, fmt.Errorf("kinship matrix must be a square 2-dimensional array, got shape %v", npy.Shape)
	}
	n := int(npy.Shape[0])
	if n != len(ids) {
		return nil, stats, fmt.Errorf("kinship matrix is %dx%d but %d IDs were given", n, n, len(ids))
	}

	data, err := npy.GetFloat64()
	if err != nil {
		return nil, stats, pfx.Err(err)
	}

	// symmetric, so row- or column-major layout reads the same
	out := make([]cohort.KinshipRecord, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			stats.Lines++
			metric := data[i*n+j]
			if math.IsNaN(metric) || math.IsInf(metric, 0) {
				stats.reject(i*n+j+1, fmt.Sprintf("%s %s %v", ids[i], ids[j], metric), "metric is not a finite number")
				continue
			}
			out = append(out, cohort.KinshipRecord{IID1: ids[i], IID2: ids[j], Metric: metric})
			stats.Records++
		}
	}

	return out, stats, nil
}
