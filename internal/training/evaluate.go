package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// Importance is the weight of one feature in the fitted model.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// HourlyMean compares mean actual and predicted departures for one hour of day.
// Actual and Predicted are nil when the test set has no row for the hour.
type HourlyMean struct {
	Hour      int      `json:"hour"`
	Count     int      `json:"count"`
	Actual    *float64 `json:"actual"`
	Predicted *float64 `json:"predicted"`
}

// HistogramBin counts residuals in [Lower, Upper).
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Evaluation holds the test-set scores of a model.
type Evaluation struct {
	MSE         float64        `json:"mse"`
	R2          float64        `json:"r2"`
	Importances []Importance   `json:"feature_importances"`
	Hourly      []HourlyMean   `json:"hourly"`
	Residuals   []HistogramBin `json:"residual_histogram"`
}

// Evaluate scores model on test. Importances are sorted descending.
func Evaluate(model *RidgeRegressor, test *Dataset, bins int) (*Evaluation, error) {
	if test.Len() == 0 {
		return nil, exception.NewBatchError(moduleName, "cannot evaluate on an empty test set", exception.ErrEmptyDataset, false, false)
	}
	pred, err := model.Predict(test.X)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, len(pred))
	floats.SubTo(residuals, test.Y, pred)
	ev := &Evaluation{
		MSE: floats.Dot(residuals, residuals) / float64(len(residuals)),
		R2:  stat.RSquaredFrom(pred, test.Y, nil),
	}
	if math.IsNaN(ev.R2) || math.IsInf(ev.R2, 0) {
		// Constant target: 1 for a perfect fit, else 0.
		ev.R2 = 0
		if ev.MSE == 0 {
			ev.R2 = 1
		}
	}

	imp := model.FeatureImportances()
	for j, name := range test.FeatureNames {
		ev.Importances = append(ev.Importances, Importance{Feature: name, Importance: imp[j]})
	}
	sort.SliceStable(ev.Importances, func(a, b int) bool {
		return ev.Importances[a].Importance > ev.Importances[b].Importance
	})

	ev.Hourly = hourlyMeans(test.Hours, test.Y, pred)
	ev.Residuals = histogram(residuals, bins)
	return ev, nil
}

func hourlyMeans(hours []int, actual, pred []float64) []HourlyMean {
	var sumA, sumP [24]float64
	var count [24]int
	for i, h := range hours {
		if h < 0 || h > 23 {
			continue
		}
		sumA[h] += actual[i]
		sumP[h] += pred[i]
		count[h]++
	}
	out := make([]HourlyMean, 24)
	for h := range out {
		out[h] = HourlyMean{Hour: h, Count: count[h]}
		if count[h] > 0 {
			a, p := sumA[h]/float64(count[h]), sumP[h]/float64(count[h])
			out[h].Actual, out[h].Predicted = &a, &p
		}
	}
	return out
}

// histogram splits the range of x into bins equal-width bins.
func histogram(x []float64, bins int) []HistogramBin {
	if len(x) == 0 || bins < 1 {
		return nil
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram needs the last divider strictly above the maximum.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i] = HistogramBin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	return out
}
