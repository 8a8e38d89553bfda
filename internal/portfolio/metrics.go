package portfolio

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/portfolio-risk-engine/internal/covariance"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

const (
	// DefaultAnnualization is the number of trading days per year
	DefaultAnnualization = 252

	// MinReturnRows is the fewest valid return rows a covariance estimate accepts
	MinReturnRows = 2

	// volatilityFloor guards the marginal-risk division for near-zero volatility
	volatilityFloor = 1e-12
)

// Metrics are the moments and risk decomposition of a weighted portfolio.
// Vectors and matrices are indexed in Assets order.
type Metrics struct {
	Assets    []string
	Weights   *mat.VecDense
	WeightMap map[string]float64
	Dropped   []string

	// Dates are the dates of the return rows (the second price date onwards)
	Dates   []time.Time
	Returns *mat.Dense

	MeanDaily  *mat.VecDense
	CovDaily   *mat.SymDense
	MeanAnnual *mat.VecDense
	CovAnnual  *mat.SymDense

	PortfolioReturns []float64
	Correlation      *mat.SymDense
	RiskContribution []float64
	Volatility       float64
	Annualization    int
}

// Calculator turns a price table and raw weights into portfolio Metrics
type Calculator struct {
	estimator covariance.Estimator
	log       *logger.Logger
}

// NewCalculator creates a calculator. A nil estimator selects Ledoit-Wolf
// with a sample-covariance fallback.
func NewCalculator(estimator covariance.Estimator) *Calculator {
	if estimator == nil {
		estimator = covariance.NewDefault()
	}
	return &Calculator{
		estimator: estimator,
		log:       logger.GetLogger("portfolio.metrics"),
	}
}

// Compute normalizes the weights over the assets present in prices,
// estimates annualized moments from log returns and decomposes portfolio risk
func (c *Calculator) Compute(prices *models.PriceTable, raw models.Weights, annualization int) (*Metrics, error) {
	if prices == nil {
		return nil, errors.InvalidArgument("price table is required")
	}
	if annualization <= 0 {
		annualization = DefaultAnnualization
	}

	assets, weights, dropped, err := c.normalizeWeights(prices, raw)
	if err != nil {
		return nil, err
	}

	dates, returns, err := logReturns(prices, assets)
	if err != nil {
		return nil, err
	}
	n, p := returns.Dims()

	covDaily, err := c.estimator.Estimate(returns)
	if err != nil {
		return nil, errors.Wrap(err, "covariance estimation failed")
	}

	meanDaily := mat.NewVecDense(p, nil)
	for j := 0; j < p; j++ {
		meanDaily.SetVec(j, stat.Mean(mat.Col(nil, j, returns), nil))
	}

	scale := float64(annualization)
	meanAnnual := mat.NewVecDense(p, nil)
	meanAnnual.ScaleVec(scale, meanDaily)
	covAnnual := mat.NewSymDense(p, nil)
	covAnnual.ScaleSym(scale, covDaily)

	portReturns := mat.NewVecDense(n, nil)
	portReturns.MulVec(returns, weights)

	vol, contribution := riskContribution(covAnnual, weights)

	weightMap := make(map[string]float64, p)
	for j, a := range assets {
		weightMap[a] = weights.AtVec(j)
	}

	c.log.Debugf("Computed metrics for %d assets over %d return rows, volatility %.4f", p, n, vol)

	return &Metrics{
		Assets:           assets,
		Weights:          weights,
		WeightMap:        weightMap,
		Dropped:          dropped,
		Dates:            dates,
		Returns:          returns,
		MeanDaily:        meanDaily,
		CovDaily:         covDaily,
		MeanAnnual:       meanAnnual,
		CovAnnual:        covAnnual,
		PortfolioReturns: portReturns.RawVector().Data,
		Correlation:      covariance.Correlation(covAnnual),
		RiskContribution: contribution,
		Volatility:       vol,
		Annualization:    annualization,
	}, nil
}

// normalizeWeights keeps the weighted assets present in prices, in price
// column order, and scales their weights to sum to one
func (c *Calculator) normalizeWeights(prices *models.PriceTable, raw models.Weights) ([]string, *mat.VecDense, []string, error) {
	var dropped []string
	for asset := range raw {
		if !prices.Has(asset) {
			dropped = append(dropped, asset)
		}
	}
	sort.Strings(dropped)
	if len(dropped) > 0 {
		c.log.Warnf("Dropping %d weighted assets without price data: %s", len(dropped), strings.Join(dropped, ", "))
	}

	var assets []string
	var values []float64
	sum := 0.0
	for _, asset := range prices.Assets {
		w, ok := raw[asset]
		if !ok {
			continue
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, nil, nil, errors.Configurationf("weight for %s must be a finite non-negative number, got %v", asset, w)
		}
		assets = append(assets, asset)
		values = append(values, w)
		sum += w
	}

	if len(assets) == 0 {
		return nil, nil, nil, errors.Configurationf("none of the %d weighted assets has price data", len(raw))
	}
	if sum == 0 {
		return nil, nil, nil, errors.Configurationf("weights of available assets %s sum to zero", strings.Join(assets, ", "))
	}

	weights := mat.NewVecDense(len(values), values)
	weights.ScaleVec(1/sum, weights)
	return assets, weights, dropped, nil
}

// logReturns builds ln(P_t/P_{t-1}) for the given columns and drops rows
// with any non-finite return
func logReturns(prices *models.PriceTable, assets []string) ([]time.Time, *mat.Dense, error) {
	cols := make([][]float64, len(assets))
	for j, a := range assets {
		cols[j], _ = prices.Column(a)
	}

	var dates []time.Time
	var data []float64
	for t := 1; t < prices.Rows(); t++ {
		row := make([]float64, len(assets))
		valid := true
		for j := range assets {
			r := math.Log(cols[j][t] / cols[j][t-1])
			if math.IsNaN(r) || math.IsInf(r, 0) {
				valid = false
				break
			}
			row[j] = r
		}
		if !valid {
			continue
		}
		dates = append(dates, prices.Dates[t])
		data = append(data, row...)
	}

	if len(dates) < MinReturnRows {
		return nil, nil, errors.InsufficientDataf(
			"need at least %d valid return rows for %s, got %d from %d price rows",
			MinReturnRows, strings.Join(assets, ", "), len(dates), prices.Rows())
	}
	return dates, mat.NewDense(len(dates), len(assets), data), nil
}

// riskContribution returns sqrt(wᵀΣw) and each asset's share of it
func riskContribution(cov *mat.SymDense, w *mat.VecDense) (float64, []float64) {
	p := w.Len()

	var sigmaW mat.VecDense
	sigmaW.MulVec(cov, w)

	vol := math.Sqrt(math.Max(mat.Dot(w, &sigmaW), 0))
	denom := math.Max(vol, volatilityFloor)

	rc := make([]float64, p)
	total := 0.0
	for i := 0; i < p; i++ {
		rc[i] = w.AtVec(i) * sigmaW.AtVec(i) / denom
		total += rc[i]
	}

	total = math.Max(total, volatilityFloor)
	for i := range rc {
		rc[i] /= total
	}
	return vol, rc
}
