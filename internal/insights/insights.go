package insights

import (
	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/queue"
)

// Insights bundles every derived view for the metrics endpoint.
type Insights struct {
	HealthScore     int         `json:"healthScore"`
	Recommendations []string    `json:"recommendations"`
	Trends          TrendReport `json:"trends"`
}

// Compute derives all insights from one consistent set of inputs.
func Compute(m analytics.Metrics, errs analytics.ErrorAnalysis, queueStats queue.Stats, recent []analytics.RequestLog) Insights {
	return Insights{
		HealthScore:     ComputeHealthScore(m, errs),
		Recommendations: GenerateRecommendations(m, errs, queueStats),
		Trends:          CalculateTrends(recent),
	}
}
