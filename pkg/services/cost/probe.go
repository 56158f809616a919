// Package cost probes AWS Cost Explorer for the month-to-date summary and the
// trailing-30-day anomaly list.
package cost

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/johnnycloud/posture/pkg/models/api"
	"github.com/johnnycloud/posture/pkg/services/window"
)

const (
	unblendedCost  = "UnblendedCost"
	maxAnomalies   = 50
	maxTopServices = 5
)

// CostExplorerAPI is the slice of the Cost Explorer client the probe uses.
type CostExplorerAPI interface {
	GetCostAndUsage(
		ctx context.Context,
		params *costexplorer.GetCostAndUsageInput,
		optFns ...func(*costexplorer.Options),
	) (*costexplorer.GetCostAndUsageOutput, error)
	GetCostForecast(
		ctx context.Context,
		params *costexplorer.GetCostForecastInput,
		optFns ...func(*costexplorer.Options),
	) (*costexplorer.GetCostForecastOutput, error)
	GetAnomalies(
		ctx context.Context,
		params *costexplorer.GetAnomaliesInput,
		optFns ...func(*costexplorer.Options),
	) (*costexplorer.GetAnomaliesOutput, error)
}

type Probe struct {
	client  CostExplorerAPI
	timeout time.Duration
	now     func() time.Time
}

func NewProbe(client CostExplorerAPI, timeout time.Duration) *Probe {
	return &Probe{
		client:  client,
		timeout: timeout,
		now:     time.Now,
	}
}

// Summary issues the four Cost Explorer queries concurrently and joins them.
// The month-to-date number is load-bearing: its failure aborts the probe with
// an error body. The forecast, daily trend and per-service ranking are
// enrichments, absorbed into null/empty values on failure.
func (p *Probe) Summary(ctx context.Context) any {
	w := window.Compute(p.now())

	var (
		wg       sync.WaitGroup
		mtd      float64
		mtdErr   error
		forecast *float64
		daily    []api.DailyCost
		top      []api.ServiceCost
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		mtd, mtdErr = p.monthToDate(ctx, w)
	}()
	go func() {
		defer wg.Done()
		forecast = p.forecast(ctx, w)
	}()
	go func() {
		defer wg.Done()
		daily = p.dailyTrend(ctx, w)
	}()
	go func() {
		defer wg.Done()
		top = p.topServices(ctx, w)
	}()
	wg.Wait()

	if mtdErr != nil {
		return api.Error{Error: "ce:GetCostAndUsage", Detail: mtdErr.Error()}
	}

	return api.CostSummary{
		MTDUSD:      mtd,
		ForecastUSD: forecast,
		Daily:       daily,
		TopServices: top,
	}
}

func (p *Probe) monthToDate(ctx context.Context, w window.Window) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(w.MonthStart),
			End:   aws.String(w.TodayExclusiveEnd),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{unblendedCost},
	})
	if err != nil {
		return 0, err
	}
	if len(out.ResultsByTime) == 0 {
		return 0, fmt.Errorf("empty cost and usage result for %s..%s", w.MonthStart, w.TodayExclusiveEnd)
	}

	return parseAmount(out.ResultsByTime[0].Total[unblendedCost])
}

func (p *Probe) forecast(ctx context.Context, w window.Window) *float64 {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetCostForecast(ctx, &costexplorer.GetCostForecastInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(w.TodayExclusiveEnd),
			End:   aws.String(w.NextMonthStart),
		},
		Metric:      types.MetricUnblendedCost,
		Granularity: types.GranularityMonthly,
	})
	if err != nil || len(out.ForecastResultsByTime) == 0 {
		return nil
	}

	v, err := strconv.ParseFloat(aws.ToString(out.ForecastResultsByTime[0].MeanValue), 64)
	if err != nil {
		return nil
	}
	return &v
}

func (p *Probe) dailyTrend(ctx context.Context, w window.Window) []api.DailyCost {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(w.Trailing30Start),
			End:   aws.String(w.TodayExclusiveEnd),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{unblendedCost},
	})
	if err != nil {
		return []api.DailyCost{}
	}

	daily := make([]api.DailyCost, 0, len(out.ResultsByTime))
	for _, day := range out.ResultsByTime {
		if day.TimePeriod == nil {
			continue
		}
		usd, err := parseAmount(day.Total[unblendedCost])
		if err != nil {
			continue
		}
		daily = append(daily, api.DailyCost{
			Date: aws.ToString(day.TimePeriod.Start),
			USD:  usd,
		})
	}
	return daily
}

func (p *Probe) topServices(ctx context.Context, w window.Window) []api.ServiceCost {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(w.MonthStart),
			End:   aws.String(w.TodayExclusiveEnd),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{unblendedCost},
		GroupBy: []types.GroupDefinition{
			{
				Type: types.GroupDefinitionTypeDimension,
				Key:  aws.String("SERVICE"),
			},
		},
	})
	if err != nil || len(out.ResultsByTime) == 0 {
		return []api.ServiceCost{}
	}

	services := make([]api.ServiceCost, 0, len(out.ResultsByTime[0].Groups))
	for _, group := range out.ResultsByTime[0].Groups {
		if len(group.Keys) == 0 {
			continue
		}
		usd, err := parseAmount(group.Metrics[unblendedCost])
		if err != nil {
			continue
		}
		services = append(services, api.ServiceCost{Service: group.Keys[0], USD: usd})
	}

	sort.SliceStable(services, func(i, j int) bool {
		return services[i].USD > services[j].USD
	})
	if len(services) > maxTopServices {
		services = services[:maxTopServices]
	}
	return services
}

// Anomalies returns the vendor-scored anomalies of the trailing 30 days,
// capped upstream at 50, in upstream order.
func (p *Probe) Anomalies(ctx context.Context) any {
	w := window.Compute(p.now())

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetAnomalies(ctx, &costexplorer.GetAnomaliesInput{
		DateInterval: &types.AnomalyDateInterval{
			StartDate: aws.String(w.Trailing30Start),
			EndDate:   aws.String(w.TodayExclusiveEnd),
		},
		MaxResults: aws.Int32(maxAnomalies),
	})
	if err != nil {
		return api.Error{Error: "ce:GetAnomalies", Detail: err.Error()}
	}

	anomalies := make([]api.Anomaly, 0, len(out.Anomalies))
	for _, a := range out.Anomalies {
		anomaly := api.Anomaly{
			Start:      aws.ToString(a.AnomalyStartDate),
			End:        a.AnomalyEndDate,
			RootCauses: make([]api.RootCause, 0, len(a.RootCauses)),
		}
		if a.Impact != nil {
			anomaly.ImpactUSD = a.Impact.TotalImpact
		}
		if a.AnomalyScore != nil {
			anomaly.Score = a.AnomalyScore.MaxScore
		}
		for _, rc := range a.RootCauses {
			anomaly.RootCauses = append(anomaly.RootCauses, api.RootCause{
				Service:       aws.ToString(rc.Service),
				Region:        aws.ToString(rc.Region),
				LinkedAccount: aws.ToString(rc.LinkedAccount),
				UsageType:     aws.ToString(rc.UsageType),
			})
		}
		anomalies = append(anomalies, anomaly)
	}

	return api.AnomalyReport{Anomalies: anomalies}
}

func parseAmount(metric types.MetricValue) (float64, error) {
	if metric.Amount == nil {
		return 0, fmt.Errorf("metric %q has no amount", unblendedCost)
	}
	return strconv.ParseFloat(*metric.Amount, 64)
}
