// Package guardduty probes GuardDuty for a severity-bucketed digest of the
// last week's findings.
package guardduty

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	gd "github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/johnnycloud/posture/pkg/models/api"
)

const (
	findingWindow = 7 * 24 * time.Hour
	maxFindingIDs = 100
	maxLatest     = 5
)

type GuardDutyAPI interface {
	ListDetectors(
		ctx context.Context,
		params *gd.ListDetectorsInput,
		optFns ...func(*gd.Options),
	) (*gd.ListDetectorsOutput, error)
	ListFindings(
		ctx context.Context,
		params *gd.ListFindingsInput,
		optFns ...func(*gd.Options),
	) (*gd.ListFindingsOutput, error)
	GetFindings(
		ctx context.Context,
		params *gd.GetFindingsInput,
		optFns ...func(*gd.Options),
	) (*gd.GetFindingsOutput, error)
}

type Probe struct {
	client  GuardDutyAPI
	timeout time.Duration
	now     func() time.Time
}

func NewProbe(client GuardDutyAPI, timeout time.Duration) *Probe {
	return &Probe{
		client:  client,
		timeout: timeout,
		now:     time.Now,
	}
}

// Summary lists detectors, fetches the findings seen in the last week and
// buckets them by severity. An account without a detector is an expected
// state, reported as enabled:false. Any remote failure aborts the probe.
func (p *Probe) Summary(ctx context.Context) any {
	detectors, err := p.listDetectors(ctx)
	if err != nil {
		return api.Error{Error: "guardduty", Detail: err.Error()}
	}
	if len(detectors) == 0 {
		return api.Capability{Enabled: false}
	}
	detector := detectors[0]

	ids, err := p.listRecentFindingIDs(ctx, detector)
	if err != nil {
		return api.Error{Error: "guardduty", Detail: err.Error()}
	}
	if len(ids) == 0 {
		return api.ThreatSummary{
			Enabled: true,
			Latest:  []api.ThreatFinding{},
		}
	}

	findings, err := p.getFindings(ctx, detector, ids)
	if err != nil {
		return api.Error{Error: "guardduty", Detail: err.Error()}
	}

	var counts api.SeverityCounts
	for _, f := range findings {
		switch bucketSeverity(f.Severity) {
		case "high":
			counts.High++
		case "medium":
			counts.Medium++
		default:
			counts.Low++
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].LastSeen > findings[j].LastSeen
	})
	if len(findings) > maxLatest {
		findings = findings[:maxLatest]
	}

	return api.ThreatSummary{Enabled: true, Counts: counts, Latest: findings}
}

func (p *Probe) listDetectors(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.ListDetectors(ctx, &gd.ListDetectorsInput{})
	if err != nil {
		return nil, err
	}
	return out.DetectorIds, nil
}

func (p *Probe) listRecentFindingIDs(ctx context.Context, detector string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	since := p.now().Add(-findingWindow).UnixMilli()
	out, err := p.client.ListFindings(ctx, &gd.ListFindingsInput{
		DetectorId: aws.String(detector),
		FindingCriteria: &gdtypes.FindingCriteria{
			Criterion: map[string]gdtypes.Condition{
				"service.eventLastSeen": {GreaterThanOrEqual: aws.Int64(since)},
			},
		},
		MaxResults: aws.Int32(maxFindingIDs),
	})
	if err != nil {
		return nil, err
	}
	return out.FindingIds, nil
}

func (p *Probe) getFindings(ctx context.Context, detector string, ids []string) ([]api.ThreatFinding, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetFindings(ctx, &gd.GetFindingsInput{
		DetectorId: aws.String(detector),
		FindingIds: ids,
	})
	if err != nil {
		return nil, err
	}

	findings := make([]api.ThreatFinding, 0, len(out.Findings))
	for _, f := range out.Findings {
		finding := api.ThreatFinding{
			Title:    aws.ToString(f.Title),
			Severity: aws.ToFloat64(f.Severity),
		}
		if f.Service != nil {
			finding.LastSeen = aws.ToString(f.Service.EventLastSeen)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// bucketSeverity maps GuardDuty's numeric severity onto the three UI buckets.
func bucketSeverity(severity float64) string {
	switch {
	case severity >= 7:
		return "high"
	case severity >= 4:
		return "medium"
	default:
		return "low"
	}
}
