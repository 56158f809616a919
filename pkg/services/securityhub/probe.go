// Package securityhub probes Security Hub for controls that failed compliance
// checks in the last week, grouped by standard.
package securityhub

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sh "github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"

	"github.com/johnnycloud/posture/pkg/models/api"
	"github.com/johnnycloud/posture/pkg/services/awsx"
)

const (
	maxFindings  = 50
	maxStandards = 5
	windowDays   = 7

	unknownStandard = "Unknown"
)

// disabledCodes are the error codes Security Hub returns for accounts where
// the service is not enabled. They map to an expected state, not a failure.
var disabledCodes = map[string]bool{
	"InvalidAccessException": true,
	"AccessDeniedException":  true,
}

type SecurityHubAPI interface {
	GetFindings(
		ctx context.Context,
		params *sh.GetFindingsInput,
		optFns ...func(*sh.Options),
	) (*sh.GetFindingsOutput, error)
}

type Probe struct {
	client  SecurityHubAPI
	timeout time.Duration
}

func NewProbe(client SecurityHubAPI, timeout time.Duration) *Probe {
	return &Probe{client: client, timeout: timeout}
}

// FailedControls fetches FAILED compliance findings updated in the last week
// and returns the five standards with the most failures.
func (p *Probe) FailedControls(ctx context.Context) any {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetFindings(ctx, &sh.GetFindingsInput{
		Filters: &shtypes.AwsSecurityFindingFilters{
			ComplianceStatus: []shtypes.StringFilter{{
				Value:      aws.String("FAILED"),
				Comparison: shtypes.StringFilterComparisonEquals,
			}},
			UpdatedAt: []shtypes.DateFilter{{
				DateRange: &shtypes.DateRange{
					Value: aws.Int32(windowDays),
					Unit:  shtypes.DateRangeUnitDays,
				},
			}},
		},
		MaxResults: aws.Int32(maxFindings),
	})
	if err != nil {
		if disabledCodes[awsx.ErrorCode(err)] {
			return api.Capability{Enabled: false}
		}
		return api.Error{Error: "securityhub", Detail: err.Error()}
	}

	byStandard := make(map[string]int)
	for _, f := range out.Findings {
		byStandard[standardKey(f.ProductFields)]++
	}

	failed := make([]api.StandardFailures, 0, len(byStandard))
	for standard, count := range byStandard {
		failed = append(failed, api.StandardFailures{Standard: standard, Count: count})
	}
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].Count != failed[j].Count {
			return failed[i].Count > failed[j].Count
		}
		return failed[i].Standard < failed[j].Standard
	})
	if len(failed) > maxStandards {
		failed = failed[:maxStandards]
	}

	return api.ComplianceSummary{Enabled: true, FailedByStandard: failed}
}

// standardKey reduces a standards ARN to its last path segment, the
// human-readable standard name.
func standardKey(productFields map[string]string) string {
	arn := productFields["StandardsArn"]
	if arn == "" {
		return unknownStandard
	}
	segments := strings.Split(arn, "/")
	return segments[len(segments)-1]
}
