package securityhub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sh "github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/johnnycloud/posture/pkg/models/api"
)

type mockSecurityHub struct {
	mock.Mock
}

func (m *mockSecurityHub) GetFindings(
	ctx context.Context,
	params *sh.GetFindingsInput,
	_ ...func(*sh.Options),
) (*sh.GetFindingsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sh.GetFindingsOutput), args.Error(1)
}

func failedFinding(standardsArn string) shtypes.AwsSecurityFinding {
	f := shtypes.AwsSecurityFinding{ProductFields: map[string]string{}}
	if standardsArn != "" {
		f.ProductFields["StandardsArn"] = standardsArn
	}
	return f
}

func repeat(f shtypes.AwsSecurityFinding, n int) []shtypes.AwsSecurityFinding {
	out := make([]shtypes.AwsSecurityFinding, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestFailedControls_GroupsByStandard(t *testing.T) {
	findings := repeat(failedFinding("arn:aws:securityhub:::standards/cis-aws-foundations-benchmark"), 3)
	findings = append(findings, repeat(failedFinding("arn:aws:securityhub:::standards/aws-foundational-security-best-practices"), 5)...)
	findings = append(findings, failedFinding(""))

	client := new(mockSecurityHub)
	client.On("GetFindings", mock.Anything, mock.MatchedBy(func(in *sh.GetFindingsInput) bool {
		return aws.ToInt32(in.MaxResults) == 50 &&
			aws.ToString(in.Filters.ComplianceStatus[0].Value) == "FAILED"
	})).Return(&sh.GetFindingsOutput{Findings: findings}, nil)

	result := NewProbe(client, time.Second).FailedControls(context.Background())

	summary, ok := result.(api.ComplianceSummary)
	require.True(t, ok, "expected a compliance summary, got %T", result)
	assert.True(t, summary.Enabled)
	assert.Equal(t, []api.StandardFailures{
		{Standard: "aws-foundational-security-best-practices", Count: 5},
		{Standard: "cis-aws-foundations-benchmark", Count: 3},
		{Standard: "Unknown", Count: 1},
	}, summary.FailedByStandard)
}

func TestFailedControls_TruncatesToFiveStandards(t *testing.T) {
	var findings []shtypes.AwsSecurityFinding
	names := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	for i, name := range names {
		findings = append(findings, repeat(failedFinding("arn:std/"+name), i+1)...)
	}

	client := new(mockSecurityHub)
	client.On("GetFindings", mock.Anything, mock.Anything).
		Return(&sh.GetFindingsOutput{Findings: findings}, nil)

	result := NewProbe(client, time.Second).FailedControls(context.Background())

	summary := result.(api.ComplianceSummary)
	require.Len(t, summary.FailedByStandard, 5)
	assert.Equal(t, api.StandardFailures{Standard: "s7", Count: 7}, summary.FailedByStandard[0])
	for i := 1; i < len(summary.FailedByStandard); i++ {
		assert.Greater(t, summary.FailedByStandard[i-1].Count, summary.FailedByStandard[i].Count)
	}
}

func TestFailedControls_NotEnabledIsExpectedState(t *testing.T) {
	for _, code := range []string{"InvalidAccessException", "AccessDeniedException"} {
		t.Run(code, func(t *testing.T) {
			client := new(mockSecurityHub)
			client.On("GetFindings", mock.Anything, mock.Anything).
				Return(nil, &smithy.GenericAPIError{Code: code, Message: "not subscribed"})

			result := NewProbe(client, time.Second).FailedControls(context.Background())

			assert.Equal(t, api.Capability{Enabled: false}, result)
		})
	}
}

func TestFailedControls_OtherFailuresAbortProbe(t *testing.T) {
	client := new(mockSecurityHub)
	client.On("GetFindings", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	result := NewProbe(client, time.Second).FailedControls(context.Background())

	probeErr, ok := result.(api.Error)
	require.True(t, ok)
	assert.Equal(t, "securityhub", probeErr.Error)
}

func TestStandardKey(t *testing.T) {
	assert.Equal(t, "cis", standardKey(map[string]string{"StandardsArn": "arn:aws:securityhub:::standards/cis"}))
	assert.Equal(t, "Unknown", standardKey(map[string]string{}))
	assert.Equal(t, "Unknown", standardKey(nil))
	assert.Equal(t, "plain-name", standardKey(map[string]string{"StandardsArn": "plain-name"}))
}
