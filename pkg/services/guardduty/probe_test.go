package guardduty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	gd "github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/johnnycloud/posture/pkg/models/api"
)

type mockGuardDuty struct {
	mock.Mock
}

func (m *mockGuardDuty) ListDetectors(
	ctx context.Context,
	params *gd.ListDetectorsInput,
	_ ...func(*gd.Options),
) (*gd.ListDetectorsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gd.ListDetectorsOutput), args.Error(1)
}

func (m *mockGuardDuty) ListFindings(
	ctx context.Context,
	params *gd.ListFindingsInput,
	_ ...func(*gd.Options),
) (*gd.ListFindingsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gd.ListFindingsOutput), args.Error(1)
}

func (m *mockGuardDuty) GetFindings(
	ctx context.Context,
	params *gd.GetFindingsInput,
	_ ...func(*gd.Options),
) (*gd.GetFindingsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gd.GetFindingsOutput), args.Error(1)
}

func finding(title string, severity float64, lastSeen string) gdtypes.Finding {
	return gdtypes.Finding{
		Title:    aws.String(title),
		Severity: aws.Float64(severity),
		Service:  &gdtypes.Service{EventLastSeen: aws.String(lastSeen)},
	}
}

func TestBucketSeverity(t *testing.T) {
	tests := []struct {
		severity float64
		expected string
	}{
		{0, "low"},
		{3.9, "low"},
		{4, "medium"},
		{6.9, "medium"},
		{7, "high"},
		{8.5, "high"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, bucketSeverity(tc.severity), "severity %v", tc.severity)
	}
}

func TestSummary_NoDetectorIsDisabledState(t *testing.T) {
	client := new(mockGuardDuty)
	client.On("ListDetectors", mock.Anything, mock.Anything).
		Return(&gd.ListDetectorsOutput{DetectorIds: []string{}}, nil)

	result := NewProbe(client, time.Second).Summary(context.Background())

	assert.Equal(t, api.Capability{Enabled: false}, result)
	client.AssertNotCalled(t, "ListFindings", mock.Anything, mock.Anything)
}

func TestSummary_NoRecentFindings(t *testing.T) {
	client := new(mockGuardDuty)
	client.On("ListDetectors", mock.Anything, mock.Anything).
		Return(&gd.ListDetectorsOutput{DetectorIds: []string{"det-1"}}, nil)
	client.On("ListFindings", mock.Anything, mock.MatchedBy(func(in *gd.ListFindingsInput) bool {
		return aws.ToString(in.DetectorId) == "det-1" && aws.ToInt32(in.MaxResults) == 100
	})).Return(&gd.ListFindingsOutput{FindingIds: []string{}}, nil)

	result := NewProbe(client, time.Second).Summary(context.Background())

	summary, ok := result.(api.ThreatSummary)
	require.True(t, ok, "expected a threat summary, got %T", result)
	assert.True(t, summary.Enabled)
	assert.Equal(t, api.SeverityCounts{}, summary.Counts)
	assert.NotNil(t, summary.Latest)
	assert.Empty(t, summary.Latest)
}

func TestSummary_BucketsAndRanksFindings(t *testing.T) {
	client := new(mockGuardDuty)
	client.On("ListDetectors", mock.Anything, mock.Anything).
		Return(&gd.ListDetectorsOutput{DetectorIds: []string{"det-1"}}, nil)
	client.On("ListFindings", mock.Anything, mock.Anything).
		Return(&gd.ListFindingsOutput{FindingIds: []string{"a", "b", "c", "d", "e", "f", "g"}}, nil)
	client.On("GetFindings", mock.Anything, mock.Anything).Return(&gd.GetFindingsOutput{
		Findings: []gdtypes.Finding{
			finding("ssh brute force", 8, "2025-06-14T10:00:00Z"),
			finding("port probe", 2, "2025-06-15T09:00:00Z"),
			finding("crypto mining", 7, "2025-06-13T08:00:00Z"),
			finding("dns exfil", 5, "2025-06-15T11:00:00Z"),
			finding("policy change", 4, "2025-06-12T07:00:00Z"),
			finding("recon", 3, "2025-06-11T06:00:00Z"),
			finding("iam anomaly", 6.5, "2025-06-10T05:00:00Z"),
		},
	}, nil)

	result := NewProbe(client, time.Second).Summary(context.Background())

	summary, ok := result.(api.ThreatSummary)
	require.True(t, ok)
	assert.Equal(t, api.SeverityCounts{Low: 2, Medium: 3, High: 2}, summary.Counts)
	require.Len(t, summary.Latest, 5)
	assert.Equal(t, "dns exfil", summary.Latest[0].Title)
	assert.Equal(t, "port probe", summary.Latest[1].Title)
	assert.Equal(t, "ssh brute force", summary.Latest[2].Title)
	for i := 1; i < len(summary.Latest); i++ {
		assert.GreaterOrEqual(t, summary.Latest[i-1].LastSeen, summary.Latest[i].LastSeen)
	}
}

func TestSummary_RemoteFailure(t *testing.T) {
	client := new(mockGuardDuty)
	client.On("ListDetectors", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	result := NewProbe(client, time.Second).Summary(context.Background())

	probeErr, ok := result.(api.Error)
	require.True(t, ok)
	assert.Equal(t, "guardduty", probeErr.Error)
	assert.Contains(t, probeErr.Detail, "connection reset")
}
