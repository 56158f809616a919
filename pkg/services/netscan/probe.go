// Package netscan probes EC2 security groups for world-open ingress on risky
// ports and counts S3 buckets reachable by the public.
package netscan

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/johnnycloud/posture/pkg/models/api"
)

const (
	openToWorld  = "0.0.0.0/0"
	maxOpenRules = 50
)

// riskyPorts are the origin ports worth surfacing: remote administration and
// public web service. A rule with no port covers all ports and is risky too.
var riskyPorts = map[int32]bool{22: true, 3389: true, 80: true, 443: true}

type EC2API interface {
	DescribeSecurityGroups(
		ctx context.Context,
		params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSecurityGroupsOutput, error)
}

type S3API interface {
	ListBuckets(
		ctx context.Context,
		params *s3.ListBucketsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListBucketsOutput, error)
	GetPublicAccessBlock(
		ctx context.Context,
		params *s3.GetPublicAccessBlockInput,
		optFns ...func(*s3.Options),
	) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketPolicyStatus(
		ctx context.Context,
		params *s3.GetBucketPolicyStatusInput,
		optFns ...func(*s3.Options),
	) (*s3.GetBucketPolicyStatusOutput, error)
}

type Probe struct {
	ec2Client EC2API
	s3Client  S3API
	timeout   time.Duration
}

func NewProbe(ec2Client EC2API, s3Client S3API, timeout time.Duration) *Probe {
	return &Probe{
		ec2Client: ec2Client,
		s3Client:  s3Client,
		timeout:   timeout,
	}
}

// Exposure assembles the network exposure report. Exposure data is
// best-effort: a security-group enumeration failure becomes an inline
// sentinel element, and a bucket enumeration failure truncates the public
// bucket count without surfacing an error in the body.
func (p *Probe) Exposure(ctx context.Context) any {
	return api.NetworkExposure{
		OpenSecurityGroups: p.openSecurityGroups(ctx),
		PublicBucketsCount: p.publicBucketsCount(ctx),
	}
}

func (p *Probe) openSecurityGroups(ctx context.Context) []api.OpenRule {
	open := []api.OpenRule{}

	var nextToken *string
	for {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		out, err := p.ec2Client.DescribeSecurityGroups(callCtx, &ec2.DescribeSecurityGroupsInput{
			NextToken: nextToken,
		})
		cancel()
		if err != nil {
			return []api.OpenRule{{Error: err.Error()}}
		}

		for _, sg := range out.SecurityGroups {
			for _, perm := range sg.IpPermissions {
				if !isOpenRule(perm) {
					continue
				}
				open = append(open, api.OpenRule{
					Group: aws.ToString(sg.GroupId),
					From:  perm.FromPort,
					To:    perm.ToPort,
				})
			}
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	if len(open) > maxOpenRules {
		open = open[:maxOpenRules]
	}
	return open
}

// isOpenRule reports whether an ingress permission is open to the world on a
// risky port.
func isOpenRule(perm ec2types.IpPermission) bool {
	worldOpen := false
	for _, r := range perm.IpRanges {
		if aws.ToString(r.CidrIp) == openToWorld {
			worldOpen = true
			break
		}
	}
	if !worldOpen {
		return false
	}
	return perm.FromPort == nil || riskyPorts[*perm.FromPort]
}

func (p *Probe) publicBucketsCount(ctx context.Context) int {
	logger := zerolog.Ctx(ctx)

	listCtx, cancel := context.WithTimeout(ctx, p.timeout)
	out, err := p.s3Client.ListBuckets(listCtx, &s3.ListBucketsInput{})
	cancel()
	if err != nil {
		// Best-effort: the count stays where it stopped growing.
		logger.Warn().Err(err).Msg("bucket enumeration failed, public bucket count truncated")
		return 0
	}

	count := 0
	for _, bucket := range out.Buckets {
		if p.bucketIsPublic(ctx, aws.ToString(bucket.Name)) {
			count++
		}
	}
	return count
}

// bucketIsPublic applies the public predicate: the public-access-block
// configuration is absent, or any of its flags is off, or the bucket policy
// reports public. Any one condition is sufficient.
func (p *Probe) bucketIsPublic(ctx context.Context, name string) bool {
	pabCtx, cancel := context.WithTimeout(ctx, p.timeout)
	pab, pabErr := p.s3Client.GetPublicAccessBlock(pabCtx, &s3.GetPublicAccessBlockInput{
		Bucket: aws.String(name),
	})
	cancel()
	if pabErr != nil || pab.PublicAccessBlockConfiguration == nil {
		return true
	}
	cfg := pab.PublicAccessBlockConfiguration
	if !aws.ToBool(cfg.BlockPublicAcls) ||
		!aws.ToBool(cfg.IgnorePublicAcls) ||
		!aws.ToBool(cfg.BlockPublicPolicy) ||
		!aws.ToBool(cfg.RestrictPublicBuckets) {
		return true
	}

	polCtx, cancel := context.WithTimeout(ctx, p.timeout)
	pol, polErr := p.s3Client.GetBucketPolicyStatus(polCtx, &s3.GetBucketPolicyStatusInput{
		Bucket: aws.String(name),
	})
	cancel()
	if polErr != nil || pol.PolicyStatus == nil {
		return false
	}
	return aws.ToBool(pol.PolicyStatus.IsPublic)
}
