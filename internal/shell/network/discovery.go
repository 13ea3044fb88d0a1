// Package network discovers where the service should run when no VPC or
// subnets are configured, by looking up the region's default VPC.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/fa-topology/internal/core/config"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoDefaultVPC is returned when the region has no default VPC.
	ErrNoDefaultVPC = errors.New("region has no default VPC")

	// ErrNoSubnets is returned when the VPC has no usable subnets.
	ErrNoSubnets = errors.New("VPC has no available subnets")

	// ErrAccessDenied is returned when the credentials may not describe
	// VPCs or subnets.
	ErrAccessDenied = errors.New("not authorized to describe network")
)

// =============================================================================
// Client
// =============================================================================

// EC2API is the subset of the EC2 client used for discovery.
type EC2API interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
}

// NewEC2Client creates an EC2 client for region using static credentials.
func NewEC2Client(region, accessKeyID, secretAccessKey string) *ec2.Client {
	return ec2.New(ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})
}

// =============================================================================
// Discoverer
// =============================================================================

// Discoverer fills in network placement from the default VPC.
type Discoverer struct {
	client EC2API
	logger *slog.Logger
}

// NewDiscoverer creates a discoverer using client.
func NewDiscoverer(client EC2API, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		client: client,
		logger: logger.With("component", "network"),
	}
}

// Fill returns raw with its VPC and subnets set from the default VPC. Input
// that already names a VPC or subnets is returned unchanged.
func (d *Discoverer) Fill(ctx context.Context, raw config.Raw) (config.Raw, error) {
	if raw.VPCID != "" || len(raw.SubnetIDs) > 0 {
		return raw, nil
	}

	placement, err := d.DefaultPlacement(ctx)
	if err != nil {
		return raw, err
	}
	raw.VPCID = placement.VPCID
	raw.SubnetIDs = placement.SubnetIDs
	return raw, nil
}

// DefaultPlacement looks up the default VPC and its available subnets.
// Subnets are sorted by availability zone, then id.
func (d *Discoverer) DefaultPlacement(ctx context.Context) (config.Network, error) {
	vpcs, err := d.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("is-default"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return config.Network{}, translate("describe VPCs", err)
	}
	if len(vpcs.Vpcs) == 0 {
		return config.Network{}, ErrNoDefaultVPC
	}
	vpcID := aws.ToString(vpcs.Vpcs[0].VpcId)

	subnets, err := d.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("state"), Values: []string{string(ec2types.SubnetStateAvailable)}},
		},
	})
	if err != nil {
		return config.Network{}, translate("describe subnets", err)
	}
	if len(subnets.Subnets) == 0 {
		return config.Network{}, fmt.Errorf("%w: %s", ErrNoSubnets, vpcID)
	}

	found := subnets.Subnets
	sort.Slice(found, func(i, j int) bool {
		zi, zj := aws.ToString(found[i].AvailabilityZone), aws.ToString(found[j].AvailabilityZone)
		if zi != zj {
			return zi < zj
		}
		return aws.ToString(found[i].SubnetId) < aws.ToString(found[j].SubnetId)
	})

	ids := make([]string, 0, len(found))
	for _, s := range found {
		ids = append(ids, aws.ToString(s.SubnetId))
	}

	d.logger.Info("discovered default network", "vpc_id", vpcID, "subnets", len(ids))
	return config.Network{VPCID: vpcID, SubnetIDs: ids}, nil
}

func translate(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnauthorizedOperation", "AuthFailure":
			return fmt.Errorf("%s: %w: %s", op, ErrAccessDenied, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// =============================================================================
// Per-Region Discovery
// =============================================================================

// ClientFactory creates an EC2 client for a region.
type ClientFactory func(region string) EC2API

// Regional discovers placement in whichever region the raw configuration
// names. Configurations without a region pass through so validation can
// report it.
type Regional struct {
	newClient ClientFactory
	logger    *slog.Logger
}

// NewRegional creates a per-region filler.
func NewRegional(newClient ClientFactory, logger *slog.Logger) *Regional {
	return &Regional{newClient: newClient, logger: logger}
}

// Fill discovers placement in raw.Region.
func (r *Regional) Fill(ctx context.Context, raw config.Raw) (config.Raw, error) {
	if raw.Region == "" {
		return raw, nil
	}
	return NewDiscoverer(r.newClient(raw.Region), r.logger.With("region", raw.Region)).Fill(ctx, raw)
}
