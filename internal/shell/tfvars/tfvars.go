// Package tfvars reads raw topology configuration from Terraform variable
// definition files (.tfvars).
package tfvars

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/artpar/fa-topology/internal/core/config"
)

// ErrDecode is wrapped by every parse or decode failure.
var ErrDecode = errors.New("invalid variables file")

// file is the decoded shape of a variables file. Unknown variables are kept
// in Remain so files shared with other modules still load.
type file struct {
	Region       *string  `hcl:"aws_region,optional"`
	DomainName   *string  `hcl:"domain_name,optional"`
	ZoneID       *string  `hcl:"route53_zone_id,optional"`
	CPU          *int     `hcl:"cpu,optional"`
	Memory       *int     `hcl:"memory,optional"`
	DesiredCount *int     `hcl:"desired_count,optional"`
	VPCID        *string  `hcl:"vpc_id,optional"`
	SubnetIDs    []string `hcl:"subnet_ids,optional"`
	Remain       hcl.Body `hcl:",remain"`
}

// Result is a decoded variables file.
type Result struct {
	Raw config.Raw

	// Unknown lists, sorted, the variables the topology does not use.
	Unknown []string
}

// Load reads and decodes the variables file at path.
func Load(path string) (Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read variables file %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes variables file content. filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (Result, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrDecode, filename, diags.Error())
	}

	var decoded file
	if diags := gohcl.DecodeBody(f.Body, nil, &decoded); diags.HasErrors() {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrDecode, filename, diags.Error())
	}

	result := Result{Raw: toRaw(decoded)}
	if decoded.Remain != nil {
		attrs, diags := decoded.Remain.JustAttributes()
		if diags.HasErrors() {
			return Result{}, fmt.Errorf("%w: %s: %s", ErrDecode, filename, diags.Error())
		}
		for name := range attrs {
			result.Unknown = append(result.Unknown, name)
		}
		sort.Strings(result.Unknown)
	}
	return result, nil
}

func toRaw(f file) config.Raw {
	return config.Raw{
		Region:       deref(f.Region),
		DomainName:   deref(f.DomainName),
		DNSZoneID:    deref(f.ZoneID),
		CPUUnits:     f.CPU,
		MemoryMiB:    f.Memory,
		DesiredCount: f.DesiredCount,
		VPCID:        deref(f.VPCID),
		SubnetIDs:    f.SubnetIDs,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
