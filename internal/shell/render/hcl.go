package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/output"
)

// =============================================================================
// Terraform Configuration
// =============================================================================

// HCL renders the graph as a Terraform configuration: a provider block, one
// resource block per descriptor and one output block per output.
//
// Indexed identities such as "aws_lb_listener.https[0]" become resources
// with count = 1, so references keep their address. Structured values that
// the provider takes as JSON strings are wrapped in jsonencode().
func HCL(cfg config.Configuration, g *graph.Graph, outs output.OutputSet) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	provider := root.AppendNewBlock("provider", []string{"aws"}).Body()
	provider.SetAttributeValue("region", cty.StringVal(cfg.Region))

	for _, d := range g.Descriptors() {
		root.AppendNewline()
		if err := appendResource(root, d); err != nil {
			return nil, fmt.Errorf("render hcl: %s: %w", d.Identity, err)
		}
	}

	values := outs.Map()
	for _, name := range output.Names() {
		root.AppendNewline()
		body := root.AppendNewBlock("output", []string{name}).Body()
		v := values[name]
		if v.IsRef() {
			tokens, err := refTokens(*v.Ref)
			if err != nil {
				return nil, fmt.Errorf("render hcl: output %s: %w", name, err)
			}
			body.SetAttributeRaw("value", tokens)
		} else {
			body.SetAttributeValue("value", cty.StringVal(v.Literal))
		}
	}

	return hclwrite.Format(f.Bytes()), nil
}

func appendResource(root *hclwrite.Body, d graph.Descriptor) error {
	addr, err := graph.ParseAddress(d.Identity)
	if err != nil {
		return err
	}

	body := root.AppendNewBlock("resource", []string{addr.Type, addr.Name}).Body()
	if addr.Indexed {
		body.SetAttributeValue("count", cty.NumberIntVal(int64(addr.Index+1)))
	}

	if err := writeBody(body, d.Attributes); err != nil {
		return err
	}

	// References not expressed through attributes become depends_on.
	implicit := make(map[string]bool)
	collectIdentities(d.Attributes, implicit)
	var explicit []hclwrite.Tokens
	for _, id := range d.References {
		if implicit[id] {
			continue
		}
		tokens, err := traversalTokens(id)
		if err != nil {
			return err
		}
		explicit = append(explicit, tokens)
	}
	if len(explicit) > 0 {
		body.SetAttributeRaw("depends_on", hclwrite.TokensForTuple(explicit))
	}
	return nil
}

// writeBody sets attributes in sorted order. Lists of maps become nested
// blocks; everything else an attribute.
func writeBody(body *hclwrite.Body, attrs map[string]any) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var blocks []string
	for _, k := range keys {
		if _, ok := attrs[k].([]map[string]any); ok {
			blocks = append(blocks, k)
			continue
		}
		tokens, err := valueTokens(attrs[k])
		if err != nil {
			return fmt.Errorf("attribute %s: %w", k, err)
		}
		body.SetAttributeRaw(k, tokens)
	}

	for _, k := range blocks {
		for _, nested := range attrs[k].([]map[string]any) {
			if err := writeBody(body.AppendNewBlock(k, nil).Body(), nested); err != nil {
				return fmt.Errorf("block %s: %w", k, err)
			}
		}
	}
	return nil
}

// valueTokens renders an attribute value as an expression.
func valueTokens(v any) (hclwrite.Tokens, error) {
	switch val := v.(type) {
	case string:
		return hclwrite.TokensForValue(cty.StringVal(val)), nil
	case int:
		return hclwrite.TokensForValue(cty.NumberIntVal(int64(val))), nil
	case bool:
		return hclwrite.TokensForValue(cty.BoolVal(val)), nil
	case []string:
		elems := make([]hclwrite.Tokens, len(val))
		for i, s := range val {
			elems[i] = hclwrite.TokensForValue(cty.StringVal(s))
		}
		return hclwrite.TokensForTuple(elems), nil
	case graph.Ref:
		return refTokens(val)
	case []graph.Ref:
		elems := make([]hclwrite.Tokens, len(val))
		for i, r := range val {
			tokens, err := refTokens(r)
			if err != nil {
				return nil, err
			}
			elems[i] = tokens
		}
		return hclwrite.TokensForTuple(elems), nil
	case graph.Encoded:
		inner, err := valueTokens(val.Value)
		if err != nil {
			return nil, err
		}
		return hclwrite.TokensForFunctionCall("jsonencode", inner), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]hclwrite.ObjectAttrTokens, 0, len(keys))
		for _, k := range keys {
			tokens, err := valueTokens(val[k])
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, hclwrite.ObjectAttrTokens{
				Name:  hclwrite.TokensForValue(cty.StringVal(k)),
				Value: tokens,
			})
		}
		return hclwrite.TokensForObject(attrs), nil
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return valueTokens(items)
	case []any:
		elems := make([]hclwrite.Tokens, len(val))
		for i, item := range val {
			tokens, err := valueTokens(item)
			if err != nil {
				return nil, err
			}
			elems[i] = tokens
		}
		return hclwrite.TokensForTuple(elems), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// refTokens renders a reference. Element references become
// tolist(<set>)[0].<attribute>.
func refTokens(r graph.Ref) (hclwrite.Tokens, error) {
	target, err := traversalTokens(r.Target())
	if err != nil {
		return nil, err
	}
	if r.Element == "" {
		return target, nil
	}

	element := hcl.Traversal{hcl.TraverseIndex{Key: cty.NumberIntVal(0)}}
	for _, name := range strings.Split(r.Attribute, ".") {
		if !hclsyntax.ValidIdentifier(name) {
			return nil, fmt.Errorf("invalid reference %q", r.String())
		}
		element = append(element, hcl.TraverseAttr{Name: name})
	}
	tokens := hclwrite.TokensForFunctionCall("tolist", target)
	return append(tokens, hclwrite.TokensForTraversal(element)...), nil
}

func traversalTokens(expr string) (hclwrite.Tokens, error) {
	traversal, diags := hclsyntax.ParseTraversalAbs([]byte(expr), "", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid reference %q: %s", expr, diags.Error())
	}
	return hclwrite.TokensForTraversal(traversal), nil
}

func collectIdentities(v any, into map[string]bool) {
	switch val := v.(type) {
	case graph.Ref:
		into[val.Identity] = true
	case []graph.Ref:
		for _, r := range val {
			into[r.Identity] = true
		}
	case graph.Encoded:
		collectIdentities(val.Value, into)
	case map[string]any:
		for _, item := range val {
			collectIdentities(item, into)
		}
	case []map[string]any:
		for _, item := range val {
			collectIdentities(item, into)
		}
	case []any:
		for _, item := range val {
			collectIdentities(item, into)
		}
	}
}
