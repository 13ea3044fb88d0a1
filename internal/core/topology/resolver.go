package topology

import (
	"strconv"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
)

// =============================================================================
// Resolution
// =============================================================================

// resolver carries the configuration and the graph under construction.
type resolver struct {
	cfg config.Configuration
	b   *graph.Builder
}

// Resolve maps a validated configuration onto the deployment's resource graph.
//
// Descriptors are added in a fixed order so the result, including its
// iteration order, is identical for equal configurations.
//
// Example:
//
//	g := Resolve(cfg)
//	listener, _ := g.Get(IDHTTPListener)
func Resolve(cfg config.Configuration) *graph.Graph {
	r := &resolver{cfg: cfg, b: graph.NewBuilder()}

	r.securityGroups()
	r.loadBalancer()
	r.routing()
	r.tables()
	r.secret()
	r.roles()
	r.compute()

	return r.b.Build()
}

// add records an unconditional descriptor.
func (r *resolver) add(kind graph.Kind, identity string, attrs map[string]any, refs ...string) {
	r.b.Add(graph.Descriptor{
		Kind:       kind,
		Identity:   identity,
		Attributes: attrs,
		References: refs,
	})
}

// =============================================================================
// Network
// =============================================================================

func (r *resolver) securityGroups() {
	r.add(graph.KindSecurityGroup, IDALBSecurityGroup, r.withVPC(map[string]any{
		"name":        AppName + "-alb",
		"description": "Public HTTP(S) ingress to the agents load balancer",
		"tags":        tags(),
	}))
	r.add(graph.KindSecurityGroup, IDServiceSecurityGroup, r.withVPC(map[string]any{
		"name":        AppName + "-ecs",
		"description": "Agents tasks, reachable only from the load balancer",
		"tags":        tags(),
	}))

	r.add(graph.KindSecurityGroupRule, IDALBHTTPIngress, ingressFromAnywhere(80, "HTTP"))

	// The service port is only reachable from the load balancer's group.
	r.add(graph.KindSecurityGroupRule, IDServiceIngress, map[string]any{
		"security_group_id":            graph.RefTo(IDServiceSecurityGroup, "id"),
		"referenced_security_group_id": graph.RefTo(IDALBSecurityGroup, "id"),
		"ip_protocol":                  "tcp",
		"from_port":                    ContainerPort,
		"to_port":                      ContainerPort,
		"description":                  "Container port from the load balancer",
		"tags":                         tags(),
	})

	r.add(graph.KindSecurityGroupRule, IDALBEgress, egressToAnywhere(IDALBSecurityGroup))
	// Tasks call external APIs directly through their public IP.
	r.add(graph.KindSecurityGroupRule, IDServiceEgress, egressToAnywhere(IDServiceSecurityGroup))
}

func ingressFromAnywhere(port int, description string) map[string]any {
	return map[string]any{
		"security_group_id": graph.RefTo(IDALBSecurityGroup, "id"),
		"cidr_ipv4":         AnyIPv4,
		"ip_protocol":       "tcp",
		"from_port":         port,
		"to_port":           port,
		"description":       description,
		"tags":              tags(),
	}
}

func egressToAnywhere(groupID string) map[string]any {
	return map[string]any{
		"security_group_id": graph.RefTo(groupID, "id"),
		"cidr_ipv4":         AnyIPv4,
		"ip_protocol":       "-1",
		"description":       "All outbound traffic",
		"tags":              tags(),
	}
}

// withVPC pins the attribute set to the configured VPC, if any.
func (r *resolver) withVPC(attrs map[string]any) map[string]any {
	if r.cfg.Network.VPCID != "" {
		attrs["vpc_id"] = r.cfg.Network.VPCID
	}
	return attrs
}

// withSubnets pins the attribute set to the configured subnets, if any.
func (r *resolver) withSubnets(attrs map[string]any, key string) map[string]any {
	if len(r.cfg.Network.SubnetIDs) > 0 {
		attrs[key] = append([]string(nil), r.cfg.Network.SubnetIDs...)
	}
	return attrs
}

// =============================================================================
// Load Balancing
// =============================================================================

func (r *resolver) loadBalancer() {
	r.add(graph.KindLoadBalancer, IDLoadBalancer, r.withSubnets(map[string]any{
		"name":               AppName,
		"internal":           false,
		"load_balancer_type": "application",
		"idle_timeout":       IdleTimeoutSeconds,
		"security_groups":    []graph.Ref{graph.RefTo(IDALBSecurityGroup, "id")},
		"tags":               tags(),
	}, "subnets"))

	r.add(graph.KindTargetGroup, IDTargetGroup, r.withVPC(map[string]any{
		"name":        AppName,
		"port":        ContainerPort,
		"protocol":    "HTTP",
		"target_type": TargetTypeIP,
		"health_check": []map[string]any{{
			"path":                HealthCheckPath,
			"matcher":             HealthCheckMatcher,
			"interval":            HealthCheckIntervalSeconds,
			"timeout":             5,
			"healthy_threshold":   2,
			"unhealthy_threshold": 3,
		}},
		"tags": tags(),
	}))
}

// forwardAction is a listener default action sending traffic to the target group.
func forwardAction() []map[string]any {
	return []map[string]any{{
		"type":             ActionForward,
		"target_group_arn": graph.RefTo(IDTargetGroup, "arn"),
	}}
}

// redirectAction is a listener default action sending clients to HTTPS.
func redirectAction() []map[string]any {
	return []map[string]any{{
		"type": ActionRedirect,
		"redirect": []map[string]any{{
			"port":        "443",
			"protocol":    "HTTPS",
			"status_code": "HTTP_301",
		}},
	}}
}

// =============================================================================
// Storage
// =============================================================================

func (r *resolver) tables() {
	for _, t := range Tables() {
		attrs := map[string]any{
			"name":         t.Name,
			"billing_mode": BillingModePayPerRequest,
			"hash_key":     t.HashKey,
			"attribute":    keyAttributes(t),
			"tags":         tags(),
		}
		if t.RangeKey != "" {
			attrs["range_key"] = t.RangeKey
		}
		r.add(graph.KindTable, TableIdentity(t.Name), attrs)
	}
}

func keyAttributes(t TableSpec) []map[string]any {
	attrs := []map[string]any{{"name": t.HashKey, "type": "S"}}
	if t.RangeKey != "" {
		attrs = append(attrs, map[string]any{"name": t.RangeKey, "type": "S"})
	}
	return attrs
}

// =============================================================================
// Secrets
// =============================================================================

func (r *resolver) secret() {
	r.add(graph.KindSecret, IDSecret, map[string]any{
		"name":                    SecretName,
		"description":             "Anthropic API key used by the financial-assistant agents",
		"recovery_window_in_days": SecretRecoveryWindowDays,
		"tags":                    tags(),
	})
}

// =============================================================================
// Compute
// =============================================================================

func (r *resolver) compute() {
	r.add(graph.KindCluster, IDCluster, map[string]any{
		"name": AppName,
		"setting": []map[string]any{{
			"name":  "containerInsights",
			"value": "enabled",
		}},
		"tags": tags(),
	})

	r.add(graph.KindLogGroup, IDLogGroup, map[string]any{
		"name":              LogGroupName,
		"retention_in_days": LogRetentionDays,
		"tags":              tags(),
	})

	r.add(graph.KindImageRepository, IDRepository, map[string]any{
		"name":                 AppName,
		"image_tag_mutability": "MUTABLE",
		"image_scanning_configuration": []map[string]any{{
			"scan_on_push": true,
		}},
		"tags": tags(),
	})

	r.add(graph.KindTaskDefinition, IDTaskDefinition, map[string]any{
		"family":                   AppName,
		"requires_compatibilities": []string{LaunchTypeFargate},
		"network_mode":             NetworkModeAWSVPC,
		"cpu":                      strconv.Itoa(r.cfg.CPUUnits),
		"memory":                   strconv.Itoa(r.cfg.MemoryMiB),
		"execution_role_arn":       graph.RefTo(IDExecutionRole, "arn"),
		"task_role_arn":            graph.RefTo(IDTaskRole, "arn"),
		"container_definitions":    graph.Encoded{Value: []any{r.containerDefinition()}},
		"tags":                     tags(),
	}, IDLogGroup)

	// The target group must be attached to a listener before the service
	// registers with it.
	r.add(graph.KindService, IDService, map[string]any{
		"name":            AppName,
		"cluster":         graph.RefTo(IDCluster, "id"),
		"task_definition": graph.RefTo(IDTaskDefinition, "arn"),
		"desired_count":   r.cfg.DesiredCount,
		"launch_type":     LaunchTypeFargate,
		"network_configuration": []map[string]any{r.withSubnets(map[string]any{
			"assign_public_ip": true,
			"security_groups":  []graph.Ref{graph.RefTo(IDServiceSecurityGroup, "id")},
		}, "subnets")},
		"load_balancer": []map[string]any{{
			"target_group_arn": graph.RefTo(IDTargetGroup, "arn"),
			"container_name":   ContainerName,
			"container_port":   ContainerPort,
		}},
		"health_check_grace_period_seconds": 60,
		"tags":                              tags(),
	}, r.listenerIdentities()...)
}

func (r *resolver) containerDefinition() map[string]any {
	env := []any{
		map[string]any{"name": "PORT", "value": strconv.Itoa(ContainerPort)},
		map[string]any{"name": "AWS_REGION", "value": r.cfg.Region},
	}
	for _, t := range Tables() {
		env = append(env, map[string]any{
			"name":  t.EnvVar,
			"value": graph.RefTo(TableIdentity(t.Name), "name"),
		})
	}

	return map[string]any{
		"name":      ContainerName,
		"image":     graph.RefTo(IDRepository, "repository_url"),
		"essential": true,
		"portMappings": []any{
			map[string]any{"containerPort": ContainerPort, "protocol": "tcp"},
		},
		"environment": env,
		"secrets": []any{
			map[string]any{"name": "ANTHROPIC_API_KEY", "valueFrom": graph.RefTo(IDSecret, "arn")},
		},
		"logConfiguration": map[string]any{
			"logDriver": "awslogs",
			"options": map[string]any{
				"awslogs-group":         LogGroupName,
				"awslogs-region":        r.cfg.Region,
				"awslogs-stream-prefix": ContainerName,
			},
		},
	}
}
