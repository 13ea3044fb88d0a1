// Package topology resolves a validated configuration into the resource
// graph of the financial-assistant agents deployment.
//
// Resolve is a pure, total function: it performs no I/O, cannot fail once
// the configuration has been validated, and returns an identical graph for
// identical input. It owns every conditional decision in the topology; the
// only branch is the routing mode (see config.RoutingMode).
//
// # Topology
//
//   - Application load balancer (internet-facing, 300s idle timeout) with an
//     HTTP listener and one IP target group health-checked on /health
//   - ECS cluster (Container Insights), Fargate task definition and service
//     with a public IP, log group, ECR repository, execution and task roles
//   - Secrets Manager secret for the Anthropic API key
//   - Five pay-per-request DynamoDB tables
//   - With a custom domain: ACM certificate, HTTPS listener, Route53 alias,
//     and the HTTP listener redirects instead of forwarding
//
// # Usage
//
//	cfg, err := config.Validate(raw)
//	if err != nil {
//	    return err
//	}
//	g := topology.Resolve(cfg)
package topology
