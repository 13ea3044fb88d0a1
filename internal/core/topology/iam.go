package topology

import (
	"github.com/artpar/fa-topology/internal/core/graph"
)

// =============================================================================
// Identity and Access
// =============================================================================

// dynamoDBItemActions are the table actions the agents perform.
var dynamoDBItemActions = []string{
	"dynamodb:GetItem",
	"dynamodb:PutItem",
	"dynamodb:UpdateItem",
	"dynamodb:DeleteItem",
	"dynamodb:Query",
	"dynamodb:Scan",
	"dynamodb:BatchGetItem",
	"dynamodb:BatchWriteItem",
}

func (r *resolver) roles() {
	r.add(graph.KindRole, IDExecutionRole, map[string]any{
		"name":               AppName + "-execution",
		"assume_role_policy": trustPolicy(),
		"tags":               tags(),
	})
	r.add(graph.KindRole, IDTaskRole, map[string]any{
		"name":               AppName + "-task",
		"assume_role_policy": trustPolicy(),
		"tags":               tags(),
	})

	r.add(graph.KindRolePolicy, IDExecutionPolicyAttachment, map[string]any{
		"role":       graph.RefTo(IDExecutionRole, "name"),
		"policy_arn": ExecutionPolicyARN,
	})

	r.add(graph.KindRolePolicy, IDExecutionSecretsPolicy, map[string]any{
		"name": AppName + "-secrets",
		"role": graph.RefTo(IDExecutionRole, "id"),
		"policy": policyDocument(map[string]any{
			"Effect":   "Allow",
			"Action":   []any{"secretsmanager:GetSecretValue"},
			"Resource": []any{graph.RefTo(IDSecret, "arn")},
		}),
	})

	// Item access is granted on the five tables and nothing else.
	resources := make([]any, 0, len(Tables()))
	for _, id := range TableIdentities() {
		resources = append(resources, graph.RefTo(id, "arn"))
	}
	actions := make([]any, len(dynamoDBItemActions))
	for i, a := range dynamoDBItemActions {
		actions[i] = a
	}
	r.add(graph.KindRolePolicy, IDTaskTablesPolicy, map[string]any{
		"name": AppName + "-dynamodb",
		"role": graph.RefTo(IDTaskRole, "id"),
		"policy": policyDocument(map[string]any{
			"Effect":   "Allow",
			"Action":   actions,
			"Resource": resources,
		}),
	})
}

// trustPolicy lets only ECS tasks assume a role.
func trustPolicy() graph.Encoded {
	return policyDocument(map[string]any{
		"Effect":    "Allow",
		"Action":    "sts:AssumeRole",
		"Principal": map[string]any{"Service": TaskServicePrincipal},
	})
}

func policyDocument(statements ...map[string]any) graph.Encoded {
	stmts := make([]any, len(statements))
	for i, s := range statements {
		stmts[i] = s
	}
	return graph.Encoded{Value: map[string]any{
		"Version":   "2012-10-17",
		"Statement": stmts,
	}}
}
