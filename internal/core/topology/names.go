package topology

// =============================================================================
// Fixed External Contracts
// =============================================================================

const (
	AppName       = "financial-assistant-agents"
	ContainerName = "agents"
	ContainerPort = 8080

	HealthCheckPath            = "/health"
	HealthCheckMatcher         = "200"
	HealthCheckIntervalSeconds = 30

	IdleTimeoutSeconds = 300

	LogGroupName     = "/ecs/financial-assistant-agents"
	LogRetentionDays = 30

	SecretName               = "financial-assistant/anthropic-api-key"
	SecretRecoveryWindowDays = 7

	BillingModePayPerRequest = "PAY_PER_REQUEST"
	LaunchTypeFargate        = "FARGATE"
	NetworkModeAWSVPC        = "awsvpc"
	TargetTypeIP             = "ip"

	TaskServicePrincipal = "ecs-tasks.amazonaws.com"
	ExecutionPolicyARN   = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

	AnyIPv4   = "0.0.0.0/0"
	TLSPolicy = "ELBSecurityPolicy-TLS13-1-2-2021-06"
)

// Listener default action types.
const (
	ActionForward  = "forward"
	ActionRedirect = "redirect"
)

// =============================================================================
// Descriptor Identities
// =============================================================================

const (
	IDLoadBalancer = "aws_lb.agents"
	IDTargetGroup  = "aws_lb_target_group.agents"
	IDHTTPListener = "aws_lb_listener.http"

	IDHTTPSListener         = "aws_lb_listener.https[0]"
	IDCertificate           = "aws_acm_certificate.agents[0]"
	IDCertValidationRecord  = "aws_route53_record.cert_validation[0]"
	IDCertificateValidation = "aws_acm_certificate_validation.agents[0]"
	IDDNSRecord             = "aws_route53_record.agents[0]"
	IDALBHTTPSIngress       = "aws_vpc_security_group_ingress_rule.alb_https[0]"

	IDALBSecurityGroup     = "aws_security_group.alb"
	IDServiceSecurityGroup = "aws_security_group.ecs"
	IDALBHTTPIngress       = "aws_vpc_security_group_ingress_rule.alb_http"
	IDServiceIngress       = "aws_vpc_security_group_ingress_rule.ecs_from_alb"
	IDALBEgress            = "aws_vpc_security_group_egress_rule.alb_all"
	IDServiceEgress        = "aws_vpc_security_group_egress_rule.ecs_all"

	IDCluster        = "aws_ecs_cluster.agents"
	IDTaskDefinition = "aws_ecs_task_definition.agents"
	IDService        = "aws_ecs_service.agents"
	IDLogGroup       = "aws_cloudwatch_log_group.agents"
	IDRepository     = "aws_ecr_repository.agents"

	IDExecutionRole             = "aws_iam_role.ecs_execution"
	IDTaskRole                  = "aws_iam_role.ecs_task"
	IDExecutionPolicyAttachment = "aws_iam_role_policy_attachment.ecs_execution"
	IDExecutionSecretsPolicy    = "aws_iam_role_policy.ecs_execution_secrets"
	IDTaskTablesPolicy          = "aws_iam_role_policy.ecs_task_dynamodb"

	IDSecret = "aws_secretsmanager_secret.anthropic_api_key"
)

// TableIdentity returns the identity of the DynamoDB table with the given name.
//
// Example:
//
//	TableIdentity("users") // returns "aws_dynamodb_table.users"
func TableIdentity(name string) string {
	return "aws_dynamodb_table." + name
}

// =============================================================================
// Data Tables
// =============================================================================

// TableSpec describes one DynamoDB table of the application.
type TableSpec struct {
	Name     string
	HashKey  string
	RangeKey string // empty for hash-only tables
	EnvVar   string // container variable the agents read the table name from
}

// Tables returns the application's tables in a fixed order.
func Tables() []TableSpec {
	return []TableSpec{
		{Name: "users", HashKey: "id", EnvVar: "USERS_TABLE"},
		{Name: "proposals", HashKey: "id", EnvVar: "PROPOSALS_TABLE"},
		{Name: "debts", HashKey: "userId", RangeKey: "debtId", EnvVar: "DEBTS_TABLE"},
		{Name: "investments", HashKey: "userId", RangeKey: "accountId", EnvVar: "INVESTMENTS_TABLE"},
		{Name: "goals", HashKey: "id", EnvVar: "GOALS_TABLE"},
	}
}

// TableIdentities returns the identities of all application tables.
func TableIdentities() []string {
	tables := Tables()
	ids := make([]string, len(tables))
	for i, t := range tables {
		ids[i] = TableIdentity(t.Name)
	}
	return ids
}

// tags are applied to every taggable descriptor.
func tags() map[string]any {
	return map[string]any{
		"Project":   "financial-assistant",
		"Component": "agents",
		"ManagedBy": "fa-topology",
	}
}
