package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"

	ProvidersRoute   = "/v1/providers"
	ProviderRoute    = ProvidersRoute + "/{id}"
	AuthRoute        = ProviderRoute + "/auth"
	RefreshAuthRoute = AuthRoute + "/refresh"
	ClaimsRoute      = ProviderRoute + "/claims"
	ClaimRoute       = ClaimsRoute + "/{claim}"
	SyncRoute        = ProviderRoute + "/sync"
	RetriesRoute     = ProviderRoute + "/retries"
	MetricsRoute     = ProviderRoute + "/metrics"
	ErrorsRoute      = ProviderRoute + "/errors"
	ComplianceRoute  = ProviderRoute + "/compliance"

	AdminParent         = "/v1/admin/"
	ListAuditsRoute     = AdminParent + "audit"
	AdminProvidersRoute = AdminParent + "providers"
	AdminProviderRoute  = AdminProvidersRoute + "/{id}"

	TaskParent       = AdminParent + "tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
