package constants

const (
	ArgConfigPath           = "config-path"
	ArgConcurrency          = "concurrency"
	ArgFailFast             = "fail-fast"
	ArgHaltOnFailure        = "halt-on-failure"
	ArgRetainArtifacts      = "retain-artifacts"
	ArgVariable             = "var"
	ArgWatch                = "watch"
	ArgOutput               = "output"
	ArgCI                   = "ci"
	ArgExcludedFiles        = "excluded-files"
	ArgSecretEnv            = "secret-env"
	ArgDockerMinApiVersion  = "docker-min-api-version"
	ArgDockerPullTimeoutSec = "docker-pull-timeout"
)
