package constants

const (
	Name = "flowci"

	EnvPrefix = "FLOWCI"

	DefaultConfigPath          = "~/.flowci/config.yaml"
	DefaultConcurrency         = 10
	DefaultDockerMinApiVersion = "1.41"
	DefaultDockerPullTimeout   = 600

	// container labels
	LabelType     = "io.flowci.type"
	LabelRun      = "io.flowci.run"
	LabelPipeline = "io.flowci.pipeline"
	LabelName     = "io.flowci.name"

	LabelTypeContainer = "container"
	LabelTypeImage     = "image"

	EnvInputPrefix = "INPUT_"
)

// DefaultExcludedFiles are never copied into step containers.
var DefaultExcludedFiles = []string{
	".git",
	"**/build",
	"**/.venv",
	"**/secrets",
	"**/__pycache__",
	"**/*.egg-info",
	"**/.vscode",
	"**/.pytest_cache",
	"**/.eggs",
	"**/.mypy_cache",
	"**/.DS_Store",
}

// DefaultSecretEnv are host environment variables whose values are always
// redacted from logs and output.
var DefaultSecretEnv = []string{
	"GITHUB_TOKEN",
	"*_PASSWORD",
	"*_SECRET",
	"*_TOKEN",
}
