package constants

const (
	// ShortDescription is a short description of the application used in the CLI.
	ShortDescription = "Pipelines as code for CI"

	// LongDescription is a long description of the application used in the CLI.
	LongDescription = `flowci: CI pipelines as code

Build and test in containers, in order or concurrently,
with a bounded number of steps running at once.

Common commands:

  # Check a pipeline file
  flowci validate ci.hcl

  # List the pipelines of a file
  flowci list ci.hcl

  # Run a pipeline
  flowci run ci.hcl main --concurrency 4

  # Remove containers and images left behind by runs
  flowci cleanup`
)
