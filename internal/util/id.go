package util

import "github.com/rs/xid"

func NewUniqueId() string {
	return xid.New().String()
}

func NewRunId() string {
	return "run_" + NewUniqueId()
}

func NewContainerName(runId, step string) string {
	return "flowci-" + runId + "-" + step
}
