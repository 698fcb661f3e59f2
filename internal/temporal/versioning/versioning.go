// Package versioning defines workflow versions and task queue names.
package versioning

const (
	// Workflow versions for determinism tracking.
	ContractComparisonV1 = "contract-comparison-v1"

	// Task queues. Page extraction runs on its own queue so vision workers
	// can be scaled apart from the text stages.
	QueueComparison = "amendment-compare"
	QueuePages      = "amendment-pages"
)
