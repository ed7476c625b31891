package observability

import "go.opentelemetry.io/otel/attribute"

const (
	AttrJobID   = "jobstream.job_id"
	AttrResult  = "jobstream.result"
	AttrOutcome = "jobstream.outcome"

	// ResultNotFound is the query result label for unknown job ids.
	ResultNotFound = "not_found"
)

func JobIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}
