package domain

// Index-wide constants shared by the emitter, the loader and the search path.
const (
	// KeyPrefix namespaces every key gradsearch writes to a key-value store.
	KeyPrefix = "gradsearch:"
	// VectorField is the stored field holding each document's embedding.
	VectorField = "documents_vector"
	// OpIndex is the bulk operation type of every emitted line.
	OpIndex = "index"
	// DefaultIndexName is used when no INDEX_NAME is supplied.
	DefaultIndexName = "jobsearch"
	// DefaultBatchSize is the number of documents per provider call.
	DefaultBatchSize = 256
	// DefaultSearchSize is the number of ranked results the HTTP endpoint returns.
	DefaultSearchSize = 10
)

// DefaultReturnedFields is the whitelist of fields exposed by search results.
func DefaultReturnedFields() []string {
	return []string{"thema", "student_name", "link"}
}
