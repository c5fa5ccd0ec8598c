package vectorstore

// Method selects how a store request is persisted.
type Method string

const (
	// MethodBulk writes all surviving items in one atomic store call.
	MethodBulk Method = "bulk"
	// MethodBatch writes fixed-size sub-batches; a sub-batch failure does not
	// block the rest.
	MethodBatch Method = "batch"
	// MethodStream writes items one at a time in input order.
	MethodStream Method = "stream"
)

// Status is the per-item outcome of a store request.
type Status string

const (
	// StatusStored marks an item persisted to the backend.
	StatusStored Status = "stored"
	// StatusDuplicate marks an item dropped by duplicate detection.
	StatusDuplicate Status = "duplicate"
	// StatusFailed marks an item that could not be persisted.
	StatusFailed Status = "failed"
)

// Result reports the outcome for one item of a store request.
type Result struct {
	ID          string `json:"id"`
	BatchIndex  int    `json:"batchIndex"`
	Status      Status `json:"status"`
	DuplicateOf string `json:"duplicateOf,omitempty"`
	Error       string `json:"error,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`

	err error
}

// Err returns the underlying error for a failed item.
func (r Result) Err() error { return r.err }

func stored(index int, id string) Result {
	return Result{ID: id, BatchIndex: index, Status: StatusStored}
}

func duplicate(index int, id, dupOf string) Result {
	return Result{ID: id, BatchIndex: index, Status: StatusDuplicate, DuplicateOf: dupOf}
}

// invalid marks a validation failure. Unlike failed it is not recoverable:
// retrying the same item cannot succeed.
func invalid(index int, id string, err error) Result {
	return Result{
		ID: id, BatchIndex: index, Status: StatusFailed,
		Error: err.Error(), err: err,
	}
}

func failed(index int, id string, err error) Result {
	return Result{
		ID: id, BatchIndex: index, Status: StatusFailed,
		Error: err.Error(), Recoverable: true, err: err,
	}
}

// StorageResult summarizes one store request.
type StorageResult struct {
	Stored     int      `json:"stored"`
	Failed     int      `json:"failed"`
	Duplicates int      `json:"duplicates"`
	Results    []Result `json:"results"`
}

func summarize(results []Result) StorageResult {
	sr := StorageResult{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusStored:
			sr.Stored++
		case StatusDuplicate:
			sr.Duplicates++
		case StatusFailed:
			sr.Failed++
		}
	}
	return sr
}
