package backend

// File is an upload chosen by the user.
type File struct {
	Name    string
	Content []byte
}

// Size returns the content length in bytes.
func (f File) Size() int { return len(f.Content) }

// SingleRequest is the payload of POST /process.
type SingleRequest struct {
	Text string
	// Query and Threshold are optional; zero values are not sent.
	Query     string
	Threshold float64
}

// SingleResult is a successful /process response.
type SingleResult struct {
	Text  string
	Input string // truncated echo of the submitted text, if the backend sends it
}

// PreviewRequest is the payload of POST /preview.
type PreviewRequest struct {
	File File
}

// PreviewResult is a successful /preview response.
type PreviewResult struct {
	Rows           int
	Columns        []string
	RenderedSample string // HTML fragment, unsanitized
}

// HasColumn reports whether name is one of the detected columns.
func (p PreviewResult) HasColumn(name string) bool {
	for _, c := range p.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// BatchRequest is the payload of POST /batch.
type BatchRequest struct {
	File   File
	Column string
}

// BatchOutcome is either BatchSuccess or ColumnNotFound.
type BatchOutcome interface {
	batchOutcome()
}

// BatchSuccess is a processed batch.
type BatchSuccess struct {
	RowsProcessed int
	DownloadRef   string
}

// ColumnNotFound is the recoverable batch outcome: the requested column does
// not exist and the backend lists the valid ones.
type ColumnNotFound struct {
	AvailableColumns []string
	Message          string
}

func (BatchSuccess) batchOutcome()   {}
func (ColumnNotFound) batchOutcome() {}

// envelope is the JSON shape shared by all three endpoints.
type envelope struct {
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Result    string   `json:"result,omitempty"`
	Input     string   `json:"input,omitempty"`
	Preview   string   `json:"preview,omitempty"`
	RowsCount int      `json:"rows_count,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Processed int      `json:"rows_processed,omitempty"`
	Download  string   `json:"download_url,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"

	// ErrorKindColumnNotFound is the structured marker for a missing batch column.
	ErrorKindColumnNotFound = "column_not_found"
)
