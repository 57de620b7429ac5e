package extract

// Reason explains the outcome of an extraction.
type Reason string

// Extraction outcomes.
const (
	ReasonOK           Reason = "ok"
	ReasonEmptyInput   Reason = "empty_input"
	ReasonNoText       Reason = "no_text"
	ReasonParseFailed  Reason = "parse_failed"
	ReasonDecodeFailed Reason = "decode_failed"
)

// Result is the typed outcome of a PDF extraction.
type Result struct {
	Text   string
	Reason Reason
	Err    error
}

// Page is the outcome of HTML extraction.
type Page struct {
	Text      string
	Title     string
	LinkCount int
	PDFLinks  []string
	Reason    Reason
	Err       error
}
