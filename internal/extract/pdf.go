package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF returns the normalized text of every page, or "" when the
// document cannot be decoded.
func ExtractPDF(raw []byte) string {
	return ExtractPDFResult(raw).Text
}

// ExtractPDFResult decodes the document page by page. Pages that yield no text
// contribute nothing; decoder failures and panics become ReasonDecodeFailed.
func ExtractPDFResult(raw []byte) (res Result) {
	if len(raw) == 0 {
		return Result{Reason: ReasonEmptyInput}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Reason: ReasonDecodeFailed, Err: fmt.Errorf("pdf decoder panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{Reason: ReasonDecodeFailed, Err: fmt.Errorf("open pdf: %w", err)}
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		b.WriteString(pageText(reader.Page(i)))
	}
	text := Normalize(b.String())
	if text == "" {
		return Result{Reason: ReasonNoText}
	}
	return Result{Text: text, Reason: ReasonOK}
}

func pageText(p pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
