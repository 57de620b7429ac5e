// Package extract turns fetched HTML and PDF payloads into normalized plain text.
//
// Extraction never fails from the caller's point of view: malformed input
// degrades to empty text. The typed Result values expose why text is missing so
// diagnostics can report it without changing that contract.
package extract
