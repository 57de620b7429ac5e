package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageTargetDone    Stage = "TARGET_DONE"
	StageAnalysisStart Stage = "ANALYSIS_START"
	StageProfileDone   Stage = "PROFILE_DONE"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for target completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusNone  StatusClass = "none"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a pipeline run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Site scopes target events to a host label.
	Site string
	// Company names the target for log output.
	Company string
	// Outcome is the terminal scrape status (Success, Failed, Error).
	Outcome string
	// StatusClass groups the last HTTP response code observed for the target.
	StatusClass StatusClass
	// Total is the number of targets in the run.
	Total int64
	// Remaining counts targets (or profiles, during analysis) still pending.
	Remaining int64
	// Dur captures target latency or total run time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageAnalysisStart, StageProfileDone, StageRunDone, StageRunError:
	case StageTargetDone:
		if e.Site == "" {
			return errors.New("target done requires site")
		}
		if e.Outcome == "" {
			return errors.New("target done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Remaining < 0 {
		return errors.New("remaining must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID converts a string run ID into the Event form. Unparsable IDs map
// to the zero value, which Validate rejects.
func ParseRunID(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(parsed)
}

// ClassifyStatus groups HTTP status codes. A nil code means no response arrived.
func ClassifyStatus(code *int) StatusClass {
	if code == nil {
		return StatusNone
	}
	switch c := *code; {
	case c >= 200 && c < 300:
		return Status2xx
	case c >= 300 && c < 400:
		return Status3xx
	case c >= 400 && c < 500:
		return Status4xx
	case c >= 500 && c < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
