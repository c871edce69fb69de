// Copyright 2017-2019, Square, Inc.

package proto

// Outcome of recording one minion return. Only RETURN_STORED changes the
// job cache. The other outcomes are failure indicators, not errors.
const (
	RETURN_UNKNOWN     byte = iota
	RETURN_STORED           // result written
	RETURN_NOCACHE          // job is flagged nocache, nothing written
	RETURN_DUPLICATE        // minion already returned for this job
	RETURN_MISSING_JOB      // job directory vanished (swept) mid-write
)

var ReturnName = map[byte]string{
	RETURN_UNKNOWN:     "UNKNOWN",
	RETURN_STORED:      "STORED",
	RETURN_NOCACHE:     "NOCACHE",
	RETURN_DUPLICATE:   "DUPLICATE",
	RETURN_MISSING_JOB: "MISSING_JOB",
}

var ReturnValue = map[string]byte{
	"UNKNOWN":     RETURN_UNKNOWN,
	"STORED":      RETURN_STORED,
	"NOCACHE":     RETURN_NOCACHE,
	"DUPLICATE":   RETURN_DUPLICATE,
	"MISSING_JOB": RETURN_MISSING_JOB,
}

// Defaults used when formatting a job summary from an incomplete load.
const (
	DEFAULT_FUNCTION = "unknown-function"
	DEFAULT_TARGET   = "unknown-target"
	DEFAULT_USER     = "root"
	DEFAULT_TGT_TYPE = "glob"
)
