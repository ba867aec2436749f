package constants

// Version of the running application; overridden at build time.
var Version = "latest"

const JsonContentType = "application/json; charset=utf-8"

// S3/local payload layout. Failed bill payloads wait under FailsPrefix and
// move to ResolvedPrefix once an operator has assigned rates.
const (
	DefaultFailsPrefix    = "data/bills/fails/"
	DefaultResolvedPrefix = "data/bills/resolved/"
)

// Rate assignment modes accepted by the assign-rates endpoint.
const (
	RateTypeIndividual = "individual"
	RateTypeCategory   = "category"
)

const UnknownProvider = "Unknown Provider"

// Fallback group key for bills whose age cannot be derived.
const UnknownBucket = "Unknown"

const TestSvcDate = "2000-01-01"
