package internaldefs

import (
	"github.com/nemoserver/authcore"
)

// Prefix is prepended to every exported metric name.
const Prefix = "authcore_"

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter in a stable order.
var CounterDefs = []CounterDef{
	counter(authcore.MetricLoginSuccess, "Successful logins."),
	counter(authcore.MetricLoginFailure, "Logins rejected for bad credentials."),
	counter(authcore.MetricLoginRateLimited, "Logins refused by the login throttle."),
	counter(authcore.MetricSessionCreated, "Session tokens issued."),
	counter(authcore.MetricValidateSuccess, "Successful session validations."),
	counter(authcore.MetricValidateFailure, "Failed session validations."),
	counter(authcore.MetricValidateCacheHit, "Validations served from the session cache."),
	counter(authcore.MetricValidateCacheMiss, "Validations that decrypted the token."),
	counter(authcore.MetricSessionExpired, "Validations rejected as expired."),
	counter(authcore.MetricTokenInvalid, "Validations rejected as undecodable or malformed."),
	counter(authcore.MetricSessionRevoked, "Validations rejected by the revocation list."),
	counter(authcore.MetricRefreshRotated, "Refreshes that issued a new token."),
	counter(authcore.MetricRefreshSkipped, "Refreshes inside the refresh interval."),
	counter(authcore.MetricRefreshFailure, "Failed refreshes."),
	counter(authcore.MetricLogout, "Logouts of cached sessions."),
	counter(authcore.MetricSessionsSwept, "Expired sessions removed from the cache."),
	counter(authcore.MetricPasswordChangeSuccess, "Successful password changes."),
	counter(authcore.MetricPasswordChangeInvalidOld, "Password changes rejected for a wrong current password."),
	counter(authcore.MetricPasswordRehash, "Password hashes upgraded on login."),
	counter(authcore.MetricAccountCreationSuccess, "Accounts registered."),
	counter(authcore.MetricAccountCreationDuplicate, "Registrations rejected as duplicate."),
	counter(authcore.MetricPermissionDenied, "Role checks that failed."),
	counter(authcore.MetricSpeakerAccessDenied, "Speaker access checks that failed."),
	counter(authcore.MetricStoreError, "User store or Redis failures."),
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: Prefix + "validate_latency_seconds", Help: "ValidateSession latency."},
}

const (
	AuditDroppedName = Prefix + "audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

	CachedSessionsName = Prefix + "cached_sessions"
	CachedSessionsHelp = "Sessions currently held in the session cache."
)

// HistogramBounds are the upper bounds of the first seven buckets in
// seconds. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

func counter(id authcore.MetricID, help string) CounterDef {
	return CounterDef{ID: id, Name: Prefix + id.String() + "_total", Help: help}
}

// NormalizeBuckets copies raw into a fixed eight-bucket array. Missing
// buckets are zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals, as
// both Prometheus and the flattened OTel gauges expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
