package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef binds a counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Password logins that issued a session."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed password logins."},
	{ID: authcore.MetricMFARequired, Name: "authcore_mfa_required_total", Help: "Logins that returned an MFA challenge."},
	{ID: authcore.MetricMFASuccess, Name: "authcore_mfa_success_total", Help: "Successful MFA challenge verifications."},
	{ID: authcore.MetricMFAFailure, Name: "authcore_mfa_failure_total", Help: "Failed MFA challenge verifications."},
	{ID: authcore.MetricMFAReplayDetected, Name: "authcore_mfa_replay_detected_total", Help: "TOTP codes rejected as replays."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Accounts created."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Rejected password changes."},
	{ID: authcore.MetricPasswordUpgraded, Name: "authcore_password_upgraded_total", Help: "Password hashes re-hashed with current parameters."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logouts of every session for a user."},
	{ID: authcore.MetricAuthenticateSuccess, Name: "authcore_authenticate_success_total", Help: "Bearer tokens accepted."},
	{ID: authcore.MetricAuthenticateFailure, Name: "authcore_authenticate_failure_total", Help: "Bearer tokens rejected."},
	{ID: authcore.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Token ids added to the revocation store."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Requests rejected by the rate limiter."},
	{ID: authcore.MetricBackendUnavailable, Name: "authcore_backend_unavailable_total", Help: "Operations that failed closed on a backend error."},
	{ID: authcore.MetricRevocationPurged, Name: "authcore_revocation_purged_total", Help: "Expired revocation entries purged."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// HistogramBounds are the upper bounds of the eight latency buckets in
// seconds.
var HistogramBounds = []string{
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"0.01",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
