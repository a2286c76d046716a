// Package jwt issues and verifies the HMAC-signed session and refresh tokens
// used by authcore.
//
// Session tokens carry the subject, email, roles, a unique jti and the user's
// revocation epoch. Refresh tokens carry only the subject, jti and epoch.
// Parse distinguishes expired tokens from every other defect so callers can
// log the difference, but both are rejections.
package jwt
