// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify also accepts bcrypt hashes left by earlier deployments. NeedsUpgrade
// reports true for those and for Argon2id hashes produced with weaker
// parameters, so the caller can re-hash after the next successful login.
//
// The package never stores passwords and never logs them.
package password
