// Package password provides Argon2id password hashing in PHC string format
// and the strength policy applied to new passwords.
package password
