// Package dhsession establishes a mutually attested secure channel in between two
// enclaves hosted on the same platform.
//
// The protocol is a three message Diffie-Hellmann key exchange. Each party proves
// its platform identity with a hardware attestation report bound to the exchanged
// ephemeral public keys, and both parties derive the same 128 bit session key (AEK).
//
//	Responder                        Initiator
//	    | ------- Message1 ------------> |      ephemeral public key + report target
//	    | <------ Message2 ------------- |      ephemeral public key + report + MAC
//	    | ------- Message3 ------------> |      report + MAC
//
// A Session runs the protocol for one party. Operations must be called in the
// order mandated by the session Stage; any out of order call fails with
// ErrOrderingViolation and leaves the Session untouched. All other failures abort
// the Session, wipe its key material and are terminal: retrying requires a brand
// new Session.
//
// The package never performs IO. Moving Message1/2/3 in between the parties is the
// caller responsibility, see the protocols package for a ready made driver.
package dhsession
