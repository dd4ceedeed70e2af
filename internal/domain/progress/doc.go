// Package progress holds the learner-side state of a course: enrollment,
// per-module completion, the unlock chain computed from them, and the study
// timer whose elapsed seconds are persisted as deltas.
//
// Unlock rule, for an enrolled learner:
//
//	module[0]            always unlocked
//	module[i], i > 0     unlocked iff module[i-1] is completed
//	bonus module         unlocked iff bought (or free), never gated by the chain
//
// A learner who is not enrolled sees every module locked.
//
// Timer persistence writes only elapsed-saved, so resuming from the durable
// total after a restart never counts the same second twice.
package progress
