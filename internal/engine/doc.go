// Package engine binds a host application to an opaque logic-reasoning
// backend.
//
// A Session owns everything the host side has to know about a program:
// declared relation shapes, input mappings, the mutual-exclusion counter
// and the replay log. The backend owns the program itself. Every mutating
// call is forwarded to the backend and, on success, appended to the
// session history so that the same session can be rebuilt against a fresh
// backend with Replay.
//
// CONCURRENCY:
//
// A Session assumes one logical caller. It holds no locks; the only state
// that is safe to touch from several goroutines is the Counter, which is
// atomic. RunBatch is the one operation that fans out internally: it
// reserves group ids sequentially, then normalizes and runs each item on
// its own backend clone.
//
// DETERMINISM:
//
// Group ids are allocated in submission order from a session-scoped
// counter that starts at 0. Clone forks the counter by value, so ids drawn
// in a clone never move the original and vice versa.
package engine
