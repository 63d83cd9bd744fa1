package instrumentsrv

import (
	"net/http"
	"sync"
)

// sessionLock enforces one in-flight operation per instrument at the
// HTTP boundary: a request that finds the session already busy gets
// 423 (Locked) immediately rather than queuing behind it, generalized
// from the manual isLocked toggle in server/middleware/locker.Locker —
// that version required a client to flip the lock explicitly; this one
// locks and unlocks automatically around every request so a caller
// can't forget to release it.
type sessionLock struct {
	mu sync.Mutex
}

// Check is an HTTP middleware that returns 423 if another request is
// already in flight against the same session, otherwise runs next
// with the lock held for the duration of the request.
func (l *sessionLock) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.mu.TryLock() {
			w.WriteHeader(http.StatusLocked)
			return
		}
		defer l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
