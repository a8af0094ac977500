// Package locker reserves a signal generator for one client.  While a device
// is locked every route that can change its output answers 423; the
// descriptions of the device stay readable so a second client can see what it
// is and who holds it.
package locker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/nasa-jpl/tekgen/generichttp"
	"github.com/nasa-jpl/tekgen/server"
)

// ReadOnly are the final path segments left open while a device is locked
var ReadOnly = []string{"lock", "model", "channels", "constants", "constraints", "waveforms"}

// Request is the body of POST /lock.  Bool takes or releases the lock,
// Holder names whoever takes it.
type Request struct {
	Bool   bool   `json:"bool"`
	Holder string `json:"holder,omitempty"`
}

// State is the body of GET /lock
type State struct {
	Bool   bool      `json:"bool"`
	Holder string    `json:"holder,omitempty"`
	Since  time.Time `json:"since,omitempty"`
}

// Locker guards one device
type Locker struct {
	mu    sync.RWMutex
	state State
	open  map[string]bool
}

// New returns an unlocked Locker.  With no arguments the ReadOnly routes stay
// open while it is locked.
func New(open ...string) *Locker {
	if len(open) == 0 {
		open = ReadOnly
	}
	l := &Locker{open: make(map[string]bool, len(open))}
	for _, s := range open {
		l.open[s] = true
	}
	return l
}

// Lock reserves the device for holder
func (l *Locker) Lock(holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = State{Bool: true, Holder: holder, Since: time.Now()}
}

// Unlock releases the device
func (l *Locker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = State{}
}

// Locked reports whether the device is reserved
func (l *Locker) Locked() bool {
	return l.State().Bool
}

// State returns a copy of the lock state
func (l *Locker) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Check is middleware answering 423 to every request for a route that is not
// open while the device is locked
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := l.State()
		if st.Bool && !l.open[path.Base(r.URL.Path)] {
			msg := "device is locked"
			if st.Holder != "" {
				msg = fmt.Sprintf("device is locked by %s since %s", st.Holder, st.Since.Format(time.RFC3339))
			}
			http.Error(w, msg, http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet takes or releases the lock
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	var req Request
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Bool {
		holder := req.Holder
		if holder == "" {
			holder = r.RemoteAddr
		}
		l.Lock(holder)
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet reports the lock state
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	server.RespondJSON(w, l.State())
}

// Inject adds GET and POST /lock to the route table of h
func Inject(h generichttp.HTTPer, l *Locker) {
	rt := h.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}
