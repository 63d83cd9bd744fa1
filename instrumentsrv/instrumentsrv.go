// Package instrumentsrv exposes attached USBTMC instruments over HTTP:
// a byte-stream surface (write/read), a control surface (attribute
// get/set, clear, abort, capabilities, indicator pulse, reset), and a
// shared enumeration surface listing every attached instrument. This
// is the network-native analogue of the character-device node a
// kernel driver would otherwise expose for each instrument.
package instrumentsrv

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"goji.io"
	"goji.io/pat"

	"github.com/nasa-jpl/usbtmcd/generichttp"
	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

// NewMux builds the full HTTP surface for the given minor->Session
// attachment table: one submux per instrument, bound from its
// generichttp.RouteTable the same way each device's HTTPer gets bound
// into a shared mux, plus the shared enumeration route at /instruments
// and an aggregate /endpoints listing every submux's routes.
func NewMux(sessions map[int]*usbtmc.Session) *goji.Mux {
	root := goji.NewMux()
	supergraph := map[string][]string{}

	minors := make([]int, 0, len(sessions))
	for m := range sessions {
		minors = append(minors, m)
	}
	sort.Ints(minors)

	for _, minor := range minors {
		wrapper := NewSessionHTTPWrapper(sessions[minor])
		stem := generichttp.SubMuxSanitize(fmt.Sprintf("/instruments/%03d", minor))
		supergraph[stem] = wrapper.RT().Endpoints()

		sub := goji.SubMux()
		lock := &sessionLock{}
		sub.Use(lock.Check)
		wrapper.RT().Bind(sub)
		root.Handle(pat.New(stem), sub)
	}

	root.HandleFunc(pat.Get("/instruments"), enumerationHandler)
	root.HandleFunc(pat.Post("/instruments"), notPermittedHandler)
	root.HandleFunc(pat.Put("/instruments"), notPermittedHandler)

	root.HandleFunc(pat.Get("/endpoints"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(supergraph); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return root
}

func enumerationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/tab-separated-values")
	io.WriteString(w, usbtmc.EnumerationTable())
}

func notPermittedHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "writes to the enumeration surface are not permitted", http.StatusMethodNotAllowed)
}

// writeUSBTMCError maps a usbtmc error to an HTTP status by kind.
func writeUSBTMCError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if usbtmc.IsKind(err, usbtmc.InvalidArgument) {
		status = http.StatusBadRequest
	} else if usbtmc.IsKind(err, usbtmc.NotSupported) {
		status = http.StatusMethodNotAllowed
	}
	http.Error(w, err.Error(), status)
}
