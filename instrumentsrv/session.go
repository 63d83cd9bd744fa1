package instrumentsrv

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"goji.io/pat"

	"github.com/nasa-jpl/usbtmcd/generichttp"
	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

// defaultReadMax bounds a read(max) call that doesn't specify ?max=.
const defaultReadMax = 4096

// SessionHTTPWrapper wraps one attached instrument's Session in an
// HTTP interface: a named route per operation, built once into a
// RouteTable at construction, the same per-device-HTTPWrapper shape
// every instrument in this fleet gets wrapped in.
type SessionHTTPWrapper struct {
	*usbtmc.Session

	// RouteTable is the map of Goji patterns to route handlers.
	RouteTable generichttp.RouteTable
}

// NewSessionHTTPWrapper returns a new wrapper with the route table
// populated: byte-stream routes, control routes, and one get/set pair
// per known attribute.
func NewSessionHTTPWrapper(sess *usbtmc.Session) *SessionHTTPWrapper {
	w := &SessionHTTPWrapper{Session: sess}
	rt := generichttp.RouteTable{
		pat.Post("/write"):           w.handleWrite,
		pat.Get("/read"):             w.handleRead,
		pat.Get("/capabilities"):     w.handleCapabilities,
		pat.Post("/clear"):           w.handleClear,
		pat.Post("/clear-in-halt"):   w.handleClearInHalt,
		pat.Post("/clear-out-halt"):  w.handleClearOutHalt,
		pat.Post("/abort-in"):        w.handleAbortIn,
		pat.Post("/abort-out"):       w.handleAbortOut,
		pat.Post("/indicator-pulse"): w.handleIndicatorPulse,
		pat.Post("/reset-conf"):      w.handleResetConfiguration,
	}
	for name, id := range attrNames {
		id := id
		rt[pat.Get("/attribute/"+name)] = generichttp.GetInt(func() (int, error) {
			v, err := w.Session.GetAttribute(id)
			return int(v), err
		})
		rt[pat.Post("/attribute/"+name)] = generichttp.SetInt(func(v int) error {
			return w.Session.SetAttribute(id, int32(v))
		})
	}
	w.RouteTable = rt
	return w
}

// RT returns the route table, satisfying generichttp.HTTPer.
func (w *SessionHTTPWrapper) RT() generichttp.RouteTable { return w.RouteTable }

func (w *SessionHTTPWrapper) handleWrite(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := w.Session.Write(body)
	if err != nil {
		writeUSBTMCError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(struct {
		N int `json:"n"`
	}{N: n})
}

func (w *SessionHTTPWrapper) handleRead(rw http.ResponseWriter, r *http.Request) {
	max := defaultReadMax
	if q := r.URL.Query().Get("max"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			http.Error(rw, "invalid max", http.StatusBadRequest)
			return
		}
		max = v
	}
	buf := make([]byte, max)
	n, err := w.Session.Read(buf)
	if err != nil {
		writeUSBTMCError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Write(buf[:n])
}

func (w *SessionHTTPWrapper) handleCapabilities(rw http.ResponseWriter, r *http.Request) {
	caps, err := w.Session.GetCapabilities()
	if err != nil {
		writeUSBTMCError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(caps)
}

func (w *SessionHTTPWrapper) handleClear(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.Clear)
}

func (w *SessionHTTPWrapper) handleClearInHalt(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.ClearInHalt)
}

func (w *SessionHTTPWrapper) handleClearOutHalt(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.ClearOutHalt)
}

func (w *SessionHTTPWrapper) handleAbortIn(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.AbortBulkIn)
}

func (w *SessionHTTPWrapper) handleAbortOut(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.AbortBulkOut)
}

func (w *SessionHTTPWrapper) handleIndicatorPulse(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.IndicatorPulse)
}

func (w *SessionHTTPWrapper) handleResetConfiguration(rw http.ResponseWriter, r *http.Request) {
	simpleOp(rw, w.Session.ResetConfiguration)
}

func simpleOp(rw http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		writeUSBTMCError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusOK)
}
