package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/librarian/pkg/auth"
	"github.com/cuemby/librarian/pkg/config"
	"github.com/cuemby/librarian/pkg/errs"
)

// HTTPAdapter demonstrates the wire contract a caller of Dispatcher over
// HTTP would use: POST the JSON request in a `request` form field (or as
// the raw body), get back {success, message?, ...} JSON. It is built entirely on net/http: an example a real gateway can
// imitate or embed, not something cmd/librarian starts automatically.
type HTTPAdapter struct {
	Dispatcher *Dispatcher
	Config     *config.Config
	Checker    auth.IdentityChecker
}

// NewHTTPAdapter builds an HTTPAdapter over an already-constructed
// Dispatcher.
func NewHTTPAdapter(d *Dispatcher, cfg *config.Config, checker auth.IdentityChecker) *HTTPAdapter {
	return &HTTPAdapter{Dispatcher: d, Config: cfg, Checker: checker}
}

// Handler returns an http.Handler that serves one operation per path
// segment, e.g. POST /rpc/create_file_event.
func (a *HTTPAdapter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc/", a.serveOperation)
	return mux
}

func (a *HTTPAdapter) serveOperation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	operation := r.URL.Path[len("/rpc/"):]
	if operation == "" {
		writeError(w, errs.BadRequestf("no operation named in path"))
		return
	}

	// The payload arrives as a JSON document in a `request` form or query
	// field; a raw JSON body is accepted as a convenience for curl use.
	var body map[string]any
	if raw := r.FormValue("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			writeError(w, errs.BadRequestf("invalid JSON in request field: %v", err))
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.BadRequestf("invalid JSON body: %v", err))
		return
	}

	creds := auth.Credentials{
		Authenticator: optionalString(body, "authenticator"),
		Username:      optionalString(body, "username"),
		Token:         optionalString(body, "token"),
	}
	source, err := auth.Authenticate(r.Context(), a.Config, a.Checker, creds)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := a.Dispatcher.Dispatch(r.Context(), operation, source, body)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// writeError reports every failure as a 400 with a {success:false,
// message} body. Clients branch on the message, not the status code, so
// a finer-grained status mapping would buy nothing and change the wire
// contract existing clients depend on.
func writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	if errs.KindOf(err) == errs.Internal {
		// Tracebacks and invariant details stay in the server log.
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
