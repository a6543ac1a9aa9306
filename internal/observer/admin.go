package observer

import (
	"encoding/json"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts a debug endpoint listing every region's current
// counters, grounded on the teacher's AttachAdminRoutes convention
// (internal/serialmux/serialmux.go, internal/db/db.go).
func (o *SchemeObserver) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("regions/"+o.Name, "region gating counters for "+o.Name, func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		out := make(map[string]RegionCounters, len(o.regions))
		for _, reg := range o.regions {
			out[reg.Name] = reg.Counters
		}
		enc.Encode(out)
	})
}
