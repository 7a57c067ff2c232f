// Package statushttp exposes a small read-only auxiliary HTTP mux
// alongside the TCP command port: a JSON snapshot of the server state and
// a list-of-routes endpoint. It never mutates state and is not a
// substitute for the TCP command protocol. Grounded on
// server/server.go's RouteTable/BindRoutes/ListRoutes.
package statushttp

import (
	"encoding/json"
	"net/http"
	"sort"

	"goji.io"
	"goji.io/pat"

	"github.com/cfht-spirou/guideserv/internal/serverstate"
)

// RouteTable maps a route pattern to its handler, mirroring the
// teacher's generichttp RouteTable convention.
type RouteTable map[string]http.HandlerFunc

// Server wraps a goji mux serving the state snapshot and route list.
type Server struct {
	Mux   *goji.Mux
	State *serverstate.State
	Table RouteTable
}

// New builds a Server bound to state, with the status and route-list
// endpoints registered.
func New(state *serverstate.State) *Server {
	s := &Server{Mux: goji.NewMux(), State: state, Table: RouteTable{}}
	s.Table["/status"] = s.handleStatus
	s.Table["/list-of-routes"] = s.handleListRoutes
	s.BindRoutes()
	return s
}

// BindRoutes registers every entry of Table on the mux.
func (s *Server) BindRoutes() {
	for route, fn := range s.Table {
		s.Mux.HandleFunc(pat.Get(route), fn)
	}
}

// ListRoutes returns the registered route patterns, sorted for stable
// output.
func (s *Server) ListRoutes() []string {
	routes := make([]string, 0, len(s.Table))
	for r := range s.Table {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ListRoutes())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.State)
}

// ListenAndServe starts the mux on addr. It blocks until the server
// stops or errors, matching the teacher's Server.HTTPListenAndServe idiom.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Mux)
}
