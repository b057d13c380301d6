package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetsys/fleet/controller"
	"github.com/fleetsys/fleet/executor"
)

// ComponentProvider returns a JSON-serializable snapshot of one piece of
// runtime state — typically a data element's latest cached sample. It is
// grounded on the pack's dedicated introspection-client repo's
// registry.DataProvider ("service returns ONLY data"), simplified here to
// drop that repo's checksum-caching layer: read-only diagnostics over a
// handful of components does not need to avoid recomputing a SHA256.
type ComponentProvider func() any

// IntrospectionServer exposes read-only runtime diagnostics over HTTP: the
// controller's module states, the executor's task list with each task's
// next-fire tick, and whatever component snapshots the application has
// registered. It never mutates runtime state.
type IntrospectionServer struct {
	ctrl *controller.Controller
	exec *executor.Executor

	mu         sync.RWMutex
	components map[string]ComponentProvider

	router chi.Router
}

// NewIntrospectionServer builds a server over ctrl/exec. Call Router to
// mount it, or ListenAndServe to run it standalone.
func NewIntrospectionServer(ctrl *controller.Controller, exec *executor.Executor) *IntrospectionServer {
	s := &IntrospectionServer{ctrl: ctrl, exec: exec, components: make(map[string]ComponentProvider)}
	s.router = s.buildRouter()
	return s
}

// RegisterComponent adds a named snapshot provider, typically a closure
// over a data element's Consumer.Get, e.g.
// srv.RegisterComponent("Greeter_Message", func() any { return greeterConsumer.Get() }).
func (s *IntrospectionServer) RegisterComponent(name string, provider ComponentProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = provider
}

// Router returns the mountable http.Handler.
func (s *IntrospectionServer) Router() chi.Router { return s.router }

// ListenAndServe runs the introspection server standalone on addr.
func (s *IntrospectionServer) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router) //nolint:gosec
}

func (s *IntrospectionServer) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/modules", s.handleModules)
	r.Get("/tasks", s.handleTasks)
	r.Get("/components", s.handleComponentsList)
	r.Get("/components/{name}", s.handleComponent)
	return r
}

type moduleStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *IntrospectionServer) handleModules(w http.ResponseWriter, r *http.Request) {
	statuses := s.ctrl.ModuleStatuses()
	out := make([]moduleStatus, 0, len(statuses))
	for _, ms := range statuses {
		out = append(out, moduleStatus{Name: ms.Name, State: ms.State.String()})
	}
	writeJSON(w, out)
}

type taskStatus struct {
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	PeriodTicks uint64 `json:"periodTicks"`
	OffsetTicks uint64 `json:"offsetTicks"`
	Active      bool   `json:"active"`
	NextFireAt  uint64 `json:"nextFireTick"`
}

func (s *IntrospectionServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	currentTick := s.exec.CurrentTick()
	tasks := s.exec.Tasks()
	out := make([]taskStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskStatus{
			Name:        t.Name(),
			Owner:       t.Owner(),
			PeriodTicks: t.Period(),
			OffsetTicks: t.Offset(),
			Active:      t.IsActive(),
			NextFireAt:  nextFireTick(currentTick, t.Period(), t.Offset()),
		})
	}
	writeJSON(w, out)
}

func nextFireTick(current, period, offset uint64) uint64 {
	if period == 0 {
		return current
	}
	rem := offset % period
	for tick := current + 1; ; tick++ {
		if tick%period == rem {
			return tick
		}
	}
}

func (s *IntrospectionServer) handleComponentsList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	s.mu.RUnlock()
	writeJSON(w, names)
}

func (s *IntrospectionServer) handleComponent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.RLock()
	provider, ok := s.components[name]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "component not registered: "+name, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"name":      name,
		"data":      provider(),
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
