package node

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-yaml"
	"github.com/rcrowley/go-metrics/exp"
)

const contentTypeYAML = "application/yaml"

// viewStatus is the /view document
type viewStatus struct {
	ID      uint64   `yaml:"id"`
	Members []string `yaml:"members"`
	Local   string   `yaml:"local"`
	Rank    int      `yaml:"rank"`
}

// topologyStatus is the /topology document
type topologyStatus struct {
	ID                    int `yaml:"id"`
	FirstTopologyAsMember int `yaml:"first_topology_as_member,omitempty"`
	Segments              int `yaml:"segments"`
	PrimaryOwned          int `yaml:"primary_owned"`
	Parked                int `yaml:"parked"`
	PendingTransactions   int `yaml:"pending_transactions"`
}

// entryStatus is the /entries/{key} document
type entryStatus struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Version string `yaml:"version"`
}

// Router returns the status endpoint of the node
func (n *Node) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	if n.config.LogLevel == "debug" {
		r.Use(requestLogger)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		n.executor.Metrics().WritePrometheus(w)
	})
	r.Handle("/locks", exp.ExpHandler(n.locks.Registry()))
	r.Get("/view", n.handleView)
	r.Get("/topology", n.handleTopology)
	r.Get("/entries/{key}", n.handleEntry)
	return r
}

func (n *Node) handleView(w http.ResponseWriter, _ *http.Request) {
	view, ok := n.notifier.Latest()
	if !ok {
		http.Error(w, "no view installed", http.StatusServiceUnavailable)
		return
	}
	writeYAML(w, http.StatusOK, viewStatus{ID: view.ID, Members: view.Members, Local: view.Local, Rank: view.Rank()})
}

func (n *Node) handleTopology(w http.ResponseWriter, _ *http.Request) {
	status := topologyStatus{
		ID:                  n.topology.TopologyID(),
		Segments:            n.topology.NumSegments(),
		Parked:              n.executor.Parked(),
		PendingTransactions: n.env.Pending.Size(),
	}
	if first := n.topology.FirstTopologyAsMember(); first != math.MaxInt {
		status.FirstTopologyAsMember = first
	}
	if t := n.topology.Topology(); t != nil {
		for s := 0; s < t.NumSegments; s++ {
			if t.PrimaryOf(s) == n.config.NodeName {
				status.PrimaryOwned++
			}
		}
	}
	writeYAML(w, http.StatusOK, status)
}

func (n *Node) handleEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	e, ok := n.env.Container.Get(key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	writeYAML(w, http.StatusOK, entryStatus{Key: key, Value: string(e.Value), Version: e.Version.String()})
}

func writeYAML(w http.ResponseWriter, status int, v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeYAML)
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Warningf("failed to write status response: %v", err)
	}
}

// requestLogger logs every status request at debug level
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
