// Package monitoring turns an instrumented process into a small web
// server that exposes its probes, dispatchers, worker pools, recent trace
// events, and resource usage.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/instrument/pool"
	"github.com/sarchlab/instrument/probing"
	"github.com/sarchlab/instrument/tracing"
)

// Monitor can serve the live state of the instrumentation layer over
// HTTP.
type Monitor struct {
	portNumber int
	table      *probing.Table

	lock         sync.Mutex
	dispatchers  []*tracing.Dispatcher
	pools        []pool.Pool
	recentTraces *tracing.CollectingTracer
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		table: probing.DefaultTable(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProbeTable sets the probe namespace the monitor reports on.
func (m *Monitor) WithProbeTable(table *probing.Table) *Monitor {
	m.table = table
	return m
}

// RegisterDispatcher registers a dispatcher to be monitored.
func (m *Monitor) RegisterDispatcher(d *tracing.Dispatcher) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.dispatchers = append(m.dispatchers, d)
}

// RegisterPool registers a worker pool to be monitored.
func (m *Monitor) RegisterPool(p pool.Pool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.pools = append(m.pools, p)
}

// RegisterTraceCollector sets the collector whose events back the
// /api/traces endpoint.
func (m *Monitor) RegisterTraceCollector(c *tracing.CollectingTracer) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.recentTraces = c
}

// StartServer starts the monitor as a web server and returns the address
// it listens on.
func (m *Monitor) StartServer() string {
	r := mux.NewRouter()

	r.HandleFunc("/api/probes", m.listProbes)
	r.HandleFunc("/api/dispatchers", m.listDispatchers)
	r.HandleFunc("/api/dispatcher/{name}", m.listDispatcherDetails)
	r.HandleFunc("/api/pools", m.listPools)
	r.HandleFunc("/api/traces", m.listTraces)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring instrumentation with %s\n", addr)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	return addr
}

// OpenDashboard opens the monitor address in the default browser.
func (m *Monitor) OpenDashboard(addr string) {
	err := browser.OpenURL(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
	}
}

type probeRsp struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	NumSinks   int    `json:"num_sinks"`
	NumDropped uint64 `json:"num_dropped_sink_calls"`
}

func (m *Monitor) listProbes(w http.ResponseWriter, _ *http.Request) {
	rsp := []probeRsp{}
	for _, name := range m.table.ProbeNames() {
		probe := m.table.PeekProbe(name)
		if probe == nil {
			continue
		}

		rsp = append(rsp, probeRsp{
			Name:       probe.Name(),
			Enabled:    probe.IsEnabled(),
			NumSinks:   probe.NumSinks(),
			NumDropped: probe.NumDroppedSinkCalls(),
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listDispatchers(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := []string{}
	for _, d := range m.dispatchers {
		names = append(names, d.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listDispatcherDetails(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := mux.Vars(r)["name"]

	dispatcher := m.findDispatcherOr404(w, name)
	if dispatcher == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(dispatcher)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findDispatcherOr404(
	w http.ResponseWriter,
	name string,
) *tracing.Dispatcher {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, d := range m.dispatchers {
		if d.Name() == name {
			return d
		}
	}

	w.WriteHeader(http.StatusNotFound)

	return nil
}

func (m *Monitor) listPools(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rsp := []pool.Stats{}
	for _, p := range m.pools {
		rsp = append(rsp, p.Stats())
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listTraces(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	collector := m.recentTraces
	m.lock.Unlock()

	if collector == nil {
		m.writeJSON(w, []tracing.Event{})
		return
	}

	m.writeJSON(w, collector.Events())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, payload any) {
	bytes, err := json.Marshal(payload)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
