package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gaenroll/internal/cache"
	"gaenroll/internal/config"
	"gaenroll/internal/gadoe"
	"gaenroll/pkg/contracts/domain"
)

// enrollmentHarness hosts a fake download portal behind an
// EnrollmentService so tests can assert on exact network traffic: how
// many listing fetches happened, and how many times each file was
// downloaded.
type enrollmentHarness struct {
	service *EnrollmentService
	store   *cache.MemoryStore
	server  *httptest.Server

	mu            sync.Mutex
	listingCalls  map[int]int
	downloadCalls map[string]int
	files         map[int]map[string][]byte

	// responseDelay slows file downloads so concurrent fetches overlap
	// in flight instead of racing past each other.
	responseDelay time.Duration
}

func newEnrollmentHarness(t *testing.T, bounds domain.YearRange) *enrollmentHarness {
	t.Helper()

	h := &enrollmentHarness{
		store:         cache.NewMemoryStore(),
		listingCalls:  make(map[int]int),
		downloadCalls: make(map[string]int),
		files:         make(map[int]map[string][]byte),
	}

	h.server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.server.Close)

	cfg := config.SourceConfig{
		BaseURL:         h.server.URL,
		UserAgent:       "gaenroll-test",
		ListingTimeout:  2 * time.Second,
		ProbeTimeout:    2 * time.Second,
		DownloadTimeout: 5 * time.Second,
	}
	client := gadoe.NewClient(cfg, nil)
	resolver := gadoe.NewResolver(client, nil)

	h.service = NewEnrollmentService(bounds, resolver, client, h.store, nil, nil)
	return h
}

// addFile publishes a payload under a year directory on the fake portal.
func (h *enrollmentHarness) addFile(year int, filename string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.files[year] == nil {
		h.files[year] = make(map[string][]byte)
	}
	h.files[year][filename] = payload
}

// downloads returns how many times a file was fetched with GET. HEAD
// probes are not counted.
func (h *enrollmentHarness) downloads(filename string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downloadCalls[filename]
}

func (h *enrollmentHarness) totalDownloads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.downloadCalls {
		total += n
	}
	return total
}

func (h *enrollmentHarness) listings(year int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listingCalls[year]
}

// handle serves the two portal surfaces: "/{year}/" returns an
// IIS-style directory listing, "/{year}/{filename}" serves a published
// payload.
func (h *enrollmentHarness) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	filename := ""
	if len(parts) == 2 {
		filename = parts[1]
	}

	if filename == "" {
		h.serveListing(w, r, year)
		return
	}

	h.mu.Lock()
	payload, ok := h.files[year][filename]
	if ok && r.Method == http.MethodGet {
		h.downloadCalls[filename]++
	}
	delay := h.responseDelay
	h.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	w.Write(payload)
}

func (h *enrollmentHarness) serveListing(w http.ResponseWriter, r *http.Request, year int) {
	h.mu.Lock()
	h.listingCalls[year]++
	published := h.files[year]
	names := make([]string, 0, len(published))
	for name := range published {
		names = append(names, name)
	}
	h.mu.Unlock()

	if len(names) == 0 {
		http.NotFound(w, r)
		return
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<html><body><pre>")
	for _, name := range names {
		fmt.Fprintf(&b, `<a href="/%d/%s">%s</a><br>`, year, name, name)
	}
	b.WriteString("</pre></body></html>")
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(b.String()))
}
