package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/tariff-monitor/internal/detect"
	"github.com/jonathan/tariff-monitor/internal/resolve"
	"github.com/jonathan/tariff-monitor/internal/selection"
	"github.com/jonathan/tariff-monitor/internal/sources"
	"github.com/jonathan/tariff-monitor/internal/store"
)

type fakeResolver struct {
	candidates map[string][]resolve.Candidate
	errs       map[string]error
}

func (f *fakeResolver) Resolve(_ context.Context, pageURL string) ([]resolve.Candidate, error) {
	if err := f.errs[pageURL]; err != nil {
		return nil, err
	}
	return f.candidates[pageURL], nil
}

type fakeSelector struct {
	results map[string]*selection.Result
	errs    map[string]error
}

func (f *fakeSelector) Select(_ context.Context, utilityName string, candidates []resolve.Candidate) (*selection.Result, error) {
	if err := f.errs[utilityName]; err != nil {
		return nil, err
	}
	if r, ok := f.results[utilityName]; ok {
		return r, nil
	}
	// Default: select everything resolved.
	result := &selection.Result{Selected: []selection.SelectedDocument{}}
	for _, c := range candidates {
		result.Selected = append(result.Selected, selection.SelectedDocument{URL: c.URL})
	}
	return result, nil
}

type fakeDetector struct {
	mu      sync.Mutex
	results map[string]*detect.Result
	errs    map[string]error
	priors  map[string]*detect.Prior
	quick   []bool
}

func (f *fakeDetector) Detect(_ context.Context, url string, prior *detect.Prior, quick bool) (*detect.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priors == nil {
		f.priors = make(map[string]*detect.Prior)
	}
	f.priors[url] = prior
	f.quick = append(f.quick, quick)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if r, ok := f.results[url]; ok {
		return r, nil
	}
	return &detect.Result{Fingerprint: "fp-" + url, Changed: prior == nil}, nil
}

// memStore is an in-memory stand-in for the Postgres document store.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]*store.TrackedDocument
	nextID    int64
	upsertErr error
	getErr    error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*store.TrackedDocument)}
}

func (m *memStore) GetByURL(_ context.Context, url string) (*store.TrackedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, ok := m.docs[url]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (m *memStore) Upsert(_ context.Context, p store.UpsertParams) (*store.TrackedDocument, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, false, m.upsertErr
	}
	if doc, ok := m.docs[p.URL]; ok {
		doc.Hash = &p.Hash
		doc.LastChecked = &p.LastChecked
		doc.TariffLastUpdated = p.TariffLastUpdated
		doc.Status = store.StatusActive
		copied := *doc
		return &copied, false, nil
	}
	m.nextID++
	doc := &store.TrackedDocument{
		ID:          m.nextID,
		UtilityName: p.UtilityName,
		URL:         p.URL,
		Hash:        &p.Hash,
		LastChecked: &p.LastChecked,
		Status:      store.StatusActive,
	}
	m.docs[p.URL] = doc
	copied := *doc
	return &copied, true, nil
}

func (m *memStore) Supersede(_ context.Context, utilityName string, keepURLs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := make(map[string]bool, len(keepURLs))
	for _, u := range keepURLs {
		keep[u] = true
	}
	var n int64
	for _, doc := range m.docs {
		if doc.UtilityName == utilityName && doc.Status == store.StatusActive && !keep[doc.URL] {
			doc.Status = store.StatusObsolete
			n++
		}
	}
	return n, nil
}

func (m *memStore) status(url string) store.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[url].Status
}

func (m *memStore) seed(utilityName, url, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.docs[url] = &store.TrackedDocument{
		ID:          m.nextID,
		UtilityName: utilityName,
		URL:         url,
		Hash:        &hash,
		Status:      store.StatusActive,
	}
}

const (
	acmePage = "https://acme.example/tariffs"
	docV1    = "https://acme.example/tariff-2025.pdf"
	docV2    = "https://acme.example/tariff-2026.pdf"
)

func acmeSources() []sources.Source {
	return []sources.Source{{Name: "Acme Electric", URL: acmePage}}
}

func newMonitor(r *fakeResolver, sel *fakeSelector, d *fakeDetector, st DocumentStore) *Monitor {
	return &Monitor{Resolver: r, Selector: sel, Detector: d, Store: st}
}

func TestRun_FirstObservationAdds(t *testing.T) {
	st := newMemStore()
	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1, LinkText: "Tariff 2025"}}}},
		&fakeSelector{},
		&fakeDetector{},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	src := rec.Sources[0]
	assert.Equal(t, 1, src.CandidatesFound)
	assert.Equal(t, 1, src.CandidatesSelected)
	assert.Equal(t, 1, src.Added)
	assert.Equal(t, 0, src.Errors)
	require.Len(t, src.Selections, 1)
	assert.True(t, src.Selections[0].Changed)
	assert.Equal(t, store.StatusActive, st.status(docV1))
}

func TestRun_NewDocumentSupersedesOld(t *testing.T) {
	// A previous run tracked the 2025 tariff; the source page now links the
	// 2026 tariff instead.
	st := newMemStore()
	st.seed("Acme Electric", docV1, "old-hash")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV2, LinkText: "Tariff 2026"}}}},
		&fakeSelector{},
		&fakeDetector{},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Sources[0].Added)
	assert.Equal(t, store.StatusActive, st.status(docV2))
	assert.Equal(t, store.StatusObsolete, st.status(docV1))
}

func TestRun_RollbackReactivatesSupersededDocument(t *testing.T) {
	// The source page links the 2025 tariff, then the 2026 one, then rolls
	// back to the 2025 one. The rollback must leave exactly the re-selected
	// document ACTIVE, never a utility with no ACTIVE row at all.
	st := newMemStore()
	resolver := &fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}}
	m := newMonitor(resolver, &fakeSelector{}, &fakeDetector{}, st)

	_, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	resolver.candidates[acmePage] = []resolve.Candidate{{URL: docV2}}
	_, err = m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)
	require.Equal(t, store.StatusObsolete, st.status(docV1))
	require.Equal(t, store.StatusActive, st.status(docV2))

	resolver.candidates[acmePage] = []resolve.Candidate{{URL: docV1}}
	_, err = m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	assert.Equal(t, store.StatusActive, st.status(docV1))
	assert.Equal(t, store.StatusObsolete, st.status(docV2))
}

func TestRun_FetchFailureLeavesPriorActive(t *testing.T) {
	// The replacement document can't be fetched; the old document must stay
	// ACTIVE because nothing was successfully recorded in its place.
	st := newMemStore()
	st.seed("Acme Electric", docV1, "old-hash")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV2}}}},
		&fakeSelector{},
		&fakeDetector{errs: map[string]error{docV2: errors.New("status 503")}},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	src := rec.Sources[0]
	assert.Equal(t, 1, src.Errors)
	assert.Equal(t, 0, src.Added)
	require.Len(t, src.Selections, 1)
	assert.Equal(t, "status 503", src.Selections[0].Err)
	assert.Equal(t, store.StatusActive, st.status(docV1))
}

func TestRun_FailedSelectedDocStaysActive(t *testing.T) {
	// Two documents selected, one fetch fails. The failed document is still in
	// the keep set, so supersession (triggered by the successful one) must not
	// obsolete it.
	st := newMemStore()
	st.seed("Acme Electric", docV1, "old-hash")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}, {URL: docV2}}}},
		&fakeSelector{},
		&fakeDetector{errs: map[string]error{docV1: errors.New("timeout")}},
		st,
	)

	_, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	assert.Equal(t, store.StatusActive, st.status(docV1))
	assert.Equal(t, store.StatusActive, st.status(docV2))
}

func TestRun_UnchangedContentCountsNothing(t *testing.T) {
	st := newMemStore()
	st.seed("Acme Electric", docV1, "same-hash")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}},
		&fakeSelector{},
		&fakeDetector{results: map[string]*detect.Result{docV1: {Fingerprint: "same-hash", Changed: false}}},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	src := rec.Sources[0]
	assert.Equal(t, 0, src.Added)
	assert.Equal(t, 0, src.Updated)
	assert.Equal(t, 0, src.Errors)
	assert.Equal(t, store.StatusActive, st.status(docV1))
}

func TestRun_PriorStateFlowsToDetector(t *testing.T) {
	st := newMemStore()
	st.seed("Acme Electric", docV1, "prior-hash")

	det := &fakeDetector{}
	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}},
		&fakeSelector{},
		det,
		st,
	)
	m.Quick = true

	_, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	require.NotNil(t, det.priors[docV1])
	assert.Equal(t, "prior-hash", det.priors[docV1].Fingerprint)
	require.Len(t, det.quick, 1)
	assert.True(t, det.quick[0])
}

func TestRun_ResolverFailureDoesNotAbortRun(t *testing.T) {
	st := newMemStore()
	m := newMonitor(
		&fakeResolver{
			candidates: map[string][]resolve.Candidate{"https://ok.example": {{URL: docV1}}},
			errs:       map[string]error{"https://down.example": errors.New("status 500")},
		},
		&fakeSelector{},
		&fakeDetector{},
		st,
	)

	list := []sources.Source{
		{Name: "Down Utility", URL: "https://down.example"},
		{Name: "OK Utility", URL: "https://ok.example"},
	}

	rec, err := m.Run(context.Background(), "sources.json", list)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Sources[0].Errors)
	assert.Contains(t, rec.Sources[0].Err, "status 500")
	assert.Equal(t, 1, rec.Sources[1].Added)
}

func TestRun_SelectorFailureMeansZeroSelected(t *testing.T) {
	st := newMemStore()
	st.seed("Acme Electric", docV1, "old-hash")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}, {URL: docV2}}}},
		&fakeSelector{errs: map[string]error{"Acme Electric": errors.New("quota exceeded")}},
		&fakeDetector{},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	src := rec.Sources[0]
	assert.Equal(t, 2, src.CandidatesFound)
	assert.Equal(t, 0, src.CandidatesSelected)
	assert.Equal(t, 1, src.Errors)
	// Selection failure records nothing and supersedes nothing.
	assert.Equal(t, store.StatusActive, st.status(docV1))
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	st := newMemStore()
	st.upsertErr = errors.New("connection refused")

	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}},
		&fakeSelector{},
		&fakeDetector{},
		st,
	)

	_, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.Error(t, err)
	assert.ErrorIs(t, err, st.upsertErr)
}

func TestRun_SourceOrderPreservedUnderConcurrency(t *testing.T) {
	st := newMemStore()
	resolver := &fakeResolver{candidates: map[string][]resolve.Candidate{}}

	var list []sources.Source
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for _, n := range names {
		u := "https://" + n + ".example/rates"
		list = append(list, sources.Source{Name: n, URL: u})
		resolver.candidates[u] = []resolve.Candidate{{URL: u + "/doc.pdf"}}
	}

	m := newMonitor(resolver, &fakeSelector{}, &fakeDetector{}, st)
	m.Concurrency = 3

	rec, err := m.Run(context.Background(), "sources.json", list)
	require.NoError(t, err)

	require.Len(t, rec.Sources, len(names))
	for i, n := range names {
		assert.Equal(t, n, rec.Sources[i].SourceName)
	}
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	st := newMemStore()
	resolver := &fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}}
	detector := &fakeDetector{results: map[string]*detect.Result{docV1: {Fingerprint: "h1", Changed: true}}}
	m := newMonitor(resolver, &fakeSelector{}, detector, st)

	rec1, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)
	assert.Equal(t, 1, rec1.TotalAdded())

	// Second run sees the same content.
	detector.results[docV1] = &detect.Result{Fingerprint: "h1", Changed: false}
	rec2, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)
	assert.Equal(t, 0, rec2.TotalAdded())
	assert.Equal(t, 0, rec2.TotalUpdated())
	assert.NotEqual(t, rec1.RunID, rec2.RunID)
}

func TestRun_RemoteModifiedRecorded(t *testing.T) {
	st := newMemStore()
	modified := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	m := newMonitor(
		&fakeResolver{candidates: map[string][]resolve.Candidate{acmePage: {{URL: docV1}}}},
		&fakeSelector{},
		&fakeDetector{results: map[string]*detect.Result{docV1: {Fingerprint: "h1", Changed: true, RemoteModified: &modified}}},
		st,
	)

	rec, err := m.Run(context.Background(), "sources.json", acmeSources())
	require.NoError(t, err)

	require.Len(t, rec.Sources[0].Selections, 1)
	require.NotNil(t, rec.Sources[0].Selections[0].RemoteModified)
	assert.Equal(t, modified, *rec.Sources[0].Selections[0].RemoteModified)
}

func TestDocumentNameFromURL(t *testing.T) {
	assert.Equal(t, "tariff-2026.pdf", documentNameFromURL("https://acme.example/docs/tariff-2026.pdf"))
	assert.Equal(t, "rates.pdf", documentNameFromURL("https://acme.example/rates.pdf?v=2"))
	assert.Equal(t, "unknown.pdf", documentNameFromURL("https://acme.example/"))
	assert.Equal(t, "unknown.pdf", documentNameFromURL("https://acme.example"))
}
