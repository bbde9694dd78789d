package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pauloribeiro16/D3fendGraph/internal/types"
)

// top25 is the CWE Top-25 most dangerous weaknesses (2024). The fetcher
// always includes these even when the view-699 walk misses them.
var top25 = []string{
	"79", "787", "89", "416", "78", "20", "125", "22", "352", "434",
	"862", "476", "287", "190", "502", "77", "119", "798", "918", "306",
	"362", "269", "94", "863", "276",
}

// FetcherConfig configures the CWE REST API fetcher.
type FetcherConfig struct {
	// BaseURL is the API root.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one HTTP round-trip.
	Timeout types.Duration `yaml:"timeout"`

	// Retries is the attempt count per request.
	Retries int `yaml:"retries"`

	// Backoff is the fixed wait between attempts.
	Backoff types.Duration `yaml:"backoff"`

	// Delay is the minimum wait between successive requests.
	Delay types.Duration `yaml:"delay"`
}

// DefaultFetcherConfig returns the fetcher defaults: three attempts with a
// one-second backoff and a small politeness delay between requests.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		BaseURL: "https://cwe-api.mitre.org/api/v1",
		Timeout: types.Duration(30 * time.Second),
		Retries: 3,
		Backoff: types.Duration(time.Second),
		Delay:   types.Duration(50 * time.Millisecond),
	}
}

// FetchFailure records one item that could not be fetched. Failures never
// abort the batch.
type FetchFailure struct {
	Item string `json:"item"`
	Err  string `json:"error"`
}

// FetchResult is the outcome of a full fetch: parsed weakness and category
// records plus per-item failures.
type FetchResult struct {
	Weaknesses []WeaknessRecord `json:"weaknesses"`
	Categories []CategoryRecord `json:"categories"`
	Failures   []FetchFailure   `json:"failures"`
}

// Fetcher pulls weakness records from the CWE REST API: the view-699 walk
// yields categories and their member weaknesses, the Top-25 list is unioned
// in, then full detail is fetched per weakness.
type Fetcher struct {
	config FetcherConfig
	http   *http.Client
	logger *slog.Logger

	lastRequest time.Time
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(config FetcherConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Retries <= 0 {
		config.Retries = 3
	}
	return &Fetcher{
		config: config,
		http:   &http.Client{Timeout: time.Duration(config.Timeout)},
		logger: logger,
	}
}

// API envelopes. The REST API wraps every payload in a one-element list
// named after the entity kind.
type viewResponse struct {
	Views []struct {
		Members []memberRef `json:"Members"`
	} `json:"Views"`
}

type categoryResponse struct {
	Categories []apiCategory `json:"Categories"`
}

type apiCategory struct {
	ID    json.Number `json:"ID"`
	Name  string      `json:"Name"`
	Notes []struct {
		Type string `json:"Type"`
		Note string `json:"Note"`
	} `json:"Notes"`
	Relationships []memberRef `json:"Relationships"`
}

type memberRef struct {
	CweID json.Number `json:"CweID"`
}

type weaknessResponse struct {
	Weaknesses []apiWeakness `json:"Weaknesses"`
}

type apiWeakness struct {
	ID                  json.Number `json:"ID"`
	Name                string      `json:"Name"`
	Abstraction         string      `json:"Abstraction"`
	Status              string      `json:"Status"`
	Description         string      `json:"Description"`
	ExtendedDescription string      `json:"ExtendedDescription"`
	LikelihoodOfExploit string      `json:"LikelihoodOfExploit"`

	ApplicablePlatforms []struct {
		Name       string `json:"Name"`
		Class      string `json:"Class"`
		Prevalence string `json:"Prevalence"`
	} `json:"ApplicablePlatforms"`

	CommonConsequences []struct {
		Scope  []string `json:"Scope"`
		Impact []string `json:"Impact"`
		Note   string   `json:"Note"`
	} `json:"CommonConsequences"`

	PotentialMitigations []struct {
		Phase       []string `json:"Phase"`
		Description string   `json:"Description"`
	} `json:"PotentialMitigations"`

	DetectionMethods []struct {
		Method        string `json:"Method"`
		Description   string `json:"Description"`
		Effectiveness string `json:"Effectiveness"`
	} `json:"DetectionMethods"`

	ModesOfIntroduction []struct {
		Phase string `json:"Phase"`
	} `json:"ModesOfIntroduction"`

	RelatedWeaknesses []struct {
		Nature string      `json:"Nature"`
		CweID  json.Number `json:"CweID"`
		ViewID json.Number `json:"ViewID"`
	} `json:"RelatedWeaknesses"`

	TaxonomyMappings []struct {
		TaxonomyName string `json:"TaxonomyName"`
		EntryID      string `json:"EntryID"`
		EntryName    string `json:"EntryName"`
	} `json:"TaxonomyMappings"`

	ObservedExamples []struct {
		Reference   string `json:"Reference"`
		Description string `json:"Description"`
		Link        string `json:"Link"`
	} `json:"ObservedExamples"`
}

// FetchAll walks view 699, fetches each category, unions in the Top-25, and
// pulls full weakness detail. Per-item failures are recorded and skipped.
func (f *Fetcher) FetchAll(ctx context.Context) (FetchResult, error) {
	var result FetchResult

	var view viewResponse
	found, err := f.getJSON(ctx, "/cwe/view/699", &view)
	if err != nil {
		return result, err
	}
	if !found || len(view.Views) == 0 {
		return result, types.NewError(types.FETCH_FAILED, "view 699 not available")
	}

	weaknessIDs := make(map[string]bool)
	for _, member := range view.Views[0].Members {
		cid := member.CweID.String()
		if cid == "" {
			continue
		}
		category, memberIDs, err := f.fetchCategory(ctx, cid)
		if err != nil {
			result.Failures = append(result.Failures, FetchFailure{
				Item: "category/" + cid, Err: err.Error()})
			continue
		}
		if category == nil {
			continue
		}
		result.Categories = append(result.Categories, *category)
		for _, wid := range memberIDs {
			weaknessIDs[wid] = true
		}
	}

	for _, wid := range top25 {
		weaknessIDs[wid] = true
	}

	ordered := make([]string, 0, len(weaknessIDs))
	for wid := range weaknessIDs {
		ordered = append(ordered, wid)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, _ := strconv.Atoi(ordered[i])
		b, _ := strconv.Atoi(ordered[j])
		return a < b
	})

	for _, wid := range ordered {
		weakness, err := f.fetchWeakness(ctx, wid)
		if err != nil {
			result.Failures = append(result.Failures, FetchFailure{
				Item: "weakness/" + wid, Err: err.Error()})
			continue
		}
		if weakness == nil {
			continue
		}
		result.Weaknesses = append(result.Weaknesses, *weakness)
	}

	f.logger.Info("cwe fetch complete",
		"weaknesses", len(result.Weaknesses),
		"categories", len(result.Categories),
		"failures", len(result.Failures))
	return result, nil
}

func (f *Fetcher) fetchCategory(ctx context.Context, id string) (*CategoryRecord, []string, error) {
	var resp categoryResponse
	found, err := f.getJSON(ctx, "/cwe/category/"+id, &resp)
	if err != nil {
		return nil, nil, err
	}
	if !found || len(resp.Categories) == 0 {
		return nil, nil, nil
	}
	cat := resp.Categories[0]

	var summary string
	for _, note := range cat.Notes {
		if note.Type == "Summary" {
			summary = note.Note
			break
		}
	}

	var members []string
	var memberIDs []string
	for _, rel := range cat.Relationships {
		wid := rel.CweID.String()
		if wid == "" {
			continue
		}
		members = append(members, "CWE-"+wid)
		memberIDs = append(memberIDs, wid)
	}

	return &CategoryRecord{
		ID:      "CWE-" + id,
		Name:    cat.Name,
		Summary: summary,
		ViewIDs: []string{"699"},
		Members: members,
	}, memberIDs, nil
}

func (f *Fetcher) fetchWeakness(ctx context.Context, id string) (*WeaknessRecord, error) {
	var resp weaknessResponse
	found, err := f.getJSON(ctx, "/cwe/weakness/"+id, &resp)
	if err != nil {
		return nil, err
	}
	if !found || len(resp.Weaknesses) == 0 {
		return nil, nil
	}
	record := parseAPIWeakness(resp.Weaknesses[0])
	return &record, nil
}

// parseAPIWeakness normalizes one API weakness object into the cached
// record format.
func parseAPIWeakness(w apiWeakness) WeaknessRecord {
	record := WeaknessRecord{
		ID:                  "CWE-" + w.ID.String(),
		Name:                w.Name,
		Abstraction:         w.Abstraction,
		Status:              w.Status,
		Description:         strings.TrimSpace(w.Description),
		ExtendedDescription: strings.TrimSpace(w.ExtendedDescription),
		Likelihood:          w.LikelihoodOfExploit,
	}

	for _, p := range w.ApplicablePlatforms {
		label := p.Name
		if label == "" {
			label = p.Class
		}
		if label == "" {
			continue
		}
		if p.Prevalence != "" {
			label = fmt.Sprintf("%s (%s)", label, p.Prevalence)
		}
		record.Platforms = append(record.Platforms, label)
	}

	for _, c := range w.CommonConsequences {
		entry := Consequence{
			Scope:  strings.Join(c.Scope, ", "),
			Impact: strings.Join(c.Impact, ", "),
			Note:   c.Note,
		}
		if entry.Scope != "" || entry.Impact != "" {
			record.Consequences = append(record.Consequences, entry)
		}
	}

	for _, m := range w.PotentialMitigations {
		desc := strings.TrimSpace(m.Description)
		if desc == "" && len(m.Phase) == 0 {
			continue
		}
		record.Mitigations = append(record.Mitigations, Mitigation{
			Phases:      m.Phase,
			Description: desc,
		})
	}

	for _, d := range w.DetectionMethods {
		if d.Method == "" {
			continue
		}
		record.Detection = append(record.Detection, DetectionMethod{
			Method:        d.Method,
			Description:   strings.TrimSpace(d.Description),
			Effectiveness: d.Effectiveness,
		})
	}

	for _, m := range w.ModesOfIntroduction {
		if m.Phase != "" {
			record.IntroPhases = append(record.IntroPhases, m.Phase)
		}
	}

	for _, rel := range w.RelatedWeaknesses {
		rid := "CWE-" + rel.CweID.String()
		switch rel.Nature {
		case "ChildOf":
			record.Parents = append(record.Parents, rid)
		case "MemberOf":
			record.MemberOf = append(record.MemberOf, MemberRef{
				CategoryID: rid,
				ViewID:     rel.ViewID.String(),
			})
		}
	}

	for _, t := range w.TaxonomyMappings {
		if t.TaxonomyName == "" {
			continue
		}
		record.Taxonomy = append(record.Taxonomy, TaxonomyMapping{
			Taxonomy: t.TaxonomyName,
			ID:       t.EntryID,
			Name:     t.EntryName,
		})
	}

	for _, e := range w.ObservedExamples {
		if e.Reference == "" {
			continue
		}
		record.ObservedExamples = append(record.ObservedExamples, ObservedExample{
			Reference:   e.Reference,
			Description: e.Description,
			Link:        e.Link,
		})
	}

	return record
}

// getJSON fetches a path with bounded retry and a politeness delay. A 404
// reports not-found without error; other failures retry with a fixed backoff
// and surface as FETCH_FAILED once attempts are exhausted.
func (f *Fetcher) getJSON(ctx context.Context, path string, out any) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < f.config.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(f.config.Backoff)):
			case <-ctx.Done():
				return false, types.WrapError(types.FETCH_FAILED, "fetch cancelled", ctx.Err())
			}
		}
		f.throttle(ctx)

		body, status, err := f.doGet(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound {
			return false, nil
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("HTTP %d", status)
			continue
		}
		if err := json.Unmarshal(body, out); err != nil {
			lastErr = err
			continue
		}
		return true, nil
	}
	return false, types.WrapRetryableError(types.FETCH_FAILED,
		fmt.Sprintf("GET %s failed after %d attempts", path, f.config.Retries), lastErr)
}

func (f *Fetcher) doGet(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(f.config.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "d3fendgraph/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// throttle enforces the minimum inter-request delay.
func (f *Fetcher) throttle(ctx context.Context) {
	if f.config.Delay <= 0 {
		return
	}
	wait := time.Duration(f.config.Delay) - time.Since(f.lastRequest)
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	f.lastRequest = time.Now()
}
