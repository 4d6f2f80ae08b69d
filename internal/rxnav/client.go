package rxnav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/rxresolve/pkg/rxresolve/internalerr"
)

// DefaultBaseURL is the public NLM RxNav REST endpoint.
const DefaultBaseURL = "https://rxnav.nlm.nih.gov"

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 1024
)

// DefaultOverrides maps brand names whose RxNav concept does not lead to a
// usable ingredient straight to the generic vocabulary name.
var DefaultOverrides = map[string]string{
	"nexplanon": "Etonogestrel",
	"mirena":    "Levonorgestrel",
	"yaz":       "Drospirenone / Ethinyl Estradiol",
	"aleve":     "Naproxen",
}

// Client resolves brand or free-text drug names to an ingredient name
// through the RxNav API. Lookups are best-effort: callers treat any error
// as "no resolution".
type Client struct {
	BaseURL   string
	Overrides map[string]string

	HTTPClient *http.Client

	cache *lru.Cache[string, string]
}

// New creates a client. cacheSize <= 0 uses the default size.
func New(baseURL string, overrides map[string]string, cacheSize int) *Client {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New[string, string](cacheSize)
	normalized := make(map[string]string, len(overrides))
	for k, v := range overrides {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Client{
		BaseURL:   baseURL,
		Overrides: normalized,
		cache:     cache,
	}
}

type idResponse struct {
	IDGroup struct {
		Name     string   `json:"name"`
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

type relatedResponse struct {
	RelatedGroup struct {
		ConceptGroup []struct {
			TTY               string `json:"tty"`
			ConceptProperties []struct {
				RxCUI string `json:"rxcui"`
				Name  string `json:"name"`
				TTY   string `json:"tty"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

// SimpleName reduces a clinical display string to its first word,
// e.g. "Nexplanon 68 MG Drug Implant" -> "Nexplanon".
func SimpleName(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first
}

// Resolve returns the ingredient name for a drug mention.
// It returns internalerr.ErrNotResolved when RxNav has no concept or no
// ingredient for the name. Definitive answers are cached per simple name;
// transport failures are not.
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	simple := SimpleName(name)
	if simple == "" {
		return "", fmt.Errorf("rxnav: empty name: %w", internalerr.ErrInvalidInput)
	}
	key := strings.ToLower(simple)

	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if v == "" {
				return "", internalerr.ErrNotResolved
			}
			return v, nil
		}
	}

	resolved, err := c.resolve(ctx, simple, key)
	if err != nil && !errors.Is(err, internalerr.ErrNotResolved) {
		return "", err
	}
	if c.cache != nil {
		c.cache.Add(key, resolved)
	}
	return resolved, err
}

func (c *Client) resolve(ctx context.Context, simple, key string) (string, error) {
	var ids idResponse
	if err := c.get(ctx, "/REST/rxcui.json", url.Values{"name": {simple}}, &ids); err != nil {
		return "", err
	}
	if len(ids.IDGroup.RxNormID) == 0 {
		return "", internalerr.ErrNotResolved
	}

	if override, ok := c.Overrides[key]; ok {
		return override, nil
	}

	var related relatedResponse
	path := "/REST/rxcui/" + url.PathEscape(ids.IDGroup.RxNormID[0]) + "/related.json"
	if err := c.get(ctx, path, url.Values{"tty": {"IN"}}, &related); err != nil {
		return "", err
	}
	for _, group := range related.RelatedGroup.ConceptGroup {
		for _, concept := range group.ConceptProperties {
			if concept.Name != "" {
				return concept.Name, nil
			}
		}
	}
	return "", internalerr.ErrNotResolved
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint := strings.TrimRight(base, "/") + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rxnav: %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rxnav: %s: %w", path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
