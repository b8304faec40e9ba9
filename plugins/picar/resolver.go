package picar

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velour/picbot/config"
)

const placeholder = "{pict}"

var schemeRegex = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

var imageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// resolver turns {pict} placeholders into inline base64 images drawn from a
// local directory or a remote JSON list of URLs. intn must be safe for
// concurrent use; handlers run in whatever goroutine the connector picks.
type resolver struct {
	baseDir  string
	cacheDir string
	ua       string
	client   *http.Client
	intn     func(n int) int
}

func newResolver(c *config.Config) *resolver {
	return &resolver{
		baseDir:  c.Get("picar.basedir", "."),
		cacheDir: c.Get("picar.cachedir", "picar_cache"),
		ua: c.Get("picar.useragent",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		client: &http.Client{Timeout: 30 * time.Second},
		intn:   rand.Intn,
	}
}

// Resolve substitutes every {pict} occurrence in template with an
// independently chosen image from source. Failed substitutions become empty
// strings; the template itself never errors out.
func (r *resolver) Resolve(template, source string) string {
	offsets := placeholderOffsets(template)
	if len(offsets) == 0 {
		return template
	}

	candidates := r.listCandidates(source)

	// Splice by the offsets computed on the original template so a payload
	// that happens to contain the placeholder token can't be re-substituted.
	var b strings.Builder
	last := 0
	for _, off := range offsets {
		b.WriteString(template[last:off])
		if len(candidates) > 0 {
			pick := candidates[r.intn(len(candidates))]
			data, err := r.imageData(pick)
			if err != nil {
				log.Error().Err(err).Msgf("could not inline %s", pick)
			} else {
				b.WriteString(data)
			}
		}
		last = off + len(placeholder)
	}
	b.WriteString(template[last:])
	return b.String()
}

// placeholderOffsets finds the non-overlapping occurrences of the token
func placeholderOffsets(template string) []int {
	offsets := []int{}
	for from := 0; ; {
		i := strings.Index(template[from:], placeholder)
		if i < 0 {
			break
		}
		offsets = append(offsets, from+i)
		from += i + len(placeholder)
	}
	return offsets
}

// listCandidates resolves a source to the set of image references it offers.
// Errors log and degrade to an empty set.
func (r *resolver) listCandidates(source string) []string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return r.remoteCandidates(source)
	}
	return r.localCandidates(source)
}

func (r *resolver) localCandidates(dir string) []string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.baseDir, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Msgf("could not list image directory %s", dir)
		return []string{}
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))
		if imageExts[ext] {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// remoteCandidates downloads a JSON array of image URLs, at most once per
// distinct source. The cache file sticks around until somebody deletes it.
func (r *resolver) remoteCandidates(source string) []string {
	u, err := url.Parse(source)
	if err != nil {
		log.Error().Err(err).Msgf("bad image list URL %s", source)
		return []string{}
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		// a bare host URL has no usable basename
		base = u.Host
	}
	cacheFile := filepath.Join(r.cacheDir, base)

	if _, err := os.Stat(cacheFile); errors.Is(err, os.ErrNotExist) {
		body, err := r.fetchList(source)
		if err != nil {
			log.Error().Err(err).Msgf("could not fetch image list %s", source)
			return []string{}
		}
		if err := os.MkdirAll(r.cacheDir, 0775); err != nil {
			log.Error().Err(err).Msgf("could not create cache directory %s", r.cacheDir)
			return []string{}
		}
		if err := os.WriteFile(cacheFile, body, 0664); err != nil {
			log.Error().Err(err).Msgf("could not write cache file %s", cacheFile)
			return []string{}
		}
		log.Debug().Msgf("cached image list %s at %s", source, cacheFile)
	}

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		log.Error().Err(err).Msgf("could not read cache file %s", cacheFile)
		return []string{}
	}
	// only the document shape is checked; elements pass through untouched
	doc := []interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Error().Err(err).Msgf("image list %s is not a JSON array", source)
		return []string{}
	}
	list := make([]string, 0, len(doc))
	for _, e := range doc {
		if s, ok := e.(string); ok {
			list = append(list, s)
		} else {
			list = append(list, fmt.Sprint(e))
		}
	}
	return list
}

func (r *resolver) fetchList(source string) ([]byte, error) {
	resp, err := r.client.Get(source)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", source, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// imageData reads one candidate and returns it as a data URI
func (r *resolver) imageData(candidate string) (string, error) {
	local := !schemeRegex.MatchString(candidate)

	var body []byte
	var err error
	if local {
		body, err = os.ReadFile(candidate)
		if err != nil {
			return "", err
		}
	} else {
		req, err := http.NewRequest(http.MethodGet, candidate, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", r.ua)
		resp, err := r.client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("fetching %s: status %d", candidate, resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
	}

	mime := mimeFromExt(candidate, local)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

// mimeFromExt maps a file suffix to a MIME type. Anything unrecognized is
// jpeg; webp only counts for local files.
func mimeFromExt(name string, local bool) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch {
	case ext == "png":
		return "image/png"
	case ext == "gif":
		return "image/gif"
	case ext == "webp" && local:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
