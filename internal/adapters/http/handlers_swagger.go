package http

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed docs/roadworks.openapi.yaml
var openAPIYAML []byte

const (
	docsCacheControl = "public, max-age=300, must-revalidate"
	// The UI page references the JSON document, so it is always revalidated.
	uiCacheControl = "no-cache"
)

// apiDocs holds both renderings of the embedded OpenAPI document and their shared ETag.
type apiDocs struct {
	yaml []byte
	json []byte
	etag string
}

var loadAPIDocs = sync.OnceValues(func() (*apiDocs, error) {
	var tree any
	if err := yaml.Unmarshal(openAPIYAML, &tree); err != nil {
		return nil, fmt.Errorf("parse openapi yaml: %w", err)
	}
	rendered, err := json.Marshal(jsonCompatible(tree))
	if err != nil {
		return nil, fmt.Errorf("render openapi json: %w", err)
	}
	sum := sha256.Sum256(openAPIYAML)
	return &apiDocs{
		yaml: openAPIYAML,
		json: rendered,
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
	}, nil
})

// jsonCompatible rewrites yaml.v3 maps with non-string keys, such as unquoted
// response codes, into string-keyed maps.
func jsonCompatible(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			v[key] = jsonCompatible(child)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[fmt.Sprint(key)] = jsonCompatible(child)
		}
		return out
	case []any:
		for i, child := range v {
			v[i] = jsonCompatible(child)
		}
		return v
	default:
		return v
	}
}

const swaggerUIHTML = `<!doctype html>
<html lang="fr">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Roadworks API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: "/swagger/openapi.json",
      dom_id: "#swagger-ui",
      persistAuthorization: true
    });
  </script>
</body>
</html>`

func (h *Handler) swaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", uiCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write([]byte(swaggerUIHTML))
}

func (h *Handler) swaggerYAML(w http.ResponseWriter, r *http.Request) {
	h.serveAPIDocs(w, r, "application/yaml; charset=utf-8", func(d *apiDocs) []byte { return d.yaml })
}

func (h *Handler) swaggerJSON(w http.ResponseWriter, r *http.Request) {
	h.serveAPIDocs(w, r, "application/json; charset=utf-8", func(d *apiDocs) []byte { return d.json })
}

// serveAPIDocs answers conditional requests with 304 when the ETag still matches.
func (h *Handler) serveAPIDocs(w http.ResponseWriter, r *http.Request, contentType string, body func(*apiDocs) []byte) {
	docs, err := loadAPIDocs()
	if err != nil {
		h.writeMappedError(r.Context(), w, "openapi_document", err)
		return
	}
	w.Header().Set("ETag", docs.etag)
	w.Header().Set("Cache-Control", docsCacheControl)
	if match := r.Header.Get("If-None-Match"); match == docs.etag || match == "*" {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(body(docs))
}
