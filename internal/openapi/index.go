// Package openapi loads the service's OpenAPI document, indexes its
// operations and serves it as JSON.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed bpmonitor.yaml
var defaultDocument []byte

// DefaultDocument returns the embedded API document in YAML form.
func DefaultDocument() []byte {
	return defaultDocument
}

// IndexedOperation holds a resolved OpenAPI operation with its context.
type IndexedOperation struct {
	OperationID  string
	Method       string
	PathTemplate string
	Parameters   []*openapi3.Parameter
	Responses    *openapi3.Responses
}

// Parameter returns the named parameter of the operation, or nil.
func (op IndexedOperation) Parameter(in, name string) *openapi3.Parameter {
	for _, p := range op.Parameters {
		if p.In == in && p.Name == name {
			return p
		}
	}
	return nil
}

// Index is an in-memory index of the API document's operations keyed by
// operationId. It is safe for concurrent use once loaded.
type Index struct {
	loaded     atomic.Bool
	doc        *openapi3.T
	rendered   []byte
	operations map[string]IndexedOperation
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{operations: make(map[string]IndexedOperation)}
}

// Load parses and validates a document, rewrites its server URL to basePath
// and indexes all operations. An empty basePath keeps the document's
// servers.
func (idx *Index) Load(ctx context.Context, data []byte, basePath string) error {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("openapi: loading document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("openapi: validating document: %w", err)
	}

	if basePath != "" {
		doc.Servers = openapi3.Servers{{URL: basePath}}
	}

	operations := make(map[string]IndexedOperation)
	for path, pathItem := range doc.Paths.Map() {
		for method, op := range pathItem.Operations() {
			if op.OperationID == "" {
				continue
			}

			// Merge path-level and operation-level parameters.
			params := make([]*openapi3.Parameter, 0)
			for _, ref := range pathItem.Parameters {
				if ref.Value != nil {
					params = append(params, ref.Value)
				}
			}
			for _, ref := range op.Parameters {
				if ref.Value != nil {
					params = append(params, ref.Value)
				}
			}

			operations[op.OperationID] = IndexedOperation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				Parameters:   params,
				Responses:    op.Responses,
			}
		}
	}

	rendered, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("openapi: rendering document: %w", err)
	}

	idx.doc = doc
	idx.rendered = rendered
	idx.operations = operations
	idx.loaded.Store(true)
	return nil
}

// LoadDefault loads the embedded document.
func (idx *Index) LoadDefault(ctx context.Context, basePath string) error {
	return idx.Load(ctx, defaultDocument, basePath)
}

// Loaded reports whether a document has been loaded.
func (idx *Index) Loaded() bool {
	return idx.loaded.Load()
}

// Document returns the loaded document, or nil.
func (idx *Index) Document() *openapi3.T {
	if !idx.Loaded() {
		return nil
	}
	return idx.doc
}

// GetOperation returns the indexed operation with the given operation ID.
func (idx *Index) GetOperation(operationID string) (IndexedOperation, bool) {
	op, ok := idx.operations[operationID]
	return op, ok
}

// AllOperationIDs returns all operation IDs, sorted.
func (idx *Index) AllOperationIDs() []string {
	ids := make([]string, 0, len(idx.operations))
	for id := range idx.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServeHTTP writes the document as JSON. It answers 503 until a document is
// loaded.
func (idx *Index) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if !idx.Loaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"success":false,"error":"API document not loaded","message":"API document not loaded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(idx.rendered)
}
