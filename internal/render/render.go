// Package render resolves template references in raw configuration
// documents and parses the result.
//
// Two reference forms are recognized:
//
//	${{ secrets.NAME }}   resolved from IDE secrets, then from the control plane
//	${{ inputs.NAME }}    resolved from renderer inputs
//
// References that cannot be resolved are left in place so a later
// validation stage can report them.
package render

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/shared/types"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// ErrInvalidDocument is returned for empty or unparseable documents
var ErrInvalidDocument = errors.New("invalid config document")

var templateRef = regexp.MustCompile(`\$\{\{\s*(secrets|inputs)\.([A-Za-z0-9_\-./]+)\s*\}\}`)

// Renderer turns raw document text into a rendered document
type Renderer interface {
	Render(ctx context.Context, document string) (*types.ConfigDocument, error)
}

// SecretResolver resolves fully qualified secret names remotely.
// controlplane.API satisfies it.
type SecretResolver interface {
	ResolveSecrets(ctx context.Context, fqsns []string) ([]controlplane.SecretResult, error)
}

// Option configures a TemplateRenderer
type Option func(*TemplateRenderer)

// WithInputs sets the values used for inputs.* references
func WithInputs(inputs map[string]string) Option {
	return func(r *TemplateRenderer) {
		r.inputs = make(map[string]string, len(inputs))
		for k, v := range inputs {
			r.inputs[k] = v
		}
	}
}

// WithLogger sets the renderer logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *TemplateRenderer) { r.logger = logging.OrNop(logger) }
}

// TemplateRenderer is the default Renderer
type TemplateRenderer struct {
	ide    ide.IDE
	remote SecretResolver
	inputs map[string]string
	logger *zap.Logger
}

// NewTemplateRenderer creates a renderer. Either collaborator may be nil, in
// which case that source is skipped.
func NewTemplateRenderer(handle ide.IDE, remote SecretResolver, opts ...Option) *TemplateRenderer {
	r := &TemplateRenderer{
		ide:    handle,
		remote: remote,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render substitutes references in document and parses it as YAML
func (r *TemplateRenderer) Render(ctx context.Context, document string) (*types.ConfigDocument, error) {
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	refs := References(document)
	values, err := r.resolve(ctx, refs)
	if err != nil {
		return nil, err
	}

	// References become plain tokens before parsing and values are put back
	// into the decoded strings, so a value is never read as YAML syntax.
	var pairs []string
	masked := templateRef.ReplaceAllStringFunc(document, func(match string) string {
		sub := templateRef.FindStringSubmatch(match)
		value, ok := values[Reference{Kind: sub[1], Name: sub[2]}]
		if !ok {
			value = match
		}
		token := fmt.Sprintf("__profiled_ref_%d__", len(pairs)/2)
		pairs = append(pairs, token, value)
		return token
	})

	doc, err := Parse(masked)
	if err != nil {
		return nil, err
	}
	if len(pairs) > 0 {
		substitute(reflect.ValueOf(doc).Elem(), strings.NewReplacer(pairs...))
	}
	return doc, nil
}

// substitute applies r to every settable string reachable from v
func substitute(v reflect.Value, r *strings.Replacer) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(r.Replace(v.String()))
		}
	case reflect.Pointer:
		if !v.IsNil() {
			substitute(v.Elem(), r)
		}
	case reflect.Interface:
		if v.IsNil() || !v.CanSet() {
			return
		}
		elem := reflect.New(v.Elem().Type()).Elem()
		elem.Set(v.Elem())
		substitute(elem, r)
		v.Set(elem)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			substitute(v.Field(i), r)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			substitute(v.Index(i), r)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			elem := reflect.New(v.Type().Elem()).Elem()
			elem.Set(iter.Value())
			substitute(elem, r)
			v.SetMapIndex(iter.Key(), elem)
		}
	}
}

func (r *TemplateRenderer) resolve(ctx context.Context, refs []Reference) (map[Reference]string, error) {
	values := make(map[Reference]string, len(refs))

	var secretNames []string
	for _, ref := range refs {
		switch ref.Kind {
		case KindInputs:
			if v, ok := r.inputs[ref.Name]; ok {
				values[ref] = v
			}
		case KindSecrets:
			secretNames = append(secretNames, ref.Name)
		}
	}
	if len(secretNames) == 0 {
		return values, nil
	}

	missing := secretNames
	if r.ide != nil {
		local, err := r.ide.ReadSecrets(ctx, secretNames)
		if err != nil {
			return nil, fmt.Errorf("read ide secrets: %w", err)
		}
		missing = missing[:0:0]
		for _, name := range secretNames {
			if v, ok := local[name]; ok {
				values[Reference{Kind: KindSecrets, Name: name}] = v
			} else {
				missing = append(missing, name)
			}
		}
	}

	if len(missing) == 0 || r.remote == nil {
		return values, nil
	}

	results, err := r.remote.ResolveSecrets(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve secrets: %w", err)
	}
	for _, res := range results {
		if res.Found {
			values[Reference{Kind: KindSecrets, Name: res.FQSN}] = res.Value
		}
	}

	if unresolved := len(missing) - countFound(results); unresolved > 0 {
		r.logger.Debug("Secrets left unresolved", zap.Int("count", unresolved))
	}
	return values, nil
}

func countFound(results []controlplane.SecretResult) int {
	n := 0
	for _, res := range results {
		if res.Found {
			n++
		}
	}
	return n
}

// Parse decodes rendered YAML into a document
func Parse(document string) (*types.ConfigDocument, error) {
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	var doc types.ConfigDocument
	if err := yaml.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Encode serializes a document to YAML text for rendering
func Encode(doc *types.ConfigDocument) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}
