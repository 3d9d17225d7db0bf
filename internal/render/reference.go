package render

// Reference kinds
const (
	KindSecrets = "secrets"
	KindInputs  = "inputs"
)

// Reference is one ${{ kind.name }} occurrence
type Reference struct {
	Kind string
	Name string
}

func (r Reference) String() string {
	return "${{ " + r.Kind + "." + r.Name + " }}"
}

// References returns the distinct references in document, in order of first
// appearance
func References(document string) []Reference {
	matches := templateRef.FindAllStringSubmatch(document, -1)
	seen := make(map[Reference]struct{}, len(matches))
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		ref := Reference{Kind: m[1], Name: m[2]}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}
