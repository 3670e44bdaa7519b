package uri

// Staged builder for AgentURI values. Each stage is a distinct type, so
// supplying components out of order fails to compile rather than at
// runtime:
//
//	u, err := uri.NewBuilder().
//		TrustRoot(root).       // -> *BuilderWithTrustRoot
//		CapabilityPath(path).  // -> *BuilderWithPath
//		AgentID(id).           // -> *BuilderReady
//		Build()
//
// Query and fragment are optional and only settable once the builder is
// ready. Build re-checks the total length bound.

// Builder is the empty starting stage; it only accepts a trust root.
type Builder struct{}

// NewBuilder returns a builder with no components set.
func NewBuilder() *Builder {
	return &Builder{}
}

// TrustRoot sets an already-validated trust root.
func (b *Builder) TrustRoot(root TrustRoot) *BuilderWithTrustRoot {
	return &BuilderWithTrustRoot{root: root}
}

// TryTrustRoot parses and sets the trust root.
func (b *Builder) TryTrustRoot(s string) (*BuilderWithTrustRoot, error) {
	root, err := ParseTrustRoot(s)
	if err != nil {
		return nil, err
	}
	return b.TrustRoot(root), nil
}

// BuilderWithTrustRoot has a trust root; it accepts a capability path.
type BuilderWithTrustRoot struct {
	root TrustRoot
}

// CapabilityPath sets an already-validated capability path.
func (b *BuilderWithTrustRoot) CapabilityPath(path CapabilityPath) *BuilderWithPath {
	return &BuilderWithPath{root: b.root, path: path}
}

// TryCapabilityPath parses and sets the capability path.
func (b *BuilderWithTrustRoot) TryCapabilityPath(s string) (*BuilderWithPath, error) {
	path, err := ParseCapabilityPath(s)
	if err != nil {
		return nil, err
	}
	return b.CapabilityPath(path), nil
}

// BuilderWithPath has a trust root and capability path; it accepts an
// agent id.
type BuilderWithPath struct {
	root TrustRoot
	path CapabilityPath
}

// AgentID sets an already-validated agent id, completing the required
// components.
func (b *BuilderWithPath) AgentID(id AgentID) *BuilderReady {
	return &BuilderReady{root: b.root, path: b.path, id: id}
}

// TryAgentID parses and sets the agent id.
func (b *BuilderWithPath) TryAgentID(s string) (*BuilderReady, error) {
	id, err := ParseAgentID(s)
	if err != nil {
		return nil, err
	}
	return b.AgentID(id), nil
}

// BuilderReady has all required components; Build may be called, and the
// optional query and fragment may be set.
type BuilderReady struct {
	root        TrustRoot
	path        CapabilityPath
	id          AgentID
	query       Query
	fragment    Fragment
	hasFragment bool
}

// Query sets the query.
func (b *BuilderReady) Query(q Query) *BuilderReady {
	c := *b
	c.query = q
	return &c
}

// TryQuery parses and sets the query.
func (b *BuilderReady) TryQuery(s string) (*BuilderReady, error) {
	q, err := ParseQuery(s)
	if err != nil {
		return nil, err
	}
	return b.Query(q), nil
}

// Fragment sets the fragment. An empty fragment clears it.
func (b *BuilderReady) Fragment(f Fragment) *BuilderReady {
	c := *b
	c.fragment = f
	c.hasFragment = !f.IsEmpty()
	return &c
}

// TryFragment parses and sets the fragment.
func (b *BuilderReady) TryFragment(s string) (*BuilderReady, error) {
	f, err := ParseFragment(s)
	if err != nil {
		return nil, err
	}
	return b.Fragment(f), nil
}

// Build assembles the URI, failing if the composed form exceeds
// MaxURILength.
func (b *BuilderReady) Build() (AgentURI, error) {
	return assemble(b.root, b.path, b.id, b.query, b.fragment, b.hasFragment)
}
