// Package artifact defines the project-memory data model: the persisted
// snapshot of a project's files, symbols, imports, and dependency manifest,
// plus the supporting delta/edge/event types used across the store,
// analyzer, indexer, and delta engine.
package artifact

// Version is the compiled schema tag. An artifact loaded with a different
// version is treated as absent and triggers a full rebuild.
const Version = 4

// SymbolKind classifies a public symbol extracted from a source file.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolType      SymbolKind = "type"
	SymbolStruct    SymbolKind = "struct"
	SymbolInterface SymbolKind = "interface"
	SymbolConst     SymbolKind = "const"
	SymbolVar       SymbolKind = "var"
	SymbolClass     SymbolKind = "class"
	SymbolEnum      SymbolKind = "enum"
	SymbolTrait     SymbolKind = "trait"
)

// Symbol is one exported/public declaration in a file.
type Symbol struct {
	Kind      SymbolKind `json:"kind"`
	Name      string     `json:"name"`
	Signature string     `json:"signature,omitempty"`
}

// TypeRelationKind classifies a structural relationship between two types.
type TypeRelationKind string

const (
	RelationImplements TypeRelationKind = "implements"
	RelationExtends    TypeRelationKind = "extends"
	RelationContains   TypeRelationKind = "contains"
	RelationAlias      TypeRelationKind = "alias"
)

// TypeRelation is one edge in the type graph extracted from a file.
type TypeRelation struct {
	Source   string           `json:"source"`
	Target   string           `json:"target"`
	Relation TypeRelationKind `json:"relation"`
	File     string           `json:"file"`
}

// FileArtifact is the analyzed snapshot of a single file.
type FileArtifact struct {
	RelPath       string         `json:"rel_path"`
	Size          int64          `json:"size"`
	Hash          uint64         `json:"hash"`
	Language      string         `json:"language,omitempty"`
	LineCount     *int           `json:"line_count,omitempty"`
	Imports       []string       `json:"imports"`
	PubSymbols    []Symbol       `json:"pub_symbols"`
	TypeRelations []TypeRelation `json:"type_relations"`
}

// ManifestEntry is one dependency declaration.
type ManifestEntry struct {
	Name    string `json:"name"`
	Version string `json:"version_string"`
}

// DepManifest is the dependency manifest derived from the first recognized
// manifest file found in a project (go.mod, Cargo.toml, package.json, or
// pyproject.toml).
type DepManifest struct {
	Runtime []ManifestEntry `json:"runtime"`
	Dev     []ManifestEntry `json:"dev"`
	Build   []ManifestEntry `json:"build"`
}

// ProjectArtifact is the full persisted snapshot for one project root.
type ProjectArtifact struct {
	SchemaVersion int             `json:"version"`
	ProjectID     string          `json:"project_id"`
	ProjectRoot   string          `json:"project_root"`
	UpdatedAt     int64           `json:"updated_at"`
	FileCount     int             `json:"file_count"`
	TotalBytes    int64           `json:"total_bytes"`
	Files         []FileArtifact  `json:"files"`
	DepManifest   *DepManifest    `json:"dep_manifest,omitempty"`
}

// ChangeKind classifies a single file delta.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change describes one file's delta between two scans.
type Change struct {
	RelPath string     `json:"rel_path"`
	Kind    ChangeKind `json:"kind"`
}

// DeltaSummary is the result of comparing two artifact snapshots.
type DeltaSummary struct {
	Added    int      `json:"added"`
	Modified int      `json:"modified"`
	Removed  int      `json:"removed"`
	Changes  []Change `json:"changes"`
}

// ImportEdge connects an importing file to an imported module string, used
// for cascade invalidation.
type ImportEdge struct {
	FromID   string
	ToID     string
	EdgeType string
}
