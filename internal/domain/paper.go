package domain

import (
	"time"

	"github.com/google/uuid"
)

// Paper is an uploaded document within a workspace. The processing flags
// track the external pipeline: GROBID parsing, sentence segmentation, and
// OD/CD classification. The (WorkspaceID, FileHash) pair is unique, so the
// same file can exist in different workspaces but not twice in one.
type Paper struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Filename    string
	FileHash    string

	// Pipeline status flags.
	Parsed              bool
	SentencesProcessed  bool
	DefinitionsDetected bool
	SourceDeleted       bool

	RawText      string
	Metadata     map[string]interface{}
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fingerprint returns the tenant-scoped identity of the paper's content.
func (p *Paper) Fingerprint() string {
	return p.WorkspaceID.String() + "/" + p.FileHash
}

// Section types produced by the GROBID segmentation.
const (
	SectionTypeTitle      = "title"
	SectionTypeAbstract   = "abstract"
	SectionTypeBody       = "body"
	SectionTypeMethod     = "method"
	SectionTypeResults    = "results"
	SectionTypeDiscussion = "discussion"
	SectionTypeReferences = "references"
)

// PaperSection is an ordered subdivision of a paper's content.
type PaperSection struct {
	ID          uuid.UUID
	PaperID     uuid.UUID
	SectionType string
	PageNumber  int
	OrderIndex  int
	Text        string
	WordCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaperSelection flags a paper as included in the active analysis set for
// a workspace. At most one row exists per (workspace, paper).
type PaperSelection struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	PaperID     uuid.UUID
	IsSelected  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
