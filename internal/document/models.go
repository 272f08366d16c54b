package document

import "time"

// DefaultTitle is used when a document is created without a title, including
// documents first written by the real-time save path.
const DefaultTitle = "Untitled Document"

// Document is the persistent document model.
// Content is an opaque serialized operation log; only the collab package
// interprets its framing. Version increases on every content-mutating write.
type Document struct {
	ID            string    `json:"id" bson:"id"`
	Title         string    `json:"title" bson:"title"`
	Content       string    `json:"content" bson:"content"`
	Owner         string    `json:"owner,omitempty" bson:"owner,omitempty"`
	Collaborators []string  `json:"collaborators" bson:"collaborators"`
	Version       int64     `json:"version" bson:"version"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	LastModified  time.Time `json:"lastModified" bson:"lastModified"`
}

// Patch is a partial update from the REST API. Nil fields are left unchanged.
type Patch struct {
	Title   *string
	Content *string
}

// CanAccess reports whether sub may read and edit the document. Documents
// without an owner were created anonymously and are open to everyone.
func (d *Document) CanAccess(sub string) bool {
	if d.Owner == "" || d.Owner == sub {
		return true
	}
	return d.HasCollaborator(sub)
}

func (d *Document) HasCollaborator(sub string) bool {
	for _, c := range d.Collaborators {
		if c == sub {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the collaborator slice.
func (d *Document) Clone() *Document {
	out := *d
	out.Collaborators = append([]string(nil), d.Collaborators...)
	return &out
}
