// Package models defines core data structures for documents, queries, and search results.
package models

// MetadataSource is the metadata key holding the originating file name.
const MetadataSource = "source"

// Document is a stored text document. Its identity is its position in the
// document store, which matches the position of its vector in the index.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewFileDocument returns a document for the file named source.
func NewFileDocument(source, content string) Document {
	return Document{
		Content:  content,
		Metadata: map[string]string{MetadataSource: source},
	}
}

// Source returns the originating file name, or "" when unknown.
func (d *Document) Source() string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	return d.Metadata[MetadataSource]
}
