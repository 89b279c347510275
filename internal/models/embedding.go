package models

import "strconv"

// Page is one page of extracted document text, as produced by the parser.
type Page struct {
	Text   string
	Source string
	Page   int
}

// Fragment is the unit of storage and retrieval: a bounded piece of page
// text plus its metadata and, once computed, its embedding.
type Fragment struct {
	Text      string
	Source    string
	Page      int
	Tags      map[string]string
	Embedding []float32
}

// MergeTags merges document-level tags into the fragment. The reserved
// source/page keys are carried as struct fields and cannot be overwritten.
func (f *Fragment) MergeTags(tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	if f.Tags == nil {
		f.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		if k == MetaSource || k == MetaPage {
			continue
		}
		f.Tags[k] = v
	}
}

// Metadata renders the flat metadata map persisted alongside the fragment
// and matched by store filters.
func (f *Fragment) Metadata() map[string]string {
	md := make(map[string]string, len(f.Tags)+2)
	for k, v := range f.Tags {
		md[k] = v
	}
	md[MetaSource] = f.Source
	md[MetaPage] = strconv.Itoa(f.Page)
	return md
}

// PromptResponse is the result of one retrieval-augmented query.
type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
