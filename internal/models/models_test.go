package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragment_MergeTags(t *testing.T) {
	t.Run("merges caller tags", func(t *testing.T) {
		f := Fragment{Text: "text", Source: "doc.pdf", Page: 3}
		f.MergeTags(map[string]string{TagDocumentType: "regioplan", TagRegion: "north"})

		assert.Equal(t, "regioplan", f.Tags[TagDocumentType])
		assert.Equal(t, "north", f.Tags[TagRegion])
	})

	t.Run("never overwrites source and page", func(t *testing.T) {
		f := Fragment{Text: "text", Source: "doc.pdf", Page: 3}
		f.MergeTags(map[string]string{MetaSource: "evil.pdf", MetaPage: "99", TagRegion: "south"})

		assert.Equal(t, "doc.pdf", f.Source)
		assert.Equal(t, 3, f.Page)
		assert.NotContains(t, f.Tags, MetaSource)
		assert.NotContains(t, f.Tags, MetaPage)
		assert.Equal(t, "south", f.Tags[TagRegion])
	})

	t.Run("keeps existing tags on repeat merge", func(t *testing.T) {
		f := Fragment{Tags: map[string]string{"author": "x"}}
		f.MergeTags(map[string]string{TagRegion: "east"})

		assert.Equal(t, "x", f.Tags["author"])
		assert.Equal(t, "east", f.Tags[TagRegion])
	})

	t.Run("nil tags are a no-op", func(t *testing.T) {
		f := Fragment{Source: "doc.pdf"}
		f.MergeTags(nil)
		assert.Nil(t, f.Tags)
	})
}

func TestFragment_Metadata(t *testing.T) {
	f := Fragment{
		Text:   "text",
		Source: "dir/doc.pdf",
		Page:   7,
		Tags:   map[string]string{TagDocumentType: "regioplan"},
	}
	md := f.Metadata()

	assert.Equal(t, "dir/doc.pdf", md[MetaSource])
	assert.Equal(t, "7", md[MetaPage])
	assert.Equal(t, "regioplan", md[TagDocumentType])

	// the rendered map is a copy, not an alias of the tag map
	md["extra"] = "x"
	assert.NotContains(t, f.Tags, "extra")
}
