package models

const (
	// Reserved metadata keys stamped on every fragment.
	MetaSource = "source"
	MetaPage   = "page"

	// Commonly used document-level tag keys.
	TagDocumentType = "document_type"
	TagRegion       = "region"
)

var (
	// AnswerPromptTemplate grounds the completion on retrieved context only.
	// Filled with (context block, question).
	AnswerPromptTemplate = `You are a helpful assistant answering questions about a document collection.
Answer the question using only the information in the context below.
If the answer is not contained in the context, state explicitly that the answer is not found in the provided context.

Context:
%s

Question: %s
`
)

// Separators is the prioritized separator list used by the splitter:
// paragraph breaks first, then line breaks, then sentence punctuation,
// then word boundaries, then an arbitrary character cut.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}
