package domain

// Document is one corpus entry. ID is the source filename and is unique
// across the loaded corpus.
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Corpus is the ordered, immutable document collection pulled from the
// vector store at startup. Lookup by id is O(1); duplicate ids during load
// are dropped first-seen-wins.
type Corpus struct {
	docs    []Document
	content map[string]string
}

func NewCorpus() *Corpus {
	return &Corpus{content: make(map[string]string)}
}

// Add inserts a document unless its id was already seen.
func (c *Corpus) Add(doc Document) bool {
	if doc.ID == "" {
		return false
	}
	if _, ok := c.content[doc.ID]; ok {
		return false
	}
	c.content[doc.ID] = doc.Content
	c.docs = append(c.docs, doc)
	return true
}

// Content returns the full text for a document id.
func (c *Corpus) Content(id string) (string, bool) {
	text, ok := c.content[id]
	return text, ok
}

// Documents returns the corpus in load order.
func (c *Corpus) Documents() []Document {
	return c.docs
}

func (c *Corpus) Len() int {
	return len(c.docs)
}
