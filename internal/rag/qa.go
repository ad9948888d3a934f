package rag

// QAPair is one question/answer record loaded verbatim from a
// line-delimited record file. Every pair in the sidecar list has a
// corresponding indexed chunk.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Render returns the textual form the pair is indexed under.
func (p QAPair) Render() string {
	return "Question: " + p.Question + "\nAnswer: " + p.Answer
}
