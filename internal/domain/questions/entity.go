package questions

// Question is one regulatory requirement to be answered for an audit.
// Questions come from the questionnaire collaborator; this core only reads
// them.
type Question struct {
	ID      string `json:"id"`
	Chapter string `json:"chapter"`
	Article string `json:"article"`
	Ref     string `json:"ref"`
	Text    string `json:"text"`
}
