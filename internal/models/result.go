package models

// Match is one counterpart in a match list. Similarity is a percentage of the best match's score.
type Match struct {
	UserID     string  `json:"rollno"`
	Similarity float64 `json:"similarity"`
}

// MatchResponse is the response for a match request. Matches is never nil so it encodes as [].
type MatchResponse struct {
	Matches []Match `json:"matches"`
}

// RegisterResponse is the response for a successful registration.
type RegisterResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SubmissionsResponse lists a user's stored submissions.
type SubmissionsResponse struct {
	UserID      string        `json:"rollno"`
	Submissions []*Submission `json:"submissions"`
}
