package quiz

// DefaultQuestions is a small built-in set for demos and smoke tests
func DefaultQuestions() []Question {
	return []Question{
		{
			Prompt:  "Which planet has the most moons?",
			Options: []string{"Earth", "Saturn", "Mars", "Venus"},
			Answer:  1,
		},
		{
			Prompt:  "What year did the first person walk on the Moon?",
			Options: []string{"1961", "1969", "1972", "1958"},
			Answer:  1,
		},
		{
			Prompt:  "Which of these is not a programming language?",
			Options: []string{"Erlang", "Fortran", "Kestrel", "Prolog"},
			Answer:  2,
		},
		{
			Prompt:  "How many keys does a standard piano have?",
			Options: []string{"76", "84", "88", "92"},
			Answer:  2,
		},
	}
}
