package models

import "time"

// Project is the descriptor of a target source repository, supplied to the
// core as an input argument by the process/CLI surface.
type Project struct {
	// ID is the unique project identifier.
	ID string `json:"id"`
	// Name is the human-readable project name.
	Name string `json:"name"`
	// GitURL is the clone URL of the repository.
	GitURL string `json:"gitUrl"`
	// DefaultBranch is the protected default branch (main or master).
	DefaultBranch string `json:"defaultBranch"`
	// IntegrationBranch is the non-protected branch agent work merges into.
	IntegrationBranch string `json:"integrationBranch"`
	// WorkDir is the allocated working directory for this project.
	WorkDir string `json:"workDir"`
	// CreatedAt is when the project descriptor was created.
	CreatedAt time.Time `json:"createdAt"`
	// LastUsed is when the project was last worked on.
	LastUsed time.Time `json:"lastUsed"`
}

// Instruction is a high-level operator request against a project.
type Instruction struct {
	// Text is the free-form instruction.
	Text string `json:"text"`
	// ProjectID identifies the target project.
	ProjectID string `json:"project_id"`
	// CreatedAt is when the instruction was issued.
	CreatedAt time.Time `json:"created_at"`
}
