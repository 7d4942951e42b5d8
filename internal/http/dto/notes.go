package dto

type GenerateNotesRequest struct {
	Message string `json:"message" binding:"required"`
}

type GenerateNotesResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ArtifactName string `json:"artifact_name,omitempty"`
	ArtifactRef  string `json:"artifact_ref,omitempty"`
}

type ErrorResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail"`
}
